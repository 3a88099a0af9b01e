// Package escrow implements the hashlock+timelock escrow state machine and
// the factory/registry that creates escrows at deterministically derived
// addresses and funds them atomically with creation.
package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Escrow is one party's funds locked under a hashlock and a timelock. It is
// funded at creation; the only legal transitions are Funded→Withdrawn while
// the timelock is open and Funded→Cancelled once it has expired.
type Escrow struct {
	ID        common.Address     `json:"id"`
	Params    types.EscrowParams `json:"params"`
	State     types.EscrowState  `json:"state"`
	Source    bool               `json:"source"`
	CreatedAt time.Time          `json:"created_at"`
}

// Settled reports whether the escrow has reached a terminal state.
func (e *Escrow) Settled() bool {
	return e.State.Settled()
}

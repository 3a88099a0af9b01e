package types

import (
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Event is a protocol event published for external observers and the
// resolver's own watch loop.
type Event interface {
	EventType() string
}

// EscrowCreated is emitted when the factory registers and funds a new escrow.
type EscrowCreated struct {
	ID         common.Address `json:"id"`
	Creator    common.Address `json:"creator"`
	Source     bool           `json:"source"`
	SecretHash common.Hash    `json:"secret_hash"`
	Amount     math.Int       `json:"amount"`
}

func (EscrowCreated) EventType() string { return "escrow_created" }

// EscrowWithdrawn carries the revealed secret; observers on the counterpart
// chain use it to unlock the other leg.
type EscrowWithdrawn struct {
	ID        common.Address `json:"id"`
	Secret    hexutil.Bytes  `json:"secret"`
	Recipient common.Address `json:"recipient"`
}

func (EscrowWithdrawn) EventType() string { return "escrow_withdrawn" }

// EscrowCancelled is emitted when a funded escrow is refunded after expiry.
type EscrowCancelled struct {
	ID        common.Address `json:"id"`
	Recipient common.Address `json:"recipient"`
}

func (EscrowCancelled) EventType() string { return "escrow_cancelled" }

// OrderCreated is emitted when a partial-fill order is placed.
type OrderCreated struct {
	SecretHash common.Hash    `json:"secret_hash"`
	Maker      common.Address `json:"maker"`
	Total      math.Int       `json:"total"`
}

func (OrderCreated) EventType() string { return "order_created" }

// OrderPartialFilled is emitted on every accepted fill.
type OrderPartialFilled struct {
	SecretHash common.Hash    `json:"secret_hash"`
	Filler     common.Address `json:"filler"`
	Amount     math.Int       `json:"amount"`
	Filled     math.Int       `json:"filled"`
	Completed  bool           `json:"completed"`
}

func (OrderPartialFilled) EventType() string { return "order_partial_filled" }

// OrderRedeemed is emitted when a completed order pays out to its beneficiary.
type OrderRedeemed struct {
	SecretHash  common.Hash    `json:"secret_hash"`
	Beneficiary common.Address `json:"beneficiary"`
	Amount      math.Int       `json:"amount"`
}

func (OrderRedeemed) EventType() string { return "order_redeemed" }

// OrderRefunded is emitted when an expired order returns custody to its fillers.
type OrderRefunded struct {
	SecretHash common.Hash `json:"secret_hash"`
	Amount     math.Int    `json:"amount"`
}

func (OrderRefunded) EventType() string { return "order_refunded" }

const subscriberBuffer = 64

// Bus is an in-process publish/subscribe fan-out for protocol events.
// Publishing never blocks; a subscriber that falls behind loses events rather
// than stalling state transitions.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

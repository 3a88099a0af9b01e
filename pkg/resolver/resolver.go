// Package resolver implements the cross-chain orchestrator: the managed
// identity that deploys both legs of a swap, drives settlement once the
// secret is revealed, and exposes the permissionless fallbacks that keep the
// protocol trustless if the resolver disappears.
package resolver

import (
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/escrow"
	"github.com/interchainx/fusion-escrow/pkg/ledger"
	"github.com/interchainx/fusion-escrow/pkg/secret"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Chain bundles one chain's escrow factory with its ledger, clock and event
// bus.
type Chain struct {
	Name    string
	Factory *escrow.Factory
	Ledger  ledger.Ledger
	Clock   types.Clock
	Bus     *types.Bus
}

// Swap describes both legs of a cross-chain swap sharing one secret
// commitment.
type Swap struct {
	SrcParams types.EscrowParams
	DstParams types.EscrowParams
	SrcSalt   escrow.Salt
	DstSalt   escrow.Salt
}

// Resolver gates privileged orchestration behind a single owner identity and
// sources funds from its own treasury address. Ownership is reassignable in
// one step; the previous owner immediately loses access.
type Resolver struct {
	mu       sync.Mutex
	owner    common.Address
	treasury common.Address

	src    *Chain
	dst    *Chain
	margin time.Duration
	logger *zap.Logger
}

// NewResolver creates a resolver owned by owner, holding working funds at
// treasury, with the given timelock safety margin.
func NewResolver(owner, treasury common.Address, src, dst *Chain, margin time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		owner:    owner,
		treasury: treasury,
		src:      src,
		dst:      dst,
		margin:   margin,
		logger:   logger,
	}
}

// Owner returns the current owning identity.
func (r *Resolver) Owner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Treasury returns the resolver's working-funds address.
func (r *Resolver) Treasury() common.Address { return r.treasury }

// Source returns the source-chain handle.
func (r *Resolver) Source() *Chain { return r.src }

// Destination returns the destination-chain handle.
func (r *Resolver) Destination() *Chain { return r.dst }

// TransferOwnership reassigns the owning identity.
func (r *Resolver) TransferOwnership(caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the owner", caller.Hex())
	}
	if newOwner == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "new owner is zero")
	}
	r.logger.Info("ownership transferred",
		zap.String("from", r.owner.Hex()),
		zap.String("to", newOwner.Hex()))
	r.owner = newOwner
	return nil
}

func (r *Resolver) requireOwner(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the owner", caller.Hex())
	}
	return nil
}

func (r *Resolver) chain(leg types.Leg) *Chain {
	if leg == types.LegSource {
		return r.src
	}
	return r.dst
}

// ValidateTimelocks enforces the cross-chain ordering discipline: the source
// expiry must trail the destination expiry by at least the safety margin,
// or the resolver can pay out the destination leg and then find its own
// claim window already closed. This is a liveness guard, checked at
// placement time.
func (r *Resolver) ValidateTimelocks(srcExpiry, dstExpiry time.Time) error {
	if srcExpiry.Sub(dstExpiry) < r.margin {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"source expiry %s must exceed destination expiry %s by at least %s",
			srcExpiry, dstExpiry, r.margin)
	}
	return nil
}

// DeploySrc creates the source-leg escrow, sourcing the attached native value
// from the treasury. Owner only.
func (r *Resolver) DeploySrc(caller common.Address, params types.EscrowParams, salt escrow.Salt) (common.Address, error) {
	if err := r.requireOwner(caller); err != nil {
		return common.Address{}, err
	}
	return r.src.Factory.CreateSource(r.treasury, params, salt, params.TotalNative())
}

// DeployDst creates the destination-leg escrow out of the treasury's own
// funds. Owner only.
func (r *Resolver) DeployDst(caller common.Address, params types.EscrowParams, salt escrow.Salt) (common.Address, error) {
	if err := r.requireOwner(caller); err != nil {
		return common.Address{}, err
	}
	return r.dst.Factory.CreateDestination(r.treasury, params, salt, params.TotalNative())
}

// PlaceSwap validates the leg pairing (shared secret hash, timelock margin)
// and deploys both escrows. Owner only.
func (r *Resolver) PlaceSwap(caller common.Address, swap Swap) (srcID, dstID common.Address, err error) {
	if err := r.requireOwner(caller); err != nil {
		return common.Address{}, common.Address{}, err
	}
	if swap.SrcParams.SecretHash != swap.DstParams.SecretHash {
		return common.Address{}, common.Address{}, errorsmod.Wrap(types.ErrInvalidParams,
			"legs commit to different secret hashes")
	}
	if err := r.ValidateTimelocks(swap.SrcParams.Expiry, swap.DstParams.Expiry); err != nil {
		return common.Address{}, common.Address{}, err
	}

	srcID, err = r.src.Factory.CreateSource(r.treasury, swap.SrcParams, swap.SrcSalt, swap.SrcParams.TotalNative())
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	dstID, err = r.dst.Factory.CreateDestination(r.treasury, swap.DstParams, swap.DstSalt, swap.DstParams.TotalNative())
	if err != nil {
		// The source leg stays funded; it refunds through cancellation
		// after its expiry.
		r.logger.Error("destination leg deployment failed",
			zap.String("src_id", srcID.Hex()), zap.Error(err))
		return common.Address{}, common.Address{}, err
	}

	r.logger.Info("swap placed",
		zap.String("src_id", srcID.Hex()),
		zap.String("dst_id", dstID.Hex()),
		zap.String("secret_hash", swap.SrcParams.SecretHash.Hex()))
	return srcID, dstID, nil
}

// WithdrawSrc claims the source escrow with the revealed secret. Owner only;
// the payout goes to the escrow's taker.
func (r *Resolver) WithdrawSrc(caller common.Address, id common.Address, s []byte) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	return r.src.Factory.PublicWithdraw(id, s)
}

// WithdrawDst releases the destination escrow to its taker with the secret.
// Owner only.
func (r *Resolver) WithdrawDst(caller common.Address, id common.Address, s []byte) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	return r.dst.Factory.PublicWithdraw(id, s)
}

// CompleteSwap settles both legs with one secret. It refuses mismatched
// escrow pairs and secrets that do not satisfy the shared commitment before
// touching either escrow; the destination leg pays first so the reveal
// ordering matches the live protocol.
func (r *Resolver) CompleteSwap(caller common.Address, srcID, dstID common.Address, s []byte) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}

	srcEsc, ok := r.src.Factory.Get(srcID)
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "source escrow %s", srcID.Hex())
	}
	dstEsc, ok := r.dst.Factory.Get(dstID)
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "destination escrow %s", dstID.Hex())
	}
	if srcEsc.Params.SecretHash != dstEsc.Params.SecretHash {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"escrow pair %s/%s commits to different secret hashes", srcID.Hex(), dstID.Hex())
	}
	if !secret.Verify(s, srcEsc.Params.SecretHash) {
		return errorsmod.Wrap(types.ErrInvalidSecret, "secret does not satisfy the shared commitment")
	}

	if err := r.dst.Factory.PublicWithdraw(dstID, s); err != nil {
		return err
	}
	if err := r.src.Factory.PublicWithdraw(srcID, s); err != nil {
		return err
	}

	r.logger.Info("swap completed",
		zap.String("src_id", srcID.Hex()),
		zap.String("dst_id", dstID.Hex()))
	return nil
}

// PublicWithdraw is the permissionless withdrawal passthrough: anyone with
// the secret can push a managed escrow to settlement.
func (r *Resolver) PublicWithdraw(leg types.Leg, id common.Address, s []byte) error {
	return r.chain(leg).Factory.PublicWithdraw(id, s)
}

// Cancel is the permissionless post-expiry cancellation of either leg.
func (r *Resolver) Cancel(caller common.Address, leg types.Leg, id common.Address) error {
	return r.chain(leg).Factory.Cancel(caller, id)
}

// RescueFunds recovers assets mistakenly held at the treasury. This is the
// closed recovery set; there is deliberately no arbitrary-call escape hatch.
func (r *Resolver) RescueFunds(caller common.Address, leg types.Leg, asset types.Asset, to common.Address, amount math.Int) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "recipient is zero")
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParams, "amount must be positive")
	}

	c := r.chain(leg)
	if err := c.Ledger.Transfer(asset, r.treasury, to, amount); err != nil {
		return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
	}
	r.logger.Info("funds rescued",
		zap.String("chain", c.Name),
		zap.String("asset", asset.String()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

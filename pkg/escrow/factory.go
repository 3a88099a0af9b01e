package escrow

import (
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/ledger"
	"github.com/interchainx/fusion-escrow/pkg/secret"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Factory creates escrows at predictable addresses, validates and forwards
// the initial funding, and owns the keyed store through which every later
// transition runs. A parameter tuple plus salt maps to exactly one escrow.
type Factory struct {
	id     common.Address
	ledger ledger.Ledger
	clock  types.Clock
	bus    *types.Bus
	logger *zap.Logger

	mu      sync.Mutex
	escrows map[common.Address]*Escrow
}

// NewFactory creates a factory whose own identity participates in address
// derivation.
func NewFactory(id common.Address, l ledger.Ledger, clock types.Clock, bus *types.Bus, logger *zap.Logger) *Factory {
	return &Factory{
		id:      id,
		ledger:  l,
		clock:   clock,
		bus:     bus,
		logger:  logger,
		escrows: make(map[common.Address]*Escrow),
	}
}

// ID returns the factory's own identity.
func (f *Factory) ID() common.Address { return f.id }

// AddressOf predicts the identity an escrow would be created at. It reads no
// factory state beyond the factory's own identity.
func (f *Factory) AddressOf(params types.EscrowParams, salt Salt) common.Address {
	return DeriveAddress(f.id, salt, params)
}

// CreateSource creates the source-side escrow. The principal is pulled from
// the maker (the caller needs a matching allowance for token assets); the
// attached native value covers the safety deposit plus, for a native asset,
// the principal.
func (f *Factory) CreateSource(caller common.Address, params types.EscrowParams, salt Salt, value math.Int) (common.Address, error) {
	return f.create(caller, params.Maker, params, salt, value, true)
}

// CreateDestination creates the destination-side escrow, funded out of the
// caller's own balance.
func (f *Factory) CreateDestination(caller common.Address, params types.EscrowParams, salt Salt, value math.Int) (common.Address, error) {
	return f.create(caller, caller, params, salt, value, false)
}

func (f *Factory) create(caller, funder common.Address, params types.EscrowParams, salt Salt, value math.Int, source bool) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	if err := params.Validate(now); err != nil {
		return common.Address{}, err
	}

	id := DeriveAddress(f.id, salt, params)
	if _, exists := f.escrows[id]; exists {
		return common.Address{}, errorsmod.Wrapf(types.ErrAlreadyExists, "escrow %s", id.Hex())
	}

	expected := params.TotalNative()
	if value.IsNil() || !value.Equal(expected) {
		return common.Address{}, errorsmod.Wrapf(types.ErrAmountMismatch,
			"attached value %s, expected %s", value, expected)
	}

	// Funding and registration are one unit: a failed token pull unwinds the
	// native move so no partially created escrow is reachable.
	if err := f.ledger.Transfer(types.NativeAsset(), caller, id, value); err != nil {
		return common.Address{}, errorsmod.Wrap(types.ErrTransferFailed, err.Error())
	}
	if !params.Asset.IsNative() {
		if err := f.ledger.TransferFrom(params.Asset, caller, funder, id, params.Amount); err != nil {
			if rbErr := f.ledger.Transfer(types.NativeAsset(), id, caller, value); rbErr != nil {
				f.logger.Error("native rollback failed",
					zap.String("escrow", id.Hex()), zap.Error(rbErr))
			}
			return common.Address{}, errorsmod.Wrap(types.ErrTransferFailed, err.Error())
		}
	}

	esc := &Escrow{
		ID:        id,
		Params:    params,
		State:     types.StateFunded,
		Source:    source,
		CreatedAt: now,
	}
	f.escrows[id] = esc

	f.bus.Publish(types.EscrowCreated{
		ID:         id,
		Creator:    caller,
		Source:     source,
		SecretHash: params.SecretHash,
		Amount:     params.Amount,
	})
	f.logger.Info("escrow created",
		zap.String("id", id.Hex()),
		zap.Bool("source", source),
		zap.String("maker", params.Maker.Hex()),
		zap.String("taker", params.Taker.Hex()),
		zap.String("amount", params.Amount.String()),
		zap.Time("expiry", params.Expiry))

	return id, nil
}

// Withdraw releases the principal and the safety deposit to the taker in
// exchange for the correct secret. Only the taker may call it, and only
// while the timelock is open.
func (f *Factory) Withdraw(caller, id common.Address, s []byte) error {
	return f.withdraw(&caller, id, s)
}

// PublicWithdraw is the caller-unrestricted withdrawal variant. It is
// permitted strictly before expiry and pays out to the taker regardless of
// who presents the secret.
func (f *Factory) PublicWithdraw(id common.Address, s []byte) error {
	return f.withdraw(nil, id, s)
}

func (f *Factory) withdraw(caller *common.Address, id common.Address, s []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	esc, ok := f.escrows[id]
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "escrow %s", id.Hex())
	}
	if esc.Settled() {
		return errorsmod.Wrapf(types.ErrAlreadySettled, "escrow %s is %s", id.Hex(), esc.State)
	}
	if !f.clock.Now().Before(esc.Params.Expiry) {
		return errorsmod.Wrapf(types.ErrTimelockExpired, "escrow %s expired at %s", id.Hex(), esc.Params.Expiry)
	}
	if !secret.Verify(s, esc.Params.SecretHash) {
		return errorsmod.Wrapf(types.ErrInvalidSecret, "escrow %s", id.Hex())
	}
	if caller != nil && *caller != esc.Params.Taker {
		return errorsmod.Wrapf(types.ErrUnauthorized, "caller %s is not the taker", caller.Hex())
	}

	taker := esc.Params.Taker
	if err := f.payout(esc, taker, taker); err != nil {
		return err
	}
	esc.State = types.StateWithdrawn

	f.bus.Publish(types.EscrowWithdrawn{ID: id, Secret: s, Recipient: taker})
	f.logger.Info("escrow withdrawn",
		zap.String("id", id.Hex()),
		zap.String("recipient", taker.Hex()))
	return nil
}

// Cancel refunds the principal to the maker once the timelock has expired.
// The safety deposit goes to the cancelling caller, which makes cleanup of
// abandoned escrows worth anyone's while.
func (f *Factory) Cancel(caller, id common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	esc, ok := f.escrows[id]
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "escrow %s", id.Hex())
	}
	if esc.Settled() {
		return errorsmod.Wrapf(types.ErrAlreadySettled, "escrow %s is %s", id.Hex(), esc.State)
	}
	if f.clock.Now().Before(esc.Params.Expiry) {
		return errorsmod.Wrapf(types.ErrTimelockNotExpired, "escrow %s expires at %s", id.Hex(), esc.Params.Expiry)
	}

	if err := f.payout(esc, esc.Params.Maker, caller); err != nil {
		return err
	}
	esc.State = types.StateCancelled

	f.bus.Publish(types.EscrowCancelled{ID: id, Recipient: esc.Params.Maker})
	f.logger.Info("escrow cancelled",
		zap.String("id", id.Hex()),
		zap.String("maker", esc.Params.Maker.Hex()),
		zap.String("caller", caller.Hex()))
	return nil
}

// payout moves the principal to principalTo and the safety deposit to
// depositTo, unwinding the first move if the second fails so a settlement
// either completes or leaves the escrow funded.
func (f *Factory) payout(esc *Escrow, principalTo, depositTo common.Address) error {
	p := esc.Params
	if err := f.ledger.Transfer(p.Asset, esc.ID, principalTo, p.Amount); err != nil {
		return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
	}
	if p.SafetyDeposit.IsPositive() {
		if err := f.ledger.Transfer(types.NativeAsset(), esc.ID, depositTo, p.SafetyDeposit); err != nil {
			if rbErr := f.ledger.Transfer(p.Asset, principalTo, esc.ID, p.Amount); rbErr != nil {
				f.logger.Error("principal rollback failed",
					zap.String("escrow", esc.ID.Hex()), zap.Error(rbErr))
			}
			return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
		}
	}
	return nil
}

// Get returns a copy of the escrow record.
func (f *Factory) Get(id common.Address) (Escrow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	esc, ok := f.escrows[id]
	if !ok {
		return Escrow{}, false
	}
	return *esc, true
}

// Balances reports the principal and native-currency balances actually held
// at the escrow address, for reconciliation.
func (f *Factory) Balances(id common.Address) (principal, native math.Int, err error) {
	f.mu.Lock()
	esc, ok := f.escrows[id]
	f.mu.Unlock()
	if !ok {
		return math.Int{}, math.Int{}, errorsmod.Wrapf(types.ErrNotFound, "escrow %s", id.Hex())
	}
	return f.ledger.BalanceOf(esc.Params.Asset, id), f.ledger.BalanceOf(types.NativeAsset(), id), nil
}

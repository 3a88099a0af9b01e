// Package orderbook implements the partial-fill extension: an order whose
// total can be satisfied by multiple independent fillers before a single
// settlement event keyed by the shared secret commitment.
package orderbook

import (
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/ledger"
	"github.com/interchainx/fusion-escrow/pkg/secret"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

// FullShareBps is the basis-point denominator; a redemption with this share
// pays each fill out completely.
const FullShareBps = 10_000

// OrderState tracks an order through its lifecycle.
type OrderState uint8

const (
	OrderOpen OrderState = iota
	OrderCompleted
	OrderRedeemed
	OrderRefunded
)

func (s OrderState) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderCompleted:
		return "completed"
	case OrderRedeemed:
		return "redeemed"
	case OrderRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Fill records one filler's contribution. Remaining is the unclaimed portion
// still held in custody; Claimed flips once it reaches zero.
type Fill struct {
	Filler    common.Address `json:"filler"`
	Amount    math.Int       `json:"amount"`
	Remaining math.Int       `json:"remaining"`
	Claimed   bool           `json:"claimed"`
}

// Order aggregates fills against a total amount under one secret commitment.
type Order struct {
	SecretHash  common.Hash    `json:"secret_hash"`
	Maker       common.Address `json:"maker"`
	Beneficiary common.Address `json:"beneficiary"`
	Asset       types.Asset    `json:"asset"`
	Total       math.Int       `json:"total"`
	Filled      math.Int       `json:"filled"`
	Expiry      time.Time      `json:"expiry"`
	State       OrderState     `json:"state"`
	Fills       []Fill         `json:"fills"`
}

// Book is the keyed store of partial-fill orders. Custody of filled amounts
// sits at the book's own address until redemption or refund.
type Book struct {
	id     common.Address
	ledger ledger.Ledger
	clock  types.Clock
	bus    *types.Bus
	logger *zap.Logger

	mu     sync.Mutex
	orders map[common.Hash]*Order
}

// NewBook creates an empty order book holding custody at id.
func NewBook(id common.Address, l ledger.Ledger, clock types.Clock, bus *types.Bus, logger *zap.Logger) *Book {
	return &Book{
		id:     id,
		ledger: l,
		clock:  clock,
		bus:    bus,
		logger: logger,
		orders: make(map[common.Hash]*Order),
	}
}

// PlaceOrder opens a new order. At most one order may exist per secret hash.
func (b *Book) PlaceOrder(maker, beneficiary common.Address, asset types.Asset, total math.Int, secretHash common.Hash, expiry time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if maker == (common.Address{}) || beneficiary == (common.Address{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "maker and beneficiary must be non-zero")
	}
	if total.IsNil() || !total.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParams, "total must be positive")
	}
	if secretHash == (common.Hash{}) {
		return errorsmod.Wrap(types.ErrInvalidParams, "secret hash is zero")
	}
	if !expiry.After(b.clock.Now()) {
		return errorsmod.Wrap(types.ErrInvalidParams, "expiry must be in the future")
	}
	if _, exists := b.orders[secretHash]; exists {
		return errorsmod.Wrapf(types.ErrAlreadyExists, "order %s", secretHash.Hex())
	}

	b.orders[secretHash] = &Order{
		SecretHash:  secretHash,
		Maker:       maker,
		Beneficiary: beneficiary,
		Asset:       asset,
		Total:       total,
		Filled:      math.ZeroInt(),
		Expiry:      expiry,
		State:       OrderOpen,
	}

	b.bus.Publish(types.OrderCreated{SecretHash: secretHash, Maker: maker, Total: total})
	b.logger.Info("order placed",
		zap.String("secret_hash", secretHash.Hex()),
		zap.String("total", total.String()))
	return nil
}

// FillOrder pulls amount from the filler into custody and appends a fill
// record. The order completes exactly when the filled amount reaches the
// total.
func (b *Book) FillOrder(filler common.Address, secretHash common.Hash, amount math.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ord, ok := b.orders[secretHash]
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "order %s", secretHash.Hex())
	}
	if ord.State != OrderOpen {
		return errorsmod.Wrapf(types.ErrAlreadySettled, "order %s is %s", secretHash.Hex(), ord.State)
	}
	if !b.clock.Now().Before(ord.Expiry) {
		return errorsmod.Wrapf(types.ErrTimelockExpired, "order %s expired at %s", secretHash.Hex(), ord.Expiry)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidParams, "fill amount must be positive")
	}
	remaining := ord.Total.Sub(ord.Filled)
	if amount.GT(remaining) {
		return errorsmod.Wrapf(types.ErrAmountMismatch,
			"fill %s exceeds remaining %s", amount, remaining)
	}

	if err := b.ledger.TransferFrom(ord.Asset, filler, filler, b.id, amount); err != nil {
		return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
	}

	ord.Fills = append(ord.Fills, Fill{
		Filler:    filler,
		Amount:    amount,
		Remaining: amount,
	})
	ord.Filled = ord.Filled.Add(amount)
	completed := ord.Filled.Equal(ord.Total)
	if completed {
		ord.State = OrderCompleted
	}

	b.bus.Publish(types.OrderPartialFilled{
		SecretHash: secretHash,
		Filler:     filler,
		Amount:     amount,
		Filled:     ord.Filled,
		Completed:  completed,
	})
	b.logger.Info("order filled",
		zap.String("secret_hash", secretHash.Hex()),
		zap.String("filler", filler.Hex()),
		zap.String("amount", amount.String()),
		zap.Bool("completed", completed))
	return nil
}

// Redeem pays shareBps (out of 10000) of every unclaimed fill to the order's
// beneficiary. Each fill pays out at most once in full; a partial share
// leaves the remainder in custody, refundable after expiry. Redemption
// requires the order to be completed and the presented secret to satisfy the
// commitment.
func (b *Book) Redeem(secretHash common.Hash, s []byte, shareBps int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ord, ok := b.orders[secretHash]
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "order %s", secretHash.Hex())
	}
	switch ord.State {
	case OrderRedeemed, OrderRefunded:
		return errorsmod.Wrapf(types.ErrAlreadySettled, "order %s is %s", secretHash.Hex(), ord.State)
	case OrderOpen:
		return errorsmod.Wrapf(types.ErrOrderOpen,
			"order %s filled %s of %s", secretHash.Hex(), ord.Filled, ord.Total)
	}
	if shareBps <= 0 || shareBps > FullShareBps {
		return errorsmod.Wrapf(types.ErrInvalidParams, "share %d out of (0, %d]", shareBps, FullShareBps)
	}
	if !secret.Verify(s, ord.SecretHash) {
		return errorsmod.Wrapf(types.ErrInvalidSecret, "order %s", secretHash.Hex())
	}

	share := math.NewInt(shareBps)
	paid := math.ZeroInt()
	allClaimed := true
	for i := range ord.Fills {
		fill := &ord.Fills[i]
		if fill.Claimed {
			continue
		}
		pay := fill.Remaining
		if shareBps < FullShareBps {
			pay = fill.Remaining.Mul(share).Quo(math.NewInt(FullShareBps))
		}
		if pay.IsPositive() {
			if err := b.ledger.Transfer(ord.Asset, b.id, ord.Beneficiary, pay); err != nil {
				return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
			}
			fill.Remaining = fill.Remaining.Sub(pay)
			paid = paid.Add(pay)
		}
		if fill.Remaining.IsZero() {
			fill.Claimed = true
		} else {
			allClaimed = false
		}
	}
	if allClaimed {
		ord.State = OrderRedeemed
	}

	b.bus.Publish(types.OrderRedeemed{
		SecretHash:  secretHash,
		Beneficiary: ord.Beneficiary,
		Amount:      paid,
	})
	b.logger.Info("order redeemed",
		zap.String("secret_hash", secretHash.Hex()),
		zap.String("paid", paid.String()),
		zap.Int64("share_bps", shareBps))
	return nil
}

// Refund returns every fill's unclaimed remainder to its filler after the
// order's expiry. Refund and full redemption are mutually exclusive.
func (b *Book) Refund(secretHash common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ord, ok := b.orders[secretHash]
	if !ok {
		return errorsmod.Wrapf(types.ErrNotFound, "order %s", secretHash.Hex())
	}
	if ord.State == OrderRedeemed || ord.State == OrderRefunded {
		return errorsmod.Wrapf(types.ErrAlreadySettled, "order %s is %s", secretHash.Hex(), ord.State)
	}
	if b.clock.Now().Before(ord.Expiry) {
		return errorsmod.Wrapf(types.ErrTimelockNotExpired, "order %s expires at %s", secretHash.Hex(), ord.Expiry)
	}

	returned := math.ZeroInt()
	for i := range ord.Fills {
		fill := &ord.Fills[i]
		if fill.Claimed || fill.Remaining.IsZero() {
			continue
		}
		if err := b.ledger.Transfer(ord.Asset, b.id, fill.Filler, fill.Remaining); err != nil {
			return errorsmod.Wrap(types.ErrTransferFailed, err.Error())
		}
		returned = returned.Add(fill.Remaining)
		fill.Remaining = math.ZeroInt()
	}
	ord.State = OrderRefunded

	b.bus.Publish(types.OrderRefunded{SecretHash: secretHash, Amount: returned})
	b.logger.Info("order refunded",
		zap.String("secret_hash", secretHash.Hex()),
		zap.String("returned", returned.String()))
	return nil
}

// Get returns a copy of the order record.
func (b *Book) Get(secretHash common.Hash) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ord, ok := b.orders[secretHash]
	if !ok {
		return Order{}, false
	}
	out := *ord
	out.Fills = append([]Fill(nil), ord.Fills...)
	return out, true
}

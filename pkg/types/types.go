// Package types defines the shared domain types for the escrow protocol:
// assets, escrow parameters, settlement states, the error taxonomy and the
// in-process event bus.
package types

import (
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// AssetKind distinguishes the native currency from fungible-token ledgers.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// Asset identifies a fungible asset on a chain. For AssetNative the Token
// field is the zero address.
type Asset struct {
	Kind  AssetKind      `json:"kind"`
	Token common.Address `json:"token,omitempty"`
}

// NativeAsset returns the native-currency asset marker.
func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

// TokenAsset returns an asset referencing a fungible-token ledger.
func TokenAsset(token common.Address) Asset {
	return Asset{Kind: AssetToken, Token: token}
}

// IsNative reports whether the asset is the native currency.
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return fmt.Sprintf("token:%s", a.Token.Hex())
}

// EscrowState is the settlement state of an escrow. Creation and funding are
// atomic, so Funded is the only live state; Withdrawn and Cancelled are
// terminal and mutually exclusive.
type EscrowState uint8

const (
	StateFunded EscrowState = iota
	StateWithdrawn
	StateCancelled
)

func (s EscrowState) String() string {
	switch s {
	case StateFunded:
		return "funded"
	case StateWithdrawn:
		return "withdrawn"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Settled reports whether the state is terminal.
func (s EscrowState) Settled() bool {
	return s == StateWithdrawn || s == StateCancelled
}

// Leg names one side of a cross-chain swap.
type Leg uint8

const (
	LegSource Leg = iota
	LegDestination
)

func (l Leg) String() string {
	if l == LegSource {
		return "source"
	}
	return "destination"
}

// EscrowParams is the full creation parameter tuple of an escrow. Together
// with a caller-chosen salt it determines the escrow's identity.
type EscrowParams struct {
	// Maker supplies the principal and is refunded on cancellation.
	Maker common.Address `json:"maker"`

	// Taker is authorized to withdraw the principal with the correct secret.
	Taker common.Address `json:"taker"`

	// Asset and Amount describe the locked principal.
	Asset  Asset    `json:"asset"`
	Amount math.Int `json:"amount"`

	// SafetyDeposit is an optional native-currency stake posted alongside
	// the principal.
	SafetyDeposit math.Int `json:"safety_deposit"`

	// SecretHash is the commitment the unlocking secret must satisfy.
	SecretHash common.Hash `json:"secret_hash"`

	// Expiry is the absolute timestamp after which withdrawal closes and
	// cancellation opens.
	Expiry time.Time `json:"expiry"`
}

// Validate checks the parameter tuple against a creation-time clock reading.
func (p EscrowParams) Validate(now time.Time) error {
	if p.Maker == (common.Address{}) {
		return errorsmod.Wrap(ErrInvalidParams, "maker address is zero")
	}
	if p.Taker == (common.Address{}) {
		return errorsmod.Wrap(ErrInvalidParams, "taker address is zero")
	}
	if p.Amount.IsNil() || !p.Amount.IsPositive() {
		return errorsmod.Wrap(ErrInvalidParams, "amount must be positive")
	}
	if p.SafetyDeposit.IsNil() || p.SafetyDeposit.IsNegative() {
		return errorsmod.Wrap(ErrInvalidParams, "safety deposit must not be negative")
	}
	if p.SecretHash == (common.Hash{}) {
		return errorsmod.Wrap(ErrInvalidParams, "secret hash is zero")
	}
	if !p.Expiry.After(now) {
		return errorsmod.Wrap(ErrInvalidParams, "expiry must be in the future")
	}
	return nil
}

// TotalNative is the native-currency value a creator must attach: the safety
// deposit, plus the principal when the asset itself is native.
func (p EscrowParams) TotalNative() math.Int {
	if p.Asset.IsNative() {
		return p.Amount.Add(p.SafetyDeposit)
	}
	return p.SafetyDeposit
}

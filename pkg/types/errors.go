package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace scopes the registered protocol errors.
const Codespace = "fusionescrow"

var (
	ErrInvalidParams      = errorsmod.Register(Codespace, 1, "invalid parameters")
	ErrAlreadyExists      = errorsmod.Register(Codespace, 2, "already exists")
	ErrNotFound           = errorsmod.Register(Codespace, 3, "not found")
	ErrUnauthorized       = errorsmod.Register(Codespace, 4, "unauthorized")
	ErrInvalidSecret      = errorsmod.Register(Codespace, 5, "invalid secret")
	ErrAlreadySettled     = errorsmod.Register(Codespace, 6, "already settled")
	ErrTimelockNotExpired = errorsmod.Register(Codespace, 7, "timelock not expired")
	ErrTimelockExpired    = errorsmod.Register(Codespace, 8, "timelock expired")
	ErrTransferFailed     = errorsmod.Register(Codespace, 9, "asset transfer failed")
	ErrAmountMismatch     = errorsmod.Register(Codespace, 10, "amount mismatch")

	// ErrOrderOpen rejects redemption of a partial-fill order that has not
	// reached its total yet.
	ErrOrderOpen = errorsmod.Register(Codespace, 11, "order not completed")
)

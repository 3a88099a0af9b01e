// Package secret implements the one-way binding between a swap secret and its
// published commitment. SHA-256 is the protocol-wide commitment function; both
// legs of a swap must use it.
package secret

import (
	"crypto/rand"
	"crypto/sha256"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Size is the byte length of a swap secret.
const Size = 32

// Generate draws a fresh random secret.
func Generate() ([]byte, error) {
	s := make([]byte, Size)
	if _, err := rand.Read(s); err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "entropy source failed")
	}
	return s, nil
}

// Commit binds a secret to its published hash.
func Commit(secret []byte) common.Hash {
	return common.Hash(sha256.Sum256(secret))
}

// Verify reports whether the secret satisfies the commitment. The zero hash
// is the "absent" sentinel and never verifies.
func Verify(secret []byte, hash common.Hash) bool {
	if hash == (common.Hash{}) {
		return false
	}
	return Commit(secret) == hash
}

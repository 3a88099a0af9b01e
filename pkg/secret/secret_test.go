package secret_test

import (
	"crypto/sha256"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/interchainx/fusion-escrow/pkg/secret"
)

func TestGenerate(t *testing.T) {
	s1, err := secret.Generate()
	require.NoError(t, err)
	require.Len(t, s1, secret.Size)

	s2, err := secret.Generate()
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)
}

func TestCommitVerify(t *testing.T) {
	s := []byte("the quick brown fox jumps over..")
	hash := secret.Commit(s)

	require.Equal(t, common.Hash(sha256.Sum256(s)), hash)
	require.True(t, secret.Verify(s, hash))
	require.False(t, secret.Verify([]byte("wrong"), hash))
}

func TestVerify_ZeroHashNeverVerifies(t *testing.T) {
	// the zero hash is the "non-existent" sentinel
	require.False(t, secret.Verify(nil, common.Hash{}))
	require.False(t, secret.Verify([]byte{}, common.Hash{}))

	var zeroPreimage []byte
	require.False(t, secret.Verify(zeroPreimage, common.Hash{}))
}

func TestCommit_SameSecretSameHash(t *testing.T) {
	s, err := secret.Generate()
	require.NoError(t, err)

	// both legs of a swap bind to the identical commitment
	require.Equal(t, secret.Commit(s), secret.Commit(s))
}

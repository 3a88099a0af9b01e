package escrow_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/interchainx/fusion-escrow/pkg/escrow"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

func baseParams() types.EscrowParams {
	return types.EscrowParams{
		Maker:         common.HexToAddress("0x01"),
		Taker:         common.HexToAddress("0x02"),
		Asset:         types.TokenAsset(common.HexToAddress("0x70")),
		Amount:        math.NewInt(1000),
		SafetyDeposit: math.NewInt(0),
		SecretHash:    common.HexToHash("0xabcd"),
		Expiry:        time.Unix(2_000_000_000, 0),
	}
}

func TestDeriveAddress_Deterministic(t *testing.T) {
	factory := common.HexToAddress("0xfac1")
	salt := escrow.Salt{1, 2, 3}
	params := baseParams()

	a := escrow.DeriveAddress(factory, salt, params)
	b := escrow.DeriveAddress(factory, salt, params)
	require.Equal(t, a, b)
	require.NotEqual(t, common.Address{}, a)
}

func TestDeriveAddress_SensitiveToInputs(t *testing.T) {
	factory := common.HexToAddress("0xfac1")
	salt := escrow.Salt{1}
	params := baseParams()
	base := escrow.DeriveAddress(factory, salt, params)

	tests := []struct {
		name   string
		derive func() common.Address
	}{
		{
			name: "different salt",
			derive: func() common.Address {
				return escrow.DeriveAddress(factory, escrow.Salt{2}, params)
			},
		},
		{
			name: "different factory",
			derive: func() common.Address {
				return escrow.DeriveAddress(common.HexToAddress("0xfac2"), salt, params)
			},
		},
		{
			name: "different amount",
			derive: func() common.Address {
				p := params
				p.Amount = math.NewInt(1001)
				return escrow.DeriveAddress(factory, salt, p)
			},
		},
		{
			name: "different secret hash",
			derive: func() common.Address {
				p := params
				p.SecretHash = common.HexToHash("0xabce")
				return escrow.DeriveAddress(factory, salt, p)
			},
		},
		{
			name: "different expiry",
			derive: func() common.Address {
				p := params
				p.Expiry = p.Expiry.Add(time.Second)
				return escrow.DeriveAddress(factory, salt, p)
			},
		},
		{
			name: "native vs token asset",
			derive: func() common.Address {
				p := params
				p.Asset = types.NativeAsset()
				return escrow.DeriveAddress(factory, salt, p)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, base, tt.derive())
		})
	}
}

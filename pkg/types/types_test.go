package types_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

func TestEscrowParams_Validate(t *testing.T) {
	maker := common.HexToAddress("0x01")
	taker := common.HexToAddress("0x02")
	secretHash := common.HexToHash("0xdeadbeef")
	now := time.Now()

	valid := types.EscrowParams{
		Maker:         maker,
		Taker:         taker,
		Asset:         types.NativeAsset(),
		Amount:        math.NewInt(100),
		SafetyDeposit: math.NewInt(10),
		SecretHash:    secretHash,
		Expiry:        now.Add(time.Hour),
	}

	tests := []struct {
		name    string
		mutate  func(*types.EscrowParams)
		wantErr bool
	}{
		{
			name:    "valid params",
			mutate:  func(*types.EscrowParams) {},
			wantErr: false,
		},
		{
			name:    "zero maker",
			mutate:  func(p *types.EscrowParams) { p.Maker = common.Address{} },
			wantErr: true,
		},
		{
			name:    "zero taker",
			mutate:  func(p *types.EscrowParams) { p.Taker = common.Address{} },
			wantErr: true,
		},
		{
			name:    "zero amount",
			mutate:  func(p *types.EscrowParams) { p.Amount = math.ZeroInt() },
			wantErr: true,
		},
		{
			name:    "negative deposit",
			mutate:  func(p *types.EscrowParams) { p.SafetyDeposit = math.NewInt(-1) },
			wantErr: true,
		},
		{
			name:    "zero secret hash",
			mutate:  func(p *types.EscrowParams) { p.SecretHash = common.Hash{} },
			wantErr: true,
		},
		{
			name:    "past expiry",
			mutate:  func(p *types.EscrowParams) { p.Expiry = now.Add(-time.Second) },
			wantErr: true,
		},
		{
			name:    "expiry equal to now",
			mutate:  func(p *types.EscrowParams) { p.Expiry = now },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate(now)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, types.ErrInvalidParams)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEscrowParams_TotalNative(t *testing.T) {
	p := types.EscrowParams{
		Asset:         types.NativeAsset(),
		Amount:        math.NewInt(100),
		SafetyDeposit: math.NewInt(10),
	}
	require.Equal(t, math.NewInt(110), p.TotalNative())

	p.Asset = types.TokenAsset(common.HexToAddress("0x99"))
	require.Equal(t, math.NewInt(10), p.TotalNative())
}

func TestEscrowState(t *testing.T) {
	require.False(t, types.StateFunded.Settled())
	require.True(t, types.StateWithdrawn.Settled())
	require.True(t, types.StateCancelled.Settled())
	require.Equal(t, "funded", types.StateFunded.String())
	require.Equal(t, "withdrawn", types.StateWithdrawn.String())
	require.Equal(t, "cancelled", types.StateCancelled.String())
}

func TestManualClock(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := types.NewManualClock(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute), clock.Now())

	clock.Set(start)
	require.Equal(t, start, clock.Now())
}

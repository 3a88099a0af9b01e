package orderbook_test

import (
	"bytes"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/ledger"
	"github.com/interchainx/fusion-escrow/pkg/orderbook"
	"github.com/interchainx/fusion-escrow/pkg/secret"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

var (
	bookAddr    = common.HexToAddress("0xb0")
	maker       = common.HexToAddress("0x01")
	beneficiary = common.HexToAddress("0x02")
	fillerA     = common.HexToAddress("0x0a")
	fillerB     = common.HexToAddress("0x0b")
	token       = types.TokenAsset(common.HexToAddress("0x70"))
	testSecret  = bytes.Repeat([]byte{0x77}, secret.Size)
)

type bookEnv struct {
	ledger *ledger.InMemory
	clock  *types.ManualClock
	book   *orderbook.Book
	hash   common.Hash
}

func newBookEnv(t *testing.T) *bookEnv {
	t.Helper()
	l := ledger.NewInMemory()
	clock := types.NewManualClock(time.Unix(1_700_000_000, 0))
	return &bookEnv{
		ledger: l,
		clock:  clock,
		book:   orderbook.NewBook(bookAddr, l, clock, types.NewBus(), zap.NewNop()),
		hash:   secret.Commit(testSecret),
	}
}

func (env *bookEnv) place(t *testing.T, total int64) {
	t.Helper()
	err := env.book.PlaceOrder(maker, beneficiary, token, math.NewInt(total),
		env.hash, env.clock.Now().Add(time.Hour))
	require.NoError(t, err)
}

func TestTwoFillersCompleteAndRedeem(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(40))
	env.ledger.Mint(token, fillerB, math.NewInt(60))

	env.place(t, 100)

	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(40)))
	ord, _ := env.book.Get(env.hash)
	require.Equal(t, orderbook.OrderOpen, ord.State)

	// completion flips exactly on the fill that reaches the total
	require.NoError(t, env.book.FillOrder(fillerB, env.hash, math.NewInt(60)))
	ord, _ = env.book.Get(env.hash)
	require.Equal(t, orderbook.OrderCompleted, ord.State)
	require.Equal(t, math.NewInt(100), ord.Filled)

	require.NoError(t, env.book.Redeem(env.hash, testSecret, orderbook.FullShareBps))
	require.Equal(t, math.NewInt(100), env.ledger.BalanceOf(token, beneficiary))

	ord, _ = env.book.Get(env.hash)
	require.Equal(t, orderbook.OrderRedeemed, ord.State)
	for _, fill := range ord.Fills {
		require.True(t, fill.Claimed)
	}

	// each fill pays exactly once
	err := env.book.Redeem(env.hash, testSecret, orderbook.FullShareBps)
	require.ErrorIs(t, err, types.ErrAlreadySettled)
	require.Equal(t, math.NewInt(100), env.ledger.BalanceOf(token, beneficiary))
}

func TestPlaceOrder_Duplicate(t *testing.T) {
	env := newBookEnv(t)
	env.place(t, 100)

	err := env.book.PlaceOrder(maker, beneficiary, token, math.NewInt(50),
		env.hash, env.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newBookEnv(t)

	err := env.book.PlaceOrder(common.Address{}, beneficiary, token, math.NewInt(100),
		env.hash, env.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, types.ErrInvalidParams)

	err = env.book.PlaceOrder(maker, beneficiary, token, math.ZeroInt(),
		env.hash, env.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, types.ErrInvalidParams)

	err = env.book.PlaceOrder(maker, beneficiary, token, math.NewInt(100),
		common.Hash{}, env.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, types.ErrInvalidParams)

	err = env.book.PlaceOrder(maker, beneficiary, token, math.NewInt(100),
		env.hash, env.clock.Now().Add(-time.Second))
	require.ErrorIs(t, err, types.ErrInvalidParams)
}

func TestFillOrder_Overfill(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(200))
	env.place(t, 100)

	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(70)))

	err := env.book.FillOrder(fillerA, env.hash, math.NewInt(31))
	require.ErrorIs(t, err, types.ErrAmountMismatch)

	// custody unchanged by the rejected fill
	require.Equal(t, math.NewInt(70), env.ledger.BalanceOf(token, bookAddr))
}

func TestFillOrder_OnCompletedOrMissing(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(200))
	env.place(t, 100)

	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(100)))

	err := env.book.FillOrder(fillerA, env.hash, math.NewInt(1))
	require.ErrorIs(t, err, types.ErrAlreadySettled)

	err = env.book.FillOrder(fillerA, common.HexToHash("0x1234"), math.NewInt(1))
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestFillOrder_AfterExpiry(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(100))
	env.place(t, 100)

	env.clock.Advance(2 * time.Hour)
	err := env.book.FillOrder(fillerA, env.hash, math.NewInt(10))
	require.ErrorIs(t, err, types.ErrTimelockExpired)
}

func TestRedeem_RequiresCompletion(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(40))
	env.place(t, 100)

	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(40)))

	err := env.book.Redeem(env.hash, testSecret, orderbook.FullShareBps)
	require.ErrorIs(t, err, types.ErrOrderOpen)
}

func TestRedeem_WrongSecret(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(100))
	env.place(t, 100)
	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(100)))

	err := env.book.Redeem(env.hash, []byte("wrong"), orderbook.FullShareBps)
	require.ErrorIs(t, err, types.ErrInvalidSecret)
}

func TestRedeem_ProportionalShare(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(100))
	env.place(t, 100)
	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(100)))

	// 40% of the fill pays out, the remainder stays in custody
	require.NoError(t, env.book.Redeem(env.hash, testSecret, 4000))
	require.Equal(t, math.NewInt(40), env.ledger.BalanceOf(token, beneficiary))
	require.Equal(t, math.NewInt(60), env.ledger.BalanceOf(token, bookAddr))

	ord, _ := env.book.Get(env.hash)
	require.Equal(t, orderbook.OrderCompleted, ord.State)
	require.False(t, ord.Fills[0].Claimed)

	// after expiry the remainder refunds to the filler
	env.clock.Advance(2 * time.Hour)
	require.NoError(t, env.book.Refund(env.hash))
	require.Equal(t, math.NewInt(60), env.ledger.BalanceOf(token, fillerA))
}

func TestRedeem_ShareOutOfRange(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(100))
	env.place(t, 100)
	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(100)))

	require.ErrorIs(t, env.book.Redeem(env.hash, testSecret, 0), types.ErrInvalidParams)
	require.ErrorIs(t, env.book.Redeem(env.hash, testSecret, orderbook.FullShareBps+1), types.ErrInvalidParams)
}

func TestRefund_ReturnsFillsAfterExpiry(t *testing.T) {
	env := newBookEnv(t)
	env.ledger.Mint(token, fillerA, math.NewInt(40))
	env.ledger.Mint(token, fillerB, math.NewInt(30))
	env.place(t, 100)

	require.NoError(t, env.book.FillOrder(fillerA, env.hash, math.NewInt(40)))
	require.NoError(t, env.book.FillOrder(fillerB, env.hash, math.NewInt(30)))

	require.ErrorIs(t, env.book.Refund(env.hash), types.ErrTimelockNotExpired)

	env.clock.Advance(2 * time.Hour)
	require.NoError(t, env.book.Refund(env.hash))

	require.Equal(t, math.NewInt(40), env.ledger.BalanceOf(token, fillerA))
	require.Equal(t, math.NewInt(30), env.ledger.BalanceOf(token, fillerB))
	require.Equal(t, math.ZeroInt(), env.ledger.BalanceOf(token, bookAddr))

	ord, _ := env.book.Get(env.hash)
	require.Equal(t, orderbook.OrderRefunded, ord.State)

	// refund and redemption are mutually exclusive
	err := env.book.Redeem(env.hash, testSecret, orderbook.FullShareBps)
	require.ErrorIs(t, err, types.ErrAlreadySettled)
}

func TestRefund_NotFound(t *testing.T) {
	env := newBookEnv(t)
	require.ErrorIs(t, env.book.Refund(common.HexToHash("0x01")), types.ErrNotFound)
}

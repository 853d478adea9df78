package positions

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/chain/sim"
	"github.com/teahouse-finance/tvault/internal/types"
)

var vaultAddress = common.HexToAddress("0x00000000000000000000000000000000000d0001")

type fixture struct {
	devnet    *sim.Devnet
	positions []types.Position
	ledger    *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := sim.NewDevnet(sim.DefaultDevnetConfig())
	require.NoError(t, err)
	d.Token0.Mint(vaultAddress, sdkmath.NewIntWithDecimal(1, 24))
	d.Token1.Mint(vaultAddress, sdkmath.NewIntWithDecimal(1, 24))
	f := &fixture{devnet: d}
	f.ledger = NewLedger(d.Pool, d.Chain, vaultAddress, &f.positions)
	return f
}

func (f *fixture) deadline() uint64 {
	return f.devnet.Chain.BlockTime() + 60
}

func liq(n int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, 18)
}

func TestOpenOrIncreaseKeepsRangesUniqueAndOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()

	_, _, err := f.ledger.OpenOrIncrease(ctx, -600, 600, liq(1), zero, zero, f.deadline())
	require.NoError(t, err)
	_, _, err = f.ledger.OpenOrIncrease(ctx, -1200, -600, liq(2), zero, zero, f.deadline())
	require.NoError(t, err)
	_, _, err = f.ledger.OpenOrIncrease(ctx, 600, 1200, liq(3), zero, zero, f.deadline())
	require.NoError(t, err)
	_, _, err = f.ledger.OpenOrIncrease(ctx, -600, 600, liq(4), zero, zero, f.deadline())
	require.NoError(t, err)

	all := f.ledger.All()
	require.Len(t, all, 3)
	require.Equal(t, int32(-600), all[0].TickLower)
	require.Equal(t, liq(5).String(), all[0].Liquidity.String())
	require.Equal(t, int32(-1200), all[1].TickLower)
	require.Equal(t, int32(600), all[2].TickLower)
	require.Equal(t, liq(5).String(), f.devnet.Pool.PositionLiquidity(vaultAddress, -600, 600).String())
}

func TestOpenOrIncreaseRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()

	_, _, err := f.ledger.OpenOrIncrease(ctx, -600, 600, liq(1), zero, zero, f.devnet.Chain.BlockTime()-1)
	require.ErrorIs(t, err, ErrDeadlineExpired)

	_, _, err = f.ledger.OpenOrIncrease(ctx, -610, 600, liq(1), zero, zero, f.deadline())
	require.ErrorIs(t, err, ErrInvalidTickRange)

	_, _, err = f.ledger.OpenOrIncrease(ctx, 600, -600, liq(1), zero, zero, f.deadline())
	require.ErrorIs(t, err, ErrInvalidTickRange)

	_, _, err = f.ledger.OpenOrIncrease(ctx, -600, 600, zero, zero, zero, f.deadline())
	require.ErrorIs(t, err, ErrZeroLiquidity)

	_, _, err = f.ledger.OpenOrIncrease(ctx, -600, 600, liq(1), liq(1_000_000), zero, f.deadline())
	require.ErrorIs(t, err, ErrInvalidPriceSlippage)

	require.Empty(t, f.ledger.All())
}

func TestOpenOrIncreaseReturnsPulledAmounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()

	before0, err := f.devnet.Token0.BalanceOf(ctx, vaultAddress)
	require.NoError(t, err)
	before1, err := f.devnet.Token1.BalanceOf(ctx, vaultAddress)
	require.NoError(t, err)

	amount0, amount1, err := f.ledger.OpenOrIncrease(ctx, -600, 600, liq(1), zero, zero, f.deadline())
	require.NoError(t, err)
	require.True(t, amount0.IsPositive())
	require.True(t, amount1.IsPositive())

	after0, err := f.devnet.Token0.BalanceOf(ctx, vaultAddress)
	require.NoError(t, err)
	after1, err := f.devnet.Token1.BalanceOf(ctx, vaultAddress)
	require.NoError(t, err)
	require.Equal(t, before0.Sub(amount0).String(), after0.String())
	require.Equal(t, before1.Sub(amount1).String(), after1.String())
}

func TestDecreaseDrainsAndPrunes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()

	in0, in1, err := f.ledger.OpenOrIncrease(ctx, -600, 600, liq(10), zero, zero, f.deadline())
	require.NoError(t, err)

	_, _, err = f.ledger.Decrease(ctx, -600, 600, liq(11), zero, zero, f.deadline())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// the vault reverts the environment on failure; do the same here
	snapshot := f.devnet.Chain.Snapshot()
	_, _, err = f.ledger.Decrease(ctx, -600, 600, liq(4), in0, in1, f.deadline())
	require.ErrorIs(t, err, ErrInvalidPriceSlippage)
	f.devnet.Chain.RevertToSnapshot(snapshot)
	require.Equal(t, liq(10).String(), f.devnet.Pool.PositionLiquidity(vaultAddress, -600, 600).String())

	out0, out1, err := f.ledger.Decrease(ctx, -600, 600, liq(4), zero, zero, f.deadline())
	require.NoError(t, err)
	require.True(t, out0.IsPositive())
	require.True(t, out1.IsPositive())
	require.Len(t, f.ledger.All(), 1)

	_, _, err = f.ledger.Decrease(ctx, -600, 600, liq(6), zero, zero, f.deadline())
	require.NoError(t, err)
	require.Empty(t, f.ledger.All())

	_, _, err = f.ledger.Decrease(ctx, -600, 600, liq(1), zero, zero, f.deadline())
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestDecreaseDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()
	deadline := f.deadline()

	_, _, err := f.ledger.OpenOrIncrease(ctx, -600, 600, liq(1), zero, zero, deadline)
	require.NoError(t, err)

	f.devnet.Chain.AdvanceTime(61)
	_, _, err = f.ledger.Decrease(ctx, -600, 600, liq(1), zero, zero, deadline)
	require.ErrorIs(t, err, ErrDeadlineExpired)
	require.Len(t, f.ledger.All(), 1)
}

func TestAtAndFind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()

	_, _, err := f.ledger.OpenOrIncrease(ctx, -120, 120, liq(1), zero, zero, f.deadline())
	require.NoError(t, err)

	p, err := f.ledger.At(0)
	require.NoError(t, err)
	require.True(t, p.SameRange(-120, 120))

	_, err = f.ledger.At(1)
	require.ErrorIs(t, err, ErrPositionNotFound)

	i, ok := f.ledger.Find(-120, 120)
	require.True(t, ok)
	require.Equal(t, 0, i)
	_, ok = f.ledger.Find(-60, 60)
	require.False(t, ok)
}

func TestCollectFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	zero := sdkmath.ZeroInt()
	trader := common.HexToAddress("0x7")

	_, _, err := f.ledger.OpenOrIncrease(ctx, -600, 600, sdkmath.NewIntWithDecimal(1, 23), zero, zero, f.deadline())
	require.NoError(t, err)

	f.devnet.Token1.Mint(trader, liq(10))
	_, _, err = f.devnet.Pool.Swap(ctx, trader, false, liq(10), nil)
	require.NoError(t, err)

	fee0, fee1, err := f.ledger.CollectFees(ctx, -600, 600)
	require.NoError(t, err)
	require.True(t, fee0.IsZero())
	require.True(t, fee1.IsPositive())

	fee0, fee1, err = f.ledger.CollectFees(ctx, -600, 600)
	require.NoError(t, err)
	require.True(t, fee0.IsZero())
	require.True(t, fee1.IsZero())

	_, _, err = f.ledger.CollectFees(ctx, 0, 60)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

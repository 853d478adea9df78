package valuation

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/chain/sim"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

var owner = common.HexToAddress("0x00000000000000000000000000000000000d0001")

func newEngine(t *testing.T) (*Engine, *sim.Devnet) {
	t.Helper()
	d, err := sim.NewDevnet(sim.DefaultDevnetConfig())
	require.NoError(t, err)
	return NewEngine(d.Pool, d.Token0, d.Token1, owner), d
}

func TestIdleOnly(t *testing.T) {
	ctx := context.Background()
	e, d := newEngine(t)
	d.Token0.Mint(owner, sdkmath.NewInt(1_000))
	d.Token1.Mint(owner, sdkmath.NewInt(2_000))

	a0, a1, err := e.UnderlyingAssets(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), a0.Int64())
	require.Equal(t, int64(2_000), a1.Int64())

	// price is exactly 1 at tick 0
	v0, err := e.EstimatedValueInToken0(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3_000), v0.Int64())
	v1, err := e.EstimatedValueInToken1(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3_000), v1.Int64())
}

func TestPositionsAndFeesAreIncluded(t *testing.T) {
	ctx := context.Background()
	e, d := newEngine(t)
	d.Token0.Mint(owner, sdkmath.NewIntWithDecimal(1, 24))
	d.Token1.Mint(owner, sdkmath.NewIntWithDecimal(1, 24))

	liquidity := sdkmath.NewIntWithDecimal(1, 23)
	_, _, err := d.Pool.Mint(ctx, owner, -600, 600, liquidity)
	require.NoError(t, err)
	positions := []types.Position{{TickLower: -600, TickUpper: 600, Liquidity: liquidity}}

	snapshot, _, err := e.Snapshot(ctx, positions, 0)
	require.NoError(t, err)
	require.True(t, snapshot.Positions0.IsPositive())
	require.True(t, snapshot.Positions1.IsPositive())

	trader := common.HexToAddress("0x7")
	d.Token0.Mint(trader, sdkmath.NewIntWithDecimal(10, 18))
	_, _, err = d.Pool.Swap(ctx, trader, true, sdkmath.NewIntWithDecimal(10, 18), nil)
	require.NoError(t, err)

	gross, err := e.PositionInfo(ctx, positions[0], 0)
	require.NoError(t, err)
	require.True(t, gross.Fee0.IsPositive())

	net, err := e.PositionInfo(ctx, positions[0], 500_000)
	require.NoError(t, err)
	require.True(t, net.Fee0.LT(gross.Fee0))
	require.Equal(t, gross.Amount0.String(), net.Amount0.String())

	snapshot, _, err = e.Snapshot(ctx, positions, 0)
	require.NoError(t, err)
	require.Equal(t, gross.Amount0.Add(gross.Fee0).String(), snapshot.Positions0.String())
}

func TestValueConversionMonotonic(t *testing.T) {
	amount0 := sdkmath.NewIntWithDecimal(5, 18)
	amount1 := sdkmath.NewIntWithDecimal(7, 18)

	var prev0, prev1 sdkmath.Int
	for i, tick := range []int32{-20000, -600, 0, 600, 20000} {
		sqrtPrice, err := fixedpoint.SqrtRatioAtTick(tick)
		require.NoError(t, err)
		v0, err := ValueInToken0(amount0, amount1, sqrtPrice)
		require.NoError(t, err)
		v1, err := ValueInToken1(amount0, amount1, sqrtPrice)
		require.NoError(t, err)
		if i > 0 {
			require.True(t, v0.LT(prev0), "token0 value should fall as price rises")
			require.True(t, v1.GT(prev1), "token1 value should rise with price")
		}
		prev0, prev1 = v0, v1

		more, err := ValueInToken1(amount0.AddRaw(1_000_000), amount1, sqrtPrice)
		require.NoError(t, err)
		require.True(t, more.GTE(v1))
	}
}

package fixedpoint

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTickBounds(t *testing.T) {
	atZero, err := SqrtRatioAtTick(0)
	require.NoError(t, err)
	require.True(t, atZero.Eq(Q96), "tick 0 should map to 2^96, got %s", atZero.Dec())

	atMin, err := SqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.True(t, atMin.Eq(MinSqrtRatio), "got %s", atMin.Dec())

	atMax, err := SqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.True(t, atMax.Eq(MaxSqrtRatio), "got %s", atMax.Dec())

	_, err = SqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = SqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestSqrtRatioAtTickMonotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-1000)
	require.NoError(t, err)
	for tick := int32(-999); tick <= 1000; tick += 37 {
		cur, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)
		require.True(t, cur.Gt(prev), "ratio not increasing at tick %d", tick)
		prev = cur
	}
}

func TestTickAtSqrtRatio(t *testing.T) {
	for _, tick := range []int32{MinTick, -200000, -60, -1, 0, 1, 60, 12345, 200000, MaxTick - 1} {
		ratio, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)
		got, err := TickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, got)
	}

	_, err := TickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name      string
		a, b, d   *uint256.Int
		down, up  *uint256.Int
		overflows bool
	}{
		{"exact", uint256.NewInt(10), uint256.NewInt(20), uint256.NewInt(5), uint256.NewInt(40), uint256.NewInt(40), false},
		{"remainder", uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(3), uint256.NewInt(33), uint256.NewInt(34), false},
		{"wide intermediate", MaxUint256, MaxUint256, MaxUint256, MaxUint256, MaxUint256, false},
		{"result too large", MaxUint256, uint256.NewInt(2), uint256.NewInt(1), nil, nil, true},
		{"zero divisor", uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0), nil, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			down, err := MulDiv(tc.a, tc.b, tc.d)
			if tc.overflows {
				require.ErrorIs(t, err, ErrArithmeticOverflow)
				return
			}
			require.NoError(t, err)
			require.True(t, down.Eq(tc.down), "floor: got %s", down.Dec())

			up, err := MulDivRoundingUp(tc.a, tc.b, tc.d)
			require.NoError(t, err)
			require.True(t, up.Eq(tc.up), "ceil: got %s", up.Dec())
		})
	}
}

func TestMulDivRoundingUpOverflowsAtMax(t *testing.T) {
	// floor is MaxUint256 with a non-zero remainder
	_, err := MulDivRoundingUp(MaxUint256, MaxUint256, new(uint256.Int).SubUint64(MaxUint256, 1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestLiquidityRoundTripNeverOverReports(t *testing.T) {
	ranges := []struct{ lower, upper int32 }{
		{-600, 600},
		{-887220, 887220},
		{100, 200},
		{-200, -100},
		{-60, 0},
	}
	prices := []int32{-1000, -150, -30, 0, 150, 1000}
	amounts := []struct{ a0, a1 string }{
		{"1000000000000000000", "1000000000000000000"},
		{"1", "1000000000000000000000"},
		{"123456789", "987654321"},
		{"1000000000000000000000000", "3"},
	}

	for _, r := range ranges {
		for _, priceTick := range prices {
			price, err := SqrtRatioAtTick(priceTick)
			require.NoError(t, err)
			for _, a := range amounts {
				a0, a1 := sdkmath.NewIntFromBigInt(uint256.MustFromDecimal(a.a0).ToBig()), sdkmath.NewIntFromBigInt(uint256.MustFromDecimal(a.a1).ToBig())
				liquidity, err := LiquidityForAmountsAtTicks(r.lower, r.upper, a0, a1, price)
				require.NoError(t, err)
				out0, out1, err := AmountsForLiquidityAtTicks(r.lower, r.upper, liquidity, price)
				require.NoError(t, err)
				require.True(t, out0.LTE(a0), "range %v price %d: amount0 %s > %s", r, priceTick, out0, a0)
				require.True(t, out1.LTE(a1), "range %v price %d: amount1 %s > %s", r, priceTick, out1, a1)
			}
		}
	}
}

func TestAmountsForLiquidityRegions(t *testing.T) {
	liquidity := sdkmath.NewInt(1_000_000_000_000)

	below, err := SqrtRatioAtTick(-1000)
	require.NoError(t, err)
	a0, a1, err := AmountsForLiquidityAtTicks(-600, 600, liquidity, below)
	require.NoError(t, err)
	require.True(t, a0.IsPositive())
	require.True(t, a1.IsZero())

	above, err := SqrtRatioAtTick(1000)
	require.NoError(t, err)
	a0, a1, err = AmountsForLiquidityAtTicks(-600, 600, liquidity, above)
	require.NoError(t, err)
	require.True(t, a0.IsZero())
	require.True(t, a1.IsPositive())

	a0, a1, err = AmountsForLiquidityAtTicks(-600, 600, liquidity, Q96)
	require.NoError(t, err)
	require.True(t, a0.IsPositive())
	require.True(t, a1.IsPositive())
}

func TestLiquidityOverflow(t *testing.T) {
	huge := sdkmath.NewIntFromBigInt(MaxUint256.ToBig())
	_, err := LiquidityForAmountsAtTicks(-10, 10, huge, huge, Q96)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, _, err = AmountsForLiquidityAtTicks(-10, 10, huge, Q96)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestMintRoundsAgainstTheMinter(t *testing.T) {
	sqrtA, err := SqrtRatioAtTick(-600)
	require.NoError(t, err)
	sqrtB, err := SqrtRatioAtTick(600)
	require.NoError(t, err)
	liquidity := uint256.NewInt(987654321987)

	down0, err := Amount0Delta(sqrtA, sqrtB, liquidity, false)
	require.NoError(t, err)
	up0, err := Amount0Delta(sqrtA, sqrtB, liquidity, true)
	require.NoError(t, err)
	require.True(t, up0.Cmp(down0) >= 0)

	down1, err := Amount1Delta(sqrtA, sqrtB, liquidity, false)
	require.NoError(t, err)
	up1, err := Amount1Delta(sqrtA, sqrtB, liquidity, true)
	require.NoError(t, err)
	require.True(t, up1.Cmp(down1) >= 0)
}

func TestNextSqrtPriceFromInput(t *testing.T) {
	liquidity := uint256.MustFromDecimal("1000000000000000000")
	amountIn := uint256.NewInt(1_000_000)

	down, err := NextSqrtPriceFromInput(Q96, liquidity, amountIn, true)
	require.NoError(t, err)
	require.True(t, down.Lt(Q96))

	up, err := NextSqrtPriceFromInput(Q96, liquidity, amountIn, false)
	require.NoError(t, err)
	require.True(t, up.Gt(Q96))

	same, err := NextSqrtPriceFromInput(Q96, liquidity, new(uint256.Int), true)
	require.NoError(t, err)
	require.True(t, same.Eq(Q96))
}

func TestWideLiquidityOverflows(t *testing.T) {
	sqrtA, err := SqrtRatioAtTick(-600)
	require.NoError(t, err)
	sqrtB, err := SqrtRatioAtTick(600)
	require.NoError(t, err)
	wide := new(uint256.Int).Lsh(uint256.NewInt(1), 170)

	_, err = Amount0Delta(sqrtA, sqrtB, wide, false)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
	_, err = Amount0Delta(sqrtA, sqrtB, wide, true)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = NextSqrtPriceFromInput(Q96, wide, uint256.NewInt(1_000_000), true)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// The largest 128-bit liquidity still shifts cleanly.
	_, err = Amount0Delta(sqrtA, sqrtB, MaxUint128, false)
	require.NoError(t, err)
}

package fixedpoint

import (
	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
)

func sortRatios(sqrtA, sqrtB *uint256.Int) (*uint256.Int, *uint256.Int) {
	if sqrtA.Gt(sqrtB) {
		return sqrtB, sqrtA
	}
	return sqrtA, sqrtB
}

func checkLiquidity(liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.Gt(MaxUint128) {
		return nil, ErrArithmeticOverflow
	}
	return liquidity, nil
}

// LiquidityForAmount0 returns the liquidity backed by amount0 across [sqrtA, sqrtB].
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	liquidity, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return checkLiquidity(liquidity)
}

// LiquidityForAmount1 returns the liquidity backed by amount1 across [sqrtA, sqrtB].
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	liquidity, err := MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return checkLiquidity(liquidity)
}

// LiquidityForAmounts returns the largest liquidity that amount0 and amount1 can
// both back at the current price. The result is rounded down.
func LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		return LiquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPrice.Lt(sqrtB):
		liquidity0, err := LiquidityForAmount0(sqrtPrice, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := LiquidityForAmount1(sqrtA, sqrtPrice, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Lt(liquidity1) {
			return liquidity0, nil
		}
		return liquidity1, nil
	default:
		return LiquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// Amount0ForLiquidity returns the token0 amount represented by liquidity across
// [sqrtA, sqrtB], rounded down.
func Amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	if _, err := checkLiquidity(liquidity); err != nil {
		return nil, err
	}
	numerator := new(uint256.Int).Lsh(liquidity, 96)
	scaled, err := MulDiv(numerator, new(uint256.Int).Sub(sqrtB, sqrtA), sqrtB)
	if err != nil {
		return nil, err
	}
	return scaled.Div(scaled, sqrtA), nil
}

// Amount1ForLiquidity returns the token1 amount represented by liquidity across
// [sqrtA, sqrtB], rounded down.
func Amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if _, err := checkLiquidity(liquidity); err != nil {
		return nil, err
	}
	return MulDiv(liquidity, new(uint256.Int).Sub(sqrtB, sqrtA), Q96)
}

// AmountsForLiquidity is the inverse of LiquidityForAmounts. Each amount is
// rounded down on its own.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		amount0, err := Amount0ForLiquidity(sqrtA, sqrtB, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return amount0, new(uint256.Int), nil
	case sqrtPrice.Lt(sqrtB):
		amount0, err := Amount0ForLiquidity(sqrtPrice, sqrtB, liquidity)
		if err != nil {
			return nil, nil, err
		}
		amount1, err := Amount1ForLiquidity(sqrtA, sqrtPrice, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return amount0, amount1, nil
	default:
		amount1, err := Amount1ForLiquidity(sqrtA, sqrtB, liquidity)
		if err != nil {
			return nil, nil, err
		}
		return new(uint256.Int), amount1, nil
	}
}

// LiquidityForAmountsAtTicks is LiquidityForAmounts over a tick range and sdk Ints.
func LiquidityForAmountsAtTicks(tickLower, tickUpper int32, amount0, amount1 sdkmath.Int, sqrtPrice *uint256.Int) (sdkmath.Int, error) {
	sqrtA, sqrtB, err := rangeRatios(tickLower, tickUpper)
	if err != nil {
		return sdkmath.Int{}, err
	}
	a0, err := FromInt(amount0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	a1, err := FromInt(amount1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	liquidity, err := LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, a0, a1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToInt(liquidity), nil
}

// AmountsForLiquidityAtTicks is AmountsForLiquidity over a tick range and sdk Ints.
func AmountsForLiquidityAtTicks(tickLower, tickUpper int32, liquidity sdkmath.Int, sqrtPrice *uint256.Int) (sdkmath.Int, sdkmath.Int, error) {
	sqrtA, sqrtB, err := rangeRatios(tickLower, tickUpper)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	l, err := FromInt(liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	amount0, amount1, err := AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, l)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return ToInt(amount0), ToInt(amount1), nil
}

func rangeRatios(tickLower, tickUpper int32) (*uint256.Int, *uint256.Int, error) {
	if err := ValidateTickRange(tickLower, tickUpper, 0); err != nil {
		return nil, nil, err
	}
	sqrtA, err := SqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := SqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

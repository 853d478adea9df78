package fixedpoint

import (
	"github.com/holiman/uint256"
)

// Amount0Delta returns the token0 amount moved between two prices for a given
// liquidity. Mints round up, burns and swap outputs round down.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	if _, err := checkLiquidity(liquidity); err != nil {
		return nil, err
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)
	if !roundUp {
		scaled, err := MulDiv(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return scaled.Div(scaled, sqrtA), nil
	}
	scaled, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return DivRoundingUp(scaled, sqrtA)
}

// Amount1Delta returns the token1 amount moved between two prices for a given liquidity.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// NextSqrtPriceFromInput returns the price reached after adding amountIn of the
// input token to a range holding liquidity. zeroForOne moves the price down.
func NextSqrtPriceFromInput(sqrtPrice, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPrice.IsZero() || liquidity.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	if _, err := checkLiquidity(liquidity); err != nil {
		return nil, err
	}
	if amountIn.IsZero() {
		return sqrtPrice.Clone(), nil
	}
	if zeroForOne {
		// L * P / (L + amountIn * P), rounded up.
		numerator := new(uint256.Int).Lsh(liquidity, 96)
		product, overflow := new(uint256.Int).MulOverflow(amountIn, sqrtPrice)
		if overflow {
			return nil, ErrArithmeticOverflow
		}
		denominator, overflow := new(uint256.Int).AddOverflow(numerator, product)
		if overflow {
			return nil, ErrArithmeticOverflow
		}
		return MulDivRoundingUp(numerator, sqrtPrice, denominator)
	}
	// P + amountIn / L, rounded down.
	quotient, err := MulDiv(amountIn, Q96, liquidity)
	if err != nil {
		return nil, err
	}
	next, overflow := new(uint256.Int).AddOverflow(sqrtPrice, quotient)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return next, nil
}

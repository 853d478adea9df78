/*

Package fixedpoint holds the integer arithmetic shared by fee accounting, position
valuation and the pool: full-precision mul-div, tick to sqrt-price conversion and
the liquidity/amount conversions of a concentrated-liquidity pool.

Every operation works on 256-bit unsigned integers and fails with
ErrArithmeticOverflow instead of wrapping.

*/

package fixedpoint

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrNegativeValue      = errors.New("value is negative")
)

var (
	// Q96 is 2^96, the fixed-point unit of sqrt prices.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// MaxUint128 bounds pool liquidity.
	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	// MaxUint256 is 2^256 - 1.
	MaxUint256 = new(uint256.Int).SetAllOne()
)

// MulDiv returns floor(a*b/d) computed with a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/d).
func MulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(a, b, d).IsZero() {
		if z.Eq(MaxUint256) {
			return nil, ErrArithmeticOverflow
		}
		z.AddUint64(z, 1)
	}
	return z, nil
}

// DivRoundingUp returns ceil(a/d).
func DivRoundingUp(a, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	z, rem := new(uint256.Int).DivMod(a, d, new(uint256.Int))
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return z, nil
}

// FromInt converts a non-negative sdk Int into a uint256.
func FromInt(x sdkmath.Int) (*uint256.Int, error) {
	if x.IsNil() {
		return new(uint256.Int), nil
	}
	if x.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeValue, x.String())
	}
	z, overflow := uint256.FromBig(x.BigInt())
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// ToInt converts a uint256 into an sdk Int.
func ToInt(x *uint256.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(x.ToBig())
}

// MulDivInt is MulDiv over sdk Ints.
func MulDivInt(a, b, d sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	ua, err := FromInt(a)
	if err != nil {
		return sdkmath.Int{}, err
	}
	ub, err := FromInt(b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	ud, err := FromInt(d)
	if err != nil {
		return sdkmath.Int{}, err
	}
	var z *uint256.Int
	if roundUp {
		z, err = MulDivRoundingUp(ua, ub, ud)
	} else {
		z, err = MulDiv(ua, ub, ud)
	}
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToInt(z), nil
}

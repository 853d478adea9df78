/*
This file contains common utility functions for converting between raw token
amounts and human-readable decimal values.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// MaxPrecision bounds the decimals accepted by the conversions. Vault shares
// carry the token0 decimals plus an offset, so this is wider than any ERC-20.
const MaxPrecision = 36

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
	ErrTooManyDecimals  = errors.New("too many fractional digits")
)

func checkPrecision(precision int) error {
	if precision < 0 || precision > MaxPrecision {
		return fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	return nil
}

// SDKIntToFloat64 converts a raw amount to float64 units of 10^precision.
// The result is lossy and meant for gauges and logs only.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if err := checkPrecision(precision); err != nil {
		return 0, err
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	result := f / math.Pow10(precision)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// FormatUnits renders a raw amount as a decimal string with precision
// fractional digits, trailing zeros trimmed.
func FormatUnits(amount sdkmath.Int, precision int) (string, error) {
	if err := checkPrecision(precision); err != nil {
		return "", err
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}

	sign := ""
	digits := amount.String()
	if amount.IsNegative() {
		sign = "-"
		digits = digits[1:]
	}
	if precision == 0 {
		return sign + digits, nil
	}
	if len(digits) <= precision {
		digits = strings.Repeat("0", precision-len(digits)+1) + digits
	}
	whole := digits[:len(digits)-precision]
	frac := strings.TrimRight(digits[len(digits)-precision:], "0")
	if frac == "" {
		return sign + whole, nil
	}
	return sign + whole + "." + frac, nil
}

// ParseUnits converts a decimal string such as "1.5" into a raw amount with
// precision decimals. Fractional digits beyond precision are rejected.
func ParseUnits(value string, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	value = strings.TrimSpace(value)
	if value == "" || value == "." {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty amount", ErrConversionFailed)
	}
	if strings.HasPrefix(value, "-") {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}

	whole, frac, _ := strings.Cut(value, ".")
	if len(frac) > precision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q has more than %d", ErrTooManyDecimals, value, precision)
	}
	if whole == "" {
		whole = "0"
	}
	raw := whole + frac + strings.Repeat("0", precision-len(frac))
	result, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: invalid amount %q", ErrConversionFailed, value)
	}
	return result, nil
}

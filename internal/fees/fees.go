/*

Package fees computes the vault's four charges: the entry fee taken in tokens on
deposit, the exit fee taken in shares on withdrawal, the management fee accrued as
share dilution over time and the performance fee taken from realized profit.

*/

package fees

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

const (
	// FeeMultiplier is the denominator of every fee rate.
	FeeMultiplier uint64 = 1_000_000
	// SecondsInAYear is the management fee period.
	SecondsInAYear uint64 = 365 * 24 * 60 * 60

	MaxEntryFee       uint32 = 500_000
	MaxExitFee        uint32 = 500_000
	MaxPerformanceFee uint32 = 1_000_000
	MaxManagementFee  uint32 = 1_000_000
)

var (
	ErrInvalidFeePercentage = errors.New("invalid fee percentage")
	ErrZeroTreasury         = errors.New("treasury cannot be zero")
)

var feeMultiplier = sdkmath.NewIntFromUint64(FeeMultiplier)

// Validate checks every rate of cfg against its bound and requires a treasury.
func Validate(cfg types.FeeConfig) error {
	if cfg.Treasury == (common.Address{}) {
		return ErrZeroTreasury
	}
	var errs []error
	if cfg.EntryFee > MaxEntryFee {
		errs = append(errs, fmt.Errorf("entry fee %d exceeds %d", cfg.EntryFee, MaxEntryFee))
	}
	if cfg.ExitFee > MaxExitFee {
		errs = append(errs, fmt.Errorf("exit fee %d exceeds %d", cfg.ExitFee, MaxExitFee))
	}
	if cfg.PerformanceFee > MaxPerformanceFee {
		errs = append(errs, fmt.Errorf("performance fee %d exceeds %d", cfg.PerformanceFee, MaxPerformanceFee))
	}
	if cfg.ManagementFee > MaxManagementFee {
		errs = append(errs, fmt.Errorf("management fee %d exceeds %d", cfg.ManagementFee, MaxManagementFee))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidFeePercentage}, errs...)...)
	}
	return nil
}

// EntryFee returns floor(amount * entryFee / FeeMultiplier).
func EntryFee(amount sdkmath.Int, entryFee uint32) (sdkmath.Int, error) {
	return fixedpoint.MulDivInt(amount, sdkmath.NewIntFromUint64(uint64(entryFee)), feeMultiplier, false)
}

// ExitFeeShares returns floor(shares * exitFee / FeeMultiplier).
func ExitFeeShares(shares sdkmath.Int, exitFee uint32) (sdkmath.Int, error) {
	return fixedpoint.MulDivInt(shares, sdkmath.NewIntFromUint64(uint64(exitFee)), feeMultiplier, false)
}

// AccrueManagementFee returns the shares to mint to the treasury for elapsed
// seconds of management fee. The fee is charged on the post-dilution supply:
//
//	ceil(totalShares * fee * elapsed / (FeeMultiplier * secondsPerYear - fee * elapsed))
//
// Once fee * elapsed reaches a full period the denominator is held at 1, so a
// long gap mints the maximal dilution instead of failing.
func AccrueManagementFee(totalShares sdkmath.Int, fee uint32, elapsed, secondsPerYear uint64) (sdkmath.Int, error) {
	if elapsed == 0 || fee == 0 || totalShares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if secondsPerYear == 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: zero fee period", fixedpoint.ErrArithmeticOverflow)
	}

	timeFee := sdkmath.NewIntFromUint64(uint64(fee)).Mul(sdkmath.NewIntFromUint64(elapsed))
	period := feeMultiplier.Mul(sdkmath.NewIntFromUint64(secondsPerYear))
	denominator := period.Sub(timeFee)
	if !denominator.IsPositive() {
		denominator = sdkmath.OneInt()
	}
	return fixedpoint.MulDivInt(totalShares, timeFee, denominator, true)
}

// PerformanceFee returns floor(max(gain, 0) * fee / FeeMultiplier). A loss is never charged.
func PerformanceFee(gain sdkmath.Int, fee uint32) (sdkmath.Int, error) {
	if gain.IsNil() || !gain.IsPositive() || fee == 0 {
		return sdkmath.ZeroInt(), nil
	}
	return fixedpoint.MulDivInt(gain, sdkmath.NewIntFromUint64(uint64(fee)), feeMultiplier, false)
}

// NetOfPerformanceFee returns gain minus its performance fee.
func NetOfPerformanceFee(gain sdkmath.Int, fee uint32) (sdkmath.Int, error) {
	charged, err := PerformanceFee(gain, fee)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return gain.Sub(charged), nil
}

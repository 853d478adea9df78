package vault

import (
	"errors"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/positions"
)

// Error definitions for zero-tolerance error handling
var (
	ErrCallerIsNotManager = errors.New("caller is not manager")
	ErrCallerIsNotOwner   = errors.New("caller is not owner")
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrZeroAddress        = errors.New("address cannot be zero")
	ErrInvalidConfig      = errors.New("vault config is invalid")
	ErrInvalidRouter      = errors.New("router is invalid")
	ErrStoreFailed        = errors.New("state commit failed")
)

// Errors raised by the packages the vault composes, re-exported so callers
// only need this package.
var (
	ErrInsufficientBalance   = chain.ErrInsufficientBalance
	ErrInsufficientAllowance = chain.ErrInsufficientAllowance
	ErrInvalidFeePercentage  = fees.ErrInvalidFeePercentage
	ErrZeroTreasury          = fees.ErrZeroTreasury
	ErrArithmeticOverflow    = fixedpoint.ErrArithmeticOverflow
	ErrInvalidPriceSlippage  = positions.ErrInvalidPriceSlippage
	ErrDeadlineExpired       = positions.ErrDeadlineExpired
	ErrPositionNotFound      = positions.ErrPositionNotFound
	ErrInsufficientLiquidity = positions.ErrInsufficientLiquidity
	ErrInvalidTickRange      = positions.ErrInvalidTickRange
	ErrZeroLiquidity         = positions.ErrZeroLiquidity
)

// rejections are caller mistakes rather than faults of the vault or its
// collaborators. They are logged at warn level.
var rejections = []error{
	ErrCallerIsNotManager,
	ErrCallerIsNotOwner,
	ErrZeroAmount,
	ErrZeroAddress,
	ErrInvalidRouter,
	ErrInsufficientBalance,
	ErrInsufficientAllowance,
	ErrInvalidFeePercentage,
	ErrZeroTreasury,
	ErrInvalidPriceSlippage,
	ErrDeadlineExpired,
	ErrPositionNotFound,
	ErrInsufficientLiquidity,
	ErrInvalidTickRange,
	ErrZeroLiquidity,
}

// IsRejection reports whether err was caused by invalid input or authorization.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

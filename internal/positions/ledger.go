/*

Package positions keeps the vault's ordered set of open tick ranges and mediates
every liquidity change against the pool. A Ledger is bound to the position slice of
one working VaultState; it never persists anything itself.

*/

package positions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/types"
)

var (
	ErrDeadlineExpired       = errors.New("deadline expired")
	ErrPositionNotFound      = errors.New("position not found")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidPriceSlippage  = errors.New("invalid price slippage")
	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrZeroLiquidity         = errors.New("liquidity must be positive")
)

// Ledger is the position set of one vault.
type Ledger struct {
	pool      chain.Pool
	env       chain.Env
	owner     common.Address
	positions *[]types.Position
	log       zerolog.Logger
}

// NewLedger binds a ledger to positions, the slice it will read and mutate.
func NewLedger(pool chain.Pool, env chain.Env, owner common.Address, positions *[]types.Position) *Ledger {
	return &Ledger{
		pool:      pool,
		env:       env,
		owner:     owner,
		positions: positions,
		log:       logger.GetForComponent("position_ledger"),
	}
}

// All returns a copy of the open positions in insertion order.
func (l *Ledger) All() []types.Position {
	return slices.Clone(*l.positions)
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	return len(*l.positions)
}

// At returns the position at index.
func (l *Ledger) At(index int) (types.Position, error) {
	if index < 0 || index >= len(*l.positions) {
		return types.Position{}, fmt.Errorf("%w: index %d of %d", ErrPositionNotFound, index, len(*l.positions))
	}
	return (*l.positions)[index], nil
}

// Find returns the index of [tickLower, tickUpper) in the set.
func (l *Ledger) Find(tickLower, tickUpper int32) (int, bool) {
	for i, p := range *l.positions {
		if p.SameRange(tickLower, tickUpper) {
			return i, true
		}
	}
	return -1, false
}

// OpenOrIncrease mints liquidity into [tickLower, tickUpper) and records it. The
// amounts the pool pulls from the vault must reach the given minimums.
func (l *Ledger) OpenOrIncrease(ctx context.Context, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error) {
	if err := l.checkDeadline(deadline); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := l.validateRange(tickLower, tickUpper); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if liquidity.IsNil() || !liquidity.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, ErrZeroLiquidity
	}

	amount0, amount1, err := l.pool.Mint(ctx, l.owner, tickLower, tickUpper, liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("pool mint failed: %w", err)
	}
	if err := checkMinimums(amount0, amount1, amount0Min, amount1Min); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}

	if i, ok := l.Find(tickLower, tickUpper); ok {
		(*l.positions)[i].Liquidity = (*l.positions)[i].Liquidity.Add(liquidity)
	} else {
		*l.positions = append(*l.positions, types.Position{TickLower: tickLower, TickUpper: tickUpper, Liquidity: liquidity})
	}

	l.log.Debug().
		Int32("tick_lower", tickLower).
		Int32("tick_upper", tickUpper).
		Str("liquidity", liquidity.String()).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Msg("Liquidity added")
	return amount0, amount1, nil
}

// Decrease burns liquidity from [tickLower, tickUpper) and collects the released
// tokens. A position drained to zero leaves the set.
func (l *Ledger) Decrease(ctx context.Context, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error) {
	if err := l.checkDeadline(deadline); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	i, ok := l.Find(tickLower, tickUpper)
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: [%d, %d)", ErrPositionNotFound, tickLower, tickUpper)
	}
	if liquidity.IsNil() || !liquidity.IsPositive() {
		return sdkmath.Int{}, sdkmath.Int{}, ErrZeroLiquidity
	}
	held := (*l.positions)[i].Liquidity
	if liquidity.GT(held) {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: holding %s, asked %s", ErrInsufficientLiquidity, held, liquidity)
	}

	amount0, amount1, err := l.pool.Burn(ctx, l.owner, tickLower, tickUpper, liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("pool burn failed: %w", err)
	}
	if err := checkMinimums(amount0, amount1, amount0Min, amount1Min); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if _, _, err := l.pool.Collect(ctx, l.owner, tickLower, tickUpper, amount0, amount1); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("pool collect failed: %w", err)
	}

	remaining := held.Sub(liquidity)
	if remaining.IsZero() {
		*l.positions = slices.Delete(*l.positions, i, i+1)
	} else {
		(*l.positions)[i].Liquidity = remaining
	}

	l.log.Debug().
		Int32("tick_lower", tickLower).
		Int32("tick_upper", tickUpper).
		Str("liquidity", liquidity.String()).
		Str("remaining", remaining.String()).
		Msg("Liquidity removed")
	return amount0, amount1, nil
}

// CollectFees pulls every swap fee owed to [tickLower, tickUpper) into the vault.
func (l *Ledger) CollectFees(ctx context.Context, tickLower, tickUpper int32) (sdkmath.Int, sdkmath.Int, error) {
	if _, ok := l.Find(tickLower, tickUpper); !ok {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: [%d, %d)", ErrPositionNotFound, tickLower, tickUpper)
	}
	// zero burn brings the pool's fee accounting up to date
	if _, _, err := l.pool.Burn(ctx, l.owner, tickLower, tickUpper, sdkmath.ZeroInt()); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("pool poke failed: %w", err)
	}
	fee0, fee1, err := l.pool.PositionFees(ctx, l.owner, tickLower, tickUpper)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if fee0.IsZero() && fee1.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	return l.pool.Collect(ctx, l.owner, tickLower, tickUpper, fee0, fee1)
}

func (l *Ledger) checkDeadline(deadline uint64) error {
	if now := l.env.BlockTime(); now > deadline {
		return fmt.Errorf("%w: block time %d, deadline %d", ErrDeadlineExpired, now, deadline)
	}
	return nil
}

func (l *Ledger) validateRange(tickLower, tickUpper int32) error {
	if err := fixedpoint.ValidateTickRange(tickLower, tickUpper, l.pool.TickSpacing()); err != nil {
		return errors.Join(ErrInvalidTickRange, err)
	}
	return nil
}

func checkMinimums(amount0, amount1, amount0Min, amount1Min sdkmath.Int) error {
	if (!amount0Min.IsNil() && amount0.LT(amount0Min)) || (!amount1Min.IsNil() && amount1.LT(amount1Min)) {
		return fmt.Errorf("%w: got (%s, %s), minimum (%s, %s)", ErrInvalidPriceSlippage, amount0, amount1, amount0Min, amount1Min)
	}
	return nil
}

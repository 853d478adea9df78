/*

Package valuation prices the vault's holdings: idle token balances plus every open
position's principal and uncollected swap fees, all read against a single pool
price sample. It is read-only and never accrues fees.

*/

package valuation

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

// Engine values the holdings of owner.
type Engine struct {
	pool   chain.Pool
	token0 chain.Token
	token1 chain.Token
	owner  common.Address
}

// NewEngine returns an engine for the vault at owner.
func NewEngine(pool chain.Pool, token0, token1 chain.Token, owner common.Address) *Engine {
	return &Engine{pool: pool, token0: token0, token1: token1, owner: owner}
}

// Snapshot returns the holdings and the price sample they were valued at.
func (e *Engine) Snapshot(ctx context.Context, positions []types.Position, performanceFee uint32) (types.AssetSnapshot, *uint256.Int, error) {
	slot0, err := e.pool.Slot0(ctx)
	if err != nil {
		return types.AssetSnapshot{}, nil, fmt.Errorf("failed to read pool price: %w", err)
	}
	idle0, err := e.token0.BalanceOf(ctx, e.owner)
	if err != nil {
		return types.AssetSnapshot{}, nil, fmt.Errorf("failed to read %s balance: %w", e.token0.Symbol(), err)
	}
	idle1, err := e.token1.BalanceOf(ctx, e.owner)
	if err != nil {
		return types.AssetSnapshot{}, nil, fmt.Errorf("failed to read %s balance: %w", e.token1.Symbol(), err)
	}

	snapshot := types.AssetSnapshot{
		Idle0:      idle0,
		Idle1:      idle1,
		Positions0: sdkmath.ZeroInt(),
		Positions1: sdkmath.ZeroInt(),
	}
	for _, p := range positions {
		info, err := e.positionInfoAt(ctx, p, slot0.SqrtPriceX96, performanceFee)
		if err != nil {
			return types.AssetSnapshot{}, nil, err
		}
		snapshot.Positions0 = snapshot.Positions0.Add(info.Amount0).Add(info.Fee0)
		snapshot.Positions1 = snapshot.Positions1.Add(info.Amount1).Add(info.Fee1)
	}
	return snapshot, slot0.SqrtPriceX96, nil
}

// UnderlyingAssets returns the total token0 and token1 held.
func (e *Engine) UnderlyingAssets(ctx context.Context, positions []types.Position, performanceFee uint32) (sdkmath.Int, sdkmath.Int, error) {
	snapshot, _, err := e.Snapshot(ctx, positions, performanceFee)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return snapshot.Amount0(), snapshot.Amount1(), nil
}

// EstimatedValueInToken0 returns the holdings expressed in token0.
func (e *Engine) EstimatedValueInToken0(ctx context.Context, positions []types.Position, performanceFee uint32) (sdkmath.Int, error) {
	snapshot, sqrtPrice, err := e.Snapshot(ctx, positions, performanceFee)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ValueInToken0(snapshot.Amount0(), snapshot.Amount1(), sqrtPrice)
}

// EstimatedValueInToken1 returns the holdings expressed in token1.
func (e *Engine) EstimatedValueInToken1(ctx context.Context, positions []types.Position, performanceFee uint32) (sdkmath.Int, error) {
	snapshot, sqrtPrice, err := e.Snapshot(ctx, positions, performanceFee)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ValueInToken1(snapshot.Amount0(), snapshot.Amount1(), sqrtPrice)
}

// PositionInfo returns the token amounts and net uncollected fees of p.
func (e *Engine) PositionInfo(ctx context.Context, p types.Position, performanceFee uint32) (types.PositionInfo, error) {
	slot0, err := e.pool.Slot0(ctx)
	if err != nil {
		return types.PositionInfo{}, fmt.Errorf("failed to read pool price: %w", err)
	}
	return e.positionInfoAt(ctx, p, slot0.SqrtPriceX96, performanceFee)
}

func (e *Engine) positionInfoAt(ctx context.Context, p types.Position, sqrtPrice *uint256.Int, performanceFee uint32) (types.PositionInfo, error) {
	amount0, amount1, err := fixedpoint.AmountsForLiquidityAtTicks(p.TickLower, p.TickUpper, p.Liquidity, sqrtPrice)
	if err != nil {
		return types.PositionInfo{}, fmt.Errorf("position %s: %w", p, err)
	}
	fee0, fee1, err := e.pool.PositionFees(ctx, e.owner, p.TickLower, p.TickUpper)
	if err != nil {
		return types.PositionInfo{}, fmt.Errorf("position %s fees: %w", p, err)
	}
	net0, err := fees.NetOfPerformanceFee(fee0, performanceFee)
	if err != nil {
		return types.PositionInfo{}, err
	}
	net1, err := fees.NetOfPerformanceFee(fee1, performanceFee)
	if err != nil {
		return types.PositionInfo{}, err
	}
	return types.PositionInfo{Position: p, Amount0: amount0, Amount1: amount1, Fee0: net0, Fee1: net1}, nil
}

// ValueInToken0 returns amount0 + amount1 / price, with price = (sqrtPrice / 2^96)^2.
func ValueInToken0(amount0, amount1 sdkmath.Int, sqrtPrice *uint256.Int) (sdkmath.Int, error) {
	a1, err := fixedpoint.FromInt(amount1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	step, err := fixedpoint.MulDiv(a1, fixedpoint.Q96, sqrtPrice)
	if err != nil {
		return sdkmath.Int{}, err
	}
	converted, err := fixedpoint.MulDiv(step, fixedpoint.Q96, sqrtPrice)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return amount0.SafeAdd(fixedpoint.ToInt(converted))
}

// ValueInToken1 returns amount1 + amount0 * price.
func ValueInToken1(amount0, amount1 sdkmath.Int, sqrtPrice *uint256.Int) (sdkmath.Int, error) {
	a0, err := fixedpoint.FromInt(amount0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	step, err := fixedpoint.MulDiv(a0, sqrtPrice, fixedpoint.Q96)
	if err != nil {
		return sdkmath.Int{}, err
	}
	converted, err := fixedpoint.MulDiv(step, sqrtPrice, fixedpoint.Q96)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return amount1.SafeAdd(fixedpoint.ToInt(converted))
}

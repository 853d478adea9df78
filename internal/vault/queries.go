package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

func (v *Vault) Address() common.Address {
	return v.address
}

func (v *Vault) Owner() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Owner
}

func (v *Vault) Manager() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Manager
}

func (v *Vault) FeeConfig() types.FeeConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.FeeConfig
}

// Decimals is the share precision: token0 decimals plus the decimal offset.
func (v *Vault) Decimals() uint8 {
	return v.decimalsLocked()
}

func (v *Vault) decimalsLocked() uint8 {
	return v.token0.Decimals() + v.decimalOffset
}

// Tokens describes token0 and token1.
func (v *Vault) Tokens() (types.Token, types.Token) {
	return types.Token{Address: v.token0.Address(), Symbol: v.token0.Symbol(), Decimals: v.token0.Decimals()},
		types.Token{Address: v.token1.Address(), Symbol: v.token1.Symbol(), Decimals: v.token1.Decimals()}
}

func (v *Vault) TotalSupply() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.TotalShares
}

func (v *Vault) BalanceOf(holder common.Address) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.BalanceOf(holder)
}

// Holders lists every address with a non-zero share balance.
func (v *Vault) Holders() []common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Holders()
}

func (v *Vault) LastManagementFeeCollectionTime() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.LastManagementFeeCollection
}

// AllPositions returns the open positions in the order they were first opened.
func (v *Vault) AllPositions() []types.Position {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.Position, len(v.state.Positions))
	copy(out, v.state.Positions)
	return out
}

// PositionInfo returns the token amounts and uncollected fees, net of the
// performance fee, of the position at index.
func (v *Vault) PositionInfo(ctx context.Context, index int) (types.PositionInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.state.Positions) {
		return types.PositionInfo{}, fmt.Errorf("%w: index %d of %d", ErrPositionNotFound, index, len(v.state.Positions))
	}
	return v.valuation.PositionInfo(ctx, v.state.Positions[index], v.state.FeeConfig.PerformanceFee)
}

// Assets returns the idle and in-position holdings at one price sample.
func (v *Vault) Assets(ctx context.Context) (types.AssetSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	snapshot, _, err := v.valuation.Snapshot(ctx, v.state.Positions, v.state.FeeConfig.PerformanceFee)
	return snapshot, err
}

func (v *Vault) UnderlyingAssets(ctx context.Context) (sdkmath.Int, sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valuation.UnderlyingAssets(ctx, v.state.Positions, v.state.FeeConfig.PerformanceFee)
}

func (v *Vault) EstimatedValueInToken0(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valuation.EstimatedValueInToken0(ctx, v.state.Positions, v.state.FeeConfig.PerformanceFee)
}

func (v *Vault) EstimatedValueInToken1(ctx context.Context) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valuation.EstimatedValueInToken1(ctx, v.state.Positions, v.state.FeeConfig.PerformanceFee)
}

// PoolInfo describes the pool and its current price.
func (v *Vault) PoolInfo(ctx context.Context) (types.PoolInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return types.PoolInfo{}, fmt.Errorf("failed to read pool price: %w", err)
	}
	return types.PoolInfo{
		Token0:       v.token0.Address(),
		Token1:       v.token1.Address(),
		Decimals0:    v.token0.Decimals(),
		Decimals1:    v.token1.Decimals(),
		Fee:          v.pool.Fee(),
		TickSpacing:  v.pool.TickSpacing(),
		SqrtPriceX96: slot0.SqrtPriceX96,
		Tick:         slot0.Tick,
	}, nil
}

// LiquidityForAmounts returns the most liquidity amount0 and amount1 can mint
// in [tickLower, tickUpper) at the current price.
func (v *Vault) LiquidityForAmounts(ctx context.Context, tickLower, tickUpper int32, amount0, amount1 sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := fixedpoint.ValidateTickRange(tickLower, tickUpper, v.pool.TickSpacing()); err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", ErrInvalidTickRange, err)
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("failed to read pool price: %w", err)
	}
	return fixedpoint.LiquidityForAmountsAtTicks(tickLower, tickUpper, orZero(amount0), orZero(amount1), slot0.SqrtPriceX96)
}

// AmountsForLiquidity returns the token amounts liquidity in [tickLower,
// tickUpper) is worth at the current price, rounded down.
func (v *Vault) AmountsForLiquidity(ctx context.Context, tickLower, tickUpper int32, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := fixedpoint.ValidateTickRange(tickLower, tickUpper, v.pool.TickSpacing()); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: %w", ErrInvalidTickRange, err)
	}
	slot0, err := v.pool.Slot0(ctx)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("failed to read pool price: %w", err)
	}
	return fixedpoint.AmountsForLiquidityAtTicks(tickLower, tickUpper, orZero(liquidity), slot0.SqrtPriceX96)
}

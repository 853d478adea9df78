package vault

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/positions"
	"github.com/teahouse-finance/tvault/internal/types"
)

// InPoolSwap sells exactly amountIn on the vault's pool. The output must reach
// amountOutMin.
func (v *Vault) InPoolSwap(ctx context.Context, caller common.Address, zeroForOne bool, amountIn, amountOutMin sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpInPoolSwap, caller, func(op *operation) error {
		if err := v.requireManager(op); err != nil {
			return err
		}
		if err := requirePositive("amount in", amountIn); err != nil {
			return err
		}

		limit := new(uint256.Int).AddUint64(fixedpoint.MinSqrtRatio, 1)
		if !zeroForOne {
			limit = new(uint256.Int).SubUint64(fixedpoint.MaxSqrtRatio, 1)
		}
		in, out, err := v.pool.Swap(op.ctx, v.address, zeroForOne, amountIn, limit)
		if err != nil {
			return fmt.Errorf("pool swap failed: %w", err)
		}
		if out.LT(orZero(amountOutMin)) {
			return fmt.Errorf("%w: swap returned %s, minimum %s", ErrInvalidPriceSlippage, out, orZero(amountOutMin))
		}

		op.receipt.ZeroForOne = zeroForOne
		op.receipt.Amount0, op.receipt.Amount1 = swapLegs(zeroForOne, in, out)
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	in, out := swapAmounts(receipt)
	return in, out, nil
}

// ExecuteSwap approves router for amountIn of the input token, runs payload and
// checks the vault's balances moved as expected. The approval is reset whatever
// the outcome.
func (v *Vault) ExecuteSwap(ctx context.Context, caller common.Address, zeroForOne bool, amountIn, amountOutMin sdkmath.Int, router chain.Router, payload []byte) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpExecuteSwap, caller, func(op *operation) error {
		if err := v.requireManager(op); err != nil {
			return err
		}
		if router == nil || router.Address() == (common.Address{}) {
			return ErrInvalidRouter
		}
		if router.Address() == v.address || router.Address() == v.token0.Address() || router.Address() == v.token1.Address() {
			return fmt.Errorf("%w: %s", ErrInvalidRouter, router.Address().Hex())
		}
		if err := requirePositive("amount in", amountIn); err != nil {
			return err
		}

		src, dst := v.token0, v.token1
		if !zeroForOne {
			src, dst = v.token1, v.token0
		}
		srcBefore, err := src.BalanceOf(op.ctx, v.address)
		if err != nil {
			return err
		}
		dstBefore, err := dst.BalanceOf(op.ctx, v.address)
		if err != nil {
			return err
		}

		if err := src.Approve(op.ctx, v.address, router.Address(), amountIn); err != nil {
			return fmt.Errorf("failed to approve router: %w", err)
		}
		execErr := router.Execute(op.ctx, v.address, payload)
		resetErr := src.Approve(op.ctx, v.address, router.Address(), sdkmath.ZeroInt())
		if execErr != nil {
			return errors.Join(chain.ErrRouterCallFailed, execErr)
		}
		if resetErr != nil {
			return fmt.Errorf("failed to reset router approval: %w", resetErr)
		}

		srcAfter, err := src.BalanceOf(op.ctx, v.address)
		if err != nil {
			return err
		}
		dstAfter, err := dst.BalanceOf(op.ctx, v.address)
		if err != nil {
			return err
		}
		spent := srcBefore.Sub(srcAfter)
		received := dstAfter.Sub(dstBefore)
		if spent.GT(amountIn) || received.LT(orZero(amountOutMin)) {
			return fmt.Errorf("%w: router spent %s of %s and returned %s, minimum %s",
				ErrInvalidPriceSlippage, spent, amountIn, received, orZero(amountOutMin))
		}

		op.log.Debug().
			Str("router", router.Address().Hex()).
			Str("spent", spent.String()).
			Str("received", received.String()).
			Msg("Router swap verified")
		op.receipt.ZeroForOne = zeroForOne
		op.receipt.Amount0, op.receipt.Amount1 = swapLegs(zeroForOne, spent, received)
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	in, out := swapAmounts(receipt)
	return in, out, nil
}

// swapLegs orders swap amounts as (token0, token1).
func swapLegs(zeroForOne bool, in, out sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	if zeroForOne {
		return in, out
	}
	return out, in
}

func swapAmounts(r *types.OperationReceipt) (sdkmath.Int, sdkmath.Int) {
	if r.ZeroForOne {
		return r.Amount0, r.Amount1
	}
	return r.Amount1, r.Amount0
}

// AddLiquidity opens or increases the position [tickLower, tickUpper).
func (v *Vault) AddLiquidity(ctx context.Context, caller common.Address, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpAddLiquidity, caller, func(op *operation) error {
		if err := v.requireManager(op); err != nil {
			return err
		}
		amount0, amount1, err := v.ledger(op).OpenOrIncrease(op.ctx, tickLower, tickUpper, orZero(liquidity), orZero(amount0Min), orZero(amount1Min), deadline)
		if err != nil {
			return err
		}
		op.receipt.TickLower, op.receipt.TickUpper = tickLower, tickUpper
		op.receipt.Liquidity = orZero(liquidity)
		op.receipt.Amount0, op.receipt.Amount1 = amount0, amount1
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return receipt.Amount0, receipt.Amount1, nil
}

// RemoveLiquidity collects the position's swap fees, charging the performance
// fee, then decreases it by liquidity. The returned amounts are the released
// principal.
func (v *Vault) RemoveLiquidity(ctx context.Context, caller common.Address, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpRemoveLiquidity, caller, func(op *operation) error {
		if err := v.requireManager(op); err != nil {
			return err
		}
		ledger := v.ledger(op)
		if _, ok := ledger.Find(tickLower, tickUpper); ok {
			if _, _, err := v.collectSwapFees(op, ledger, tickLower, tickUpper); err != nil {
				return err
			}
		}
		amount0, amount1, err := ledger.Decrease(op.ctx, tickLower, tickUpper, orZero(liquidity), orZero(amount0Min), orZero(amount1Min), deadline)
		if err != nil {
			return err
		}
		op.receipt.TickLower, op.receipt.TickUpper = tickLower, tickUpper
		op.receipt.Liquidity = orZero(liquidity)
		op.receipt.Amount0, op.receipt.Amount1 = amount0, amount1
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return receipt.Amount0, receipt.Amount1, nil
}

// CollectPositionSwapFees collects the swap fees of every open position and
// sends the performance fee to the treasury. It returns what the vault keeps.
func (v *Vault) CollectPositionSwapFees(ctx context.Context, caller common.Address) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpCollectPositionSwapFees, caller, func(op *operation) error {
		if err := v.requireManager(op); err != nil {
			return err
		}
		ledger := v.ledger(op)
		for _, p := range ledger.All() {
			kept0, kept1, err := v.collectSwapFees(op, ledger, p.TickLower, p.TickUpper)
			if err != nil {
				return err
			}
			op.receipt.Amount0 = op.receipt.Amount0.Add(kept0)
			op.receipt.Amount1 = op.receipt.Amount1.Add(kept1)
		}
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return receipt.Amount0, receipt.Amount1, nil
}

// collectSwapFees collects one position's fees and pays the performance fee
// on them. It returns the amounts left in the vault.
func (v *Vault) collectSwapFees(op *operation, ledger *positions.Ledger, tickLower, tickUpper int32) (sdkmath.Int, sdkmath.Int, error) {
	collected0, collected1, err := ledger.CollectFees(op.ctx, tickLower, tickUpper)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	kept0, err := v.chargePerformanceFee(op, v.token0, collected0)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	kept1, err := v.chargePerformanceFee(op, v.token1, collected1)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	op.log.Debug().
		Int32("tick_lower", tickLower).
		Int32("tick_upper", tickUpper).
		Str("collected0", collected0.String()).
		Str("collected1", collected1.String()).
		Msg("Position swap fees collected")
	return kept0, kept1, nil
}

func (v *Vault) chargePerformanceFee(op *operation, token chain.Token, collected sdkmath.Int) (sdkmath.Int, error) {
	fee, err := fees.PerformanceFee(collected, op.state.FeeConfig.PerformanceFee)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if fee.IsPositive() {
		if err := token.Transfer(op.ctx, v.address, op.state.FeeConfig.Treasury, fee); err != nil {
			return sdkmath.Int{}, fmt.Errorf("failed to pay %s performance fee: %w", token.Symbol(), err)
		}
		op.addFeeTokens("performance", token, fee)
	}
	return collected.Sub(fee), nil
}

package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

func mintShares(s *types.VaultState, to common.Address, shares sdkmath.Int) {
	s.SetBalance(to, s.BalanceOf(to).Add(shares))
	s.TotalShares = s.TotalShares.Add(shares)
}

func burnShares(s *types.VaultState, from common.Address, shares sdkmath.Int) error {
	balance := s.BalanceOf(from)
	if balance.LT(shares) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, from.Hex(), balance, shares)
	}
	s.SetBalance(from, balance.Sub(shares))
	s.TotalShares = s.TotalShares.Sub(shares)
	return nil
}

func moveShares(s *types.VaultState, from, to common.Address, shares sdkmath.Int) error {
	balance := s.BalanceOf(from)
	if balance.LT(shares) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, from.Hex(), balance, shares)
	}
	s.SetBalance(from, balance.Sub(shares))
	s.SetBalance(to, s.BalanceOf(to).Add(shares))
	return nil
}

// accrueManagementFee mints the management fee owed since the last collection
// to the treasury and moves the collection time to now.
func (v *Vault) accrueManagementFee(op *operation) (sdkmath.Int, error) {
	s := op.state
	var elapsed uint64
	if op.now > s.LastManagementFeeCollection {
		elapsed = op.now - s.LastManagementFeeCollection
	}
	feeShares, err := fees.AccrueManagementFee(s.TotalShares, s.FeeConfig.ManagementFee, elapsed, v.secondsPerYear)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if feeShares.IsPositive() {
		mintShares(s, s.FeeConfig.Treasury, feeShares)
		op.addFeeShares("management", feeShares)
		op.receipt.FeeShares = op.receipt.FeeShares.Add(feeShares)
		op.log.Debug().
			Uint64("elapsed", elapsed).
			Str("fee_shares", feeShares.String()).
			Msg("Management fee accrued")
	}
	if op.now > s.LastManagementFeeCollection {
		s.LastManagementFeeCollection = op.now
	}
	return feeShares, nil
}

// Deposit mints shares to caller. The token amounts are priced pro rata against
// the vault's assets, rounded up, and the entry fee is charged on top of them.
// The returned amounts include the entry fee.
func (v *Vault) Deposit(ctx context.Context, caller common.Address, shares, amount0Max, amount1Max sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpDeposit, caller, func(op *operation) error {
		if err := requirePositive("shares", shares); err != nil {
			return err
		}
		if _, err := v.accrueManagementFee(op); err != nil {
			return err
		}
		s := op.state

		amount0, amount1, err := v.priceDeposit(op, shares)
		if err != nil {
			return err
		}
		fee0, err := fees.EntryFee(amount0, s.FeeConfig.EntryFee)
		if err != nil {
			return err
		}
		fee1, err := fees.EntryFee(amount1, s.FeeConfig.EntryFee)
		if err != nil {
			return err
		}
		total0, total1 := amount0.Add(fee0), amount1.Add(fee1)
		if total0.GT(orZero(amount0Max)) || total1.GT(orZero(amount1Max)) {
			return fmt.Errorf("%w: deposit needs (%s, %s), maximum (%s, %s)",
				ErrInvalidPriceSlippage, total0, total1, orZero(amount0Max), orZero(amount1Max))
		}

		mintShares(s, caller, shares)

		if err := v.pull(op, v.token0, amount0, fee0); err != nil {
			return err
		}
		if err := v.pull(op, v.token1, amount1, fee1); err != nil {
			return err
		}

		op.receipt.Shares = shares
		op.receipt.Amount0 = total0
		op.receipt.Amount1 = total1
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return receipt.Amount0, receipt.Amount1, nil
}

// priceDeposit returns the token amounts backing shares, before the entry fee.
// An empty share supply prices shares at 10^decimalOffset per token0 unit; any
// assets already held then belong to the first depositor.
func (v *Vault) priceDeposit(op *operation, shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	s := op.state
	if s.TotalShares.IsZero() {
		unit := sdkmath.NewIntWithDecimal(1, int(v.decimalOffset))
		amount0, err := fixedpoint.MulDivInt(shares, sdkmath.OneInt(), unit, true)
		if err != nil {
			return sdkmath.Int{}, sdkmath.Int{}, err
		}
		return amount0, sdkmath.ZeroInt(), nil
	}

	assets, _, err := v.valuation.Snapshot(op.ctx, s.Positions, s.FeeConfig.PerformanceFee)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	amount0, err := fixedpoint.MulDivInt(assets.Amount0(), shares, s.TotalShares, true)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	amount1, err := fixedpoint.MulDivInt(assets.Amount1(), shares, s.TotalShares, true)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return amount0, amount1, nil
}

// pull moves amount from the caller into the vault and fee to the treasury.
func (v *Vault) pull(op *operation, token chain.Token, amount, fee sdkmath.Int) error {
	if amount.IsPositive() {
		if err := token.TransferFrom(op.ctx, v.address, op.caller, v.address, amount); err != nil {
			return fmt.Errorf("failed to pull %s: %w", token.Symbol(), err)
		}
	}
	if fee.IsPositive() {
		if err := token.TransferFrom(op.ctx, v.address, op.caller, op.state.FeeConfig.Treasury, fee); err != nil {
			return fmt.Errorf("failed to pull %s entry fee: %w", token.Symbol(), err)
		}
		op.addFeeTokens("entry", token, fee)
	}
	return nil
}

// Withdraw burns shares from caller and pays out the pro-rata share of the
// assets, rounded down. The exit fee is taken in shares and moved to the
// treasury; the treasury itself pays no exit fee. Assets are paid from idle
// balances only.
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, shares, amount0Min, amount1Min sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpWithdraw, caller, func(op *operation) error {
		if err := requirePositive("shares", shares); err != nil {
			return err
		}
		if _, err := v.accrueManagementFee(op); err != nil {
			return err
		}
		s := op.state

		if balance := s.BalanceOf(caller); balance.LT(shares) {
			return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientBalance, caller.Hex(), balance, shares)
		}

		exitFee := sdkmath.ZeroInt()
		if caller != s.FeeConfig.Treasury {
			var err error
			if exitFee, err = fees.ExitFeeShares(shares, s.FeeConfig.ExitFee); err != nil {
				return err
			}
		}
		redeemed := shares.Sub(exitFee)

		assets, _, err := v.valuation.Snapshot(op.ctx, s.Positions, s.FeeConfig.PerformanceFee)
		if err != nil {
			return err
		}
		amount0, err := fixedpoint.MulDivInt(assets.Amount0(), redeemed, s.TotalShares, false)
		if err != nil {
			return err
		}
		amount1, err := fixedpoint.MulDivInt(assets.Amount1(), redeemed, s.TotalShares, false)
		if err != nil {
			return err
		}
		if amount0.LT(orZero(amount0Min)) || amount1.LT(orZero(amount1Min)) {
			return fmt.Errorf("%w: withdrawal yields (%s, %s), minimum (%s, %s)",
				ErrInvalidPriceSlippage, amount0, amount1, orZero(amount0Min), orZero(amount1Min))
		}

		if exitFee.IsPositive() {
			if err := moveShares(s, caller, s.FeeConfig.Treasury, exitFee); err != nil {
				return err
			}
			op.addFeeShares("exit", exitFee)
			op.receipt.FeeShares = op.receipt.FeeShares.Add(exitFee)
		}
		if err := burnShares(s, caller, redeemed); err != nil {
			return err
		}

		if amount0.IsPositive() {
			if err := v.token0.Transfer(op.ctx, v.address, caller, amount0); err != nil {
				return fmt.Errorf("failed to pay %s: %w", v.token0.Symbol(), err)
			}
		}
		if amount1.IsPositive() {
			if err := v.token1.Transfer(op.ctx, v.address, caller, amount1); err != nil {
				return fmt.Errorf("failed to pay %s: %w", v.token1.Symbol(), err)
			}
		}

		op.receipt.Shares = shares
		op.receipt.Amount0 = amount0
		op.receipt.Amount1 = amount1
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return receipt.Amount0, receipt.Amount1, nil
}

// Transfer moves shares from caller to to.
func (v *Vault) Transfer(ctx context.Context, caller, to common.Address, shares sdkmath.Int) error {
	_, err := v.execute(ctx, types.OpTransfer, caller, func(op *operation) error {
		if to == (common.Address{}) {
			return fmt.Errorf("%w: recipient", ErrZeroAddress)
		}
		if err := requirePositive("shares", shares); err != nil {
			return err
		}
		if err := moveShares(op.state, caller, to, shares); err != nil {
			return err
		}
		op.receipt.Shares = shares
		return nil
	})
	return err
}

// CollectManagementFee accrues the management fee up to now. Anyone may call it.
func (v *Vault) CollectManagementFee(ctx context.Context, caller common.Address) (sdkmath.Int, error) {
	receipt, err := v.execute(ctx, types.OpCollectManagementFee, caller, func(op *operation) error {
		_, err := v.accrueManagementFee(op)
		return err
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return receipt.FeeShares, nil
}

package sim

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Faucet hands out devnet tokens and pre-approves a spender for them.
type Faucet struct {
	devnet  *Devnet
	spender common.Address
}

// NewFaucet returns a faucet whose grants are approved for spender.
func NewFaucet(devnet *Devnet, spender common.Address) *Faucet {
	return &Faucet{devnet: devnet, spender: spender}
}

// Fund mints both tokens to account and raises its allowance for the spender
// by the same amounts.
func (f *Faucet) Fund(ctx context.Context, account common.Address, amount0, amount1 sdkmath.Int) error {
	if amount0.IsNegative() || amount1.IsNegative() {
		return ErrNegativeAmount
	}
	for _, grant := range []struct {
		token  *Token
		amount sdkmath.Int
	}{{f.devnet.Token0, amount0}, {f.devnet.Token1, amount1}} {
		if grant.amount.IsZero() {
			continue
		}
		grant.token.Mint(account, grant.amount)
		current, err := grant.token.Allowance(ctx, account, f.spender)
		if err != nil {
			return err
		}
		if err := grant.token.Approve(ctx, account, f.spender, current.Add(grant.amount)); err != nil {
			return fmt.Errorf("failed to approve %s: %w", grant.token.Symbol(), err)
		}
	}
	simLogger.Debug().
		Str("account", account.Hex()).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Msg("Faucet funded account")
	return nil
}

// AdvanceTime moves the block time forward and returns the new block time.
func (f *Faucet) AdvanceTime(seconds uint64) uint64 {
	f.devnet.Chain.AdvanceTime(seconds)
	return f.devnet.Chain.BlockTime()
}

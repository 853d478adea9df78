package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/types"
)

// Service defines the interface for interacting with a vault.
// Every mutating method takes the caller explicitly and either applies in full
// or leaves the vault and its collaborators untouched.
type Service interface {
	// Deposit mints shares to caller and pulls the priced token amounts plus entry fee.
	Deposit(ctx context.Context, caller common.Address, shares, amount0Max, amount1Max sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)

	// Withdraw burns shares from caller and pays out its pro-rata share of the assets.
	Withdraw(ctx context.Context, caller common.Address, shares, amount0Min, amount1Min sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)

	// Transfer moves shares between holders.
	Transfer(ctx context.Context, caller, to common.Address, shares sdkmath.Int) error

	SetFeeConfig(ctx context.Context, caller common.Address, cfg types.FeeConfig) error
	AssignManager(ctx context.Context, caller, manager common.Address) error

	// CollectManagementFee accrues the management fee up to the current block time.
	CollectManagementFee(ctx context.Context, caller common.Address) (sdkmath.Int, error)

	// Manager operations.
	InPoolSwap(ctx context.Context, caller common.Address, zeroForOne bool, amountIn, amountOutMin sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)
	ExecuteSwap(ctx context.Context, caller common.Address, zeroForOne bool, amountIn, amountOutMin sdkmath.Int, router chain.Router, payload []byte) (sdkmath.Int, sdkmath.Int, error)
	AddLiquidity(ctx context.Context, caller common.Address, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error)
	RemoveLiquidity(ctx context.Context, caller common.Address, tickLower, tickUpper int32, liquidity, amount0Min, amount1Min sdkmath.Int, deadline uint64) (sdkmath.Int, sdkmath.Int, error)
	CollectPositionSwapFees(ctx context.Context, caller common.Address) (sdkmath.Int, sdkmath.Int, error)

	// Queries.
	Address() common.Address
	Owner() common.Address
	Manager() common.Address
	FeeConfig() types.FeeConfig
	Decimals() uint8
	Tokens() (types.Token, types.Token)
	TotalSupply() sdkmath.Int
	BalanceOf(holder common.Address) sdkmath.Int
	Holders() []common.Address
	LastManagementFeeCollectionTime() uint64
	AllPositions() []types.Position
	PositionInfo(ctx context.Context, index int) (types.PositionInfo, error)
	Assets(ctx context.Context) (types.AssetSnapshot, error)
	UnderlyingAssets(ctx context.Context) (sdkmath.Int, sdkmath.Int, error)
	EstimatedValueInToken0(ctx context.Context) (sdkmath.Int, error)
	EstimatedValueInToken1(ctx context.Context) (sdkmath.Int, error)
	PoolInfo(ctx context.Context) (types.PoolInfo, error)
	LiquidityForAmounts(ctx context.Context, tickLower, tickUpper int32, amount0, amount1 sdkmath.Int) (sdkmath.Int, error)
	AmountsForLiquidity(ctx context.Context, tickLower, tickUpper int32, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)
}

var _ Service = (*Vault)(nil)

/*

Package chain defines the collaborators the vault calls into: the two ERC20 tokens,
the concentrated-liquidity pool, swap routers and the execution environment that
provides block time and all-or-nothing rollback.

Callers are explicit: every state-changing method takes the address on whose behalf
it acts.

*/

package chain

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/teahouse-finance/tvault/internal/types"
)

var (
	ErrInsufficientBalance   = errors.New("ERC20: insufficient balance")
	ErrInsufficientAllowance = errors.New("ERC20: insufficient allowance")
	ErrPoolLocked            = errors.New("pool: insufficient liquidity for swap")
	ErrUnknownPosition       = errors.New("pool: unknown position")
	ErrRouterCallFailed      = errors.New("router call failed")
)

// Token is the fungible-token collaborator.
type Token interface {
	Address() common.Address
	Symbol() string
	Decimals() uint8
	BalanceOf(ctx context.Context, account common.Address) (sdkmath.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (sdkmath.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount sdkmath.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount sdkmath.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount sdkmath.Int) error
}

// Pool is the concentrated-liquidity AMM collaborator. Token movements are pulled
// from or pushed to the owner/recipient inside each call.
type Pool interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	Fee() uint32
	TickSpacing() int32
	Slot0(ctx context.Context) (types.Slot0, error)

	// Mint adds liquidity to owner's range and pulls the rounded-up amounts from owner.
	Mint(ctx context.Context, owner common.Address, tickLower, tickUpper int32, liquidity sdkmath.Int) (amount0, amount1 sdkmath.Int, err error)
	// Burn removes liquidity and credits the rounded-down amounts as owed to owner.
	Burn(ctx context.Context, owner common.Address, tickLower, tickUpper int32, liquidity sdkmath.Int) (amount0, amount1 sdkmath.Int, err error)
	// Collect transfers up to the requested owed amounts to owner.
	Collect(ctx context.Context, owner common.Address, tickLower, tickUpper int32, amount0Requested, amount1Requested sdkmath.Int) (amount0, amount1 sdkmath.Int, err error)
	// PositionFees returns the swap fees accrued to owner's range and not yet collected.
	PositionFees(ctx context.Context, owner common.Address, tickLower, tickUpper int32) (fee0, fee1 sdkmath.Int, err error)
	// Swap sells exactly amountIn of the input token from recipient and pays the output to recipient.
	Swap(ctx context.Context, recipient common.Address, zeroForOne bool, amountIn sdkmath.Int, sqrtPriceLimit *uint256.Int) (amountInUsed, amountOut sdkmath.Int, err error)
}

// Router executes opaque swap payloads on behalf of caller. Its return value
// is not trusted; callers verify balance deltas.
type Router interface {
	Address() common.Address
	Execute(ctx context.Context, caller common.Address, payload []byte) error
}

// Env is the execution environment.
type Env interface {
	// BlockTime is the current timestamp in unix seconds.
	BlockTime() uint64
	// Snapshot records collaborator state and returns an id for RevertToSnapshot.
	Snapshot() int
	// RevertToSnapshot restores collaborator state recorded by Snapshot.
	RevertToSnapshot(id int)
	// ReleaseSnapshot drops a snapshot whose call completed.
	ReleaseSnapshot(id int)
}

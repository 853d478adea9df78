package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// OperationType names a state-mutating vault operation.
type OperationType string

const (
	OpDeposit                 OperationType = "DEPOSIT"
	OpWithdraw                OperationType = "WITHDRAW"
	OpTransfer                OperationType = "TRANSFER"
	OpSetFeeConfig            OperationType = "SET_FEE_CONFIG"
	OpAssignManager           OperationType = "ASSIGN_MANAGER"
	OpInPoolSwap              OperationType = "IN_POOL_SWAP"
	OpExecuteSwap             OperationType = "EXECUTE_SWAP"
	OpAddLiquidity            OperationType = "ADD_LIQUIDITY"
	OpRemoveLiquidity         OperationType = "REMOVE_LIQUIDITY"
	OpCollectManagementFee    OperationType = "COLLECT_MANAGEMENT_FEE"
	OpCollectPositionSwapFees OperationType = "COLLECT_POSITION_SWAP_FEES"
)

// OperationReceipt records the outcome of one committed operation.
type OperationReceipt struct {
	ID         string         `json:"id"`
	Type       OperationType  `json:"type"`
	Caller     common.Address `json:"caller"`
	BlockTime  uint64         `json:"block_time"`
	Timestamp  time.Time      `json:"timestamp"`
	Shares     sdkmath.Int    `json:"shares,omitempty"`
	Amount0    sdkmath.Int    `json:"amount0,omitempty"`
	Amount1    sdkmath.Int    `json:"amount1,omitempty"`
	FeeShares  sdkmath.Int    `json:"fee_shares,omitempty"` // Management and exit fee shares minted or moved to the treasury.
	TickLower  int32          `json:"tick_lower,omitempty"`
	TickUpper  int32          `json:"tick_upper,omitempty"`
	Liquidity  sdkmath.Int    `json:"liquidity,omitempty"`
	ZeroForOne bool           `json:"zero_for_one,omitempty"`
	// StateDigest is the blake3 digest of the state this operation committed.
	StateDigest string `json:"state_digest,omitempty"`
}

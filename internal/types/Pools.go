/*

This file contains the types describing the AMM pool the vault deploys into.

*/

package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Slot0 is the pool's current price state.
type Slot0 struct {
	SqrtPriceX96 *uint256.Int `json:"sqrt_price_x96"`
	Tick         int32        `json:"tick"`
}

// PoolInfo summarizes the pool and its tokens.
type PoolInfo struct {
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Decimals0    uint8          `json:"decimals0"`
	Decimals1    uint8          `json:"decimals1"`
	Fee          uint32         `json:"fee"` // Swap fee in parts per million.
	TickSpacing  int32          `json:"tick_spacing"`
	SqrtPriceX96 *uint256.Int   `json:"sqrt_price_x96"`
	Tick         int32          `json:"tick"`
}

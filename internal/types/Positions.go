/*

This file contains the types for the vault's concentrated-liquidity positions.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Position is an open tick range owned by the vault.
type Position struct {
	TickLower int32       `json:"tick_lower"`
	TickUpper int32       `json:"tick_upper"`
	Liquidity sdkmath.Int `json:"liquidity"` // Pool-native liquidity units, always positive while held.
}

// SameRange reports whether p covers exactly [tickLower, tickUpper).
func (p Position) SameRange(tickLower, tickUpper int32) bool {
	return p.TickLower == tickLower && p.TickUpper == tickUpper
}

func (p Position) String() string {
	return fmt.Sprintf("[%d, %d) L=%s", p.TickLower, p.TickUpper, p.Liquidity)
}

// PositionInfo is the token breakdown of one position at the current price.
type PositionInfo struct {
	Position
	Amount0 sdkmath.Int `json:"amount0"`
	Amount1 sdkmath.Int `json:"amount1"`
	Fee0    sdkmath.Int `json:"fee0"` // Uncollected swap fees, net of the performance fee.
	Fee1    sdkmath.Int `json:"fee1"`
}

/*

This file contains the fee configuration of the vault. All fee values are expressed
in parts per FeeMultiplier (1_000_000 = 100%).

*/

package types

import "github.com/ethereum/go-ethereum/common"

// FeeConfig holds the treasury and the four fee rates charged by the vault.
type FeeConfig struct {
	Treasury       common.Address `json:"treasury"`
	EntryFee       uint32         `json:"entry_fee"`       // Charged on top of deposited amounts, in tokens.
	ExitFee        uint32         `json:"exit_fee"`        // Charged on redeemed shares, paid in shares to the treasury.
	PerformanceFee uint32         `json:"performance_fee"` // Charged on realized swap fees collected from positions.
	ManagementFee  uint32         `json:"management_fee"`  // Annualized dilution minted to the treasury.
}

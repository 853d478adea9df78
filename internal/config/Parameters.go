/*

This file contains the default parameters for a tvault instance.

The fee rates are parts per million of fees.FeeMultiplier. The pool defaults
describe the devnet pool the binary bootstraps when no other values are set.

*/

package config

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/types"
)

const (
	DefaultLogLevel   = "info"
	DefaultDBDriver   = "sqlite"
	DefaultSQLitePath = "tvault.db"
	DefaultWebHost    = "0.0.0.0"
	DefaultWebPort    = "8080"

	// DefaultKeeperSchedule runs a keeper cycle every ten minutes.
	DefaultKeeperSchedule = "@every 10m"
	// KeeperDisabled as KEEPER_SCHEDULE turns the keeper off.
	KeeperDisabled = "off"

	// DefaultDecimalOffset gives shares the same decimals as token0.
	DefaultDecimalOffset uint8 = 0
)

// Devnet role accounts.
var (
	DefaultVaultAddress    = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	DefaultOwnerAddress    = common.HexToAddress("0x00000000000000000000000000000000000f0001")
	DefaultManagerAddress  = common.HexToAddress("0x00000000000000000000000000000000000f0002")
	DefaultTreasuryAddress = common.HexToAddress("0x00000000000000000000000000000000000f0003")
)

// DefaultFeeConfig is the fee schedule a fresh vault starts with.
var DefaultFeeConfig = types.FeeConfig{
	Treasury:       DefaultTreasuryAddress,
	EntryFee:       1_000,   // 0.1% of deposited tokens.
	ExitFee:        2_000,   // 0.2% of withdrawn shares.
	PerformanceFee: 100_000, // 10% of collected swap fees.
	ManagementFee:  10_000,  // 1% of supply per year.
}

// PoolDefaults sizes the simulated pool.
type PoolDefaults struct {
	Decimals0   uint8
	Decimals1   uint8
	Fee         uint32 // Swap fee in parts per million.
	TickSpacing int32
	InitialTick int32
}

// DefaultPool is a 0.3% pool at price 1 between two 18-decimal tokens.
var DefaultPool = PoolDefaults{
	Decimals0:   18,
	Decimals1:   18,
	Fee:         3_000,
	TickSpacing: 60,
	InitialTick: 0,
}

// FeeConfig assembles the loaded fee settings.
func FeeConfig() types.FeeConfig {
	return types.FeeConfig{
		Treasury:       TreasuryAddress,
		EntryFee:       EntryFee,
		ExitFee:        ExitFee,
		PerformanceFee: PerformanceFee,
		ManagementFee:  ManagementFee,
	}
}

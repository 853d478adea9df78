package sim

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/fixedpoint"
)

var (
	Token0Address = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	Token1Address = common.HexToAddress("0x00000000000000000000000000000000000a0002")
	PoolAddress   = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	RouterAddress = common.HexToAddress("0x00000000000000000000000000000000000c0001")
)

// DevnetConfig sizes a two-token, one-pool environment.
type DevnetConfig struct {
	BlockTime     uint64
	Token0Symbol  string
	Token1Symbol  string
	Decimals0     uint8
	Decimals1     uint8
	PoolFee       uint32
	TickSpacing   int32
	InitialTick   int32
	BaseLiquidity sdkmath.Int
	Reserve0      sdkmath.Int
	Reserve1      sdkmath.Int
}

// DefaultDevnetConfig is an 18/18-decimals pool at price 1 with deep outside liquidity.
func DefaultDevnetConfig() DevnetConfig {
	return DevnetConfig{
		BlockTime:     1_700_000_000,
		Token0Symbol:  "TKA",
		Token1Symbol:  "TKB",
		Decimals0:     18,
		Decimals1:     18,
		PoolFee:       3000,
		TickSpacing:   60,
		InitialTick:   0,
		BaseLiquidity: sdkmath.NewIntWithDecimal(1, 24),
		Reserve0:      sdkmath.NewIntWithDecimal(1, 27),
		Reserve1:      sdkmath.NewIntWithDecimal(1, 27),
	}
}

// Devnet bundles the simulated collaborators of one vault.
type Devnet struct {
	Chain  *Chain
	Token0 *Token
	Token1 *Token
	Pool   *Pool
	Router *Router
}

// NewDevnet builds the environment described by cfg.
func NewDevnet(cfg DevnetConfig) (*Devnet, error) {
	c := NewChain(cfg.BlockTime)
	token0 := NewToken(c, Token0Address, cfg.Token0Symbol, cfg.Decimals0)
	token1 := NewToken(c, Token1Address, cfg.Token1Symbol, cfg.Decimals1)

	sqrtPrice, err := fixedpoint.SqrtRatioAtTick(cfg.InitialTick)
	if err != nil {
		return nil, err
	}
	base, err := fixedpoint.FromInt(cfg.BaseLiquidity)
	if err != nil {
		return nil, err
	}
	pool, err := NewPool(c, PoolConfig{
		Address:       PoolAddress,
		Token0:        token0,
		Token1:        token1,
		Fee:           cfg.PoolFee,
		TickSpacing:   cfg.TickSpacing,
		SqrtPrice:     sqrtPrice,
		BaseLiquidity: base,
		Reserve0:      cfg.Reserve0,
		Reserve1:      cfg.Reserve1,
	})
	if err != nil {
		return nil, err
	}

	simLogger.Info().
		Str("token0", cfg.Token0Symbol).
		Str("token1", cfg.Token1Symbol).
		Int32("tick", pool.tick).
		Uint32("fee", cfg.PoolFee).
		Msg("Simulated pool created")

	return &Devnet{
		Chain:  c,
		Token0: token0,
		Token1: token1,
		Pool:   pool,
		Router: NewRouter(RouterAddress, pool),
	}, nil
}

package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/types"
)

// Vault is the slice of the vault the keeper drives.
type Vault interface {
	Manager() common.Address
	AllPositions() []types.Position
	CollectManagementFee(ctx context.Context, caller common.Address) (sdkmath.Int, error)
	CollectPositionSwapFees(ctx context.Context, caller common.Address) (sdkmath.Int, sdkmath.Int, error)
}

// Keeper periodically accrues the management fee and, when it holds the
// manager role, collects swap fees from open positions.
type Keeper struct {
	logger zerolog.Logger
	vault  Vault
	caller common.Address
	lock   sync.Locker

	cycleCount atomic.Int64
}

// Config holds the configuration for creating a new Keeper
type Config struct {
	Vault  Vault
	Caller common.Address
	// Lock, when set, is held for the whole cycle.
	Lock sync.Locker
}

// CycleResult is what one keeper cycle collected.
type CycleResult struct {
	ID                string
	ManagementFee     sdkmath.Int
	SwapFees0         sdkmath.Int
	SwapFees1         sdkmath.Int
	SwapFeesCollected bool
}

// New creates a new Keeper with dependency injection
func New(cfg Config) (*Keeper, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}

	k := &Keeper{
		logger: logger.GetForComponent("keeper"),
		vault:  cfg.Vault,
		caller: cfg.Caller,
		lock:   cfg.Lock,
	}

	k.logger.Info().
		Str("caller", k.caller.Hex()).
		Msg("Keeper created")

	return k, nil
}

func validateConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault cannot be nil")
	}
	if cfg.Caller == (common.Address{}) {
		return errors.New("caller cannot be zero")
	}
	return nil
}

// RunLoop runs a cycle immediately and then on every activation of schedule
// until ctx is done. schedule is a standard cron expression or a descriptor
// such as "@every 10m". An activation that fires while a cycle is still
// running is skipped.
func (k *Keeper) RunLoop(ctx context.Context, schedule string) error {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(schedule, func() { k.runLogged(ctx) }); err != nil {
		return fmt.Errorf("invalid keeper schedule %q: %w", schedule, err)
	}

	k.logger.Info().
		Str("schedule", schedule).
		Msg("Starting keeper loop")

	k.runLogged(ctx)
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()
	k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
	return nil
}

func (k *Keeper) runLogged(ctx context.Context) {
	if _, err := k.RunCycle(ctx); err != nil {
		k.logger.Error().Err(err).Int64("cycle", k.cycleCount.Load()).Msg("Keeper cycle failed")
	}
}

// RunCycle accrues the management fee, then collects swap fees if the keeper
// is the manager and positions are open. A failed swap fee collection does not
// undo the management fee accrual.
func (k *Keeper) RunCycle(ctx context.Context) (CycleResult, error) {
	if k.lock != nil {
		k.lock.Lock()
		defer k.lock.Unlock()
	}
	cycle := k.cycleCount.Add(1)
	start := time.Now()
	result := CycleResult{
		ID:            uuid.New().String(),
		ManagementFee: sdkmath.ZeroInt(),
		SwapFees0:     sdkmath.ZeroInt(),
		SwapFees1:     sdkmath.ZeroInt(),
	}
	cycleLogger := k.logger.With().
		Str("cycle_id", result.ID).
		Int64("cycle", cycle).
		Logger()
	cycleLogger.Debug().Msg("Initiating keeper cycle")

	minted, err := k.vault.CollectManagementFee(ctx, k.caller)
	if err != nil {
		return result, fmt.Errorf("failed to collect management fee: %w", err)
	}
	result.ManagementFee = minted

	if k.vault.Manager() == k.caller && len(k.vault.AllPositions()) > 0 {
		fee0, fee1, err := k.vault.CollectPositionSwapFees(ctx, k.caller)
		if err != nil {
			return result, fmt.Errorf("failed to collect position swap fees: %w", err)
		}
		result.SwapFees0, result.SwapFees1 = fee0, fee1
		result.SwapFeesCollected = true
	}

	cycleLogger.Info().
		Str("management_fee_shares", result.ManagementFee.String()).
		Bool("swap_fees_collected", result.SwapFeesCollected).
		Str("swap_fees0", result.SwapFees0.String()).
		Str("swap_fees1", result.SwapFees1.String()).
		Dur("duration", time.Since(start)).
		Msg("Keeper cycle completed")

	return result, nil
}

// Cycles returns the number of cycles started.
func (k *Keeper) Cycles() int64 {
	return k.cycleCount.Load()
}

/*

Package vault is the vault's accounting state machine. It prices deposits and
withdrawals against the valuation engine, charges the four fees, restricts swaps
and liquidity changes to the manager and commits every successful operation to
the store as one unit.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/metrics"
	"github.com/teahouse-finance/tvault/internal/positions"
	"github.com/teahouse-finance/tvault/internal/state"
	"github.com/teahouse-finance/tvault/internal/types"
	"github.com/teahouse-finance/tvault/internal/utils"
	"github.com/teahouse-finance/tvault/internal/valuation"
)

var vaultLogger = logger.GetForComponent("vault")

// Store durably commits vault state. Implemented by state.Store and state.MemoryStore.
type Store interface {
	Load(ctx context.Context) (*types.VaultState, error)
	Commit(ctx context.Context, prev, next *types.VaultState, receipt *types.OperationReceipt) error
}

// ReceiptPublisher is told about every committed operation. PublishReceipt is
// called with the vault lock held and must not block.
type ReceiptPublisher interface {
	PublishReceipt(receipt types.OperationReceipt)
}

// Config wires a vault to its collaborators. Owner, Manager and FeeConfig are
// only used when the store holds no state yet.
type Config struct {
	Address       common.Address
	Owner         common.Address
	Manager       common.Address
	FeeConfig     types.FeeConfig
	DecimalOffset uint8

	Token0 chain.Token
	Token1 chain.Token
	Pool   chain.Pool
	Env    chain.Env
	Store  Store

	// Metrics and Publisher are optional.
	Metrics   *metrics.Collector
	Publisher ReceiptPublisher
	// SecondsPerYear overrides the management fee period, mainly for tests.
	SecondsPerYear uint64
}

// Vault is a two-token vault deployed into one concentrated-liquidity pool.
type Vault struct {
	mu sync.Mutex

	address        common.Address
	token0         chain.Token
	token1         chain.Token
	pool           chain.Pool
	env            chain.Env
	store          Store
	metrics        *metrics.Collector
	publisher      ReceiptPublisher
	valuation      *valuation.Engine
	decimalOffset  uint8
	secondsPerYear uint64

	state *types.VaultState
}

// New validates cfg and restores the vault from the store, creating and
// committing a fresh state if the store is empty.
func New(ctx context.Context, cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	v := &Vault{
		address:        cfg.Address,
		token0:         cfg.Token0,
		token1:         cfg.Token1,
		pool:           cfg.Pool,
		env:            cfg.Env,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		publisher:      cfg.Publisher,
		valuation:      valuation.NewEngine(cfg.Pool, cfg.Token0, cfg.Token1, cfg.Address),
		decimalOffset:  cfg.DecimalOffset,
		secondsPerYear: cfg.SecondsPerYear,
	}
	if v.secondsPerYear == 0 {
		v.secondsPerYear = fees.SecondsInAYear
	}

	loaded, err := cfg.Store.Load(ctx)
	switch {
	case err == nil:
		v.state = loaded
		vaultLogger.Info().
			Str("vault", v.address.Hex()).
			Str("total_shares", loaded.TotalShares.String()).
			Int("positions", len(loaded.Positions)).
			Msg("Vault restored from store")
	case errors.Is(err, state.ErrNoState):
		fresh := types.NewVaultState(cfg.Owner, cfg.Manager, cfg.FeeConfig, cfg.Env.BlockTime())
		if err := cfg.Store.Commit(ctx, nil, fresh, nil); err != nil {
			return nil, errors.Join(ErrStoreFailed, err)
		}
		v.state = fresh
		vaultLogger.Info().
			Str("vault", v.address.Hex()).
			Str("owner", cfg.Owner.Hex()).
			Str("manager", cfg.Manager.Hex()).
			Msg("Vault initialized")
	default:
		return nil, fmt.Errorf("failed to load vault state: %w", err)
	}

	v.refreshMetrics(ctx)
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Address == (common.Address{}) {
		return errors.Join(ErrInvalidConfig, errors.New("vault address cannot be zero"))
	}
	if cfg.Owner == (common.Address{}) {
		return errors.Join(ErrInvalidConfig, errors.New("owner cannot be zero"))
	}
	if cfg.Token0 == nil || cfg.Token1 == nil {
		return errors.Join(ErrInvalidConfig, errors.New("both tokens are required"))
	}
	if cfg.Pool == nil {
		return errors.Join(ErrInvalidConfig, errors.New("pool is required"))
	}
	if cfg.Env == nil {
		return errors.Join(ErrInvalidConfig, errors.New("execution environment is required"))
	}
	if cfg.Store == nil {
		return errors.Join(ErrInvalidConfig, errors.New("store is required"))
	}
	if cfg.Pool.Token0() != cfg.Token0.Address() || cfg.Pool.Token1() != cfg.Token1.Address() {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("pool trades %s/%s, vault holds %s/%s",
			cfg.Pool.Token0().Hex(), cfg.Pool.Token1().Hex(), cfg.Token0.Address().Hex(), cfg.Token1.Address().Hex()))
	}
	if int(cfg.Token0.Decimals())+int(cfg.DecimalOffset) > utils.MaxPrecision {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("decimal offset %d too large for %d token decimals", cfg.DecimalOffset, cfg.Token0.Decimals()))
	}
	if err := fees.Validate(cfg.FeeConfig); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

// operation is the working context of one mutating call.
type operation struct {
	ctx     context.Context
	caller  common.Address
	now     uint64
	state   *types.VaultState
	receipt *types.OperationReceipt
	log     zerolog.Logger

	feeShares map[string]sdkmath.Int
	feeTokens []tokenFee
}

type tokenFee struct {
	kind   string
	token  chain.Token
	amount sdkmath.Int
}

func (op *operation) addFeeShares(kind string, shares sdkmath.Int) {
	if prev, ok := op.feeShares[kind]; ok {
		shares = prev.Add(shares)
	}
	op.feeShares[kind] = shares
}

func (op *operation) addFeeTokens(kind string, token chain.Token, amount sdkmath.Int) {
	op.feeTokens = append(op.feeTokens, tokenFee{kind: kind, token: token, amount: amount})
}

// execute runs fn against a clone of the current state. On success the clone
// is committed to the store and replaces the current state; on any failure the
// environment is reverted and the current state is left as it was.
func (v *Vault) execute(ctx context.Context, kind types.OperationType, caller common.Address, fn func(op *operation) error) (*types.OperationReceipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	timer := metrics.NewTimer()
	now := v.env.BlockTime()
	id := uuid.NewString()
	op := &operation{
		ctx:    ctx,
		caller: caller,
		now:    now,
		state:  v.state.Clone(),
		receipt: &types.OperationReceipt{
			ID:        id,
			Type:      kind,
			Caller:    caller,
			BlockTime: now,
			Timestamp: time.Now().UTC(),
			Shares:    sdkmath.ZeroInt(),
			Amount0:   sdkmath.ZeroInt(),
			Amount1:   sdkmath.ZeroInt(),
			FeeShares: sdkmath.ZeroInt(),
			Liquidity: sdkmath.ZeroInt(),
		},
		log: vaultLogger.With().
			Str("op_id", id).
			Str("operation", string(kind)).
			Str("caller", caller.Hex()).
			Logger(),
		feeShares: make(map[string]sdkmath.Int),
	}

	snapshot := v.env.Snapshot()
	err := fn(op)
	if err == nil {
		op.receipt.StateDigest, err = state.Digest(op.state)
	}
	if err == nil {
		if commitErr := v.store.Commit(ctx, v.state, op.state, op.receipt); commitErr != nil {
			err = errors.Join(ErrStoreFailed, commitErr)
		}
	}
	if err != nil {
		v.env.RevertToSnapshot(snapshot)
		v.metrics.RecordOperation(string(kind), err, timer.ElapsedMs())
		if IsRejection(err) {
			op.log.Warn().Err(err).Msg("Operation rejected")
		} else {
			op.log.Error().Err(err).Msg("Operation failed")
		}
		return nil, err
	}

	v.env.ReleaseSnapshot(snapshot)
	v.state = op.state
	v.metrics.RecordOperation(string(kind), nil, timer.ElapsedMs())
	v.recordFees(op)
	v.refreshMetrics(ctx)
	if v.publisher != nil {
		v.publisher.PublishReceipt(*op.receipt)
	}

	op.log.Info().
		Str("shares", op.receipt.Shares.String()).
		Str("amount0", op.receipt.Amount0.String()).
		Str("amount1", op.receipt.Amount1.String()).
		Str("fee_shares", op.receipt.FeeShares.String()).
		Float64("latency_ms", timer.ElapsedMs()).
		Msg("Operation committed")
	return op.receipt, nil
}

func (v *Vault) recordFees(op *operation) {
	if v.metrics == nil {
		return
	}
	decimals := int(v.decimalsLocked())
	for kind, shares := range op.feeShares {
		v.metrics.RecordFeeShares(kind, shares, decimals)
	}
	for _, fee := range op.feeTokens {
		v.metrics.RecordFeeTokens(fee.kind, fee.token.Symbol(), fee.amount, int(fee.token.Decimals()))
	}
}

// refreshMetrics must be called with v.mu held or before the vault is shared.
func (v *Vault) refreshMetrics(ctx context.Context) {
	if v.metrics == nil {
		return
	}
	v.metrics.UpdateVaultMetrics(v.state.TotalShares, int(v.decimalsLocked()), len(v.state.Positions), v.env.BlockTime())
	snapshot, _, err := v.valuation.Snapshot(ctx, v.state.Positions, v.state.FeeConfig.PerformanceFee)
	if err != nil {
		vaultLogger.Debug().Err(err).Msg("Skipping asset gauges")
		return
	}
	v.metrics.RecordUnderlying(v.token0.Symbol(), snapshot.Amount0(), int(v.token0.Decimals()))
	v.metrics.RecordUnderlying(v.token1.Symbol(), snapshot.Amount1(), int(v.token1.Decimals()))
}

func (v *Vault) ledger(op *operation) *positions.Ledger {
	return positions.NewLedger(v.pool, v.env, v.address, &op.state.Positions)
}

func (v *Vault) requireOwner(op *operation) error {
	if op.caller != op.state.Owner {
		return fmt.Errorf("%w: %s", ErrCallerIsNotOwner, op.caller.Hex())
	}
	return nil
}

func (v *Vault) requireManager(op *operation) error {
	if op.caller != op.state.Manager {
		return fmt.Errorf("%w: %s", ErrCallerIsNotManager, op.caller.Hex())
	}
	return nil
}

func requirePositive(name string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrZeroAmount, name)
	}
	return nil
}

func orZero(amount sdkmath.Int) sdkmath.Int {
	if amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount
}

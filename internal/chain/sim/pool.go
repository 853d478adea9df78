package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
	"github.com/teahouse-finance/tvault/internal/types"
)

var (
	ErrZeroLiquidity     = errors.New("pool: zero liquidity")
	ErrPriceLimitReached = errors.New("pool: price limit reached")
	ErrBurnExceeds       = errors.New("pool: burn exceeds position liquidity")
)

const feeUnit = 1_000_000

// PoolConfig describes a simulated pool.
type PoolConfig struct {
	Address     common.Address
	Token0      *Token
	Token1      *Token
	Fee         uint32 // parts per million
	TickSpacing int32
	SqrtPrice   *uint256.Int
	// BaseLiquidity is in-range liquidity provided by other LPs. Swaps always see it.
	BaseLiquidity *uint256.Int
	// Reserve0 and Reserve1 are minted to the pool to back BaseLiquidity swaps.
	Reserve0 sdkmath.Int
	Reserve1 sdkmath.Int
}

type positionKey struct {
	owner     common.Address
	tickLower int32
	tickUpper int32
}

type position struct {
	liquidity  *uint256.Int
	principal0 sdkmath.Int
	principal1 sdkmath.Int
	fees0      sdkmath.Int
	fees1      sdkmath.Int
}

func (p *position) clone() *position {
	cp := *p
	cp.liquidity = p.liquidity.Clone()
	return &cp
}

type poolState struct {
	sqrtPrice *uint256.Int
	tick      int32
	positions map[positionKey]*position
}

// Pool is a journaled concentrated-liquidity pool. Swaps are priced against the
// liquidity active at the starting tick and do not cross ticks.
type Pool struct {
	mu            sync.Mutex
	address       common.Address
	token0        *Token
	token1        *Token
	fee           uint32
	tickSpacing   int32
	baseLiquidity *uint256.Int
	sqrtPrice     *uint256.Int
	tick          int32
	positions     map[positionKey]*position
}

var _ chain.Pool = (*Pool)(nil)

// NewPool registers a new pool with c.
func NewPool(c *Chain, cfg PoolConfig) (*Pool, error) {
	if cfg.Token0 == nil || cfg.Token1 == nil {
		return nil, errors.New("pool tokens are required")
	}
	if cfg.TickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive, got %d", cfg.TickSpacing)
	}
	if cfg.Fee >= feeUnit {
		return nil, fmt.Errorf("pool fee %d out of range", cfg.Fee)
	}
	tick, err := fixedpoint.TickAtSqrtRatio(cfg.SqrtPrice)
	if err != nil {
		return nil, err
	}
	base := new(uint256.Int)
	if cfg.BaseLiquidity != nil {
		base = cfg.BaseLiquidity.Clone()
	}

	p := &Pool{
		address:       cfg.Address,
		token0:        cfg.Token0,
		token1:        cfg.Token1,
		fee:           cfg.Fee,
		tickSpacing:   cfg.TickSpacing,
		baseLiquidity: base,
		sqrtPrice:     cfg.SqrtPrice.Clone(),
		tick:          tick,
		positions:     make(map[positionKey]*position),
	}
	if !cfg.Reserve0.IsNil() {
		cfg.Token0.Mint(cfg.Address, cfg.Reserve0)
	}
	if !cfg.Reserve1.IsNil() {
		cfg.Token1.Mint(cfg.Address, cfg.Reserve1)
	}
	c.register(p)
	return p, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() common.Address  { return p.token0.Address() }
func (p *Pool) Token1() common.Address  { return p.token1.Address() }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int32      { return p.tickSpacing }

func (p *Pool) Slot0(_ context.Context) (types.Slot0, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.Slot0{SqrtPriceX96: p.sqrtPrice.Clone(), Tick: p.tick}, nil
}

// SetSqrtPrice moves the pool price without a swap.
func (p *Pool) SetSqrtPrice(sqrtPrice *uint256.Int) error {
	tick, err := fixedpoint.TickAtSqrtRatio(sqrtPrice)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sqrtPrice = sqrtPrice.Clone()
	p.tick = tick
	return nil
}

// PositionLiquidity returns the liquidity of owner's range, zero if absent.
func (p *Pool) PositionLiquidity(owner common.Address, tickLower, tickUpper int32) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[positionKey{owner, tickLower, tickUpper}]; ok {
		return fixedpoint.ToInt(pos.liquidity)
	}
	return sdkmath.ZeroInt()
}

func (p *Pool) Mint(ctx context.Context, owner common.Address, tickLower, tickUpper int32, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := fixedpoint.ValidateTickRange(tickLower, tickUpper, p.tickSpacing); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	delta, err := fixedpoint.FromInt(liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if delta.IsZero() {
		return sdkmath.Int{}, sdkmath.Int{}, ErrZeroLiquidity
	}
	amount0, amount1, err := p.amountsForDelta(tickLower, tickUpper, delta, true)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}

	key := positionKey{owner, tickLower, tickUpper}
	pos, ok := p.positions[key]
	if !ok {
		pos = &position{
			liquidity:  new(uint256.Int),
			principal0: sdkmath.ZeroInt(), principal1: sdkmath.ZeroInt(),
			fees0: sdkmath.ZeroInt(), fees1: sdkmath.ZeroInt(),
		}
	}
	next, overflow := new(uint256.Int).AddOverflow(pos.liquidity, delta)
	if overflow || next.Gt(fixedpoint.MaxUint128) {
		return sdkmath.Int{}, sdkmath.Int{}, fixedpoint.ErrArithmeticOverflow
	}

	if err := p.token0.Transfer(ctx, owner, p.address, amount0); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("mint callback token0: %w", err)
	}
	if err := p.token1.Transfer(ctx, owner, p.address, amount1); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("mint callback token1: %w", err)
	}
	pos.liquidity = next
	p.positions[key] = pos
	return amount0, amount1, nil
}

func (p *Pool) Burn(_ context.Context, owner common.Address, tickLower, tickUpper int32, liquidity sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[positionKey{owner, tickLower, tickUpper}]
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, chain.ErrUnknownPosition
	}
	delta, err := fixedpoint.FromInt(liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if delta.Gt(pos.liquidity) {
		return sdkmath.Int{}, sdkmath.Int{}, ErrBurnExceeds
	}
	if delta.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	amount0, amount1, err := p.amountsForDelta(tickLower, tickUpper, delta, false)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	pos.liquidity = new(uint256.Int).Sub(pos.liquidity, delta)
	pos.principal0 = pos.principal0.Add(amount0)
	pos.principal1 = pos.principal1.Add(amount1)
	return amount0, amount1, nil
}

func (p *Pool) Collect(ctx context.Context, owner common.Address, tickLower, tickUpper int32, amount0Requested, amount1Requested sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := positionKey{owner, tickLower, tickUpper}
	pos, ok := p.positions[key]
	if !ok {
		return sdkmath.Int{}, sdkmath.Int{}, chain.ErrUnknownPosition
	}

	var take0, take1 sdkmath.Int
	take0, pos.principal0, pos.fees0 = drawOwed(amount0Requested, pos.principal0, pos.fees0)
	take1, pos.principal1, pos.fees1 = drawOwed(amount1Requested, pos.principal1, pos.fees1)

	if err := p.token0.Transfer(ctx, p.address, owner, take0); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if err := p.token1.Transfer(ctx, p.address, owner, take1); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if pos.liquidity.IsZero() && pos.principal0.IsZero() && pos.principal1.IsZero() && pos.fees0.IsZero() && pos.fees1.IsZero() {
		delete(p.positions, key)
	}
	return take0, take1, nil
}

// drawOwed takes up to requested from principal first, then from fees.
func drawOwed(requested, principal, fees sdkmath.Int) (taken, principalLeft, feesLeft sdkmath.Int) {
	owed := principal.Add(fees)
	taken = sdkmath.MinInt(requested, owed)
	fromPrincipal := sdkmath.MinInt(taken, principal)
	return taken, principal.Sub(fromPrincipal), fees.Sub(taken.Sub(fromPrincipal))
}

func (p *Pool) PositionFees(_ context.Context, owner common.Address, tickLower, tickUpper int32) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[positionKey{owner, tickLower, tickUpper}]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	return pos.fees0, pos.fees1, nil
}

func (p *Pool) Swap(ctx context.Context, recipient common.Address, zeroForOne bool, amountIn sdkmath.Int, sqrtPriceLimit *uint256.Int) (sdkmath.Int, sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, err := fixedpoint.FromInt(amountIn)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if in.IsZero() {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: zero swap amount", ErrZeroLiquidity)
	}
	active, err := p.activeLiquidity()
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if active.IsZero() {
		return sdkmath.Int{}, sdkmath.Int{}, chain.ErrPoolLocked
	}

	feeAmount, err := fixedpoint.MulDivRoundingUp(in, uint256.NewInt(uint64(p.fee)), uint256.NewInt(feeUnit))
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	net := new(uint256.Int).Sub(in, feeAmount)
	next, err := fixedpoint.NextSqrtPriceFromInput(p.sqrtPrice, active, net, zeroForOne)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if sqrtPriceLimit != nil && ((zeroForOne && next.Lt(sqrtPriceLimit)) || (!zeroForOne && next.Gt(sqrtPriceLimit))) {
		return sdkmath.Int{}, sdkmath.Int{}, ErrPriceLimitReached
	}
	if next.Lt(fixedpoint.MinSqrtRatio) || !next.Lt(fixedpoint.MaxSqrtRatio) {
		return sdkmath.Int{}, sdkmath.Int{}, ErrPriceLimitReached
	}

	var out *uint256.Int
	if zeroForOne {
		out, err = fixedpoint.Amount1Delta(next, p.sqrtPrice, active, false)
	} else {
		out, err = fixedpoint.Amount0Delta(p.sqrtPrice, next, active, false)
	}
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	nextTick, err := fixedpoint.TickAtSqrtRatio(next)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}

	tokenIn, tokenOut := p.token0, p.token1
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
	}
	amountOut := fixedpoint.ToInt(out)
	if err := tokenIn.Transfer(ctx, recipient, p.address, amountIn); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("swap callback: %w", err)
	}
	if err := tokenOut.Transfer(ctx, p.address, recipient, amountOut); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: %w", chain.ErrPoolLocked, err)
	}

	if err := p.distributeFees(feeAmount, active, zeroForOne); err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	p.sqrtPrice = next
	p.tick = nextTick
	return amountIn, amountOut, nil
}

// distributeFees credits each in-range position its liquidity share of the swap fee.
func (p *Pool) distributeFees(feeAmount, active *uint256.Int, zeroForOne bool) error {
	for key, pos := range p.positions {
		if pos.liquidity.IsZero() || !(key.tickLower <= p.tick && p.tick < key.tickUpper) {
			continue
		}
		share, err := fixedpoint.MulDiv(feeAmount, pos.liquidity, active)
		if err != nil {
			return err
		}
		if zeroForOne {
			pos.fees0 = pos.fees0.Add(fixedpoint.ToInt(share))
		} else {
			pos.fees1 = pos.fees1.Add(fixedpoint.ToInt(share))
		}
	}
	return nil
}

func (p *Pool) activeLiquidity() (*uint256.Int, error) {
	active := p.baseLiquidity.Clone()
	for key, pos := range p.positions {
		if key.tickLower <= p.tick && p.tick < key.tickUpper {
			var overflow bool
			active, overflow = active.AddOverflow(active, pos.liquidity)
			if overflow {
				return nil, fixedpoint.ErrArithmeticOverflow
			}
		}
	}
	return active, nil
}

func (p *Pool) amountsForDelta(tickLower, tickUpper int32, delta *uint256.Int, roundUp bool) (sdkmath.Int, sdkmath.Int, error) {
	sqrtA, err := fixedpoint.SqrtRatioAtTick(tickLower)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	sqrtB, err := fixedpoint.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}

	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	switch {
	case p.tick < tickLower:
		amount0, err = fixedpoint.Amount0Delta(sqrtA, sqrtB, delta, roundUp)
	case p.tick < tickUpper:
		amount0, err = fixedpoint.Amount0Delta(p.sqrtPrice, sqrtB, delta, roundUp)
		if err == nil {
			amount1, err = fixedpoint.Amount1Delta(sqrtA, p.sqrtPrice, delta, roundUp)
		}
	default:
		amount1, err = fixedpoint.Amount1Delta(sqrtA, sqrtB, delta, roundUp)
	}
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return fixedpoint.ToInt(amount0), fixedpoint.ToInt(amount1), nil
}

func (p *Pool) snapshot() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := poolState{
		sqrtPrice: p.sqrtPrice.Clone(),
		tick:      p.tick,
		positions: make(map[positionKey]*position, len(p.positions)),
	}
	for key, pos := range p.positions {
		state.positions[key] = pos.clone()
	}
	return state
}

func (p *Pool) restore(s any) {
	state := s.(poolState)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sqrtPrice = state.sqrtPrice
	p.tick = state.tick
	p.positions = state.positions
}

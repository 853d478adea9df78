package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/chain"
)

var ErrNegativeAmount = errors.New("amount is negative")

// Token is a journaled ERC20 ledger.
type Token struct {
	mu         sync.Mutex
	address    common.Address
	symbol     string
	decimals   uint8
	balances   map[common.Address]sdkmath.Int
	allowances map[common.Address]map[common.Address]sdkmath.Int
}

type tokenState struct {
	balances   map[common.Address]sdkmath.Int
	allowances map[common.Address]map[common.Address]sdkmath.Int
}

var _ chain.Token = (*Token)(nil)

// NewToken registers a new token with c.
func NewToken(c *Chain, address common.Address, symbol string, decimals uint8) *Token {
	t := &Token{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]sdkmath.Int),
		allowances: make(map[common.Address]map[common.Address]sdkmath.Int),
	}
	c.register(t)
	return t
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// Mint credits amount to account out of thin air.
func (t *Token) Mint(account common.Address, amount sdkmath.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = t.balanceOf(account).Add(amount)
}

func (t *Token) BalanceOf(_ context.Context, account common.Address) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceOf(account), nil
}

func (t *Token) Allowance(_ context.Context, owner, spender common.Address) (sdkmath.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowance(owner, spender), nil
}

func (t *Token) Transfer(_ context.Context, from, to common.Address, amount sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *Token) TransferFrom(_ context.Context, spender, from, to common.Address, amount sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	allowed := t.allowance(from, spender)
	if allowed.LT(amount) {
		return fmt.Errorf("%w: %s allows %s %s, needs %s", chain.ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowed, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.setAllowance(from, spender, allowed.Sub(amount))
	return nil
}

func (t *Token) Approve(_ context.Context, owner, spender common.Address, amount sdkmath.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	t.setAllowance(owner, spender, amount)
	return nil
}

func (t *Token) balanceOf(account common.Address) sdkmath.Int {
	if balance, ok := t.balances[account]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}

func (t *Token) allowance(owner, spender common.Address) sdkmath.Int {
	if allowed, ok := t.allowances[owner][spender]; ok {
		return allowed
	}
	return sdkmath.ZeroInt()
}

func (t *Token) setAllowance(owner, spender common.Address, amount sdkmath.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]sdkmath.Int)
	}
	t.allowances[owner][spender] = amount
}

func (t *Token) move(from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	balance := t.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf("%w: %s %s holds %s, needs %s", chain.ErrInsufficientBalance, t.symbol, from.Hex(), balance, amount)
	}
	t.balances[from] = balance.Sub(amount)
	t.balances[to] = t.balanceOf(to).Add(amount)
	return nil
}

func (t *Token) snapshot() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := tokenState{
		balances:   make(map[common.Address]sdkmath.Int, len(t.balances)),
		allowances: make(map[common.Address]map[common.Address]sdkmath.Int, len(t.allowances)),
	}
	for account, balance := range t.balances {
		state.balances[account] = balance
	}
	for owner, spenders := range t.allowances {
		copied := make(map[common.Address]sdkmath.Int, len(spenders))
		for spender, amount := range spenders {
			copied[spender] = amount
		}
		state.allowances[owner] = copied
	}
	return state
}

func (t *Token) restore(s any) {
	state := s.(tokenState)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances = state.balances
	t.allowances = state.allowances
}

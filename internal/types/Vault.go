/*

This file contains the vault's persistent state and the ephemeral asset snapshot
used to price deposits and withdrawals.

*/

package types

import (
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// VaultState is the complete mutable state of a vault. Operations work on a
// Clone and the clone replaces the live state only after a successful commit.
type VaultState struct {
	Owner                       common.Address                 `json:"owner"`
	Manager                     common.Address                 `json:"manager"`
	FeeConfig                   FeeConfig                      `json:"fee_config"`
	TotalShares                 sdkmath.Int                    `json:"total_shares"`
	Balances                    map[common.Address]sdkmath.Int `json:"balances"`
	LastManagementFeeCollection uint64                         `json:"last_management_fee_collection"`
	Positions                   []Position                     `json:"positions"`
}

// NewVaultState returns an empty vault owned by owner.
func NewVaultState(owner, manager common.Address, feeConfig FeeConfig, now uint64) *VaultState {
	return &VaultState{
		Owner:                       owner,
		Manager:                     manager,
		FeeConfig:                   feeConfig,
		TotalShares:                 sdkmath.ZeroInt(),
		Balances:                    make(map[common.Address]sdkmath.Int),
		LastManagementFeeCollection: now,
	}
}

// Clone returns a deep copy of the state.
func (s *VaultState) Clone() *VaultState {
	out := *s
	out.Balances = make(map[common.Address]sdkmath.Int, len(s.Balances))
	for holder, balance := range s.Balances {
		out.Balances[holder] = balance
	}
	out.Positions = make([]Position, len(s.Positions))
	copy(out.Positions, s.Positions)
	return &out
}

// BalanceOf returns the share balance of holder.
func (s *VaultState) BalanceOf(holder common.Address) sdkmath.Int {
	if balance, ok := s.Balances[holder]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}

// SetBalance stores balance for holder, dropping empty entries.
func (s *VaultState) SetBalance(holder common.Address, balance sdkmath.Int) {
	if balance.IsZero() {
		delete(s.Balances, holder)
		return
	}
	s.Balances[holder] = balance
}

// Holders returns holder addresses in a stable order.
func (s *VaultState) Holders() []common.Address {
	holders := make([]common.Address, 0, len(s.Balances))
	for holder := range s.Balances {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Cmp(holders[j]) < 0
	})
	return holders
}

// AssetSnapshot is the vault's holdings at one price sample.
type AssetSnapshot struct {
	Idle0      sdkmath.Int `json:"idle0"`
	Idle1      sdkmath.Int `json:"idle1"`
	Positions0 sdkmath.Int `json:"positions0"` // Position principal plus uncollected fees, net of performance fee.
	Positions1 sdkmath.Int `json:"positions1"`
}

// Amount0 is the total token0 held.
func (a AssetSnapshot) Amount0() sdkmath.Int {
	return a.Idle0.Add(a.Positions0)
}

// Amount1 is the total token1 held.
func (a AssetSnapshot) Amount1() sdkmath.Int {
	return a.Idle1.Add(a.Positions1)
}

// IsEmpty reports whether nothing is held.
func (a AssetSnapshot) IsEmpty() bool {
	return a.Amount0().IsZero() && a.Amount1().IsZero()
}

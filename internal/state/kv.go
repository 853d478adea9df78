package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/types"
)

// Keys of the vault_kv table. Balances and positions are stored one row per
// entry so a commit only rewrites what an operation touched.
const (
	keyOwner                       = "owner"
	keyManager                     = "manager"
	keyTotalShares                 = "total_shares"
	keyLastManagementFeeCollection = "last_management_fee_collection"
	keyTreasury                    = "fee_config/treasury"
	keyEntryFee                    = "fee_config/entry_fee"
	keyExitFee                     = "fee_config/exit_fee"
	keyPerformanceFee              = "fee_config/performance_fee"
	keyManagementFee               = "fee_config/management_fee"
	keyPositionCount               = "position_count"

	prefixBalance  = "balance/"
	prefixPosition = "position/"
)

// EncodeState flattens s into key/value rows.
func EncodeState(s *types.VaultState) (map[string]string, error) {
	kv := map[string]string{
		keyOwner:                       s.Owner.Hex(),
		keyManager:                     s.Manager.Hex(),
		keyTotalShares:                 s.TotalShares.String(),
		keyLastManagementFeeCollection: strconv.FormatUint(s.LastManagementFeeCollection, 10),
		keyTreasury:                    s.FeeConfig.Treasury.Hex(),
		keyEntryFee:                    strconv.FormatUint(uint64(s.FeeConfig.EntryFee), 10),
		keyExitFee:                     strconv.FormatUint(uint64(s.FeeConfig.ExitFee), 10),
		keyPerformanceFee:              strconv.FormatUint(uint64(s.FeeConfig.PerformanceFee), 10),
		keyManagementFee:               strconv.FormatUint(uint64(s.FeeConfig.ManagementFee), 10),
		keyPositionCount:               strconv.Itoa(len(s.Positions)),
	}
	for holder, balance := range s.Balances {
		if balance.IsZero() {
			continue
		}
		kv[prefixBalance+holder.Hex()] = balance.String()
	}
	for i, p := range s.Positions {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode position %d: %w", i, err)
		}
		kv[prefixPosition+strconv.Itoa(i)] = string(raw)
	}
	return kv, nil
}

// DecodeState rebuilds a vault state from key/value rows.
func DecodeState(kv map[string]string) (*types.VaultState, error) {
	s := &types.VaultState{
		Balances: make(map[common.Address]sdkmath.Int),
	}

	var err error
	if s.Owner, err = decodeAddress(kv, keyOwner); err != nil {
		return nil, err
	}
	if s.Manager, err = decodeAddress(kv, keyManager); err != nil {
		return nil, err
	}
	if s.FeeConfig.Treasury, err = decodeAddress(kv, keyTreasury); err != nil {
		return nil, err
	}
	if s.TotalShares, err = decodeInt(kv, keyTotalShares); err != nil {
		return nil, err
	}
	if s.LastManagementFeeCollection, err = decodeUint(kv, keyLastManagementFeeCollection, 64); err != nil {
		return nil, err
	}

	fees := []struct {
		key string
		dst *uint32
	}{
		{keyEntryFee, &s.FeeConfig.EntryFee},
		{keyExitFee, &s.FeeConfig.ExitFee},
		{keyPerformanceFee, &s.FeeConfig.PerformanceFee},
		{keyManagementFee, &s.FeeConfig.ManagementFee},
	}
	for _, f := range fees {
		v, err := decodeUint(kv, f.key, 32)
		if err != nil {
			return nil, err
		}
		*f.dst = uint32(v)
	}

	count, err := decodeUint(kv, keyPositionCount, 32)
	if err != nil {
		return nil, err
	}
	s.Positions = make([]types.Position, count)
	for i := range s.Positions {
		key := prefixPosition + strconv.Itoa(i)
		raw, ok := kv[key]
		if !ok {
			return nil, fmt.Errorf("missing key %q", key)
		}
		if err := json.Unmarshal([]byte(raw), &s.Positions[i]); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
	}

	for key, raw := range kv {
		if !strings.HasPrefix(key, prefixBalance) {
			continue
		}
		hex := strings.TrimPrefix(key, prefixBalance)
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("invalid balance key %q", key)
		}
		balance, ok := sdkmath.NewIntFromString(raw)
		if !ok {
			return nil, fmt.Errorf("invalid balance %q for %s", raw, hex)
		}
		s.SetBalance(common.HexToAddress(hex), balance)
	}
	return s, nil
}

// Diff returns the rows to upsert and the keys to delete to move from prev to
// next. A nil prev writes every row.
func Diff(prev, next *types.VaultState) (map[string]string, []string, error) {
	nextKV, err := EncodeState(next)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		return nextKV, nil, nil
	}
	prevKV, err := EncodeState(prev)
	if err != nil {
		return nil, nil, err
	}

	writes := make(map[string]string)
	for key, value := range nextKV {
		if old, ok := prevKV[key]; !ok || old != value {
			writes[key] = value
		}
	}
	var deletes []string
	for key := range prevKV {
		if _, ok := nextKV[key]; !ok {
			deletes = append(deletes, key)
		}
	}
	sort.Strings(deletes)
	return writes, deletes, nil
}

func decodeAddress(kv map[string]string, key string) (common.Address, error) {
	raw, ok := kv[key]
	if !ok {
		return common.Address{}, fmt.Errorf("missing key %q", key)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q for %q", raw, key)
	}
	return common.HexToAddress(raw), nil
}

func decodeInt(kv map[string]string, key string) (sdkmath.Int, error) {
	raw, ok := kv[key]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("missing key %q", key)
	}
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer %q for %q", raw, key)
	}
	return v, nil
}

func decodeUint(kv map[string]string, key string, bits int) (uint64, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q for %q: %w", raw, key, err)
	}
	return v, nil
}

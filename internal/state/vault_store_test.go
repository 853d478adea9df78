package state

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/types"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	manager  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func sampleState() *types.VaultState {
	s := types.NewVaultState(owner, manager, types.FeeConfig{
		Treasury:       treasury,
		EntryFee:       1000,
		ExitFee:        2000,
		PerformanceFee: 100000,
		ManagementFee:  10000,
	}, 1_700_000_000)
	s.TotalShares = sdkmath.NewInt(3_000)
	s.SetBalance(alice, sdkmath.NewInt(2_000))
	s.SetBalance(bob, sdkmath.NewInt(1_000))
	s.Positions = []types.Position{
		{TickLower: -120, TickUpper: 120, Liquidity: sdkmath.NewInt(5_000)},
		{TickLower: 600, TickUpper: 1200, Liquidity: sdkmath.NewInt(7)},
	}
	return s
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	db, err := Open(DBConfig{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := NewStore(db, DriverSQLite)
	require.NoError(t, err)
	return store
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := sampleState()
	kv, err := EncodeState(s)
	require.NoError(t, err)
	assert.Equal(t, "2000", kv[BalanceKey(alice)])
	assert.Equal(t, "2", kv[keyPositionCount])

	decoded, err := DecodeState(kv)
	require.NoError(t, err)
	assert.Equal(t, s.Owner, decoded.Owner)
	assert.Equal(t, s.Manager, decoded.Manager)
	assert.Equal(t, s.FeeConfig, decoded.FeeConfig)
	assert.True(t, s.TotalShares.Equal(decoded.TotalShares))
	assert.Equal(t, s.LastManagementFeeCollection, decoded.LastManagementFeeCollection)
	require.Len(t, decoded.Positions, 2)
	assert.Equal(t, int32(600), decoded.Positions[1].TickLower)
	assert.True(t, decoded.Positions[1].Liquidity.Equal(sdkmath.NewInt(7)))
	assert.True(t, decoded.BalanceOf(bob).Equal(sdkmath.NewInt(1_000)))
}

func TestDecodeRejectsMissingKeys(t *testing.T) {
	kv, err := EncodeState(sampleState())
	require.NoError(t, err)
	delete(kv, keyTotalShares)
	_, err = DecodeState(kv)
	assert.Error(t, err)

	kv, err = EncodeState(sampleState())
	require.NoError(t, err)
	delete(kv, prefixPosition+"1")
	_, err = DecodeState(kv)
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	prev := sampleState()
	next := prev.Clone()
	next.SetBalance(bob, sdkmath.ZeroInt())
	next.TotalShares = sdkmath.NewInt(2_000)
	next.Positions = next.Positions[:1]

	writes, deletes, err := Diff(prev, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		keyTotalShares:   "2000",
		keyPositionCount: "1",
	}, writes)
	assert.Equal(t, []string{BalanceKey(bob), prefixPosition + "1"}, deletes)

	writes, deletes, err = Diff(nil, next)
	require.NoError(t, err)
	assert.Empty(t, deletes)
	assert.Contains(t, writes, keyOwner)
}

func TestSQLiteStoreCommitAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoState)

	first := sampleState()
	require.NoError(t, store.Commit(ctx, nil, first, nil))

	second := first.Clone()
	second.SetBalance(bob, sdkmath.ZeroInt())
	second.SetBalance(alice, sdkmath.NewInt(2_500))
	second.TotalShares = sdkmath.NewInt(2_500)
	second.Positions = second.Positions[:1]
	receipt := &types.OperationReceipt{
		ID:        "00000000-0000-0000-0000-000000000001",
		Type:      types.OpWithdraw,
		Caller:    bob,
		BlockTime: 1_700_000_100,
		Timestamp: time.Unix(1_700_000_100, 0).UTC(),
		Shares:    sdkmath.NewInt(1_000),
		Amount0:   sdkmath.NewInt(990),
		Amount1:   sdkmath.ZeroInt(),
	}
	require.NoError(t, store.Commit(ctx, first, second, receipt))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.TotalShares.Equal(sdkmath.NewInt(2_500)))
	assert.True(t, loaded.BalanceOf(bob).IsZero())
	assert.True(t, loaded.BalanceOf(alice).Equal(sdkmath.NewInt(2_500)))
	assert.Len(t, loaded.Positions, 1)

	receipts, err := store.RecentReceipts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, types.OpWithdraw, receipts[0].Type)
	assert.Equal(t, bob, receipts[0].Caller)
	assert.True(t, receipts[0].Amount0.Equal(sdkmath.NewInt(990)))
}

func TestSQLiteStoreRejectsDuplicateReceipt(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)
	s := sampleState()
	receipt := &types.OperationReceipt{ID: "dup", Type: types.OpDeposit, Caller: alice, Timestamp: time.Now()}
	require.NoError(t, store.Commit(ctx, nil, s, receipt))

	next := s.Clone()
	next.TotalShares = sdkmath.NewInt(9_999)
	require.Error(t, store.Commit(ctx, s, next, receipt))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.TotalShares.Equal(s.TotalShares), "failed commit must not leave partial writes")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoState)

	s := sampleState()
	require.NoError(t, store.Commit(ctx, nil, s, &types.OperationReceipt{ID: "1", Type: types.OpDeposit}))
	next := s.Clone()
	next.SetBalance(alice, sdkmath.ZeroInt())
	require.NoError(t, store.Commit(ctx, s, next, &types.OperationReceipt{ID: "2", Type: types.OpTransfer}))

	assert.NotContains(t, store.Rows(), BalanceKey(alice))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.BalanceOf(alice).IsZero())

	receipts, err := store.RecentReceipts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "2", receipts[0].ID)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))
	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}

func TestDigest(t *testing.T) {
	s := sampleState()
	d1, err := Digest(s)
	require.NoError(t, err)
	assert.Len(t, d1, 64)

	kv, err := EncodeState(s)
	require.NoError(t, err)
	decoded, err := DecodeState(kv)
	require.NoError(t, err)
	d2, err := Digest(decoded)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "decoding preserves the digest")

	changed := s.Clone()
	changed.SetBalance(bob, sdkmath.NewInt(999))
	d3, err := Digest(changed)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

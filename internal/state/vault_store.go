// ./internal/state/vault_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/teahouse-finance/tvault/internal/types"
)

// ErrNoState is returned by Load when nothing has been committed yet.
var ErrNoState = errors.New("no vault state stored")

// Store persists vault state in the vault_kv table and operation receipts in
// operation_receipts.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an open database and makes sure the schema exists.
func NewStore(db *sql.DB, driver string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driverName(driver)}, nil
}

// Load reads the committed vault state.
func (s *Store) Load(ctx context.Context) (*types.VaultState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM vault_kv`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault_kv: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan vault_kv row: %w", err)
		}
		kv[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault_kv rows: %w", err)
	}
	if len(kv) == 0 {
		return nil, ErrNoState
	}

	state, err := DecodeState(kv)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault state: %w", err)
	}
	log.Info().
		Str("total_shares", state.TotalShares.String()).
		Int("holders", len(state.Balances)).
		Int("positions", len(state.Positions)).
		Msg("Loaded vault state from database")
	return state, nil
}

// Commit writes the rows that changed between prev and next together with
// receipt in a single transaction. A nil receipt stores only the state.
func (s *Store) Commit(ctx context.Context, prev, next *types.VaultState, receipt *types.OperationReceipt) (err error) {
	writes, deletes, err := Diff(prev, next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	upsert := s.rebind(`
		INSERT INTO vault_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	keys := make([]string, 0, len(writes))
	for key := range writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err = tx.ExecContext(ctx, upsert, key, writes[key], now); err != nil {
			return fmt.Errorf("failed to upsert %q: %w", key, err)
		}
	}

	remove := s.rebind(`DELETE FROM vault_kv WHERE key = ?`)
	for _, key := range deletes {
		if _, err = tx.ExecContext(ctx, remove, key); err != nil {
			return fmt.Errorf("failed to delete %q: %w", key, err)
		}
	}

	if receipt != nil {
		var details []byte
		details, err = json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("failed to marshal receipt: %w", err)
		}
		insert := s.rebind(`
			INSERT INTO operation_receipts (receipt_id, operation_type, caller, block_time, recorded_at, details)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if _, err = tx.ExecContext(ctx, insert,
			receipt.ID, string(receipt.Type), receipt.Caller.Hex(),
			int64(receipt.BlockTime), receipt.Timestamp.Unix(), string(details),
		); err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug().
		Int("written", len(writes)).
		Int("deleted", len(deletes)).
		Msg("Committed vault state")
	return nil
}

// RecentReceipts returns up to limit receipts, newest first.
func (s *Store) RecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.rebind(`
		SELECT details FROM operation_receipts
		ORDER BY block_time DESC, recorded_at DESC
		LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var details string
		if err := rows.Scan(&details); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		var r types.OperationReceipt
		if err := json.Unmarshal([]byte(details), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt rows: %w", err)
	}
	return receipts, nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MemoryStore keeps committed state in memory. It goes through the same
// row encoding as Store.
type MemoryStore struct {
	mu       sync.Mutex
	kv       map[string]string
	receipts []types.OperationReceipt
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: make(map[string]string)}
}

// Load decodes the stored rows.
func (m *MemoryStore) Load(_ context.Context) (*types.VaultState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.kv) == 0 {
		return nil, ErrNoState
	}
	return DecodeState(m.kv)
}

// Commit applies the row diff between prev and next and records receipt.
func (m *MemoryStore) Commit(_ context.Context, prev, next *types.VaultState, receipt *types.OperationReceipt) error {
	writes, deletes, err := Diff(prev, next)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range writes {
		m.kv[key] = value
	}
	for _, key := range deletes {
		delete(m.kv, key)
	}
	if receipt != nil {
		m.receipts = append(m.receipts, *receipt)
	}
	return nil
}

// RecentReceipts returns up to limit receipts, newest first.
func (m *MemoryStore) RecentReceipts(_ context.Context, limit int) ([]types.OperationReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]types.OperationReceipt, 0, limit)
	for i := len(m.receipts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.receipts[i])
	}
	return out, nil
}

// Rows returns a copy of the stored rows.
func (m *MemoryStore) Rows() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.kv))
	for k, v := range m.kv {
		out[k] = v
	}
	return out
}

// BalanceKey is the vault_kv key holding holder's share balance.
func BalanceKey(holder common.Address) string {
	return prefixBalance + holder.Hex()
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

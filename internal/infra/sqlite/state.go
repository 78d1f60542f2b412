package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// ─── Save Slot Operations ───────────────────────────────────────────────────

// SaveState replaces the contents of slot in one transaction.
func (db *DB) SaveState(ctx context.Context, slot string, s domain.SaveState) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO save_state (slot, profile_id, balance, total_produced, saved_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(slot) DO UPDATE SET
			profile_id     = excluded.profile_id,
			balance        = excluded.balance,
			total_produced = excluded.total_produced,
			saved_at       = excluded.saved_at,
			updated_at     = datetime('now')
	`, slot, s.ProfileID, s.Balance, s.TotalProduced, s.SavedAt)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM save_items WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO save_items (slot, item_key, level) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for key, it := range s.Items {
		if _, err := stmt.ExecContext(ctx, slot, key, it.Level); err != nil {
			return fmt.Errorf("insert item %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadState returns the snapshot stored in slot, or nil when the slot is
// empty. Values of the wrong type or NULL are reported as ErrCorruptSnapshot;
// context and driver errors are returned as they are.
func (db *DB) LoadState(ctx context.Context, slot string) (*domain.SaveState, error) {
	var profile, balance, total, savedAt any
	err := db.db.QueryRowContext(ctx, `
		SELECT profile_id, balance, total_produced, saved_at
		FROM save_state WHERE slot = ?
	`, slot).Scan(&profile, &balance, &total, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", slot, err)
	}

	var s domain.SaveState
	var ok bool
	if s.Balance, ok = asFloat(balance); !ok {
		return nil, corrupt(slot, "balance", balance)
	}
	if s.TotalProduced, ok = asFloat(total); !ok {
		return nil, corrupt(slot, "total_produced", total)
	}
	if s.SavedAt, ok = asInt(savedAt); !ok {
		return nil, corrupt(slot, "saved_at", savedAt)
	}
	s.ProfileID, _ = asString(profile)

	rows, err := db.db.QueryContext(ctx, `SELECT item_key, level FROM save_items WHERE slot = ?`, slot)
	if err != nil {
		return nil, fmt.Errorf("read items %s: %w", slot, err)
	}
	defer rows.Close()

	s.Items = make(map[string]domain.SavedItem)
	for rows.Next() {
		var keyVal, levelVal any
		if err := rows.Scan(&keyVal, &levelVal); err != nil {
			return nil, fmt.Errorf("read items %s: %w", slot, err)
		}
		key, ok := asString(keyVal)
		if !ok || key == "" {
			return nil, corrupt(slot, "item_key", keyVal)
		}
		level, ok := asInt(levelVal)
		if !ok {
			return nil, corrupt(slot, "level of "+key, levelVal)
		}
		s.Items[key] = domain.SavedItem{Level: int(level)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items %s: %w", slot, err)
	}
	return &s, nil
}

func corrupt(slot, column string, v any) error {
	return fmt.Errorf("%w: slot %s has %s = %#v", domain.ErrCorruptSnapshot, slot, column, v)
}

// The driver hands back int64, float64, string or []byte for stored values
// and nil for NULL.

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// DeleteState removes slot with its items, journal and offline reports.
func (db *DB) DeleteState(ctx context.Context, slot string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"save_items", "save_state", "ledger_entries", "offline_reports"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE slot = ?`, slot); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ListSlots returns every slot name with its last save time (epoch ms).
func (db *DB) ListSlots(ctx context.Context) (map[string]int64, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT slot, saved_at FROM save_state ORDER BY slot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var slot string
		var savedAt int64
		if err := rows.Scan(&slot, &savedAt); err != nil {
			return nil, err
		}
		out[slot] = savedAt
	}
	return out, rows.Err()
}

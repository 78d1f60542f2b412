package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// ─── Ledger Journal Operations ──────────────────────────────────────────────

// AppendEntries inserts entries for slot in one transaction.
func (db *DB) AppendEntries(ctx context.Context, slot string, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (slot, created_at, tx_type, entry_type, item_key, level, amount, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, slot, e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Type), string(e.EntryType), e.ItemKey, e.Level, e.Amount, e.Balance)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return tx.Commit()
}

// RecentEntries returns the newest entries for slot, newest first.
func (db *DB) RecentEntries(ctx context.Context, slot string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, created_at, tx_type, entry_type, item_key, level, amount, balance
		FROM ledger_entries WHERE slot = ?
		ORDER BY id DESC LIMIT ?
	`, slot, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts, txType, entryType string
		if err := rows.Scan(&e.ID, &ts, &txType, &entryType, &e.ItemKey, &e.Level, &e.Amount, &e.Balance); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Type = domain.TransactionType(txType)
		e.EntryType = domain.EntryType(entryType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SpentByItem sums purchase debits per item for slot.
func (db *DB) SpentByItem(ctx context.Context, slot string) (map[string]float64, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT item_key, SUM(amount) FROM ledger_entries
		WHERE slot = ? AND tx_type = ?
		GROUP BY item_key
	`, slot, string(domain.TxPurchase))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var key string
		var sum float64
		if err := rows.Scan(&key, &sum); err != nil {
			return nil, err
		}
		out[key] = sum
	}
	return out, rows.Err()
}

// ─── Offline Report Operations ──────────────────────────────────────────────

// InsertOfflineReport saves one offline progress summary.
func (db *DB) InsertOfflineReport(ctx context.Context, slot string, s domain.OfflineProgressSummary) (int64, error) {
	capped := 0
	if s.Capped {
		capped = 1
	}
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO offline_reports (slot, saved_at, loaded_at, away_seconds, credited_seconds, capped, rate, gained)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, slot, s.SavedAt.UTC().Format(time.RFC3339Nano), s.LoadedAt.UTC().Format(time.RFC3339Nano),
		s.AwaySeconds, s.ElapsedSeconds, capped, s.Rate, s.ResourceGained)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListOfflineReports returns the newest offline reports for slot.
func (db *DB) ListOfflineReports(ctx context.Context, slot string, limit int) ([]domain.OfflineProgressSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT saved_at, loaded_at, away_seconds, credited_seconds, capped, rate, gained
		FROM offline_reports WHERE slot = ?
		ORDER BY id DESC LIMIT ?
	`, slot, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OfflineProgressSummary
	for rows.Next() {
		var s domain.OfflineProgressSummary
		var savedAt, loadedAt string
		var capped int
		if err := rows.Scan(&savedAt, &loadedAt, &s.AwaySeconds, &s.ElapsedSeconds, &capped, &s.Rate, &s.ResourceGained); err != nil {
			return nil, err
		}
		s.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		s.LoadedAt, _ = time.Parse(time.RFC3339Nano, loadedAt)
		s.Capped = capped == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

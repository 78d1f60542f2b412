package sqlite

import (
	"context"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// Store binds a DB to one save slot. It implements domain.SnapshotStore and
// domain.Journal.
type Store struct {
	db   *DB
	slot string
}

// NewStore returns a Store for slot.
func NewStore(db *DB, slot string) *Store {
	if slot == "" {
		slot = "default"
	}
	return &Store{db: db, slot: slot}
}

// Slot returns the bound slot name.
func (s *Store) Slot() string { return s.slot }

// Load implements domain.SnapshotStore.
func (s *Store) Load(ctx context.Context) (*domain.SaveState, error) {
	return s.db.LoadState(ctx, s.slot)
}

// Save implements domain.SnapshotStore.
func (s *Store) Save(ctx context.Context, state domain.SaveState) error {
	return s.db.SaveState(ctx, s.slot, state)
}

// AppendEntries implements domain.Journal.
func (s *Store) AppendEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	return s.db.AppendEntries(ctx, s.slot, entries)
}

// RecordOffline implements domain.Journal.
func (s *Store) RecordOffline(ctx context.Context, summary domain.OfflineProgressSummary) error {
	_, err := s.db.InsertOfflineReport(ctx, s.slot, summary)
	return err
}

// Recent returns the newest journal entries for the slot.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	return s.db.RecentEntries(ctx, s.slot, limit)
}

// SpentByItem returns the total spent on each item in the slot.
func (s *Store) SpentByItem(ctx context.Context) (map[string]float64, error) {
	return s.db.SpentByItem(ctx, s.slot)
}

// OfflineReports returns the newest offline reports for the slot.
func (s *Store) OfflineReports(ctx context.Context, limit int) ([]domain.OfflineProgressSummary, error) {
	return s.db.ListOfflineReports(ctx, s.slot, limit)
}

var (
	_ domain.SnapshotStore = (*Store)(nil)
	_ domain.Journal       = (*Store)(nil)
)

package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the engine depends on them.

// SnapshotStore abstracts best-effort local persistence of a SaveState.
type SnapshotStore interface {
	// Load returns (nil, nil) when no snapshot exists yet.
	// Malformed data is reported as ErrCorruptSnapshot.
	Load(ctx context.Context) (*SaveState, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, state SaveState) error
}

// Journal records ledger events and offline grants. Optional.
type Journal interface {
	AppendEntries(ctx context.Context, entries []LedgerEntry) error
	RecordOffline(ctx context.Context, summary OfflineProgressSummary) error
}

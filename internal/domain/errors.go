package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Purchase errors. A failed purchase leaves the ledger untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMaxLevelReached   = errors.New("item is at max level")
	ErrUnknownItem       = errors.New("unknown catalog item")

	// Persistence errors
	ErrCorruptSnapshot = errors.New("persisted snapshot is corrupt")

	// Catalog errors
	ErrInvalidCatalog = errors.New("invalid catalog definition")
)

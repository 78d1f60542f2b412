package domain

import "time"

// ─── Journal Types ──────────────────────────────────────────────────────────
// The journal is an append-only record of ledger events worth keeping:
// purchases, offline grants and resets. Manual actions and per-tick accrual
// are not journaled.

// EntryType represents the accounting side of a journal entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a ledger movement.
type TransactionType string

const (
	TxPurchase TransactionType = "PURCHASE"
	TxOffline  TransactionType = "OFFLINE"
	TxReset    TransactionType = "RESET"
)

// LedgerEntry is a single row in the journal.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	EntryType EntryType       `json:"entry_type"`
	ItemKey   string          `json:"item_key,omitempty"`
	Level     int             `json:"level,omitempty"`
	Amount    float64         `json:"amount"`
	Balance   float64         `json:"balance"`
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// ─── Read-only Snapshots ────────────────────────────────────────────────────
// Presentation only ever sees these values; it never holds engine state.

// ItemStatus tells presentation why an item can or cannot be bought.
type ItemStatus string

const (
	StatusAvailable    ItemStatus = "available"
	StatusUnaffordable ItemStatus = "unaffordable"
	StatusMaxed        ItemStatus = "maxed"
)

// ItemSnapshot is the per-item view inside a Snapshot.
type ItemSnapshot struct {
	Key           string     `json:"key"`
	Group         string     `json:"group"`
	Kind          string     `json:"kind"`
	Level         int        `json:"level"`
	MaxLevel      int        `json:"max_level"`
	Cost          float64    `json:"cost"`
	CurrentEffect float64    `json:"current_effect"`
	NextEffect    float64    `json:"next_effect"`
	Status        ItemStatus `json:"status"`
}

// Snapshot is an immutable copy of engine state.
type Snapshot struct {
	Balance         float64        `json:"balance"`
	TotalProduced   float64        `json:"total_produced"`
	PerActionRate   float64        `json:"per_action_rate"`
	PerTimeUnitRate float64        `json:"per_time_unit_rate"`
	Progress        float64        `json:"progress"`
	LogProgress     float64        `json:"log_progress"`
	Items           []ItemSnapshot `json:"items"`
}

// Item returns the snapshot entry for key.
func (s Snapshot) Item(key string) (ItemSnapshot, bool) {
	for _, it := range s.Items {
		if it.Key == key {
			return it, true
		}
	}
	return ItemSnapshot{}, false
}

// ─── Progress toward 52! ────────────────────────────────────────────────────

// DeckPermutations is 52!, the number of distinct orderings of a deck.
const DeckPermutations = 8.0658e67

// Progress returns total as a fraction of 52! and the log-scale fraction
// log10(total)/log10(52!), both in [0, 1].
func Progress(total float64) (linear, logScale float64) {
	if total <= 0 {
		return 0, 0
	}
	linear = math.Min(1, total/DeckPermutations)
	if total > 1 {
		logScale = math.Min(1, math.Log10(total)/math.Log10(DeckPermutations))
	}
	return linear, logScale
}

// ─── Offline Progress ───────────────────────────────────────────────────────

// OfflineProgressSummary describes resource granted for time spent away.
// It is handed to presentation once and then discarded.
type OfflineProgressSummary struct {
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	AwaySeconds    float64   `json:"away_seconds"`
	Capped         bool      `json:"capped"`
	ResourceGained float64   `json:"resource_gained"`
	Rate           float64   `json:"rate"`
	SavedAt        time.Time `json:"saved_at"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// ─── Persisted State ────────────────────────────────────────────────────────

// SavedItem is the only per-item state that is ever persisted.
type SavedItem struct {
	Level int `json:"level"`
}

// SaveState is the persisted snapshot. Costs and rates are never stored;
// they are derived from levels plus the live catalog on load.
type SaveState struct {
	ProfileID     string               `json:"profileId,omitempty"`
	Balance       float64              `json:"balance"`
	TotalProduced float64              `json:"totalProduced"`
	SavedAt       int64                `json:"savedAt"` // epoch milliseconds
	Items         map[string]SavedItem `json:"items"`
}

// SavedTime returns SavedAt as a time.Time. The zero time is returned for
// snapshots without a timestamp.
func (s SaveState) SavedTime() time.Time {
	if s.SavedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.SavedAt)
}

// Validate rejects snapshots whose balances cannot be trusted.
// Out-of-range levels are not an error; they are clamped on load.
func (s SaveState) Validate() error {
	if !finiteNonNegative(s.Balance) {
		return fmt.Errorf("%w: balance %v", ErrCorruptSnapshot, s.Balance)
	}
	if !finiteNonNegative(s.TotalProduced) {
		return fmt.Errorf("%w: totalProduced %v", ErrCorruptSnapshot, s.TotalProduced)
	}
	if s.SavedAt < 0 {
		return fmt.Errorf("%w: savedAt %d", ErrCorruptSnapshot, s.SavedAt)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Package game is the engine context: it owns the catalog, the ledger and
// persistence, and exposes the command surface presentation talks to.
//
// All commands are synchronous and serialized by one mutex. Callers only
// ever receive copies (domain.Snapshot, domain.OfflineProgressSummary).
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shuffle-empire/shuffle/internal/app/ledger"
	"github.com/shuffle-empire/shuffle/internal/app/production"
	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
	"github.com/shuffle-empire/shuffle/internal/infra/observability"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config tunes offline reconciliation and the rate ceilings.
type Config struct {
	// OfflineMin is the gap since the last save below which no offline
	// progress is granted.
	OfflineMin time.Duration
	// OfflineMax caps the credited offline window.
	OfflineMax time.Duration
	Caps       production.Caps
}

// DefaultConfig returns the shipped engine settings.
func DefaultConfig() Config {
	return Config{
		OfflineMin: 10 * time.Second,
		OfflineMax: 24 * time.Hour,
		Caps:       production.DefaultCaps(),
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithJournal attaches an optional ledger journal.
func WithJournal(j domain.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine is the single owner of mutable game state.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	cat     *catalog.Catalog
	store   domain.SnapshotStore
	journal domain.Journal
	log     *slog.Logger
	now     func() time.Time

	led       *ledger.Ledger
	profileID string
	lastTick  time.Time

	offline        *domain.OfflineProgressSummary
	pendingEntries []domain.LedgerEntry
	pendingOffline []domain.OfflineProgressSummary
}

// New builds an engine at fresh state. Call LoadOrInit once before use.
func New(cat *catalog.Catalog, store domain.SnapshotStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		cat:   cat,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
		led:   ledger.New(cat, cfg.Caps),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// ProfileID returns the identifier persisted with every snapshot.
func (e *Engine) ProfileID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profileID
}

// ─── Load & Save ────────────────────────────────────────────────────────────

// LoadOrInit restores the stored snapshot, or starts fresh when there is none
// or it is corrupt, then grants offline progress. The returned summary is nil
// when nothing was granted. Store I/O failures other than corruption are
// returned and leave the engine at fresh state.
func (e *Engine) LoadOrInit(ctx context.Context) (*domain.OfflineProgressSummary, error) {
	state, err := e.store.Load(ctx)
	if err == nil && state != nil {
		err = state.Validate()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.lastTick = now
	e.offline = nil

	switch {
	case errors.Is(err, domain.ErrCorruptSnapshot):
		e.log.Warn("snapshot corrupt, starting fresh", "error", err)
		observability.Loads.WithLabelValues("corrupt").Inc()
		e.fresh()
		return nil, nil
	case err != nil:
		e.fresh()
		return nil, fmt.Errorf("load snapshot: %w", err)
	case state == nil:
		e.log.Info("no snapshot found, starting fresh")
		observability.Loads.WithLabelValues("fresh").Inc()
		e.fresh()
		return nil, nil
	}

	levels := make(map[string]int, len(state.Items))
	for k, it := range state.Items {
		if _, ok := e.cat.Lookup(k); !ok {
			e.log.Debug("dropping item not in catalog", "item", k)
			continue
		}
		levels[k] = it.Level
	}
	e.led.Restore(state.Balance, state.TotalProduced, levels)
	e.profileID = state.ProfileID
	if e.profileID == "" {
		e.profileID = uuid.NewString()
	}
	observability.Loads.WithLabelValues("restored").Inc()

	summary := e.reconcileOffline(state.SavedTime(), now)
	observability.ObserveSnapshot(e.led.Snapshot())
	e.log.Info("snapshot restored",
		"profile", e.profileID,
		"balance", e.led.Balance(),
		"per_second", e.led.Rates().PerSecond)

	if summary == nil {
		return nil, nil
	}
	e.offline = summary
	out := *summary
	return &out, nil
}

func (e *Engine) fresh() {
	e.led.Reset()
	e.profileID = uuid.NewString()
	observability.ObserveSnapshot(e.led.Snapshot())
}

// reconcileOffline credits time away at the recomputed per-second rate.
// Caller holds e.mu.
func (e *Engine) reconcileOffline(savedAt, now time.Time) *domain.OfflineProgressSummary {
	if savedAt.IsZero() {
		return nil
	}
	away := now.Sub(savedAt)
	if away <= e.cfg.OfflineMin {
		// Short gaps are left for the next Tick to accrue.
		if away >= 0 {
			e.lastTick = savedAt
		}
		return nil
	}
	rate := e.led.Rates().PerSecond
	if rate <= 0 {
		return nil
	}

	credited := away
	capped := false
	if e.cfg.OfflineMax > 0 && credited > e.cfg.OfflineMax {
		credited = e.cfg.OfflineMax
		capped = true
	}
	gained := e.led.Accrue(credited.Seconds())

	summary := &domain.OfflineProgressSummary{
		ElapsedSeconds: credited.Seconds(),
		AwaySeconds:    away.Seconds(),
		Capped:         capped,
		ResourceGained: gained,
		Rate:           rate,
		SavedAt:        savedAt,
		LoadedAt:       now,
	}
	observability.OfflineGained.Add(gained)
	if e.journal != nil {
		e.pendingOffline = append(e.pendingOffline, *summary)
	}
	e.record(domain.TxOffline, domain.EntryCredit, "", 0, gained)
	e.log.Info("offline progress granted",
		"away", away.Round(time.Second).String(),
		"credited_seconds", summary.ElapsedSeconds,
		"gained", gained,
		"capped", capped)
	return summary
}

// Save writes the current state. SavedAt is the last accrual instant, so the
// next load credits exactly the time not yet accrued. Buffered journal entries
// are flushed after the snapshot.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	state := e.saveState()
	entries := e.pendingEntries
	offline := e.pendingOffline
	e.pendingEntries = nil
	e.pendingOffline = nil
	e.mu.Unlock()

	start := time.Now()
	err := e.store.Save(ctx, state)
	observability.ObserveSave(start, err)
	if err != nil {
		e.requeue(entries, offline)
		return fmt.Errorf("save snapshot: %w", err)
	}
	e.log.Debug("snapshot saved", "balance", state.Balance, "items", len(state.Items))

	if e.journal == nil {
		return nil
	}
	if err := e.flushJournal(ctx, entries, offline); err != nil {
		e.requeue(entries, offline)
		e.log.Warn("journal flush failed", "error", err, "entries", len(entries))
	}
	return nil
}

func (e *Engine) saveState() domain.SaveState {
	savedAt := e.lastTick
	if savedAt.IsZero() {
		savedAt = e.now()
	}
	items := make(map[string]domain.SavedItem, e.cat.Len())
	for k, lv := range e.led.Levels() {
		items[k] = domain.SavedItem{Level: lv}
	}
	return domain.SaveState{
		ProfileID:     e.profileID,
		Balance:       e.led.Balance(),
		TotalProduced: e.led.TotalProduced(),
		SavedAt:       savedAt.UnixMilli(),
		Items:         items,
	}
}

func (e *Engine) flushJournal(ctx context.Context, entries []domain.LedgerEntry, offline []domain.OfflineProgressSummary) error {
	if len(entries) > 0 {
		if err := e.journal.AppendEntries(ctx, entries); err != nil {
			return err
		}
	}
	for i, s := range offline {
		if err := e.journal.RecordOffline(ctx, s); err != nil {
			// entries already landed; only retry the remaining reports
			e.mu.Lock()
			e.pendingOffline = append(offline[i:len(offline):len(offline)], e.pendingOffline...)
			e.mu.Unlock()
			e.log.Warn("offline report not recorded", "error", err)
			return nil
		}
	}
	return nil
}

func (e *Engine) requeue(entries []domain.LedgerEntry, offline []domain.OfflineProgressSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingEntries = append(entries[:len(entries):len(entries)], e.pendingEntries...)
	e.pendingOffline = append(offline[:len(offline):len(offline)], e.pendingOffline...)
}

// ─── Commands ───────────────────────────────────────────────────────────────

// PerformAction applies one manual action and returns the amount gained.
func (e *Engine) PerformAction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	gain := e.led.ApplyAction()
	observability.Actions.Inc()
	observability.Balance.Set(e.led.Balance())
	observability.TotalProduced.Set(e.led.TotalProduced())
	return gain
}

// Purchase buys one level of key. It fails with ErrUnknownItem,
// ErrMaxLevelReached or ErrInsufficientFunds and leaves state unchanged.
func (e *Engine) Purchase(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rcpt, err := e.led.Purchase(key)
	observability.Purchases.WithLabelValues(purchaseLabel(key, err), observability.Outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, domain.ErrUnknownItem) {
			e.log.Error("purchase of unknown item", "item", key, "error", err)
		} else {
			e.log.Debug("purchase rejected", "item", key, "error", err)
		}
		return err
	}

	e.record(domain.TxPurchase, domain.EntryDebit, key, rcpt.Level, rcpt.Paid)
	observability.ObserveSnapshot(e.led.Snapshot())
	e.log.Info("purchase",
		"item", key,
		"level", rcpt.Level,
		"paid", rcpt.Paid,
		"next_cost", rcpt.NextCost)
	return nil
}

// purchaseLabel keeps unknown keys out of metric label cardinality.
func purchaseLabel(key string, err error) string {
	if errors.Is(err, domain.ErrUnknownItem) {
		return "unknown"
	}
	return key
}

// ResetAll returns every balance and level to fresh defaults. Derived rates
// are cleared first, inside the same critical section as the tick, so no
// accrual can run against stale rates.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	lost := e.led.Balance()
	e.led.Reset()
	e.offline = nil
	e.lastTick = e.now()
	e.record(domain.TxReset, domain.EntryDebit, "", 0, lost)

	observability.Resets.Inc()
	observability.ObserveSnapshot(e.led.Snapshot())
	e.log.Info("game reset", "discarded_balance", lost)
}

// Snapshot returns an immutable copy of the current state.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.led.Snapshot()
}

// TakeOfflineSummary returns the pending offline summary once, then nil.
func (e *Engine) TakeOfflineSummary() *domain.OfflineProgressSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.offline
	e.offline = nil
	return s
}

// ─── Accrual ────────────────────────────────────────────────────────────────

// Tick credits per-second rate × wall time since the previous tick and
// returns the amount. The last-tick mark advances even at a zero rate.
func (e *Engine) Tick(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	observability.AccrualTicks.Inc()
	if e.lastTick.IsZero() {
		e.lastTick = now
		return 0
	}
	elapsed := now.Sub(e.lastTick)
	if elapsed <= 0 {
		return 0
	}
	e.lastTick = now

	gain := e.led.Accrue(elapsed.Seconds())
	if gain > 0 {
		observability.Accrued.Add(gain)
		observability.Balance.Set(e.led.Balance())
		observability.TotalProduced.Set(e.led.TotalProduced())
	}
	return gain
}

// ─── Journal ────────────────────────────────────────────────────────────────

// record buffers a journal entry. Caller holds e.mu.
func (e *Engine) record(tx domain.TransactionType, side domain.EntryType, key string, level int, amount float64) {
	if e.journal == nil {
		return
	}
	e.pendingEntries = append(e.pendingEntries, domain.LedgerEntry{
		Timestamp: e.now(),
		Type:      tx,
		EntryType: side,
		ItemKey:   key,
		Level:     level,
		Amount:    amount,
		Balance:   e.led.Balance(),
	})
}

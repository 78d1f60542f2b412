// Package ledger owns the mutable resource balances and item levels, and the
// purchase transaction that moves between them.
//
// A Ledger is not safe for concurrent use; the engine serializes access.
package ledger

import (
	"fmt"
	"math"

	"github.com/shuffle-empire/shuffle/internal/app/production"
	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
)

// Receipt describes an accepted purchase.
type Receipt struct {
	Key      string  `json:"key"`
	Level    int     `json:"level"`     // level after purchase
	Paid     float64 `json:"paid"`      // cost debited
	NextCost float64 `json:"next_cost"` // price of the following level
	Balance  float64 `json:"balance"`   // balance after debit
}

// Ledger holds balances, per-item levels and cached costs, plus the derived
// rates. Costs and rates are always recomputable from levels and the catalog.
type Ledger struct {
	cat  *catalog.Catalog
	caps production.Caps

	balance       float64
	totalProduced float64
	levels        map[string]int
	costs         map[string]float64
	rates         production.Rates
}

// New creates a ledger at fresh defaults: zero balances, every item at level 0.
func New(cat *catalog.Catalog, caps production.Caps) *Ledger {
	l := &Ledger{cat: cat, caps: caps}
	l.Reset()
	return l
}

// ─── Commands ───────────────────────────────────────────────────────────────

// Purchase buys one level of key. Checks run unknown item, then max level,
// then funds; a maxed item reports ErrMaxLevelReached whatever the balance.
// On failure nothing changes.
func (l *Ledger) Purchase(key string) (Receipt, error) {
	def, ok := l.cat.Lookup(key)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", domain.ErrUnknownItem, key)
	}
	level := l.levels[key]
	if level >= def.MaxLevel {
		return Receipt{}, fmt.Errorf("%w: %s at level %d", domain.ErrMaxLevelReached, key, level)
	}
	cost := l.costs[key]
	if l.balance < cost {
		return Receipt{}, fmt.Errorf("%w: %s costs %v, balance %v", domain.ErrInsufficientFunds, key, cost, l.balance)
	}

	l.balance -= cost
	l.levels[key] = level + 1
	l.costs[key] = domain.Cost(def, level+1)
	l.rates = production.Recompute(l.rates, def.Group, l.cat, l.levels, l.caps)

	return Receipt{
		Key:      key,
		Level:    level + 1,
		Paid:     cost,
		NextCost: l.costs[key],
		Balance:  l.balance,
	}, nil
}

// ApplyAction adds the per-action rate to both balances and returns it.
func (l *Ledger) ApplyAction() float64 {
	gain := l.rates.PerAction
	l.Credit(gain)
	return gain
}

// Accrue credits rate-per-second × seconds and returns the amount.
// Nothing is credited for non-positive time or a zero rate.
func (l *Ledger) Accrue(seconds float64) float64 {
	if seconds <= 0 || l.rates.PerSecond <= 0 {
		return 0
	}
	gain := l.rates.PerSecond * seconds
	l.Credit(gain)
	return gain
}

// Credit adds amount to balance and totalProduced. Negative or non-finite
// amounts are ignored.
func (l *Ledger) Credit(amount float64) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return
	}
	l.balance += amount
	l.totalProduced += amount
}

// Reset returns to fresh defaults. Rates are zeroed before levels and
// balances so nothing can accrue against stale rates mid-reset.
func (l *Ledger) Reset() {
	l.rates = production.Rates{}
	l.levels = make(map[string]int, l.cat.Len())
	l.costs = make(map[string]float64, l.cat.Len())
	l.balance = 0
	l.totalProduced = 0
	for _, def := range l.cat.Items() {
		l.levels[def.Key] = 0
		l.costs[def.Key] = domain.Cost(def, 0)
	}
	l.rates = production.Compute(l.cat, l.levels, l.caps)
}

// Restore loads persisted balances and levels. Levels are clamped to the
// current max level, keys not in the catalog are dropped and catalog keys
// absent from levels start at 0. Costs and rates are rederived.
func (l *Ledger) Restore(balance, totalProduced float64, levels map[string]int) {
	l.Reset()
	l.balance = balance
	l.totalProduced = totalProduced
	for _, def := range l.cat.Items() {
		lv := def.ClampLevel(levels[def.Key])
		l.levels[def.Key] = lv
		l.costs[def.Key] = domain.Cost(def, lv)
	}
	l.rates = production.Compute(l.cat, l.levels, l.caps)
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// Balance returns the spendable amount.
func (l *Ledger) Balance() float64 { return l.balance }

// TotalProduced returns everything ever produced.
func (l *Ledger) TotalProduced() float64 { return l.totalProduced }

// Rates returns the derived rates.
func (l *Ledger) Rates() production.Rates { return l.rates }

// Level returns the level of key, 0 when unknown.
func (l *Ledger) Level(key string) int { return l.levels[key] }

// Cost returns the cached next-level price of key.
func (l *Ledger) Cost(key string) float64 { return l.costs[key] }

// Levels returns a copy of every item level.
func (l *Ledger) Levels() map[string]int {
	out := make(map[string]int, len(l.levels))
	for k, v := range l.levels {
		out[k] = v
	}
	return out
}

// Status reports whether key can be bought right now.
func (l *Ledger) Status(def domain.ItemDef) domain.ItemStatus {
	switch {
	case l.levels[def.Key] >= def.MaxLevel:
		return domain.StatusMaxed
	case l.balance < l.costs[def.Key]:
		return domain.StatusUnaffordable
	default:
		return domain.StatusAvailable
	}
}

// Snapshot builds an immutable view of the ledger.
func (l *Ledger) Snapshot() domain.Snapshot {
	lin, lg := domain.Progress(l.totalProduced)
	s := domain.Snapshot{
		Balance:         l.balance,
		TotalProduced:   l.totalProduced,
		PerActionRate:   l.rates.PerAction,
		PerTimeUnitRate: l.rates.PerSecond,
		Progress:        lin,
		LogProgress:     lg,
		Items:           make([]domain.ItemSnapshot, 0, l.cat.Len()),
	}
	for _, def := range l.cat.Items() {
		lv := l.levels[def.Key]
		eff := domain.EffectAt(def, lv)
		s.Items = append(s.Items, domain.ItemSnapshot{
			Key:           def.Key,
			Group:         def.Group.String(),
			Kind:          def.Kind.String(),
			Level:         lv,
			MaxLevel:      def.MaxLevel,
			Cost:          l.costs[def.Key],
			CurrentEffect: eff.Current,
			NextEffect:    eff.Next,
			Status:        l.Status(def),
		})
	}
	return s
}

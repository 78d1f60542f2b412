// Package production turns item levels into the two derived rates.
//
// Composition per group:
//
//	rate = Σ flat × Π percentage × (1 + Σ multiplier bonus)
//
// Manual upgrades produce the per-action rate (floored at 1), generators the
// per-second rate. Both are capped; the per-action ceiling sits slightly above
// the per-second one.
package production

import (
	"math"

	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
)

// ─── Caps ───────────────────────────────────────────────────────────────────

// Caps are the rate ceilings.
type Caps struct {
	PerAction float64
	PerSecond float64
}

// DefaultCaps returns the shipped ceilings. PerAction is 2^53-1, the largest
// integer a float64 counts exactly.
func DefaultCaps() Caps {
	return Caps{
		PerAction: 9_007_199_254_740_991,
		PerSecond: 8_000_000_000_000_000,
	}
}

// MinActionRate is the floor for the per-action rate.
const MinActionRate = 1.0

// ─── Aggregation ────────────────────────────────────────────────────────────

// Breakdown is the uncapped per-group composition.
type Breakdown struct {
	Flat          float64 `json:"flat"`
	PercentFactor float64 `json:"percent_factor"`
	Bonus         float64 `json:"bonus"`
}

// Raw returns Flat × PercentFactor × (1 + Bonus).
func (b Breakdown) Raw() float64 {
	return b.Flat * b.PercentFactor * (1 + b.Bonus)
}

// Aggregate folds every item of group g into a Breakdown. Items missing from
// levels are at level 0 and contribute the neutral element.
func Aggregate(defs []domain.ItemDef, levels map[string]int, g domain.Group) Breakdown {
	b := Breakdown{PercentFactor: 1}
	for _, def := range defs {
		if def.Group != g {
			continue
		}
		c := domain.Contribution(def, levels[def.Key])
		switch def.Kind {
		case domain.EffectFlat:
			b.Flat += c
		case domain.EffectPercentage:
			b.PercentFactor *= c
		case domain.EffectMultiplier:
			b.Bonus += c
		}
	}
	return b
}

// ─── Rates ──────────────────────────────────────────────────────────────────

// Rates are the derived production rates. They are never persisted.
type Rates struct {
	PerAction float64 `json:"per_action"`
	PerSecond float64 `json:"per_second"`
}

// ActionRate computes the per-action rate from manual upgrades.
func ActionRate(cat *catalog.Catalog, levels map[string]int, caps Caps) float64 {
	raw := Aggregate(cat.Items(), levels, domain.GroupManual).Raw()
	return bound(raw, MinActionRate, caps.PerAction)
}

// SecondRate computes the per-second rate from generators.
func SecondRate(cat *catalog.Catalog, levels map[string]int, caps Caps) float64 {
	raw := Aggregate(cat.Items(), levels, domain.GroupGenerator).Raw()
	return bound(raw, 0, caps.PerSecond)
}

// Compute derives both rates.
func Compute(cat *catalog.Catalog, levels map[string]int, caps Caps) Rates {
	return Rates{
		PerAction: ActionRate(cat, levels, caps),
		PerSecond: SecondRate(cat, levels, caps),
	}
}

// Recompute refreshes only the rate fed by group g.
func Recompute(r Rates, g domain.Group, cat *catalog.Catalog, levels map[string]int, caps Caps) Rates {
	switch g {
	case domain.GroupManual:
		r.PerAction = ActionRate(cat, levels, caps)
	case domain.GroupGenerator:
		r.PerSecond = SecondRate(cat, levels, caps)
	}
	return r
}

// bound clamps v into [lo, hi]. NaN collapses to lo, +Inf to hi.
func bound(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

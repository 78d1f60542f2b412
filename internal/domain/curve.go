package domain

import "math"

// ─── Cost Curve ─────────────────────────────────────────────────────────────

// Cost returns the price of the next purchase, taking the item from level
// to level+1: floor(baseCost × growth^level).
func Cost(def ItemDef, level int) float64 {
	if level < 0 {
		level = 0
	}
	return math.Floor(def.BaseCost * math.Pow(def.CostGrowth, float64(level)))
}

// ─── Effect Curves ──────────────────────────────────────────────────────────

// Effect is an item's current effect and the delta the next level would add.
// Next is zero once the item is at max level.
type Effect struct {
	Current float64 `json:"current"`
	Next    float64 `json:"next"`
}

// Contribution returns what an item at level feeds into the aggregator.
// Level 0 yields the neutral element: 0 for flat, 1 for percentage,
// 0 for multiplier.
//
//	flat:       unitProduction × tierFactor × Σ_{i=1..L} i
//	percentage: (1 + percentPerLevel/100)^L
//	multiplier: perLevelBonus × L
func Contribution(def ItemDef, level int) float64 {
	level = def.ClampLevel(level)
	switch def.Kind {
	case EffectFlat:
		return def.UnitProduction * tierFactor(def) * triangular(level)
	case EffectPercentage:
		return math.Pow(1+def.PercentPerLevel/100, float64(level))
	case EffectMultiplier:
		return def.PerLevelBonus * float64(level)
	default:
		return 0
	}
}

// EffectAt returns the effect shown for an item at level. Multiplier items
// report their factor (1 + bonus) as the current value, matching the "×N"
// presentation; the delta is the raw bonus increment.
func EffectAt(def ItemDef, level int) Effect {
	level = def.ClampLevel(level)
	cur := Contribution(def, level)

	var next float64
	if level < def.MaxLevel {
		next = Contribution(def, level+1) - cur
	}

	if def.Kind == EffectMultiplier {
		cur = 1 + cur
	}
	return Effect{Current: cur, Next: next}
}

// EffectTable generates the first n contributions of an item from the closed
// form, for presentation that wants a lookup-table view of early levels.
func EffectTable(def ItemDef, n int) []float64 {
	if n > def.MaxLevel+1 {
		n = def.MaxLevel + 1
	}
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = Contribution(def, i)
	}
	return out
}

func tierFactor(def ItemDef) float64 {
	if def.TierFactor < 1 {
		return 1
	}
	return def.TierFactor
}

// triangular returns 1 + 2 + ... + n.
func triangular(n int) float64 {
	return float64(n) * float64(n+1) / 2
}

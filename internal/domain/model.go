// Package domain contains pure progression types with ZERO infrastructure imports.
// This is the innermost ring of the engine and depends on nothing.
package domain

import (
	"fmt"
	"strings"
)

// ─── Effect Kinds ───────────────────────────────────────────────────────────

// EffectKind selects how an item's level turns into production impact.
type EffectKind int

const (
	EffectFlat       EffectKind = iota // additive amount
	EffectPercentage                   // compounding relative boost
	EffectMultiplier                   // additive bonus to the overall multiplier
)

// String returns the lowercase name used in catalog files.
func (k EffectKind) String() string {
	switch k {
	case EffectFlat:
		return "flat"
	case EffectPercentage:
		return "percentage"
	case EffectMultiplier:
		return "multiplier"
	default:
		return "unknown"
	}
}

// ParseEffectKind parses a catalog file effect name.
func ParseEffectKind(s string) (EffectKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat":
		return EffectFlat, nil
	case "percentage", "percent":
		return EffectPercentage, nil
	case "multiplier":
		return EffectMultiplier, nil
	default:
		return 0, fmt.Errorf("%w: unknown effect kind %q", ErrInvalidCatalog, s)
	}
}

// ─── Item Groups ────────────────────────────────────────────────────────────

// Group partitions the catalog. Manual upgrades feed the per-action rate,
// generators feed the per-second rate. The groups never interact.
type Group int

const (
	GroupManual Group = iota
	GroupGenerator
)

// String returns the lowercase group name.
func (g Group) String() string {
	switch g {
	case GroupManual:
		return "manual"
	case GroupGenerator:
		return "generator"
	default:
		return "unknown"
	}
}

// ParseGroup parses a catalog file group name.
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "upgrade":
		return GroupManual, nil
	case "generator", "automator":
		return GroupGenerator, nil
	default:
		return 0, fmt.Errorf("%w: unknown group %q", ErrInvalidCatalog, s)
	}
}

// ─── Item Definitions ───────────────────────────────────────────────────────

// ItemDef is the immutable definition of one purchasable catalog entry.
// Only the parameters matching Kind are read by the effect curves.
type ItemDef struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Group       Group      `json:"group"`
	Kind        EffectKind `json:"kind"`
	BaseCost    float64    `json:"base_cost"`
	CostGrowth  float64    `json:"cost_growth"`
	MaxLevel    int        `json:"max_level"`

	// Flat
	UnitProduction float64 `json:"unit_production,omitempty"`
	TierFactor     float64 `json:"tier_factor,omitempty"`

	// Percentage
	PercentPerLevel float64 `json:"percent_per_level,omitempty"`

	// Multiplier
	PerLevelBonus float64 `json:"per_level_bonus,omitempty"`
}

// ClampLevel bounds a level to [0, MaxLevel].
func (d ItemDef) ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > d.MaxLevel {
		return d.MaxLevel
	}
	return level
}

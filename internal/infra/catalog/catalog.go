// Package catalog holds the definitions of every purchasable item: manual
// upgrades that raise shuffles per click and generators that shuffle on
// their own. Definitions are immutable once a Catalog is built.
package catalog

import (
	"fmt"
	"math"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// Catalog is an ordered, validated, read-only set of item definitions.
type Catalog struct {
	defs  []domain.ItemDef
	index map[string]int
}

// New validates defs and builds a Catalog preserving their order.
func New(defs []domain.ItemDef) (*Catalog, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	c := &Catalog{
		defs:  make([]domain.ItemDef, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		c.index[d.Key] = i
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(Builtin())
	if err != nil {
		panic(fmt.Sprintf("catalog: builtin definitions invalid: %v", err))
	}
	return c
}

// Lookup finds an item definition by key.
func (c *Catalog) Lookup(key string) (domain.ItemDef, bool) {
	i, ok := c.index[key]
	if !ok {
		return domain.ItemDef{}, false
	}
	return c.defs[i], true
}

// Items returns a copy of all definitions in catalog order.
func (c *Catalog) Items() []domain.ItemDef {
	out := make([]domain.ItemDef, len(c.defs))
	copy(out, c.defs)
	return out
}

// Group returns the definitions belonging to g, in catalog order.
func (c *Catalog) Group(g domain.Group) []domain.ItemDef {
	var out []domain.ItemDef
	for _, d := range c.defs {
		if d.Group == g {
			out = append(out, d)
		}
	}
	return out
}

// Keys returns every item key in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.defs))
	for i, d := range c.defs {
		keys[i] = d.Key
	}
	return keys
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.defs) }

// Validate checks every definition. Cost growth must exceed 1 so that cost
// strictly increases with level.
func Validate(defs []domain.ItemDef) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: catalog is empty", domain.ErrInvalidCatalog)
	}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Key == "" {
			return fmt.Errorf("%w: item with empty key", domain.ErrInvalidCatalog)
		}
		if seen[d.Key] {
			return fmt.Errorf("%w: duplicate key %q", domain.ErrInvalidCatalog, d.Key)
		}
		seen[d.Key] = true

		if !positive(d.BaseCost) {
			return fmt.Errorf("%w: %s: base cost must be > 0", domain.ErrInvalidCatalog, d.Key)
		}
		if !(d.CostGrowth > 1) || math.IsInf(d.CostGrowth, 0) {
			return fmt.Errorf("%w: %s: cost growth must be > 1", domain.ErrInvalidCatalog, d.Key)
		}
		if d.MaxLevel < 1 {
			return fmt.Errorf("%w: %s: max level must be >= 1", domain.ErrInvalidCatalog, d.Key)
		}
		if d.Group != domain.GroupManual && d.Group != domain.GroupGenerator {
			return fmt.Errorf("%w: %s: unknown group %d", domain.ErrInvalidCatalog, d.Key, d.Group)
		}

		switch d.Kind {
		case domain.EffectFlat:
			if !positive(d.UnitProduction) {
				return fmt.Errorf("%w: %s: unit production must be > 0", domain.ErrInvalidCatalog, d.Key)
			}
			if d.TierFactor != 0 && d.TierFactor < 1 {
				return fmt.Errorf("%w: %s: tier factor must be >= 1", domain.ErrInvalidCatalog, d.Key)
			}
		case domain.EffectPercentage:
			if !positive(d.PercentPerLevel) {
				return fmt.Errorf("%w: %s: percent per level must be > 0", domain.ErrInvalidCatalog, d.Key)
			}
		case domain.EffectMultiplier:
			if !positive(d.PerLevelBonus) {
				return fmt.Errorf("%w: %s: per-level bonus must be > 0", domain.ErrInvalidCatalog, d.Key)
			}
		default:
			return fmt.Errorf("%w: %s: unknown effect kind %d", domain.ErrInvalidCatalog, d.Key, d.Kind)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

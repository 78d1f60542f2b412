package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

func TestLookupExistingItem(t *testing.T) {
	c := Default()
	tests := []struct {
		key       string
		wantGroup domain.Group
		wantKind  domain.EffectKind
	}{
		{"technique", domain.GroupManual, domain.EffectFlat},
		{"cardQuality", domain.GroupManual, domain.EffectPercentage},
		{"multiDeck", domain.GroupManual, domain.EffectMultiplier},
		{"noviceShuffler", domain.GroupGenerator, domain.EffectFlat},
		{"deckEnhancer", domain.GroupGenerator, domain.EffectPercentage},
		{"parallelUniverse", domain.GroupGenerator, domain.EffectMultiplier},
		{"cardAI", domain.GroupGenerator, domain.EffectFlat},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			def, ok := c.Lookup(tt.key)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.key)
			}
			if def.Group != tt.wantGroup {
				t.Errorf("Lookup(%q).Group = %s, want %s", tt.key, def.Group, tt.wantGroup)
			}
			if def.Kind != tt.wantKind {
				t.Errorf("Lookup(%q).Kind = %s, want %s", tt.key, def.Kind, tt.wantKind)
			}
		})
	}
}

func TestLookupUnknownItem(t *testing.T) {
	if _, ok := Default().Lookup("goldenDeck"); ok {
		t.Error("Lookup(goldenDeck) should not be found")
	}
}

func TestCatalogNotEmpty(t *testing.T) {
	c := Default()
	if c.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", c.Len())
	}
	if n := len(c.Group(domain.GroupManual)); n != 6 {
		t.Errorf("manual items = %d, want 6", n)
	}
	if n := len(c.Group(domain.GroupGenerator)); n != 10 {
		t.Errorf("generator items = %d, want 10", n)
	}
}

func TestBuiltinManualGrowthByKind(t *testing.T) {
	for _, def := range Default().Group(domain.GroupManual) {
		var want float64
		switch def.Kind {
		case domain.EffectFlat:
			want = 1.5
		case domain.EffectPercentage:
			want = 1.7
		case domain.EffectMultiplier:
			want = 2.0
		}
		if def.CostGrowth != want {
			t.Errorf("%s CostGrowth = %v, want %v", def.Key, def.CostGrowth, want)
		}
	}
}

func TestAllEntriesHaveMetadata(t *testing.T) {
	for _, def := range Default().Items() {
		if def.Name == "" {
			t.Errorf("item %q has empty Name", def.Key)
		}
		if def.Description == "" {
			t.Errorf("item %q has empty Description", def.Key)
		}
		if def.MaxLevel != 50 {
			t.Errorf("item %q MaxLevel = %d, want 50", def.Key, def.MaxLevel)
		}
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	c := Default()
	items := c.Items()
	items[0].BaseCost = 1e9

	def, _ := c.Lookup(items[0].Key)
	if def.BaseCost == 1e9 {
		t.Error("Items() did not return a copy; mutation leaked")
	}
}

// ─── Validation ─────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	good := domain.ItemDef{
		Key: "a", Group: domain.GroupGenerator, Kind: domain.EffectFlat,
		BaseCost: 10, CostGrowth: 1.5, MaxLevel: 5, UnitProduction: 1,
	}

	tests := []struct {
		name   string
		mutate func(d *domain.ItemDef)
	}{
		{"empty key", func(d *domain.ItemDef) { d.Key = "" }},
		{"zero base cost", func(d *domain.ItemDef) { d.BaseCost = 0 }},
		{"flat growth", func(d *domain.ItemDef) { d.CostGrowth = 1 }},
		{"zero max level", func(d *domain.ItemDef) { d.MaxLevel = 0 }},
		{"no production", func(d *domain.ItemDef) { d.UnitProduction = 0 }},
		{"tier below one", func(d *domain.ItemDef) { d.TierFactor = 0.5 }},
		{"bad kind", func(d *domain.ItemDef) { d.Kind = domain.EffectKind(9) }},
		{"bad group", func(d *domain.ItemDef) { d.Group = domain.Group(9) }},
	}

	if err := Validate([]domain.ItemDef{good}); err != nil {
		t.Fatalf("Validate(good) = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := good
			tt.mutate(&d)
			if err := Validate([]domain.ItemDef{d}); !errors.Is(err, domain.ErrInvalidCatalog) {
				t.Errorf("Validate() = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestValidate_DuplicateKey(t *testing.T) {
	d := domain.ItemDef{
		Key: "a", Group: domain.GroupManual, Kind: domain.EffectMultiplier,
		BaseCost: 1, CostGrowth: 2, MaxLevel: 1, PerLevelBonus: 1,
	}
	if err := Validate([]domain.ItemDef{d, d}); !errors.Is(err, domain.ErrInvalidCatalog) {
		t.Errorf("Validate(duplicate) = %v, want ErrInvalidCatalog", err)
	}
}

// ─── Override File ──────────────────────────────────────────────────────────

func TestParse_OverridesAndAppends(t *testing.T) {
	doc := []byte(`
remove: [cardAI]
items:
  - key: noviceShuffler
    group: generator
    kind: flat
    base_cost: 20
    cost_growth: 1.1
    max_level: 10
    unit_production: 3
  - key: luckyCharm
    name: Lucky Charm
    group: manual
    kind: percentage
    base_cost: 5
    cost_growth: 3
    max_level: 2
    percent_per_level: 25
`)
	c, err := Parse(doc, Builtin())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.Len() != 16 {
		t.Errorf("Len() = %d, want 16 (one removed, one added)", c.Len())
	}
	if _, ok := c.Lookup("cardAI"); ok {
		t.Error("cardAI should be removed")
	}

	novice, _ := c.Lookup("noviceShuffler")
	if novice.BaseCost != 20 || novice.MaxLevel != 10 {
		t.Errorf("noviceShuffler = %+v, want override", novice)
	}
	if c.Keys()[6] != "noviceShuffler" {
		t.Errorf("override should keep position, got keys %v", c.Keys())
	}

	charm, ok := c.Lookup("luckyCharm")
	if !ok || charm.Kind != domain.EffectPercentage || charm.Group != domain.GroupManual {
		t.Errorf("luckyCharm = %+v, %v", charm, ok)
	}
}

func TestParse_Replace(t *testing.T) {
	doc := []byte(`
replace: true
items:
  - key: only
    group: generator
    kind: multiplier
    base_cost: 1
    cost_growth: 2
    max_level: 3
    per_level_bonus: 1
`)
	c, err := Parse(doc, Builtin())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.Len() != 1 || c.Keys()[0] != "only" {
		t.Errorf("Keys() = %v, want [only]", c.Keys())
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":  "items: [",
		"bad kind":  "items:\n  - {key: x, group: manual, kind: exp, base_cost: 1, cost_growth: 2, max_level: 1}",
		"bad group": "items:\n  - {key: x, group: idle, kind: flat, base_cost: 1, cost_growth: 2, max_level: 1}",
		"growth":    "items:\n  - {key: x, group: manual, kind: flat, base_cost: 1, cost_growth: 0.5, max_level: 1, unit_production: 1}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc), Builtin()); !errors.Is(err, domain.ErrInvalidCatalog) {
				t.Errorf("Parse() = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	if err != nil || c.Len() != len(Builtin()) {
		t.Fatalf("LoadFile(\"\") = %v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("remove: [technique]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if _, ok := c.Lookup("technique"); ok {
		t.Error("technique should be removed")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

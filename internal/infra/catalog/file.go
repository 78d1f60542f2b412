package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// File is the YAML layout of a catalog override file:
//
//	replace: false          # true drops the builtin catalog entirely
//	remove: [cardAI]        # builtin keys to drop
//	items:
//	  - key: technique
//	    group: manual
//	    kind: flat
//	    base_cost: 10
//	    cost_growth: 1.5
//	    max_level: 50
//	    unit_production: 2
//	    tier_factor: 1
//
// Items whose key exists in the base catalog replace that entry in place;
// new keys are appended.
type File struct {
	Replace bool       `yaml:"replace"`
	Remove  []string   `yaml:"remove"`
	Items   []fileItem `yaml:"items"`
}

type fileItem struct {
	Key             string  `yaml:"key"`
	Name            string  `yaml:"name"`
	Description     string  `yaml:"description"`
	Group           string  `yaml:"group"`
	Kind            string  `yaml:"kind"`
	BaseCost        float64 `yaml:"base_cost"`
	CostGrowth      float64 `yaml:"cost_growth"`
	MaxLevel        int     `yaml:"max_level"`
	UnitProduction  float64 `yaml:"unit_production"`
	TierFactor      float64 `yaml:"tier_factor"`
	PercentPerLevel float64 `yaml:"percent_per_level"`
	PerLevelBonus   float64 `yaml:"per_level_bonus"`
}

func (fi fileItem) toDef() (domain.ItemDef, error) {
	group, err := domain.ParseGroup(fi.Group)
	if err != nil {
		return domain.ItemDef{}, fmt.Errorf("item %q: %w", fi.Key, err)
	}
	kind, err := domain.ParseEffectKind(fi.Kind)
	if err != nil {
		return domain.ItemDef{}, fmt.Errorf("item %q: %w", fi.Key, err)
	}
	name := fi.Name
	if name == "" {
		name = fi.Key
	}
	return domain.ItemDef{
		Key:             fi.Key,
		Name:            name,
		Description:     fi.Description,
		Group:           group,
		Kind:            kind,
		BaseCost:        fi.BaseCost,
		CostGrowth:      fi.CostGrowth,
		MaxLevel:        fi.MaxLevel,
		UnitProduction:  fi.UnitProduction,
		TierFactor:      fi.TierFactor,
		PercentPerLevel: fi.PercentPerLevel,
		PerLevelBonus:   fi.PerLevelBonus,
	}, nil
}

// Parse decodes an override document and applies it on top of base.
func Parse(data []byte, base []domain.ItemDef) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", domain.ErrInvalidCatalog, err)
	}
	return f.Apply(base)
}

// Apply merges the file into base and validates the result.
func (f File) Apply(base []domain.ItemDef) (*Catalog, error) {
	var defs []domain.ItemDef
	if !f.Replace {
		removed := make(map[string]bool, len(f.Remove))
		for _, k := range f.Remove {
			removed[k] = true
		}
		for _, d := range base {
			if !removed[d.Key] {
				defs = append(defs, d)
			}
		}
	}

	for _, fi := range f.Items {
		def, err := fi.toDef()
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range defs {
			if defs[i].Key == def.Key {
				defs[i] = def
				replaced = true
				break
			}
		}
		if !replaced {
			defs = append(defs, def)
		}
	}
	return New(defs)
}

// LoadFile reads a YAML override file and applies it over the builtin catalog.
// An empty path returns the builtin catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data, Builtin())
}

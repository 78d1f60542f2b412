package catalog

import "github.com/shuffle-empire/shuffle/internal/domain"

// Manual upgrade cost growth per effect kind.
const (
	growthFlatUpgrade       = 1.5
	growthPercentageUpgrade = 1.7
	growthMultiplierUpgrade = 2.0
)

const defaultMaxLevel = 50

// Builtin returns a fresh copy of the shipped catalog, manual upgrades first.
func Builtin() []domain.ItemDef {
	return []domain.ItemDef{
		// ─── Manual upgrades (shuffles per click) ───────────────────────
		{
			Key: "technique", Name: "Shuffle Technique",
			Description: "Improve your shuffling technique to get more shuffles per click",
			Group:       domain.GroupManual, Kind: domain.EffectFlat,
			BaseCost: 10, CostGrowth: growthFlatUpgrade, MaxLevel: defaultMaxLevel,
			UnitProduction: 2, TierFactor: 1,
		},
		{
			Key: "cardQuality", Name: "Card Quality",
			Description: "Better cards means more efficient shuffling",
			Group:       domain.GroupManual, Kind: domain.EffectPercentage,
			BaseCost: 50, CostGrowth: growthPercentageUpgrade, MaxLevel: defaultMaxLevel,
			PercentPerLevel: 30,
		},
		{
			Key: "multiDeck", Name: "Multi-Deck Handling",
			Description: "Learn to shuffle multiple decks at once",
			Group:       domain.GroupManual, Kind: domain.EffectMultiplier,
			BaseCost: 200, CostGrowth: growthMultiplierUpgrade, MaxLevel: defaultMaxLevel,
			PerLevelBonus: 1,
		},
		{
			Key: "advancedTechnique", Name: "Advanced Technique",
			Description: "Advanced shuffling patterns for greater productivity",
			Group:       domain.GroupManual, Kind: domain.EffectFlat,
			BaseCost: 10000, CostGrowth: growthFlatUpgrade, MaxLevel: defaultMaxLevel,
			UnitProduction: 50, TierFactor: 1.5,
		},
		{
			Key: "cardEnchantment", Name: "Card Enchantment",
			Description: "Enchanted cards that flow through your hands",
			Group:       domain.GroupManual, Kind: domain.EffectPercentage,
			BaseCost: 50000, CostGrowth: growthPercentageUpgrade, MaxLevel: defaultMaxLevel,
			PercentPerLevel: 50,
		},
		{
			Key: "deckDimension", Name: "Deck Dimension",
			Description: "Access extra dimensions to store more decks",
			Group:       domain.GroupManual, Kind: domain.EffectMultiplier,
			BaseCost: 200000, CostGrowth: growthMultiplierUpgrade, MaxLevel: defaultMaxLevel,
			PerLevelBonus: 4,
		},

		// ─── Generators (shuffles per second) ───────────────────────────
		{
			Key: "noviceShuffler", Name: "Novice Shuffler",
			Description: "A beginner who can slowly shuffle cards for you",
			Group:       domain.GroupGenerator, Kind: domain.EffectFlat,
			BaseCost: 15, CostGrowth: 1.15, MaxLevel: defaultMaxLevel,
			UnitProduction: 1, TierFactor: 1,
		},
		{
			Key: "deckEnhancer", Name: "Deck Enhancer",
			Description: "Enhances all card shuffling operations with special materials",
			Group:       domain.GroupGenerator, Kind: domain.EffectPercentage,
			BaseCost: 100, CostGrowth: 1.15, MaxLevel: defaultMaxLevel,
			PercentPerLevel: 5,
		},
		{
			Key: "cardFactory", Name: "Card Factory",
			Description: "A factory that mass-produces playing cards and handles them",
			Group:       domain.GroupGenerator, Kind: domain.EffectMultiplier,
			BaseCost: 500, CostGrowth: 1.35, MaxLevel: defaultMaxLevel,
			PerLevelBonus: 0.5,
		},
		{
			Key: "cardDealer", Name: "Card Dealer",
			Description: "A professional casino dealer with quick hands",
			Group:       domain.GroupGenerator, Kind: domain.EffectFlat,
			BaseCost: 2500, CostGrowth: 1.18, MaxLevel: defaultMaxLevel,
			UnitProduction: 8, TierFactor: 1.25,
		},
		{
			Key: "shuffleTrainer", Name: "Shuffle Trainer",
			Description: "Trains all your automators to work more efficiently",
			Group:       domain.GroupGenerator, Kind: domain.EffectPercentage,
			BaseCost: 12000, CostGrowth: 1.2, MaxLevel: defaultMaxLevel,
			PercentPerLevel: 10,
		},
		{
			Key: "shufflePortal", Name: "Shuffle Portal",
			Description: "Opens a portal to another dimension where time flows differently",
			Group:       domain.GroupGenerator, Kind: domain.EffectMultiplier,
			BaseCost: 60000, CostGrowth: 1.4, MaxLevel: defaultMaxLevel,
			PerLevelBonus: 1,
		},
		{
			Key: "shuffleMachine", Name: "Shuffle Machine",
			Description: "An automated machine that shuffles cards rapidly",
			Group:       domain.GroupGenerator, Kind: domain.EffectFlat,
			BaseCost: 300000, CostGrowth: 1.2, MaxLevel: defaultMaxLevel,
			UnitProduction: 50, TierFactor: 1.5,
		},
		{
			Key: "timeAccelerator", Name: "Time Accelerator",
			Description: "Speeds up time locally around your shuffling operations",
			Group:       domain.GroupGenerator, Kind: domain.EffectPercentage,
			BaseCost: 1500000, CostGrowth: 1.25, MaxLevel: defaultMaxLevel,
			PercentPerLevel: 15,
		},
		{
			Key: "parallelUniverse", Name: "Parallel Universe",
			Description: "Access infinite parallel universes to shuffle cards simultaneously",
			Group:       domain.GroupGenerator, Kind: domain.EffectMultiplier,
			BaseCost: 7500000, CostGrowth: 1.5, MaxLevel: defaultMaxLevel,
			PerLevelBonus: 2,
		},
		{
			Key: "cardAI", Name: "Card Shuffling AI",
			Description: "Artificial intelligence that shuffles cards virtually",
			Group:       domain.GroupGenerator, Kind: domain.EffectFlat,
			BaseCost: 40000000, CostGrowth: 1.25, MaxLevel: defaultMaxLevel,
			UnitProduction: 300, TierFactor: 2,
		},
	}
}

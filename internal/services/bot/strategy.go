package bot

import (
	"math"

	"github.com/mcoot/estimategame/internal/dependencies/random"
	"github.com/mcoot/estimategame/internal/model"
)

// Strategy defines how a bot estimates an item
type Strategy interface {
	// Estimate returns a finite, non-negative guess for the item
	Estimate(item *model.Item) float64
}

// DefaultStrategies returns every built-in strategy keyed by name
func DefaultStrategies(rnd random.Random) map[string]Strategy {
	return map[string]Strategy{
		model.BotStrategyRandom: NewRandomStrategy(rnd),
		model.BotStrategyAnchor: NewAnchorStrategy(rnd),
	}
}

// roundCents keeps bot guesses readable
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

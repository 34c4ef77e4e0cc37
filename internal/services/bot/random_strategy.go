package bot

import (
	"github.com/mcoot/estimategame/internal/dependencies/random"
	"github.com/mcoot/estimategame/internal/model"
)

// RandomStrategy guesses anywhere within ±50% of the base price
type RandomStrategy struct {
	random random.Random
}

// NewRandomStrategy creates a new RandomStrategy
func NewRandomStrategy(rnd random.Random) *RandomStrategy {
	return &RandomStrategy{random: rnd}
}

// Estimate returns base price × [0.5, 1.5)
func (s *RandomStrategy) Estimate(item *model.Item) float64 {
	return roundCents(item.BasePrice * (0.5 + s.random.Float64()))
}

// AnchorStrategy stays close to the base price, within ±10%
type AnchorStrategy struct {
	random random.Random
}

// NewAnchorStrategy creates a new AnchorStrategy
func NewAnchorStrategy(rnd random.Random) *AnchorStrategy {
	return &AnchorStrategy{random: rnd}
}

// Estimate returns base price × [0.9, 1.1)
func (s *AnchorStrategy) Estimate(item *model.Item) float64 {
	return roundCents(item.BasePrice * (0.9 + 0.2*s.random.Float64()))
}

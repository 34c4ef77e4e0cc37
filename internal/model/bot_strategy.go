package model

// Bot strategy constants
const (
	BotStrategyRandom = "random"
	BotStrategyAnchor = "anchor"
)

// BotStrategyDisplayName returns a human-readable label for a strategy
func BotStrategyDisplayName(strategy string) string {
	switch strategy {
	case BotStrategyRandom:
		return "Wild Guesser"
	case BotStrategyAnchor:
		return "Price Anchor"
	default:
		return strategy
	}
}

// ValidBotStrategies returns all valid bot strategy names
func ValidBotStrategies() []string {
	return []string{BotStrategyRandom, BotStrategyAnchor}
}

// IsValidBotStrategy reports whether the strategy is known
func IsValidBotStrategy(strategy string) bool {
	for _, s := range ValidBotStrategies() {
		if s == strategy {
			return true
		}
	}
	return false
}

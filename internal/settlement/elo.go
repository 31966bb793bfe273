package settlement

import (
	"math"

	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

// BotDelta is the fixed rating change for a human playing a bot.
type BotDelta struct {
	Win  int
	Loss int
}

// Policy holds the tunable rewards of a finished match.
type Policy struct {
	KFactor      int
	Experience   int
	UnlockChance float64
	MinElo       int
	Bot          map[match.Difficulty]BotDelta
}

// DefaultPolicy returns the standard rewards.
func DefaultPolicy() Policy {
	return Policy{
		KFactor:      32,
		Experience:   100,
		UnlockChance: 0.1,
		MinElo:       1,
		Bot: map[match.Difficulty]BotDelta{
			match.DifficultyMaster:  {Win: 20, Loss: -10},
			match.DifficultyVeteran: {Win: 15, Loss: -15},
			match.DifficultyNovice:  {Win: 10, Loss: -20},
		},
	}
}

// BotDelta returns the rating change for a human who won or lost against
// a bot of difficulty d. Unknown difficulties use the novice stakes.
func (p Policy) BotDelta(d match.Difficulty, won bool) int {
	delta, ok := p.Bot[d]
	if !ok {
		delta = p.Bot[match.DifficultyNovice]
	}
	if won {
		return delta.Win
	}
	return delta.Loss
}

func (p Policy) floor(elo int) int {
	return max(elo, p.MinElo)
}

// Expected is the probability that a player rated a beats one rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Elo returns the new ratings of a winner and a loser.
func Elo(winner, loser, k int) (int, int) {
	newWinner := float64(winner) + float64(k)*(1-Expected(winner, loser))
	newLoser := float64(loser) + float64(k)*(0-Expected(loser, winner))
	return int(math.Round(newWinner)), int(math.Round(newLoser))
}

type tier struct {
	min  int
	name string
}

var tiers = []tier{
	{2000, "Legendary Commander"},
	{1800, "Master Tactician"},
	{1600, "Elite Strategist"},
	{1400, "Veteran Commander"},
	{1200, "Skilled Tactician"},
	{1000, "Experienced Strategist"},
}

// RankTier names the rank band for elo.
func RankTier(elo int) string {
	for _, t := range tiers {
		if elo >= t.min {
			return t.name
		}
	}
	return "Rookie"
}

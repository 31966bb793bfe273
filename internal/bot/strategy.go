// Package bot plays one side of a match in-process. Bots receive events
// through the same notifier as people and act through the same match
// operations, so they are held to the same rules.
package bot

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

// Decision is what a bot does with one turn. A non-empty Swap moves
// HeroID instead of using a skill.
type Decision struct {
	HeroID    string
	SkillID   int
	TargetID  string
	Swap      combat.Position
	Reasoning string
}

// IsSwap reports whether the decision is a position swap.
func (d Decision) IsSwap() bool { return d.Swap != "" }

// Strategy drafts a team and chooses turns for one difficulty.
type Strategy interface {
	// Draft returns hero ids in order of preference.
	Draft(cat catalog.Catalog) []string
	// Decide picks an action from a turn prompt. It returns false when
	// nothing is legal and the bot should let the turn time out.
	Decide(ev match.Event) (Decision, bool)
}

// ForDifficulty returns the strategy for d. Unknown difficulties play as
// novices.
func ForDifficulty(d match.Difficulty, rng *rand.Rand) Strategy {
	switch d {
	case match.DifficultyMaster:
		return NewMaster()
	case match.DifficultyVeteran:
		return NewVeteran()
	default:
		return NewNovice(rng)
	}
}

// Participant builds a bot opponent. ids are expected to be negative so
// they never collide with accounts.
func Participant(id int64, d match.Difficulty, rng *rand.Rand) match.Participant {
	prefix, base := "NoviceBot", 1000
	switch d {
	case match.DifficultyMaster:
		prefix, base = "MasterBot", 1800
	case match.DifficultyVeteran:
		prefix, base = "VeteranBot", 1400
	}
	return match.Participant{
		ID:         id,
		Name:       fmt.Sprintf("%s-%d", prefix, rng.IntN(100000)),
		Elo:        base + rng.IntN(200),
		Bot:        true,
		Difficulty: d,
	}
}

// ThinkDelay is how long a bot of difficulty d pauses before acting.
func ThinkDelay(d match.Difficulty, rng *rand.Rand) time.Duration {
	lo, spread := 300*time.Millisecond, 700*time.Millisecond
	switch d {
	case match.DifficultyMaster:
		lo, spread = 800*time.Millisecond, 1200*time.Millisecond
	case match.DifficultyVeteran:
		lo, spread = 500*time.Millisecond, 1000*time.Millisecond
	}
	return lo + time.Duration(rng.Int64N(int64(spread)))
}

// preferred returns roster filtered to heroes in cat, followed by every
// other catalog hero as a fallback.
func preferred(cat catalog.Catalog, roster []string) []string {
	all := cat.AllHeroIDs()
	out := make([]string, 0, len(all))
	for _, id := range roster {
		if _, ok := cat.HeroByID(id); ok {
			out = append(out, id)
		}
	}
	for _, id := range all {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// option is one usable skill of one unit.
type option struct {
	unit  match.UnitActions
	skill match.SkillAction
}

func usable(ev match.Event) []option {
	var out []option
	for _, u := range ev.Actions {
		if !u.Alive || u.Stunned {
			continue
		}
		for _, s := range u.Skills {
			if s.Usable {
				out = append(out, option{unit: u, skill: s})
			}
		}
	}
	return out
}

// targets lists the legal target ids of a single-target skill. Area and
// self skills return a single empty id.
func targets(ev match.Event, t catalog.Targeting) []string {
	var side []match.UnitView
	switch t {
	case catalog.TargetEnemy:
		side = ev.OpponentTeam
	case catalog.TargetAlly:
		side = ev.YourTeam
	default:
		return []string{""}
	}
	var out []string
	for _, u := range side {
		if u.Alive {
			out = append(out, u.HeroID)
		}
	}
	return out
}

// weakest returns the alive unit with the lowest HP in side.
func weakest(side []match.UnitView) (match.UnitView, bool) {
	var (
		best  match.UnitView
		found bool
	)
	for _, u := range side {
		if u.Alive && (!found || u.HP < best.HP) {
			best, found = u, true
		}
	}
	return best, found
}

// swapForward moves the first alive back-line unit to the front.
func swapForward(ev match.Event) (Decision, bool) {
	for _, u := range ev.YourTeam {
		if u.Alive && u.Position == combat.Back {
			return Decision{HeroID: u.HeroID, Swap: combat.Front, Reasoning: "no usable skill, moving up"}, true
		}
	}
	return Decision{}, false
}

func use(o option, target, why string) Decision {
	return Decision{HeroID: o.unit.HeroID, SkillID: o.skill.ID, TargetID: target, Reasoning: why}
}

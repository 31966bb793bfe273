package bot

import (
	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

var veteranRoster = []string{"hulk", "thor", "scarlet-witch", "falcon", "rocket-raccoon"}

// Veteran drafts a fixed heavy-hitting roster and always reaches for the
// biggest hit on the weakest enemy.
type Veteran struct{}

func NewVeteran() *Veteran { return &Veteran{} }

func (*Veteran) Draft(cat catalog.Catalog) []string {
	return preferred(cat, veteranRoster)
}

func (*Veteran) Decide(ev match.Event) (Decision, bool) {
	return strongestAttack(ev)
}

// strongestAttack picks the usable skill with the most damage. Enemy
// targeted skills aim at the lowest HP enemy.
func strongestAttack(ev match.Event) (Decision, bool) {
	var (
		best  option
		found bool
	)
	for _, o := range usable(ev) {
		if len(targets(ev, o.skill.Targeting)) == 0 {
			continue
		}
		if !found || o.skill.Damage > best.skill.Damage {
			best, found = o, true
		}
	}
	if !found {
		return swapForward(ev)
	}

	target := ""
	switch best.skill.Targeting {
	case catalog.TargetEnemy:
		if u, ok := weakest(ev.OpponentTeam); ok {
			target = u.HeroID
		}
	case catalog.TargetAlly:
		if u, ok := weakest(ev.YourTeam); ok {
			target = u.HeroID
		}
	}
	return use(best, target, "highest damage"), true
}

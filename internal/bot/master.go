package bot

import (
	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

var masterRoster = []string{"captain-america", "ironman", "doctor-strange", "black-widow", "groot"}

// healThreshold is the HP percentage below which a master heals first.
const healThreshold = 40

// Master drafts a balanced roster, keeps its team alive and otherwise
// plays like a veteran.
type Master struct{}

func NewMaster() *Master { return &Master{} }

func (*Master) Draft(cat catalog.Catalog) []string {
	return preferred(cat, masterRoster)
}

func (*Master) Decide(ev match.Event) (Decision, bool) {
	if d, ok := heal(ev); ok {
		return d, true
	}
	return strongestAttack(ev)
}

func heal(ev match.Event) (Decision, bool) {
	hurt, ok := weakest(ev.YourTeam)
	if !ok || hurt.MaxHP == 0 || hurt.HP*100 >= hurt.MaxHP*healThreshold {
		return Decision{}, false
	}

	var (
		best  option
		found bool
	)
	for _, o := range usable(ev) {
		if o.skill.Healing == 0 {
			continue
		}
		switch o.skill.Targeting {
		case catalog.TargetAlly, catalog.TargetAllAllies:
		case catalog.TargetSelf:
			if o.unit.HeroID != hurt.HeroID {
				continue
			}
		default:
			continue
		}
		if !found || o.skill.Healing > best.skill.Healing {
			best, found = o, true
		}
	}
	if !found {
		return Decision{}, false
	}

	target := ""
	if best.skill.Targeting == catalog.TargetAlly {
		target = hurt.HeroID
	}
	return use(best, target, "healing "+hurt.Name), true
}

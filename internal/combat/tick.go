package combat

import (
	"fmt"
	"sort"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

// TickRound runs end-of-round processing for every alive unit of team.
//
// Per unit the order is fixed: energy regen, cooldowns, buff expiry, debuff
// expiry, damage over time, then regen healing. Damage over time and regen
// use the effects that were active when the tick began, so an effect on its
// last round still ticks once as it expires.
func TickRound(team Team, heroes catalog.Catalog) []Line {
	var lines []Line
	for _, u := range team {
		if !u.Alive {
			continue
		}
		lines = append(lines, u.tick(heroes)...)
	}
	return lines
}

func (u *Unit) tick(heroes catalog.Catalog) []Line {
	var lines []Line
	effect := func(format string, args ...any) {
		lines = append(lines, Line{Text: fmt.Sprintf(format, args...), Category: CategoryEffect})
	}

	dot := 0
	for _, d := range u.Debuffs {
		if d.Kind.DamageOverTime() {
			dot += d.Magnitude
		}
	}
	regen := u.magnitudeOf(catalog.EffectRegen)

	if gained := min(u.MaxEnergy-u.Energy, u.EnergyRegen); gained > 0 {
		u.Energy += gained
		effect("%s recovered %d energy.", u.Name, gained)
	}

	skillIDs := make([]int, 0, len(u.Cooldowns))
	for id := range u.Cooldowns {
		skillIDs = append(skillIDs, id)
	}
	sort.Ints(skillIDs)
	for _, id := range skillIDs {
		if u.Cooldowns[id] <= 0 {
			continue
		}
		u.Cooldowns[id]--
		if u.Cooldowns[id] == 0 {
			effect("%s's %s is ready again.", u.Name, skillName(heroes, u.HeroID, id))
		}
	}

	u.Buffs = expire(u.Buffs, func(e Effect) {
		effect("%s's %s buff expired.", u.Name, e.Kind)
	})
	u.Debuffs = expire(u.Debuffs, func(e Effect) {
		effect("%s is no longer affected by %s.", u.Name, e.Kind)
	})

	if dot > 0 {
		taken := u.takeDamage(dot)
		effect("%s took %d damage from damage over time effects.", u.Name, taken)
		if !u.Alive {
			effect("%s was defeated!", u.Name)
			return lines
		}
	}

	if regen > 0 {
		if healed := u.heal(regen); healed > 0 {
			effect("%s recovered %d HP from regeneration.", u.Name, healed)
		}
	}
	return lines
}

func expire(effects []Effect, onExpire func(Effect)) []Effect {
	kept := effects[:0]
	for _, e := range effects {
		e.Remaining--
		if e.Remaining <= 0 {
			onExpire(e)
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func skillName(heroes catalog.Catalog, heroID string, skillID int) string {
	if heroes != nil {
		if hero, ok := heroes.HeroByID(heroID); ok {
			if skill, ok := hero.Skill(skillID); ok {
				return skill.Name
			}
		}
	}
	return fmt.Sprintf("skill %d", skillID)
}

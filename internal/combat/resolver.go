package combat

import (
	"fmt"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

// Category classifies a battle-log line.
type Category string

const (
	CategoryAction Category = "action"
	CategorySystem Category = "system"
	CategoryEffect Category = "effect"
)

// Line is one battle-log entry before the match stamps it with a round.
type Line struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// AppliedEffect records an effect added to a target during resolution.
type AppliedEffect struct {
	Target string `json:"target"`
	Effect Effect `json:"effect"`
}

// Resolution is the outcome of one skill use.
type Resolution struct {
	Damage     int             `json:"damage"`
	Healing    int             `json:"healing"`
	HighestHit int             `json:"highestHit"`
	Effects    []AppliedEffect `json:"effects,omitempty"`
	Defeated   []string        `json:"defeated,omitempty"`
	Lines      []Line          `json:"-"`
}

// Resolve applies skill from actor to targets. Targets must already be
// filtered to alive units; the caller owns validation, energy and cooldowns.
func Resolve(actor *Unit, skill *catalog.SkillDefinition, targets []*Unit) Resolution {
	res := Resolution{
		Lines: []Line{{
			Text:     fmt.Sprintf("%s used %s!", actor.Name, skill.Name),
			Category: CategoryAction,
		}},
	}

	strength := 100 + actor.magnitudeOf(catalog.EffectStrengthen)

	for _, target := range targets {
		if skill.Damage > 0 {
			// Percentages stay integral so the floor is exact.
			vulnerability := 100 + target.magnitudeOf(catalog.EffectWeaken)
			raw := skill.Damage * strength * vulnerability / 10000

			absorbed := target.absorb(raw)
			if absorbed > 0 {
				res.Lines = append(res.Lines, Line{
					Text:     fmt.Sprintf("%s's shield absorbed %d damage!", target.Name, absorbed),
					Category: CategoryEffect,
				})
			}

			applied := target.takeDamage(raw - absorbed)
			res.Lines = append(res.Lines, Line{
				Text:     fmt.Sprintf("%s took %d damage!", target.Name, applied),
				Category: CategoryEffect,
			})
			res.Damage += applied
			res.HighestHit = max(res.HighestHit, applied)

			if !target.Alive {
				res.Defeated = append(res.Defeated, target.HeroID)
				res.Lines = append(res.Lines, Line{
					Text:     fmt.Sprintf("%s was defeated!", target.Name),
					Category: CategoryEffect,
				})
				continue
			}
		}

		if skill.Healing > 0 {
			healed := target.heal(skill.Healing)
			if healed > 0 {
				res.Lines = append(res.Lines, Line{
					Text:     fmt.Sprintf("%s recovered %d HP!", target.Name, healed),
					Category: CategoryEffect,
				})
			}
			res.Healing += healed
		}

		if skill.Buff != nil {
			e := target.addEffect(skill.Buff, actor.HeroID)
			res.Effects = append(res.Effects, AppliedEffect{Target: target.HeroID, Effect: e})
			res.Lines = append(res.Lines, Line{
				Text:     fmt.Sprintf("%s gained %s buff!", target.Name, e.Kind),
				Category: CategoryEffect,
			})
		}
		if skill.Debuff != nil {
			e := target.addEffect(skill.Debuff, actor.HeroID)
			res.Effects = append(res.Effects, AppliedEffect{Target: target.HeroID, Effect: e})
			res.Lines = append(res.Lines, Line{
				Text:     fmt.Sprintf("%s suffered %s debuff!", target.Name, e.Kind),
				Category: CategoryEffect,
			})
		}
	}

	actor.DamageDealt += res.Damage
	actor.HealingDone += res.Healing
	return res
}

// absorb consumes shields in the order they were applied and returns how
// much of amount they soaked up. Depleted shields are removed.
func (u *Unit) absorb(amount int) int {
	absorbed := 0
	kept := u.Buffs[:0]
	for _, b := range u.Buffs {
		if b.Kind != catalog.EffectShield || absorbed == amount {
			kept = append(kept, b)
			continue
		}
		take := min(b.Magnitude, amount-absorbed)
		absorbed += take
		b.Magnitude -= take
		if b.Magnitude > 0 {
			kept = append(kept, b)
		}
	}
	u.Buffs = kept
	return absorbed
}

// Package combat implements the per-match unit model, skill resolution and
// the end-of-round tick. Nothing here performs I/O or draws random numbers.
package combat

import (
	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

// Position is a unit's line in the formation.
type Position string

const (
	Front Position = "front"
	Back  Position = "back"
)

func (p Position) Valid() bool {
	return p == Front || p == Back
}

// frontSlots is how many draft picks start on the front line.
const frontSlots = 2

// Effect is one buff or debuff instance attached to a unit. Shields use
// Magnitude as their remaining absorb value.
type Effect struct {
	Kind      catalog.EffectKind `json:"kind"`
	Remaining int                `json:"remaining"`
	Magnitude int                `json:"magnitude,omitempty"`
	Source    string             `json:"source"`
}

// Unit is the mutable state of one hero inside one match.
type Unit struct {
	HeroID      string      `json:"heroId"`
	Name        string      `json:"name"`
	HP          int         `json:"hp"`
	MaxHP       int         `json:"maxHp"`
	Energy      int         `json:"energy"`
	MaxEnergy   int         `json:"maxEnergy"`
	EnergyRegen int         `json:"energyRegen"`
	BaseSpeed   int         `json:"baseSpeed"`
	Position    Position    `json:"position"`
	Alive       bool        `json:"alive"`
	Buffs       []Effect    `json:"buffs"`
	Debuffs     []Effect    `json:"debuffs"`
	Cooldowns   map[int]int `json:"cooldowns"`
	DamageDealt int         `json:"damageDealt"`
	HealingDone int         `json:"healingDone"`
}

// NewUnit creates a fresh unit for the draftIndex-th pick of a team.
func NewUnit(hero *catalog.HeroDefinition, draftIndex int) *Unit {
	position := Back
	if draftIndex < frontSlots {
		position = Front
	}
	return &Unit{
		HeroID:      hero.ID,
		Name:        hero.Name,
		HP:          hero.MaxHP,
		MaxHP:       hero.MaxHP,
		Energy:      min(hero.MaxEnergy, 2*hero.EnergyRegen),
		MaxEnergy:   hero.MaxEnergy,
		EnergyRegen: hero.EnergyRegen,
		BaseSpeed:   hero.BaseSpeed,
		Position:    position,
		Alive:       true,
		Buffs:       []Effect{},
		Debuffs:     []Effect{},
		Cooldowns:   make(map[int]int),
	}
}

// Stunned reports whether an active stun prevents the unit from acting.
func (u *Unit) Stunned() bool {
	for _, d := range u.Debuffs {
		if d.Kind == catalog.EffectStun && d.Remaining > 0 {
			return true
		}
	}
	return false
}

// Cooldown returns the rounds remaining before skillID can be used again.
func (u *Unit) Cooldown(skillID int) int {
	return u.Cooldowns[skillID]
}

// IsUsable reports whether the unit can use skill right now.
func (u *Unit) IsUsable(skill *catalog.SkillDefinition) bool {
	return u.Alive &&
		u.Energy >= skill.EnergyCost &&
		u.Cooldown(skill.ID) == 0 &&
		!u.Stunned()
}

// EffectsOf returns every active effect of the given kind, buffs first.
func (u *Unit) EffectsOf(kind catalog.EffectKind) []Effect {
	var out []Effect
	for _, list := range [][]Effect{u.Buffs, u.Debuffs} {
		for _, e := range list {
			if e.Kind == kind {
				out = append(out, e)
			}
		}
	}
	return out
}

func (u *Unit) magnitudeOf(kind catalog.EffectKind) int {
	total := 0
	for _, e := range u.EffectsOf(kind) {
		total += e.Magnitude
	}
	return total
}

// Spend deducts the skill's cost and starts its cooldown.
func (u *Unit) Spend(skill *catalog.SkillDefinition) {
	u.Energy = max(0, u.Energy-skill.EnergyCost)
	if skill.Cooldown > 0 {
		u.Cooldowns[skill.ID] = skill.Cooldown
	}
}

func (u *Unit) takeDamage(amount int) int {
	applied := min(u.HP, amount)
	u.HP -= applied
	if u.HP == 0 {
		u.Alive = false
	}
	return applied
}

func (u *Unit) heal(amount int) int {
	applied := min(u.MaxHP-u.HP, amount)
	u.HP += applied
	return applied
}

func (u *Unit) addEffect(spec *catalog.EffectSpec, source string) Effect {
	e := Effect{
		Kind:      spec.Kind,
		Remaining: spec.Duration,
		Magnitude: spec.Magnitude,
		Source:    source,
	}
	if spec.Kind.IsBuff() {
		u.Buffs = append(u.Buffs, e)
	} else {
		u.Debuffs = append(u.Debuffs, e)
	}
	return e
}

// Team is one player's ordered units.
type Team []*Unit

// Find returns the unit built from heroID.
func (t Team) Find(heroID string) *Unit {
	for _, u := range t {
		if u.HeroID == heroID {
			return u
		}
	}
	return nil
}

// AliveUnits returns the units that can still act or be targeted.
func (t Team) AliveUnits() []*Unit {
	var out []*Unit
	for _, u := range t {
		if u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// Wiped reports whether every unit is defeated. An empty team is not wiped.
func (t Team) Wiped() bool {
	return len(t) > 0 && len(t.AliveUnits()) == 0
}

// MaxBaseSpeed is the highest base speed on the team.
func (t Team) MaxBaseSpeed() int {
	best := 0
	for _, u := range t {
		best = max(best, u.BaseSpeed)
	}
	return best
}

// Package catalog holds the read-only hero roster shared by every match.
package catalog

import (
	"sort"
)

// Class is a hero's combat role.
type Class string

const (
	ClassTank       Class = "Tank"
	ClassBlaster    Class = "Blaster"
	ClassSupport    Class = "Support"
	ClassController Class = "Controller"
	ClassSpeedster  Class = "Speedster"
)

func (c Class) Valid() bool {
	switch c {
	case ClassTank, ClassBlaster, ClassSupport, ClassController, ClassSpeedster:
		return true
	}
	return false
}

// Targeting declares which side and scope a skill may target.
type Targeting string

const (
	TargetEnemy      Targeting = "enemy"
	TargetAlly       Targeting = "ally"
	TargetSelf       Targeting = "self"
	TargetAllEnemies Targeting = "all_enemies"
	TargetAllAllies  Targeting = "all_allies"
	TargetAll        Targeting = "all"
)

func (t Targeting) Valid() bool {
	switch t {
	case TargetEnemy, TargetAlly, TargetSelf, TargetAllEnemies, TargetAllAllies, TargetAll:
		return true
	}
	return false
}

// SingleTarget reports whether the mode requires a named target.
func (t Targeting) SingleTarget() bool {
	return t == TargetEnemy || t == TargetAlly
}

// SkillDefinition is one ability of a hero. ID is the skill's ordinal
// position within the hero's skill list.
type SkillDefinition struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	EnergyCost  int         `json:"energyCost"`
	Cooldown    int         `json:"cooldown"`
	Damage      int         `json:"damage"`
	Healing     int         `json:"healing"`
	Area        bool        `json:"area"`
	MultiTarget bool        `json:"multiTarget"`
	Buff        *EffectSpec `json:"buff,omitempty"`
	Debuff      *EffectSpec `json:"debuff,omitempty"`
	Targeting   Targeting   `json:"targeting"`
	Narration   string      `json:"narration"`
}

// HeroDefinition is the immutable template a unit is built from.
type HeroDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Class       Class             `json:"class"`
	Archetype   string            `json:"archetype"`
	MaxHP       int               `json:"maxHp"`
	MaxEnergy   int               `json:"maxEnergy"`
	EnergyRegen int               `json:"energyRegen"`
	BaseSpeed   int               `json:"baseSpeed"`
	Skills      []SkillDefinition `json:"skills"`
	Description string            `json:"description"`
}

// Skill returns the skill with the given id.
func (h *HeroDefinition) Skill(id int) (*SkillDefinition, bool) {
	if id < 0 || id >= len(h.Skills) {
		return nil, false
	}
	return &h.Skills[id], true
}

// Catalog is the lookup surface the match engine consumes.
type Catalog interface {
	HeroByID(id string) (*HeroDefinition, bool)
	AllHeroIDs() []string
}

// Roster is an in-memory Catalog. It is never mutated after construction.
type Roster struct {
	heroes map[string]*HeroDefinition
	order  []string
}

// NewRoster builds a roster preserving declaration order.
func NewRoster(heroes []HeroDefinition) *Roster {
	r := &Roster{heroes: make(map[string]*HeroDefinition, len(heroes))}
	for i := range heroes {
		h := heroes[i]
		r.heroes[h.ID] = &h
		r.order = append(r.order, h.ID)
	}
	return r
}

func (r *Roster) HeroByID(id string) (*HeroDefinition, bool) {
	h, ok := r.heroes[id]
	return h, ok
}

func (r *Roster) AllHeroIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Heroes returns every definition in declaration order.
func (r *Roster) Heroes() []*HeroDefinition {
	out := make([]*HeroDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.heroes[id])
	}
	return out
}

// ByClass groups hero ids by class, sorted by id.
func (r *Roster) ByClass() map[Class][]string {
	groups := make(map[Class][]string)
	for _, h := range r.heroes {
		groups[h.Class] = append(groups[h.Class], h.ID)
	}
	for _, ids := range groups {
		sort.Strings(ids)
	}
	return groups
}

func (r *Roster) Len() int { return len(r.order) }

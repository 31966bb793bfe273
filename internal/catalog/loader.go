package catalog

import (
	_ "embed"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

//go:embed heroes.hcl
var defaultHeroes []byte

type rosterFile struct {
	Heroes []heroBlock `hcl:"hero,block"`
}

type heroBlock struct {
	ID          string       `hcl:"id,label"`
	Name        string       `hcl:"name"`
	Class       string       `hcl:"class"`
	Archetype   string       `hcl:"archetype,optional"`
	MaxHP       int          `hcl:"max_hp"`
	MaxEnergy   int          `hcl:"max_energy"`
	EnergyRegen int          `hcl:"energy_regen"`
	BaseSpeed   int          `hcl:"base_speed"`
	Description string       `hcl:"description,optional"`
	Skills      []skillBlock `hcl:"skill,block"`
}

type skillBlock struct {
	Name        string       `hcl:"name,label"`
	Description string       `hcl:"description,optional"`
	EnergyCost  int          `hcl:"energy_cost"`
	Cooldown    int          `hcl:"cooldown,optional"`
	Damage      int          `hcl:"damage,optional"`
	Healing     int          `hcl:"healing,optional"`
	Area        bool         `hcl:"area,optional"`
	MultiTarget bool         `hcl:"multi_target,optional"`
	Targeting   string       `hcl:"targeting"`
	Narration   string       `hcl:"narration,optional"`
	Buff        *effectBlock `hcl:"buff,block"`
	Debuff      *effectBlock `hcl:"debuff,block"`
}

type effectBlock struct {
	Kind      string `hcl:"kind"`
	Duration  int    `hcl:"duration"`
	Magnitude int    `hcl:"magnitude,optional"`
}

// Default returns the roster compiled into the binary.
func Default() (*Roster, error) {
	return Parse(defaultHeroes, "heroes.hcl")
}

// Load reads a roster from an HCL file on disk.
func Load(filename string) (*Roster, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	return decode(file)
}

// Parse decodes a roster from HCL source.
func Parse(src []byte, filename string) (*Roster, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return decode(file)
}

func decode(file *hcl.File) (*Roster, error) {
	var rf rosterFile
	if diags := gohcl.DecodeBody(file.Body, nil, &rf); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	if len(rf.Heroes) == 0 {
		return nil, fmt.Errorf("roster defines no heroes")
	}

	seen := make(map[string]bool, len(rf.Heroes))
	heroes := make([]HeroDefinition, 0, len(rf.Heroes))
	for _, hb := range rf.Heroes {
		if seen[hb.ID] {
			return nil, fmt.Errorf("hero %s: defined more than once", hb.ID)
		}
		seen[hb.ID] = true

		hero, err := hb.definition()
		if err != nil {
			return nil, fmt.Errorf("hero %s: %w", hb.ID, err)
		}
		heroes = append(heroes, hero)
	}
	return NewRoster(heroes), nil
}

func (hb heroBlock) definition() (HeroDefinition, error) {
	class := Class(hb.Class)
	if !class.Valid() {
		return HeroDefinition{}, fmt.Errorf("invalid class %q", hb.Class)
	}
	if hb.MaxHP <= 0 {
		return HeroDefinition{}, fmt.Errorf("max_hp must be positive")
	}
	if hb.MaxEnergy <= 0 || hb.EnergyRegen < 0 {
		return HeroDefinition{}, fmt.Errorf("energy settings out of range")
	}
	if len(hb.Skills) == 0 {
		return HeroDefinition{}, fmt.Errorf("at least one skill is required")
	}

	hero := HeroDefinition{
		ID:          hb.ID,
		Name:        hb.Name,
		Class:       class,
		Archetype:   hb.Archetype,
		MaxHP:       hb.MaxHP,
		MaxEnergy:   hb.MaxEnergy,
		EnergyRegen: hb.EnergyRegen,
		BaseSpeed:   hb.BaseSpeed,
		Description: hb.Description,
	}

	for i, sb := range hb.Skills {
		skill, err := sb.definition(i)
		if err != nil {
			return HeroDefinition{}, fmt.Errorf("skill %q: %w", sb.Name, err)
		}
		hero.Skills = append(hero.Skills, skill)
	}
	return hero, nil
}

func (sb skillBlock) definition(id int) (SkillDefinition, error) {
	targeting := Targeting(sb.Targeting)
	if !targeting.Valid() {
		return SkillDefinition{}, fmt.Errorf("invalid targeting %q", sb.Targeting)
	}
	if sb.EnergyCost < 0 || sb.Cooldown < 0 || sb.Damage < 0 || sb.Healing < 0 {
		return SkillDefinition{}, fmt.Errorf("numeric fields must not be negative")
	}

	skill := SkillDefinition{
		ID:          id,
		Name:        sb.Name,
		Description: sb.Description,
		EnergyCost:  sb.EnergyCost,
		Cooldown:    sb.Cooldown,
		Damage:      sb.Damage,
		Healing:     sb.Healing,
		Area:        sb.Area,
		MultiTarget: sb.MultiTarget,
		Targeting:   targeting,
		Narration:   sb.Narration,
	}

	if sb.Buff != nil {
		spec, err := sb.Buff.spec()
		if err != nil {
			return SkillDefinition{}, fmt.Errorf("buff: %w", err)
		}
		if !spec.Kind.IsBuff() {
			return SkillDefinition{}, fmt.Errorf("buff: %s is not a buff kind", spec.Kind)
		}
		skill.Buff = &spec
	}
	if sb.Debuff != nil {
		spec, err := sb.Debuff.spec()
		if err != nil {
			return SkillDefinition{}, fmt.Errorf("debuff: %w", err)
		}
		if !spec.Kind.IsDebuff() {
			return SkillDefinition{}, fmt.Errorf("debuff: %s is not a debuff kind", spec.Kind)
		}
		skill.Debuff = &spec
	}
	return skill, nil
}

func (eb effectBlock) spec() (EffectSpec, error) {
	kind, err := ParseEffectKind(eb.Kind)
	if err != nil {
		return EffectSpec{}, err
	}
	if eb.Duration <= 0 {
		return EffectSpec{}, fmt.Errorf("duration must be positive")
	}
	return EffectSpec{Kind: kind, Duration: eb.Duration, Magnitude: eb.Magnitude}, nil
}

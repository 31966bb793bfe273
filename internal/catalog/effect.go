package catalog

import "fmt"

// EffectKind is the closed set of buff and debuff kinds.
type EffectKind uint8

const (
	EffectShield EffectKind = iota + 1
	EffectStrengthen
	EffectSpeed
	EffectRegen
	EffectStun
	EffectBurn
	EffectBleed
	EffectSlow
	EffectWeaken
)

var effectNames = [...]string{
	EffectShield:     "shield",
	EffectStrengthen: "strengthen",
	EffectSpeed:      "speed",
	EffectRegen:      "regen",
	EffectStun:       "stun",
	EffectBurn:       "burn",
	EffectBleed:      "bleed",
	EffectSlow:       "slow",
	EffectWeaken:     "weaken",
}

func (k EffectKind) String() string {
	if k == 0 || int(k) >= len(effectNames) {
		return fmt.Sprintf("EffectKind(%d)", uint8(k))
	}
	return effectNames[k]
}

// IsBuff reports whether the kind is applied to allies.
func (k EffectKind) IsBuff() bool {
	return k >= EffectShield && k <= EffectRegen
}

// IsDebuff reports whether the kind is applied to enemies.
func (k EffectKind) IsDebuff() bool {
	return k >= EffectStun && k <= EffectWeaken
}

// DamageOverTime reports whether the kind deals damage at round end.
func (k EffectKind) DamageOverTime() bool {
	return k == EffectBurn || k == EffectBleed
}

// ParseEffectKind resolves a lowercase kind name.
func ParseEffectKind(s string) (EffectKind, error) {
	for i, name := range effectNames {
		if i > 0 && name == s {
			return EffectKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown effect kind %q", s)
}

func (k EffectKind) MarshalText() ([]byte, error) {
	if k == 0 || int(k) >= len(effectNames) {
		return nil, fmt.Errorf("invalid effect kind %d", uint8(k))
	}
	return []byte(effectNames[k]), nil
}

func (k *EffectKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEffectKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EffectSpec is a buff or debuff a skill applies to each of its targets.
type EffectSpec struct {
	Kind      EffectKind `json:"kind"`
	Duration  int        `json:"duration"`
	Magnitude int        `json:"magnitude,omitempty"`
}

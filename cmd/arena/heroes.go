package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

var (
	heroStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4"))

	skillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	effectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// HeroesCmd prints the hero catalog
type HeroesCmd struct {
	File  string `arg:"" optional:"" type:"existingfile" help:"HCL roster to print instead of the built-in one"`
	Class string `help:"Only show heroes of this class (Tank, Blaster, Support, Controller)"`
	Brief bool   `short:"b" help:"Omit skills"`
}

func (c *HeroesCmd) Run() error {
	roster, err := loadRoster(c.File)
	if err != nil {
		return err
	}

	var b strings.Builder
	shown := 0
	for _, h := range roster.Heroes() {
		if c.Class != "" && !strings.EqualFold(string(h.Class), c.Class) {
			continue
		}
		shown++
		b.WriteString(renderHero(h, c.Brief))
		b.WriteString("\n")
	}
	if shown == 0 {
		return fmt.Errorf("no heroes match class %q", c.Class)
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d heroes", shown)))
	fmt.Println(b.String())
	return nil
}

func renderHero(h *catalog.HeroDefinition, brief bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", heroStyle.Render(h.Name), mutedStyle.Render(h.ID))
	fmt.Fprintf(&b, "  %s\n", statStyle.Render(fmt.Sprintf("%s  HP %d  Energy %d (+%d)  Speed %d",
		h.Class, h.MaxHP, h.MaxEnergy, h.EnergyRegen, h.BaseSpeed)))
	if brief {
		return b.String()
	}
	for _, s := range h.Skills {
		fmt.Fprintf(&b, "  %d. %s %s\n", s.ID, skillStyle.Render(s.Name), mutedStyle.Render(skillSummary(s)))
		for _, e := range []*catalog.EffectSpec{s.Buff, s.Debuff} {
			if e != nil {
				fmt.Fprintf(&b, "     %s\n", effectStyle.Render(effectSummary(e)))
			}
		}
	}
	return b.String()
}

func skillSummary(s catalog.SkillDefinition) string {
	parts := []string{fmt.Sprintf("cost %d", s.EnergyCost)}
	if s.Cooldown > 0 {
		parts = append(parts, fmt.Sprintf("cd %d", s.Cooldown))
	}
	if s.Damage > 0 {
		parts = append(parts, fmt.Sprintf("dmg %d", s.Damage))
	}
	if s.Healing > 0 {
		parts = append(parts, fmt.Sprintf("heal %d", s.Healing))
	}
	parts = append(parts, string(s.Targeting))
	return strings.Join(parts, ", ")
}

func effectSummary(e *catalog.EffectSpec) string {
	if e.Magnitude != 0 {
		return fmt.Sprintf("%s %d for %d turns", e.Kind, e.Magnitude, e.Duration)
	}
	return fmt.Sprintf("%s for %d turns", e.Kind, e.Duration)
}

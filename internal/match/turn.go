package match

import (
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
)

// turnStamp pins a scheduled timeout to the turn it was created for.
type turnStamp struct {
	matchID string
	round   int
	seq     int
}

// UseSkill resolves skillID of heroID on behalf of playerID. targetID names
// the target for single-target skills and is ignored otherwise.
func (m *Match) UseSkill(playerID int64, heroID string, skillID int, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.checkTurnLocked(playerID)
	if err != nil {
		return err
	}
	actor, err := m.actorLocked(idx, heroID)
	if err != nil {
		return err
	}
	if actor.Stunned() {
		return reject(ErrUnitStunned, "%s is stunned and cannot act", actor.Name)
	}
	hero, ok := m.catalog.HeroByID(actor.HeroID)
	if !ok {
		m.logger.Error("Catalog lost a drafted hero", "hero", actor.HeroID)
		return reject(ErrInvalidHero, "Hero %q is unavailable", actor.HeroID)
	}
	skill, ok := hero.Skill(skillID)
	if !ok {
		return reject(ErrUnknownSkill, "%s has no skill %d", actor.Name, skillID)
	}
	if cd := actor.Cooldown(skill.ID); cd > 0 {
		return reject(ErrSkillOnCooldown, "%s is on cooldown for %d more round(s)", skill.Name, cd)
	}
	if actor.Energy < skill.EnergyCost {
		return reject(ErrInsufficientEnergy, "%s needs %d energy (have %d)", skill.Name, skill.EnergyCost, actor.Energy)
	}
	targets, err := m.targetsLocked(idx, actor, skill, targetID)
	if err != nil {
		return err
	}

	res := combat.Resolve(actor, skill, targets)
	actor.Spend(skill)
	m.state.HighestHit[idx] = max(m.state.HighestHit[idx], res.HighestHit)
	m.appendLocked(res.Lines...)

	targetIDs := make([]string, 0, len(targets))
	for _, t := range targets {
		targetIDs = append(targetIDs, t.HeroID)
	}
	m.logger.Debug("Skill used",
		"player", playerID,
		"hero", heroID,
		"skill", skill.Name,
		"targets", len(targets),
		"damage", res.Damage,
		"healing", res.Healing)

	id := skill.ID
	outcome := &ActionOutcome{
		Actor:     playerID,
		HeroID:    actor.HeroID,
		SkillID:   &id,
		SkillName: skill.Name,
		Narration: skill.Narration,
		Targets:   targetIDs,
		Result:    &res,
	}
	m.broadcastLocked(EventTurnResult, func(_ int, ev *Event) { ev.Outcome = outcome })

	if m.finishIfWipedLocked(idx) {
		return nil
	}
	m.endTurnLocked(idx)
	m.recordLocked()
	return nil
}

// SwapPosition moves heroID to position. A swap consumes the whole turn.
func (m *Match) SwapPosition(playerID int64, heroID string, position combat.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.checkTurnLocked(playerID)
	if err != nil {
		return err
	}
	unit, err := m.actorLocked(idx, heroID)
	if err != nil {
		return err
	}
	if !position.Valid() {
		return reject(ErrInvalidPosition, "Unknown position %q", position)
	}
	if unit.Position == position {
		return reject(ErrAlreadyInPosition, "%s is already on the %s line", unit.Name, position)
	}

	unit.Position = position
	m.appendLocked(combat.Line{
		Text:     unit.Name + " moved to the " + string(position) + " line.",
		Category: combat.CategoryAction,
	})
	m.logger.Debug("Unit swapped", "player", playerID, "hero", heroID, "position", position)

	outcome := &ActionOutcome{Actor: playerID, HeroID: unit.HeroID, Position: position}
	m.broadcastLocked(EventTurnResult, func(_ int, ev *Event) { ev.Outcome = outcome })

	m.endTurnLocked(idx)
	m.recordLocked()
	return nil
}

func (m *Match) checkTurnLocked(playerID int64) (int, error) {
	if m.state.Phase != PhaseBattle {
		return -1, reject(ErrWrongPhase, "Actions are only accepted during battle")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return -1, err
	}
	if m.state.CurrentTurn != playerID {
		return -1, reject(ErrNotYourTurn, "It is not your turn")
	}
	return idx, nil
}

func (m *Match) actorLocked(idx int, heroID string) (*combat.Unit, error) {
	unit := m.state.Teams[idx].Find(heroID)
	if unit == nil {
		return nil, reject(ErrUnknownHero, "Hero %q is not on your team", heroID)
	}
	if !unit.Alive {
		return nil, reject(ErrUnitDefeated, "%s has been defeated", unit.Name)
	}
	return unit, nil
}

// targetsLocked resolves the target set for skill. Only alive units are
// ever returned.
func (m *Match) targetsLocked(idx int, actor *combat.Unit, skill *catalog.SkillDefinition, targetID string) ([]*combat.Unit, error) {
	own, enemy := m.state.Teams[idx], m.state.Teams[1-idx]

	var targets []*combat.Unit
	switch skill.Targeting {
	case catalog.TargetEnemy, catalog.TargetAlly:
		side := enemy
		if skill.Targeting == catalog.TargetAlly {
			side = own
		}
		if t := side.Find(targetID); t != nil && t.Alive {
			targets = []*combat.Unit{t}
		}
	case catalog.TargetSelf:
		targets = []*combat.Unit{actor}
	case catalog.TargetAllEnemies:
		targets = enemy.AliveUnits()
	case catalog.TargetAllAllies:
		targets = own.AliveUnits()
	case catalog.TargetAll:
		targets = append(own.AliveUnits(), enemy.AliveUnits()...)
	}

	if len(targets) == 0 {
		if skill.Targeting.SingleTarget() {
			return nil, reject(ErrInvalidTarget, "%q is not a valid %s target for %s", targetID, skill.Targeting, skill.Name)
		}
		return nil, reject(ErrInvalidTarget, "%s has no valid targets", skill.Name)
	}
	return targets, nil
}

// endTurnLocked hands the turn to the other player. When ownership returns
// to player one the round is complete and end-of-round processing runs
// before the next turn starts. This holds even when player two opened the
// battle, so the opening round is then a single turn.
func (m *Match) endTurnLocked(actingIdx int) {
	m.stopTurnTimerLocked()

	next := 1 - m.turnSideLocked()
	m.state.CurrentTurn = m.state.Players[next].ID

	if next == 0 {
		m.state.Round++
		m.systemLocked("Round %d begins!", m.state.Round)
		for i := range m.state.Teams {
			m.appendLocked(combat.TickRound(m.state.Teams[i], m.catalog)...)
		}
		if m.finishIfWipedLocked(actingIdx) {
			return
		}
	}
	m.startTurnLocked()
}

func (m *Match) startTurnLocked() {
	m.state.TurnSeq++
	m.state.Deadline = m.clock.Now().Add(m.cfg.TurnTimeout)

	actor := m.turnSideLocked()
	prompt := m.viewLocked(actor, EventTurnPrompt)
	prompt.Actions = m.actionsLocked(actor)
	m.emitLocked(actor, prompt)
	m.emitLocked(1-actor, m.viewLocked(1-actor, EventTurnWaiting))

	stamp := turnStamp{matchID: m.state.ID, round: m.state.Round, seq: m.state.TurnSeq}
	m.turnTimer = m.clock.AfterFunc(m.cfg.TurnTimeout, func() {
		m.onTurnTimeout(stamp)
	}, "match", "turn")
}

func (m *Match) stopTurnTimerLocked() {
	if m.turnTimer != nil {
		m.turnTimer.Stop()
		m.turnTimer = nil
	}
	m.state.Deadline = time.Time{}
}

func (m *Match) onTurnTimeout(stamp turnStamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseBattle ||
		stamp.matchID != m.state.ID ||
		stamp.round != m.state.Round ||
		stamp.seq != m.state.TurnSeq {
		m.logger.Debug("Ignoring stale turn timeout", "round", stamp.round, "seq", stamp.seq)
		return
	}

	idx := m.turnSideLocked()
	name := m.state.Players[idx].Name
	m.systemLocked("%s took too long to act and forfeited their turn!", name)
	m.logger.Info("Turn timed out", "player", name, "round", m.state.Round)

	m.turnTimer = nil
	m.broadcastLocked(EventTurnTimeout, nil)
	m.endTurnLocked(idx)
	m.recordLocked()
}

func (m *Match) actionsLocked(idx int) []UnitActions {
	team := m.state.Teams[idx]
	out := make([]UnitActions, 0, len(team))
	for _, u := range team {
		ua := UnitActions{HeroID: u.HeroID, Name: u.Name, Alive: u.Alive, Stunned: u.Stunned()}
		if hero, ok := m.catalog.HeroByID(u.HeroID); ok {
			for i := range hero.Skills {
				s := &hero.Skills[i]
				ua.Skills = append(ua.Skills, SkillAction{
					ID:                s.ID,
					Name:              s.Name,
					Description:       s.Description,
					EnergyCost:        s.EnergyCost,
					Cooldown:          s.Cooldown,
					RemainingCooldown: u.Cooldown(s.ID),
					Damage:            s.Damage,
					Healing:           s.Healing,
					Usable:            u.IsUsable(s),
					Targeting:         s.Targeting,
				})
			}
		}
		out = append(out, ua)
	}
	return out
}

package match

import (
	"context"
	"slices"

	"github.com/Kumar2007/MarvelClashArena/internal/combat"
)

// SelectHero adds heroID to playerID's team during drafting.
func (m *Match) SelectHero(ctx context.Context, playerID int64, heroID string) error {
	// The unlock lookup may hit storage, so it runs before taking the lock.
	unlocked, checked := m.unlockedHeroes(ctx, playerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseDrafting {
		return reject(ErrWrongPhase, "Heroes can only be selected during drafting")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return err
	}
	hero, ok := m.catalog.HeroByID(heroID)
	if !ok {
		return reject(ErrInvalidHero, "Unknown hero %q", heroID)
	}
	if checked && !slices.Contains(unlocked, heroID) {
		return reject(ErrHeroNotUnlocked, "You have not unlocked %s", hero.Name)
	}
	team := m.state.Teams[idx]
	if len(team) >= m.cfg.TeamSize {
		return reject(ErrTeamFull, "Your team already has %d heroes", m.cfg.TeamSize)
	}
	if team.Find(heroID) != nil {
		return reject(ErrDuplicateHero, "%s is already on your team", hero.Name)
	}

	m.state.Teams[idx] = append(team, combat.NewUnit(hero, len(team)))
	m.logger.Debug("Hero selected", "player", playerID, "hero", heroID, "picks", len(m.state.Teams[idx]))

	m.broadcastLocked(EventTeamUpdate, nil)
	m.recordLocked()
	return nil
}

func (m *Match) unlockedHeroes(ctx context.Context, playerID int64) ([]string, bool) {
	if m.unlocks == nil {
		return nil, false
	}
	for _, p := range m.state.Players {
		if p.ID == playerID && p.Bot {
			return nil, false
		}
	}
	unlocked, err := m.unlocks.UnlockedHeroes(ctx, playerID)
	if err != nil {
		m.logger.Warn("Unlock check failed, allowing selection", "player", playerID, "error", err)
		return nil, false
	}
	return unlocked, true
}

// ConfirmTeam marks playerID ready. The battle starts once both are ready.
func (m *Match) ConfirmTeam(playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseDrafting {
		return reject(ErrWrongPhase, "Teams can only be confirmed during drafting")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return err
	}
	if n := len(m.state.Teams[idx]); n != m.cfg.TeamSize {
		return reject(ErrIncompleteTeam, "Select %d heroes before confirming (have %d)", m.cfg.TeamSize, n)
	}
	if m.state.Ready[idx] {
		return nil
	}

	m.state.Ready[idx] = true
	m.logger.Info("Team confirmed", "player", playerID)
	m.broadcastLocked(EventTeamReady, nil)

	if m.state.Ready[0] && m.state.Ready[1] {
		m.startBattleLocked()
	}
	m.recordLocked()
	return nil
}

func (m *Match) startBattleLocked() {
	m.state.Phase = PhaseBattle
	m.state.Round = 1
	m.state.StartedAt = m.clock.Now()

	first := 0
	if m.state.Teams[1].MaxBaseSpeed() > m.state.Teams[0].MaxBaseSpeed() {
		first = 1
	}
	m.state.FirstTurn = m.state.Players[first].ID
	m.state.CurrentTurn = m.state.FirstTurn

	m.systemLocked("Battle begins! %s takes the first turn.", m.state.Players[first].Name)
	m.logger.Info("Battle started", "first", m.state.Players[first].Name)

	m.broadcastLocked(EventBattleStart, nil)
	m.startTurnLocked()
}

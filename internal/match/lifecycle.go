package match

import (
	"context"
	"time"
)

type graceStamp struct {
	matchID string
	side    int
	gen     int
}

// Surrender ends the battle with the opponent as winner.
func (m *Match) Surrender(playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseBattle {
		return reject(ErrWrongPhase, "You can only surrender during battle")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return err
	}

	m.systemLocked("%s has surrendered the match!", m.state.Players[idx].Name)
	m.endMatchLocked(1-idx, EndSurrender)
	return nil
}

// Disconnect starts the reconnect grace window for playerID. It does not
// change game state; if the window lapses the opponent wins.
func (m *Match) Disconnect(playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase == PhaseComplete {
		return reject(ErrWrongPhase, "Match is already complete")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return err
	}
	if m.offline[idx] {
		return nil
	}

	m.offline[idx] = true
	m.graceGen[idx]++
	stamp := graceStamp{matchID: m.state.ID, side: idx, gen: m.graceGen[idx]}
	m.graceTimers[idx] = m.clock.AfterFunc(m.cfg.ReconnectWindow, func() {
		m.onGraceExpired(stamp)
	}, "match", "grace")

	m.logger.Info("Player disconnected", "player", playerID, "window", m.cfg.ReconnectWindow)
	m.emitLocked(1-idx, m.viewLocked(1-idx, EventPlayerDisconnected))
	return nil
}

// Reconnect cancels a pending grace window and resends the full state to
// playerID. It is also used to resynchronise a player that never dropped.
func (m *Match) Reconnect(playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase == PhaseComplete {
		return reject(ErrWrongPhase, "Match is already complete")
	}
	idx, err := m.sideLocked(playerID)
	if err != nil {
		return err
	}

	wasOffline := m.offline[idx]
	m.offline[idx] = false
	m.graceGen[idx]++
	if t := m.graceTimers[idx]; t != nil {
		t.Stop()
		m.graceTimers[idx] = nil
	}

	ev := m.viewLocked(idx, EventReconnect)
	if m.state.Phase == PhaseBattle && m.state.CurrentTurn == playerID {
		ev.Actions = m.actionsLocked(idx)
	}
	m.logCursor[idx] = 0
	ev.FullLog = true
	m.emitLocked(idx, ev)

	if wasOffline {
		m.logger.Info("Player reconnected", "player", playerID)
		m.emitLocked(1-idx, m.viewLocked(1-idx, EventPlayerReconnected))
	}
	return nil
}

func (m *Match) onGraceExpired(stamp graceStamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase == PhaseComplete ||
		stamp.matchID != m.state.ID ||
		!m.offline[stamp.side] ||
		m.graceGen[stamp.side] != stamp.gen {
		return
	}

	m.graceTimers[stamp.side] = nil
	m.systemLocked("%s failed to reconnect and forfeits the match.", m.state.Players[stamp.side].Name)
	m.endMatchLocked(1-stamp.side, EndDisconnect)
}

// finishIfWipedLocked ends the match when a team has no units left. If both
// teams fall together the acting side wins.
func (m *Match) finishIfWipedLocked(actingIdx int) bool {
	wiped := [2]bool{m.state.Teams[0].Wiped(), m.state.Teams[1].Wiped()}
	switch {
	case wiped[0] && wiped[1]:
		m.endMatchLocked(actingIdx, EndVictory)
	case wiped[0]:
		m.endMatchLocked(1, EndVictory)
	case wiped[1]:
		m.endMatchLocked(0, EndVictory)
	default:
		return false
	}
	return true
}

func (m *Match) endMatchLocked(winnerIdx int, reason EndReason) {
	if m.state.Phase == PhaseComplete {
		return
	}

	m.stopTurnTimerLocked()
	for i, t := range m.graceTimers {
		if t != nil {
			t.Stop()
			m.graceTimers[i] = nil
		}
	}

	now := m.clock.Now()
	m.state.Phase = PhaseComplete
	m.state.EndedAt = now
	m.state.Winner = m.state.Players[winnerIdx].ID
	m.state.EndReason = reason
	m.state.CurrentTurn = 0
	m.systemLocked("Match over! %s is victorious!", m.state.Players[winnerIdx].Name)

	summary := m.summaryLocked(winnerIdx, reason)
	m.logger.Info("Match complete",
		"winner", m.state.Players[winnerIdx].Name,
		"reason", reason,
		"rounds", summary.Rounds,
		"duration", summary.Duration)

	var settlement *Settlement
	if m.settler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SettleTimeout)
		s, err := m.settler.Settle(ctx, summary)
		cancel()
		if err != nil {
			m.logger.Error("Settlement failed", "error", err)
		}
		settlement = s
	}

	m.broadcastLocked(EventGameOver, func(_ int, ev *Event) {
		ev.Summary = summary
		ev.Settlement = settlement
	})

	if snapshot, ok := m.marshalLocked(); ok {
		m.recorder.MatchFinished(m.state.ID, m.state.Winner, summary.Duration, snapshot)
	}
	m.onComplete(m.state.ID)
}

func (m *Match) summaryLocked(winnerIdx int, reason EndReason) *Summary {
	start := m.state.StartedAt
	if start.IsZero() {
		start = m.state.CreatedAt
	}

	s := &Summary{
		MatchID:  m.state.ID,
		Mode:     m.state.Mode,
		Players:  m.state.Players,
		Winner:   m.state.Players[winnerIdx].ID,
		Loser:    m.state.Players[1-winnerIdx].ID,
		Reason:   reason,
		Rounds:   m.state.Round,
		Duration: m.state.EndedAt.Sub(start).Truncate(time.Second),
	}
	for i, team := range m.state.Teams {
		s.Stats[i].HighestHit = m.state.HighestHit[i]
		s.Units[i] = make([]UnitStats, 0, len(team))
		for _, u := range team {
			s.Stats[i].Damage += u.DamageDealt
			s.Stats[i].Healing += u.HealingDone
			if !u.Alive {
				s.Stats[i].HeroesLost++
			}
			s.Units[i] = append(s.Units[i], UnitStats{
				HeroID:  u.HeroID,
				Damage:  u.DamageDealt,
				Healing: u.HealingDone,
				Alive:   u.Alive,
			})
		}
	}
	return s
}

// Package match implements the server-authoritative match state machine:
// drafting, alternating turns, round processing, timeouts, disconnect
// handling and termination. Every operation on a Match is serialised by a
// per-match mutex; separate matches share no mutable state.
package match

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
)

// Match owns one match's state and timers.
type Match struct {
	mu    sync.Mutex
	state State

	cfg        Config
	catalog    catalog.Catalog
	unlocks    UnlockChecker
	notifier   Notifier
	settler    Settler
	recorder   Recorder
	clock      quartz.Clock
	logger     *log.Logger
	onComplete func(string)

	turnTimer   *quartz.Timer
	graceTimers [2]*quartz.Timer
	graceGen    [2]int
	offline     [2]bool
	logCursor   [2]int
	started     bool
}

// New creates a match in the drafting phase. Call Start to announce it.
func New(id string, mode Mode, p1, p2 Participant, deps Deps) *Match {
	deps = deps.withDefaults()
	m := &Match{
		cfg:        deps.Config,
		catalog:    deps.Catalog,
		unlocks:    deps.Unlocks,
		notifier:   deps.Notifier,
		settler:    deps.Settler,
		recorder:   deps.Recorder,
		clock:      deps.Clock,
		logger:     deps.Logger.WithPrefix("match").With("match", id),
		onComplete: deps.OnComplete,
	}
	m.state = State{
		ID:        id,
		Mode:      mode,
		Players:   [2]Participant{p1, p2},
		Teams:     [2]combat.Team{{}, {}},
		Phase:     PhaseDrafting,
		Log:       []LogEntry{},
		CreatedAt: m.clock.Now(),
	}
	return m
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.state.ID }

// Players returns both participants. They never change after New.
func (m *Match) Players() [2]Participant { return m.state.Players }

// Start records the new match and sends each player the opening event.
func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	m.logger.Info("Match created",
		"mode", m.state.Mode,
		"player1", m.state.Players[0].Name,
		"player2", m.state.Players[1].Name)

	if snapshot, ok := m.marshalLocked(); ok {
		m.recorder.MatchCreated(m.state.ID, m.state.Mode, m.state.Players, snapshot)
	}
	m.broadcastLocked(EventMatchStart, nil)
}

// State returns a deep copy of the current state.
func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out State
	data, err := json.Marshal(m.state)
	if err == nil {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		m.logger.Error("Failed to copy match state", "error", err)
	}
	return out
}

// Snapshot returns the full current view for playerID, including the whole
// battle log. It does not advance the player's incremental log cursor.
func (m *Match) Snapshot(playerID int64) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.sideLocked(playerID)
	if err != nil {
		return Event{}, err
	}
	ev := m.viewLocked(idx, EventSnapshot)
	ev.Log = append([]LogEntry(nil), m.state.Log...)
	ev.FullLog = true
	if m.state.Phase == PhaseBattle && m.state.CurrentTurn == playerID {
		ev.Actions = m.actionsLocked(idx)
	}
	return ev, nil
}

func (m *Match) sideLocked(playerID int64) (int, error) {
	for i, p := range m.state.Players {
		if p.ID == playerID {
			return i, nil
		}
	}
	return -1, reject(ErrUnknownPlayer, "player %d is not part of this match", playerID)
}

func (m *Match) turnSideLocked() int {
	if m.state.CurrentTurn == m.state.Players[0].ID {
		return 0
	}
	return 1
}

func (m *Match) appendLocked(lines ...combat.Line) {
	now := m.clock.Now()
	for _, l := range lines {
		m.state.Log = append(m.state.Log, LogEntry{
			Round:    m.state.Round,
			Text:     l.Text,
			Category: l.Category,
			At:       now,
		})
	}
}

func (m *Match) systemLocked(format string, args ...any) {
	m.appendLocked(combat.Line{Text: fmt.Sprintf(format, args...), Category: combat.CategorySystem})
}

func (m *Match) viewLocked(idx int, kind EventKind) Event {
	ev := Event{
		Kind:         kind,
		MatchID:      m.state.ID,
		Mode:         m.state.Mode,
		Phase:        m.state.Phase,
		Round:        m.state.Round,
		TurnSeq:      m.state.TurnSeq,
		CurrentTurn:  m.state.CurrentTurn,
		YourTurn:     m.state.Phase == PhaseBattle && m.state.CurrentTurn == m.state.Players[idx].ID,
		You:          m.state.Players[idx],
		Opponent:     m.state.Players[1-idx],
		YourTeam:     teamView(m.state.Teams[idx]),
		OpponentTeam: teamView(m.state.Teams[1-idx]),
		Ready:        [2]bool{m.state.Ready[idx], m.state.Ready[1-idx]},
	}
	if m.state.Phase == PhaseBattle && !m.state.Deadline.IsZero() {
		remaining := m.state.Deadline.Sub(m.clock.Now())
		ev.TimeRemaining = max(0, int(remaining.Seconds()))
	}
	return ev
}

func teamView(team combat.Team) []UnitView {
	views := make([]UnitView, 0, len(team))
	for _, u := range team {
		views = append(views, UnitView{
			HeroID:    u.HeroID,
			Name:      u.Name,
			HP:        u.HP,
			MaxHP:     u.MaxHP,
			Energy:    u.Energy,
			MaxEnergy: u.MaxEnergy,
			Position:  u.Position,
			Alive:     u.Alive,
			Buffs:     append([]combat.Effect{}, u.Buffs...),
			Debuffs:   append([]combat.Effect{}, u.Debuffs...),
		})
	}
	return views
}

// emitLocked sends one event to the player at idx, carrying the log
// entries that player has not seen yet.
func (m *Match) emitLocked(idx int, ev Event) {
	ev.Log = append([]LogEntry{}, m.state.Log[m.logCursor[idx]:]...)
	m.logCursor[idx] = len(m.state.Log)
	m.notifier.Notify(m.state.Players[idx].ID, ev)
}

func (m *Match) broadcastLocked(kind EventKind, decorate func(idx int, ev *Event)) {
	for idx := range m.state.Players {
		ev := m.viewLocked(idx, kind)
		if decorate != nil {
			decorate(idx, &ev)
		}
		m.emitLocked(idx, ev)
	}
}

func (m *Match) marshalLocked() ([]byte, bool) {
	data, err := json.Marshal(m.state)
	if err != nil {
		m.logger.Error("Failed to marshal match state", "error", err)
		return nil, false
	}
	return data, true
}

func (m *Match) recordLocked() {
	if snapshot, ok := m.marshalLocked(); ok {
		m.recorder.MatchUpdated(m.state.ID, snapshot)
	}
}

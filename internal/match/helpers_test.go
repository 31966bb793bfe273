package match

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

const testRoster = `
hero "blaze" {
  name         = "Blaze"
  class        = "Blaster"
  max_hp       = 100
  max_energy   = 10
  energy_regen = 2
  base_speed   = 80

  skill "Jab" {
    energy_cost = 1
    damage      = 30
    targeting   = "enemy"
  }

  skill "Inferno" {
    energy_cost = 4
    cooldown    = 2
    damage      = 100
    area        = true
    targeting   = "all_enemies"
  }

  skill "Cataclysm" {
    energy_cost = 0
    damage      = 1000
    area        = true
    targeting   = "all"
  }

  skill "Daze" {
    energy_cost = 1
    targeting   = "enemy"
    debuff {
      kind     = "stun"
      duration = 1
    }
  }
}

hero "bulwark" {
  name         = "Bulwark"
  class        = "Tank"
  max_hp       = 200
  max_energy   = 6
  energy_regen = 1
  base_speed   = 40

  skill "Bash" {
    energy_cost = 1
    damage      = 20
    targeting   = "enemy"
  }

  skill "Fortify" {
    energy_cost = 2
    cooldown    = 1
    targeting   = "self"
    buff {
      kind      = "shield"
      duration  = 2
      magnitude = 50
    }
  }
}

hero "medic" {
  name         = "Medic"
  class        = "Support"
  max_hp       = 80
  max_energy   = 8
  energy_regen = 3
  base_speed   = 60

  skill "Patch" {
    energy_cost = 2
    healing     = 40
    targeting   = "ally"
  }
}

hero "ember" {
  name         = "Ember"
  class        = "Controller"
  max_hp       = 60
  max_energy   = 10
  energy_regen = 2
  base_speed   = 70

  skill "Scorch" {
    energy_cost = 1
    targeting   = "enemy"
    debuff {
      kind      = "burn"
      duration  = 2
      magnitude = 100
    }
  }
}
`

var (
	alice = Participant{ID: 1, Name: "alice", Elo: 1200}
	bob   = Participant{ID: 2, Name: "bob", Elo: 1200}
)

type sent struct {
	player int64
	event  Event
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Notify(playerID int64, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{player: playerID, event: ev})
}

func (n *recordingNotifier) events(playerID int64) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, s := range n.sent {
		if s.player == playerID {
			out = append(out, s.event)
		}
	}
	return out
}

func (n *recordingNotifier) kinds(playerID int64) []EventKind {
	var out []EventKind
	for _, ev := range n.events(playerID) {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *recordingNotifier) last(playerID int64, kind EventKind) (Event, bool) {
	events := n.events(playerID)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return Event{}, false
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type fakeSettler struct {
	mu        sync.Mutex
	summaries []*Summary
	err       error
}

func (s *fakeSettler) Settle(_ context.Context, summary *Summary) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	if s.err != nil {
		return nil, s.err
	}
	var out Settlement
	for i, p := range summary.Players {
		out.Players[i] = PlayerSettlement{PlayerID: p.ID, Won: p.ID == summary.Winner, OldElo: p.Elo, NewElo: p.Elo}
	}
	return &out, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	created  int
	updated  int
	finished []string
}

func (r *fakeRecorder) MatchCreated(string, Mode, [2]Participant, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *fakeRecorder) MatchUpdated(string, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated++
}

func (r *fakeRecorder) MatchFinished(id string, _ int64, _ time.Duration, _ []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, id)
}

type fakeUnlocks struct {
	heroes map[int64][]string
	err    error
}

func (u *fakeUnlocks) UnlockedHeroes(_ context.Context, playerID int64) ([]string, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.heroes[playerID], nil
}

var errStorageDown = errors.New("storage down")

type harness struct {
	match     *Match
	clock     *quartz.Mock
	notifier  *recordingNotifier
	settler   *fakeSettler
	recorder  *fakeRecorder
	completed []string
}

func newHarness(t *testing.T, teamSize int, opts ...func(*Deps)) *harness {
	t.Helper()

	roster, err := catalog.Parse([]byte(testRoster), "test.hcl")
	require.NoError(t, err)

	h := &harness{
		clock:    quartz.NewMock(t),
		notifier: &recordingNotifier{},
		settler:  &fakeSettler{},
		recorder: &fakeRecorder{},
	}

	cfg := DefaultConfig()
	cfg.TeamSize = teamSize
	cfg.ReconnectWindow = 10 * time.Second

	deps := Deps{
		Config:     cfg,
		Catalog:    roster,
		Notifier:   h.notifier,
		Settler:    h.settler,
		Recorder:   h.recorder,
		Clock:      h.clock,
		Logger:     log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}),
		OnComplete: func(id string) { h.completed = append(h.completed, id) },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h.match = New("match-1", ModePrivate, alice, bob, deps)
	h.match.Start()
	return h
}

// draft picks both teams and confirms them.
func (h *harness) draft(t *testing.T, first, second []string) {
	t.Helper()
	for _, id := range first {
		require.NoError(t, h.match.SelectHero(t.Context(), alice.ID, id))
	}
	for _, id := range second {
		require.NoError(t, h.match.SelectHero(t.Context(), bob.ID, id))
	}
	require.NoError(t, h.match.ConfirmTeam(alice.ID))
	require.NoError(t, h.match.ConfirmTeam(bob.ID))
	require.Equal(t, PhaseBattle, h.match.State().Phase)
}

func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.Advance(d).MustWait(t.Context())
}

func logTexts(entries []LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

func hasLog(s State, text string) bool {
	return slices.Contains(logTexts(s.Log), text)
}

package bot

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/randutil"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func defaultRoster(t *testing.T) *catalog.Roster {
	t.Helper()
	roster, err := catalog.Default()
	require.NoError(t, err)
	return roster
}

func unit(id string, hp, maxHP int, pos combat.Position) match.UnitView {
	return match.UnitView{HeroID: id, Name: id, HP: hp, MaxHP: maxHP, Position: pos, Alive: hp > 0}
}

func skill(id int, dmg, heal int, t catalog.Targeting, ok bool) match.SkillAction {
	return match.SkillAction{ID: id, Name: "s", Damage: dmg, Healing: heal, Targeting: t, Usable: ok}
}

// prompt is a turn prompt with an attacker, a healer and two enemies.
func prompt() match.Event {
	return match.Event{
		Kind:     match.EventTurnPrompt,
		Phase:    match.PhaseBattle,
		YourTurn: true,
		YourTeam: []match.UnitView{
			unit("striker", 90, 100, combat.Front),
			unit("healer", 80, 80, combat.Back),
		},
		OpponentTeam: []match.UnitView{
			unit("tough", 150, 200, combat.Front),
			unit("fragile", 20, 100, combat.Back),
			unit("fallen", 0, 100, combat.Back),
		},
		Actions: []match.UnitActions{
			{HeroID: "striker", Alive: true, Skills: []match.SkillAction{
				skill(0, 20, 0, catalog.TargetEnemy, true),
				skill(1, 60, 0, catalog.TargetEnemy, true),
				skill(2, 90, 0, catalog.TargetAllEnemies, false),
			}},
			{HeroID: "healer", Alive: true, Skills: []match.SkillAction{
				skill(0, 0, 40, catalog.TargetAlly, true),
			}},
		},
	}
}

func TestVeteranHitsHardestOnWeakest(t *testing.T) {
	t.Parallel()

	d, ok := NewVeteran().Decide(prompt())
	require.True(t, ok)
	assert.False(t, d.IsSwap())
	assert.Equal(t, "striker", d.HeroID)
	assert.Equal(t, 1, d.SkillID, "unusable skills are skipped")
	assert.Equal(t, "fragile", d.TargetID)
}

func TestMasterHealsBeforeAttacking(t *testing.T) {
	t.Parallel()

	ev := prompt()
	d, ok := NewMaster().Decide(ev)
	require.True(t, ok)
	assert.Equal(t, "striker", d.HeroID, "nobody is below the heal threshold")

	ev.YourTeam[0].HP = 30
	d, ok = NewMaster().Decide(ev)
	require.True(t, ok)
	assert.Equal(t, "healer", d.HeroID)
	assert.Equal(t, 0, d.SkillID)
	assert.Equal(t, "striker", d.TargetID)
}

func TestNoviceOnlyPicksLegalActions(t *testing.T) {
	t.Parallel()

	n := NewNovice(randutil.New(3))
	for range 200 {
		ev := prompt()
		d, ok := n.Decide(ev)
		require.True(t, ok)
		switch d.HeroID {
		case "striker":
			assert.Contains(t, []int{0, 1}, d.SkillID)
			assert.Contains(t, []string{"tough", "fragile"}, d.TargetID)
		case "healer":
			assert.Contains(t, []string{"striker", "healer"}, d.TargetID)
		default:
			t.Fatalf("unexpected actor %q", d.HeroID)
		}
	}
}

func TestStrategiesSwapWhenNothingIsUsable(t *testing.T) {
	t.Parallel()

	ev := prompt()
	for i := range ev.Actions {
		for j := range ev.Actions[i].Skills {
			ev.Actions[i].Skills[j].Usable = false
		}
	}

	strategies := map[string]Strategy{
		"novice":  NewNovice(randutil.New(1)),
		"veteran": NewVeteran(),
		"master":  NewMaster(),
	}
	for name, s := range strategies {
		d, ok := s.Decide(ev)
		require.True(t, ok, name)
		assert.True(t, d.IsSwap(), name)
		assert.Equal(t, "healer", d.HeroID, name)
		assert.Equal(t, combat.Front, d.Swap, name)
	}

	ev.YourTeam[1].Position = combat.Front
	for name, s := range strategies {
		_, ok := s.Decide(ev)
		assert.False(t, ok, "%s has nothing to do", name)
	}
}

func TestStunnedUnitsDoNotAct(t *testing.T) {
	t.Parallel()

	ev := prompt()
	ev.Actions[0].Stunned = true
	d, ok := NewVeteran().Decide(ev)
	require.True(t, ok)
	assert.Equal(t, "healer", d.HeroID)
}

func TestDraftRosters(t *testing.T) {
	t.Parallel()

	roster := defaultRoster(t)
	all := roster.AllHeroIDs()

	master := NewMaster().Draft(roster)
	assert.Equal(t, masterRoster, master[:5])
	assert.ElementsMatch(t, all, master)

	veteran := NewVeteran().Draft(roster)
	assert.Equal(t, veteranRoster, veteran[:5])

	novice := NewNovice(randutil.New(9)).Draft(roster)
	assert.ElementsMatch(t, all, novice)
}

func TestParticipantAndThinkDelay(t *testing.T) {
	t.Parallel()

	rng := randutil.New(5)
	tests := []struct {
		d        match.Difficulty
		elo      [2]int
		delayMin time.Duration
		delayMax time.Duration
	}{
		{match.DifficultyMaster, [2]int{1800, 2000}, 800 * time.Millisecond, 2 * time.Second},
		{match.DifficultyVeteran, [2]int{1400, 1600}, 500 * time.Millisecond, 1500 * time.Millisecond},
		{match.DifficultyNovice, [2]int{1000, 1200}, 300 * time.Millisecond, time.Second},
	}
	for _, tt := range tests {
		p := Participant(-1, tt.d, rng)
		assert.True(t, p.Bot)
		assert.Equal(t, tt.d, p.Difficulty)
		assert.GreaterOrEqual(t, p.Elo, tt.elo[0])
		assert.Less(t, p.Elo, tt.elo[1])

		delay := ThinkDelay(tt.d, rng)
		assert.GreaterOrEqual(t, delay, tt.delayMin)
		assert.Less(t, delay, tt.delayMax)
	}
}

type call struct {
	op     string
	hero   string
	skill  int
	target string
}

type fakeGame struct {
	mu       sync.Mutex
	calls    []call
	capacity int
	picked   int
	acted    chan struct{}
}

func newFakeGame(capacity int) *fakeGame {
	return &fakeGame{capacity: capacity, acted: make(chan struct{}, 16)}
}

func (g *fakeGame) record(c call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
}

func (g *fakeGame) SelectHero(_ context.Context, _ int64, heroID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.picked == g.capacity {
		return &match.ActionError{Kind: match.ErrTeamFull, Message: "full"}
	}
	g.picked++
	g.calls = append(g.calls, call{op: "select", hero: heroID})
	return nil
}

func (g *fakeGame) ConfirmTeam(int64) error {
	g.record(call{op: "confirm"})
	g.acted <- struct{}{}
	return nil
}

func (g *fakeGame) UseSkill(_ int64, heroID string, skillID int, targetID string) error {
	g.record(call{op: "skill", hero: heroID, skill: skillID, target: targetID})
	g.acted <- struct{}{}
	return nil
}

func (g *fakeGame) SwapPosition(_ int64, heroID string, _ combat.Position) error {
	g.record(call{op: "swap", hero: heroID})
	g.acted <- struct{}{}
	return nil
}

func (g *fakeGame) snapshot() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

func waitActed(t *testing.T, g *fakeGame) {
	t.Helper()
	select {
	case <-g.acted:
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not act")
	}
}

func TestAgentDraftsAndPlays(t *testing.T) {
	t.Parallel()

	roster := defaultRoster(t)
	player := match.Participant{ID: -1, Name: "MasterBot-1", Bot: true, Difficulty: match.DifficultyMaster}
	agent := NewAgent(player, NewMaster(), roster, testLogger())
	game := newFakeGame(5)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- agent.Run(ctx, game) }()

	agent.Deliver(match.Event{Kind: match.EventMatchStart, Phase: match.PhaseDrafting})
	waitActed(t, game)

	calls := game.snapshot()
	require.Len(t, calls, 6)
	for i, id := range masterRoster {
		assert.Equal(t, call{op: "select", hero: id}, calls[i])
	}
	assert.Equal(t, "confirm", calls[5].op)

	// Prompts for the other player are ignored.
	other := prompt()
	other.YourTurn = false
	agent.Deliver(other)
	agent.Deliver(prompt())
	waitActed(t, game)

	calls = game.snapshot()
	require.Len(t, calls, 7)
	assert.Equal(t, call{op: "skill", hero: "striker", skill: 1, target: "fragile"}, calls[6])

	agent.Deliver(match.Event{Kind: match.EventGameOver, Summary: &match.Summary{Winner: -1}})
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop after game over")
	}
}

func TestAgentWaitsForThinkDelay(t *testing.T) {
	t.Parallel()

	clock := quartz.NewMock(t)
	player := match.Participant{ID: -1, Name: "VeteranBot-1", Bot: true, Difficulty: match.DifficultyVeteran}
	agent := NewAgent(player, NewVeteran(), defaultRoster(t), testLogger(),
		WithClock(clock), WithThinkDelay(time.Second))
	game := newFakeGame(5)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = agent.Run(ctx, game) }()

	agent.Deliver(prompt())
	require.Eventually(t, func() bool {
		_, ok := clock.Peek()
		return ok
	}, 5*time.Second, time.Millisecond, "think timer never started")
	assert.Empty(t, game.snapshot())

	clock.Advance(time.Second).MustWait(ctx)
	waitActed(t, game)
	assert.Len(t, game.snapshot(), 1)
}

func TestAgentStopsOnCancel(t *testing.T) {
	t.Parallel()

	agent := NewAgent(match.Participant{ID: -1}, NewVeteran(), defaultRoster(t), testLogger())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, agent.Run(ctx, newFakeGame(5)), context.Canceled)
}

func TestDeliverNeverBlocks(t *testing.T) {
	t.Parallel()

	agent := NewAgent(match.Participant{ID: -1}, NewVeteran(), defaultRoster(t), testLogger(), WithInbox(1))
	done := make(chan struct{})
	go func() {
		for range 10 {
			agent.Deliver(prompt())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Deliver blocked on a full inbox")
	}
}

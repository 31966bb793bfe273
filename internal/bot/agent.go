package bot

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

const defaultInbox = 64

// Game is the part of *match.Match a bot plays through.
type Game interface {
	SelectHero(ctx context.Context, playerID int64, heroID string) error
	ConfirmTeam(playerID int64) error
	UseSkill(playerID int64, heroID string, skillID int, targetID string) error
	SwapPosition(playerID int64, heroID string, position combat.Position) error
}

// Agent plays one side of a match. Events arrive through Deliver and are
// handled on the goroutine running Run.
type Agent struct {
	player   match.Participant
	strategy Strategy
	catalog  catalog.Catalog
	clock    quartz.Clock
	think    time.Duration
	logger   *log.Logger
	inbox    chan match.Event
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithClock sets the clock used for think delays.
func WithClock(c quartz.Clock) AgentOption {
	return func(a *Agent) { a.clock = c }
}

// WithThinkDelay sets the pause before each action. Zero acts at once.
func WithThinkDelay(d time.Duration) AgentOption {
	return func(a *Agent) { a.think = d }
}

// WithInbox sets how many undelivered events may queue.
func WithInbox(n int) AgentOption {
	return func(a *Agent) { a.inbox = make(chan match.Event, n) }
}

// NewAgent returns an agent for player using strategy.
func NewAgent(player match.Participant, strategy Strategy, cat catalog.Catalog, logger *log.Logger, opts ...AgentOption) *Agent {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	a := &Agent{
		player:   player,
		strategy: strategy,
		catalog:  cat,
		clock:    quartz.NewReal(),
		logger:   logger.WithPrefix("bot").With("bot", player.Name),
		inbox:    make(chan match.Event, defaultInbox),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Player returns the participant the agent plays as.
func (a *Agent) Player() match.Participant { return a.player }

// Deliver queues ev without blocking. Matches call it under their lock.
func (a *Agent) Deliver(ev match.Event) {
	select {
	case a.inbox <- ev:
	default:
		a.logger.Warn("Bot inbox full, dropping event", "kind", ev.Kind)
	}
}

// Run handles events until the match ends or ctx is done.
func (a *Agent) Run(ctx context.Context, g Game) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.inbox:
			if done := a.handle(ctx, g, ev); done {
				return nil
			}
		}
	}
}

func (a *Agent) handle(ctx context.Context, g Game, ev match.Event) bool {
	switch ev.Kind {
	case match.EventMatchStart:
		if ev.Phase == match.PhaseDrafting {
			a.draft(ctx, g)
		}
	case match.EventTurnPrompt, match.EventReconnect:
		if ev.YourTurn && len(ev.Actions) > 0 {
			a.play(ctx, g, ev)
		}
	case match.EventGameOver:
		a.logger.Info("Match finished", "winner", ev.Summary != nil && ev.Summary.Winner == a.player.ID)
		return true
	}
	return false
}

func (a *Agent) draft(ctx context.Context, g Game) {
	picked := 0
	for _, id := range a.strategy.Draft(a.catalog) {
		err := g.SelectHero(ctx, a.player.ID, id)
		if errors.Is(err, match.ErrTeamFull) {
			break
		}
		if err != nil {
			a.logger.Debug("Hero pick rejected", "hero", id, "error", err)
			continue
		}
		picked++
	}
	if err := g.ConfirmTeam(a.player.ID); err != nil {
		a.logger.Warn("Failed to confirm team", "picked", picked, "error", err)
		return
	}
	a.logger.Debug("Team confirmed", "picked", picked)
}

func (a *Agent) play(ctx context.Context, g Game, ev match.Event) {
	if err := a.pause(ctx); err != nil {
		return
	}

	d, ok := a.strategy.Decide(ev)
	if !ok {
		a.logger.Debug("No legal action, waiting out the turn", "round", ev.Round)
		return
	}

	var err error
	if d.IsSwap() {
		err = g.SwapPosition(a.player.ID, d.HeroID, d.Swap)
	} else {
		err = g.UseSkill(a.player.ID, d.HeroID, d.SkillID, d.TargetID)
	}
	if err != nil {
		// Usually the turn expired while thinking.
		a.logger.Debug("Action rejected", "hero", d.HeroID, "skill", d.SkillID, "error", err)
		return
	}
	a.logger.Debug("Bot acted",
		"round", ev.Round,
		"hero", d.HeroID,
		"skill", d.SkillID,
		"target", d.TargetID,
		"reason", d.Reasoning)
}

func (a *Agent) pause(ctx context.Context) error {
	if a.think <= 0 {
		return nil
	}
	t := a.clock.NewTimer(a.think, "bot", "think")
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

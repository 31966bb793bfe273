// Package settlement turns a finished match into rating, experience,
// unlock and hero statistic updates.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/randutil"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

// Store is the part of storage.Store that settlement writes to.
type Store interface {
	GetUser(ctx context.Context, id int64) (*storage.User, error)
	UnlockedHeroes(ctx context.Context, id int64) ([]string, error)
	UpdateUserElo(ctx context.Context, id int64, matchID string, elo int, rank string) error
	RecordResult(ctx context.Context, id int64, won bool) error
	AddExperience(ctx context.Context, id int64, amount int) error
	UnlockHero(ctx context.Context, id int64, heroID string) (bool, error)
	RecordHeroOutcome(ctx context.Context, heroID string, won bool, damage, healing int) error
}

const (
	defaultRetries = 3
	defaultBackoff = 25 * time.Millisecond
)

// Settler implements match.Settler against a Store.
type Settler struct {
	store   Store
	catalog catalog.Catalog
	policy  Policy
	rng     *randutil.Locked
	logger  *log.Logger
	retries uint64
	backoff time.Duration
}

var _ match.Settler = (*Settler)(nil)

// Option configures a Settler.
type Option func(*Settler)

// WithRand sets the source for unlock rolls.
func WithRand(rng *randutil.Locked) Option {
	return func(s *Settler) { s.rng = rng }
}

// WithRetry sets the retry budget and first backoff step for store calls.
func WithRetry(retries uint64, base time.Duration) Option {
	return func(s *Settler) {
		s.retries = retries
		s.backoff = base
	}
}

// New returns a settler applying policy.
func New(store Store, cat catalog.Catalog, policy Policy, logger *log.Logger, opts ...Option) *Settler {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Settler{
		store:   store,
		catalog: cat,
		policy:  policy,
		logger:  logger.WithPrefix("settlement"),
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = randutil.NewLocked(randutil.Seed())
	}
	return s
}

// Settle applies the rewards of summary. Store failures are logged and
// joined into the returned error; the settlement is returned regardless
// and reflects what was computed.
func (s *Settler) Settle(ctx context.Context, summary *match.Summary) (*match.Settlement, error) {
	winSide := summary.Side(summary.Winner)
	if winSide < 0 {
		return nil, fmt.Errorf("winner %d did not play match %s", summary.Winner, summary.MatchID)
	}
	logger := s.logger.With("match", summary.MatchID)

	var (
		out  match.Settlement
		errs []error
	)
	for i, p := range summary.Players {
		ps := &out.Players[i]
		ps.PlayerID = p.ID
		ps.Bot = p.Bot
		ps.Won = i == winSide
		ps.OldElo = p.Elo
		if p.Bot {
			continue
		}
		// The participant rating was captured at pairing; prefer the stored one.
		err := s.do(ctx, "load user", func(ctx context.Context) error {
			u, err := s.store.GetUser(ctx, p.ID)
			if err != nil {
				return err
			}
			ps.OldElo = u.Elo
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.rate(summary, &out, winSide)

	for i, p := range summary.Players {
		if p.Bot {
			continue
		}
		errs = append(errs, s.applyPlayer(ctx, summary.MatchID, &out.Players[i])...)
	}

	if winner := &out.Players[winSide]; !winner.Bot && s.rng.Float64() < s.policy.UnlockChance {
		hero, err := s.unlock(ctx, winner.PlayerID)
		if err != nil {
			errs = append(errs, err)
		}
		winner.UnlockedHero = hero
	}

	for side, units := range summary.Units {
		for _, u := range units {
			err := s.do(ctx, "record hero outcome", func(ctx context.Context) error {
				return s.store.RecordHeroOutcome(ctx, u.HeroID, side == winSide, u.Damage, u.Healing)
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, p := range out.Players {
		if p.Bot {
			continue
		}
		logger.Info("Player settled",
			"player", p.PlayerID,
			"won", p.Won,
			"elo", p.NewElo,
			"delta", p.EloDelta,
			"rank", p.Rank,
			"unlocked", p.UnlockedHero)
	}
	return &out, errors.Join(errs...)
}

// rate fills NewElo and EloDelta for every participant.
func (s *Settler) rate(summary *match.Summary, out *match.Settlement, winSide int) {
	loseSide := 1 - winSide
	winner, loser := &out.Players[winSide], &out.Players[loseSide]
	winner.NewElo, loser.NewElo = winner.OldElo, loser.OldElo

	switch {
	case !winner.Bot && !loser.Bot:
		w, l := Elo(winner.OldElo, loser.OldElo, s.policy.KFactor)
		winner.NewElo, loser.NewElo = s.policy.floor(w), s.policy.floor(l)
	case winner.Bot && !loser.Bot:
		d := s.policy.BotDelta(summary.Players[winSide].Difficulty, false)
		loser.NewElo = s.policy.floor(loser.OldElo + d)
	case !winner.Bot && loser.Bot:
		d := s.policy.BotDelta(summary.Players[loseSide].Difficulty, true)
		winner.NewElo = s.policy.floor(winner.OldElo + d)
	}
	winner.EloDelta = winner.NewElo - winner.OldElo
	loser.EloDelta = loser.NewElo - loser.OldElo
}

func (s *Settler) applyPlayer(ctx context.Context, matchID string, ps *match.PlayerSettlement) []error {
	var errs []error
	ps.Rank = RankTier(ps.NewElo)

	if err := s.do(ctx, "add experience", func(ctx context.Context) error {
		return s.store.AddExperience(ctx, ps.PlayerID, s.policy.Experience)
	}); err != nil {
		errs = append(errs, err)
	} else {
		ps.Experience = s.policy.Experience
	}

	if err := s.do(ctx, "update elo", func(ctx context.Context) error {
		return s.store.UpdateUserElo(ctx, ps.PlayerID, matchID, ps.NewElo, ps.Rank)
	}); err != nil {
		errs = append(errs, err)
	}

	if err := s.do(ctx, "record result", func(ctx context.Context) error {
		return s.store.RecordResult(ctx, ps.PlayerID, ps.Won)
	}); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// unlock grants playerID one random hero they do not own yet. It returns
// "" when every hero is already unlocked.
func (s *Settler) unlock(ctx context.Context, playerID int64) (string, error) {
	var owned []string
	if err := s.do(ctx, "load unlocks", func(ctx context.Context) error {
		var err error
		owned, err = s.store.UnlockedHeroes(ctx, playerID)
		return err
	}); err != nil {
		return "", err
	}

	var locked []string
	for _, id := range s.catalog.AllHeroIDs() {
		if !slices.Contains(owned, id) {
			locked = append(locked, id)
		}
	}
	if len(locked) == 0 {
		return "", nil
	}

	hero := locked[s.rng.IntN(len(locked))]
	var added bool
	if err := s.do(ctx, "unlock hero", func(ctx context.Context) error {
		var err error
		added, err = s.store.UnlockHero(ctx, playerID, hero)
		return err
	}); err != nil {
		return "", err
	}
	if !added {
		return "", nil
	}
	return hero, nil
}

// do runs fn with retries. Missing records are not retried.
func (s *Settler) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		s.logger.Error("Settlement step failed", "op", op, "error", err)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

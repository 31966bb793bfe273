// Package registry indexes live matches by id and by participant.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/matchid"
)

var (
	// ErrAlreadyInMatch is returned when a participant already has a live match.
	ErrAlreadyInMatch = errors.New("player is already in a match")
	// ErrNotFound is returned for unknown match ids and idle players.
	ErrNotFound = errors.New("match not found")
	// ErrSamePlayer is returned when both sides of a pairing are one player.
	ErrSamePlayer = errors.New("a player cannot face themselves")
)

// Registry owns every live match. Matches remove themselves on completion.
//
// Lock order is match then registry: a completing match calls Evict while
// holding its own lock, so the registry never calls into a match while
// holding mu.
type Registry struct {
	mu       sync.RWMutex
	matches  map[string]*match.Match
	byPlayer map[int64]string

	deps   match.Deps
	ids    *matchid.Generator
	logger *log.Logger
}

// New returns an empty registry. deps is the template for every match it
// creates; its OnComplete, if set, runs after the match is evicted.
func New(deps match.Deps, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Registry{
		matches:  make(map[string]*match.Match),
		byPlayer: make(map[int64]string),
		deps:     deps,
		ids:      matchid.NewGenerator(nil),
		logger:   logger.WithPrefix("registry"),
	}
}

// PairAndCreate creates a drafting match between p1 and p2, indexes it and
// announces it to both players.
func (r *Registry) PairAndCreate(p1, p2 match.Participant, mode match.Mode) (*match.Match, error) {
	if p1.ID == p2.ID {
		return nil, ErrSamePlayer
	}

	r.mu.Lock()
	for _, p := range []match.Participant{p1, p2} {
		if existing, ok := r.byPlayer[p.ID]; ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is in %s", ErrAlreadyInMatch, p.Name, existing)
		}
	}

	id := r.ids.Generate()
	deps := r.deps
	next := r.deps.OnComplete
	deps.OnComplete = func(matchID string) {
		r.Evict(matchID)
		if next != nil {
			next(matchID)
		}
	}

	m := match.New(id, mode, p1, p2, deps)
	r.matches[id] = m
	r.byPlayer[p1.ID] = id
	r.byPlayer[p2.ID] = id
	total := len(r.matches)
	r.mu.Unlock()

	r.logger.Info("Match paired",
		"match", id,
		"mode", mode,
		"player1", p1.Name,
		"player2", p2.Name,
		"active", total)

	m.Start()
	return m, nil
}

// LookupByPlayer returns the live match playerID belongs to.
func (r *Registry) LookupByPlayer(playerID int64) (*match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.matches[id], nil
}

// Get returns the live match with matchID.
func (r *Registry) Get(matchID string) (*match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Evict forgets matchID and both of its participants. Evicting an unknown
// match is a no-op.
func (r *Registry) Evict(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	delete(r.matches, matchID)
	for _, p := range m.Players() {
		if r.byPlayer[p.ID] == matchID {
			delete(r.byPlayer, p.ID)
		}
	}
	r.logger.Debug("Match evicted", "match", matchID, "active", len(r.matches))
}

// Len returns the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// Matches returns a snapshot of the live matches.
func (r *Registry) Matches() []*match.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*match.Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	return out
}

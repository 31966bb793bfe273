package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// MemoryStore is an in-process Store. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	clock   quartz.Clock
	nextID  int64
	users   map[int64]*User
	byName  map[string]int64
	history map[int64][]EloPoint
	matches map[string]*MatchRecord
	heroes  map[string]*HeroStats
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil clock uses the wall clock.
func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock:   clock,
		nextID:  1,
		users:   make(map[int64]*User),
		byName:  make(map[string]int64),
		history: make(map[int64][]EloPoint),
		matches: make(map[string]*MatchRecord),
		heroes:  make(map[string]*HeroStats),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) EnsureUser(_ context.Context, username string) (*User, bool, error) {
	if !validUsername(username) {
		return nil, false, ErrInvalidUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if id, ok := s.byName[username]; ok {
		u := s.users[id]
		u.LastLogin = now
		return copyUser(u), false, nil
	}

	u := &User{
		ID:        s.nextID,
		Username:  username,
		Elo:       DefaultElo,
		Rank:      DefaultRank,
		Unlocked:  slices.Clone(DefaultUnlockedHeroes),
		CreatedAt: now,
		LastLogin: now,
	}
	s.nextID++
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return copyUser(u), true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) UnlockedHeroes(_ context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(u.Unlocked), nil
}

func (s *MemoryStore) UpdateUserElo(_ context.Context, id int64, matchID string, elo int, rank string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Elo = elo
	u.Rank = rank
	s.history[id] = append(s.history[id], EloPoint{MatchID: matchID, Elo: elo, Rank: rank, CreatedAt: s.clock.Now()})
	return nil
}

func (s *MemoryStore) RecordResult(_ context.Context, id int64, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if won {
		u.Wins++
	} else {
		u.Losses++
	}
	return nil
}

func (s *MemoryStore) AddExperience(_ context.Context, id int64, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Experience += amount
	return nil
}

func (s *MemoryStore) UnlockHero(_ context.Context, id int64, heroID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, ErrNotFound
	}
	if slices.Contains(u.Unlocked, heroID) {
		return false, nil
	}
	u.Unlocked = append(u.Unlocked, heroID)
	return true, nil
}

func (s *MemoryStore) EloHistory(_ context.Context, id int64, limit int) ([]EloPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := slices.Clone(s.history[id])
	slices.Reverse(points)
	if len(points) > limit {
		points = points[:limit]
	}
	if points == nil {
		points = []EloPoint{}
	}
	return points, nil
}

func (s *MemoryStore) CreateMatchRecord(_ context.Context, rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[rec.ID]; ok {
		return fmt.Errorf("match %s already exists", rec.ID)
	}
	now := s.clock.Now()
	rec.State = slices.Clone(rec.State)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.matches[rec.ID] = &rec
	return nil
}

func (s *MemoryStore) UpdateMatchRecord(_ context.Context, matchID string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	rec.State = slices.Clone(state)
	rec.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemoryStore) FinalizeMatchRecord(_ context.Context, matchID string, winner int64, duration time.Duration, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return ErrNotFound
	}
	now := s.clock.Now()
	rec.Winner = winner
	rec.Duration = duration
	rec.State = slices.Clone(state)
	rec.UpdatedAt = now
	rec.EndedAt = now
	return nil
}

func (s *MemoryStore) GetMatchRecord(_ context.Context, matchID string) (*MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.State = slices.Clone(rec.State)
	return &out, nil
}

func (s *MemoryStore) RecordHeroOutcome(_ context.Context, heroID string, won bool, damage, healing int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.heroes[heroID]
	if !ok {
		h = &HeroStats{HeroID: heroID}
		s.heroes[heroID] = h
	}
	h.Picks++
	h.Matches++
	if won {
		h.Wins++
	}
	h.Damage += int64(damage)
	h.Healing += int64(healing)
	h.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemoryStore) HeroStats(_ context.Context) ([]HeroStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HeroStats, 0, len(s.heroes))
	for _, h := range s.heroes {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Picks != out[j].Picks {
			return out[i].Picks > out[j].Picks
		}
		return out[i].HeroID < out[j].HeroID
	})
	return out, nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LeaderboardEntry, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, LeaderboardEntry{ID: u.ID, Username: u.Username, Elo: u.Elo, Rank: u.Rank})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UserStats(_ context.Context, id int64) (*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return nil, ErrNotFound
	}

	stats := &UserStats{UserID: id, HeroUsage: map[string]int{}}
	for _, rec := range s.matches {
		if rec.EndedAt.IsZero() || (rec.Player1 != id && rec.Player2 != id) {
			continue
		}
		stats.TotalMatches++
		if rec.Winner == id {
			stats.Wins++
		} else {
			stats.Losses++
		}
		addHeroUsage(stats.HeroUsage, rec.State, id)
	}
	stats.WinRate = winRate(stats.Wins, stats.TotalMatches)
	return stats, nil
}

func copyUser(u *User) *User {
	out := *u
	out.Unlocked = slices.Clone(u.Unlocked)
	return &out
}

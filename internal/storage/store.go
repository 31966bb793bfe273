// Package storage persists accounts, match history and hero statistics.
//
// SQLiteStore is the production backend. MemoryStore implements the same
// contract for tests and ephemeral servers. Journal adapts either one into
// an asynchronous match recorder, and Archive writes finished matches to
// JSON files.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a user or match does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidUsername is returned for empty or oversized usernames.
var ErrInvalidUsername = errors.New("username must be 1-32 characters")

// DefaultElo and DefaultRank apply to new accounts.
const (
	DefaultElo  = 1000
	DefaultRank = "Rookie"

	maxUsername = 32
)

// DefaultUnlockedHeroes are available to every new account.
var DefaultUnlockedHeroes = []string{"ironman", "captain-america", "hulk", "black-widow", "thor"}

// User is a player account.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Elo        int       `json:"elo"`
	Rank       string    `json:"rank"`
	Experience int       `json:"experience"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Unlocked   []string  `json:"unlockedHeroes"`
	CreatedAt  time.Time `json:"createdAt"`
	LastLogin  time.Time `json:"lastLogin"`
}

// LeaderboardEntry is the public slice of a User.
type LeaderboardEntry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Rank     string `json:"rank"`
}

// HeroStats aggregates every finished match a hero took part in.
type HeroStats struct {
	HeroID    string    `json:"heroId"`
	Picks     int       `json:"pickCount"`
	Wins      int       `json:"winCount"`
	Damage    int64     `json:"totalDamageDealt"`
	Healing   int64     `json:"totalHealing"`
	Matches   int       `json:"totalMatches"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WinRate returns wins per match as a percentage.
func (h HeroStats) WinRate() float64 {
	if h.Matches == 0 {
		return 0
	}
	return float64(h.Wins) / float64(h.Matches) * 100
}

// MatchRecord is a persisted match. State holds the latest JSON snapshot.
type MatchRecord struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Player1   int64           `json:"player1Id"`
	Player2   int64           `json:"player2Id"`
	Winner    int64           `json:"winnerId,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	EndedAt   time.Time       `json:"endedAt,omitzero"`
}

// UserStats summarises a player's finished matches.
type UserStats struct {
	UserID       int64          `json:"userId"`
	TotalMatches int            `json:"totalMatches"`
	Wins         int            `json:"wins"`
	Losses       int            `json:"losses"`
	WinRate      float64        `json:"winRate"`
	HeroUsage    map[string]int `json:"heroUsage"`
}

// EloPoint is one rating change.
type EloPoint struct {
	MatchID   string    `json:"matchId"`
	Elo       int       `json:"elo"`
	Rank      string    `json:"rank"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence contract shared by every backend.
type Store interface {
	// EnsureUser loads username, creating it with defaults if needed. The
	// boolean reports whether the account was created.
	EnsureUser(ctx context.Context, username string) (*User, bool, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	UnlockedHeroes(ctx context.Context, id int64) ([]string, error)
	// UpdateUserElo stores a new rating and rank and appends to the user's
	// rating history under matchID.
	UpdateUserElo(ctx context.Context, id int64, matchID string, elo int, rank string) error
	RecordResult(ctx context.Context, id int64, won bool) error
	AddExperience(ctx context.Context, id int64, amount int) error
	// UnlockHero reports false if the hero was already unlocked.
	UnlockHero(ctx context.Context, id int64, heroID string) (bool, error)
	EloHistory(ctx context.Context, id int64, limit int) ([]EloPoint, error)

	CreateMatchRecord(ctx context.Context, rec MatchRecord) error
	UpdateMatchRecord(ctx context.Context, matchID string, state []byte) error
	FinalizeMatchRecord(ctx context.Context, matchID string, winner int64, duration time.Duration, state []byte) error
	GetMatchRecord(ctx context.Context, matchID string) (*MatchRecord, error)

	RecordHeroOutcome(ctx context.Context, heroID string, won bool, damage, healing int) error
	HeroStats(ctx context.Context) ([]HeroStats, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	UserStats(ctx context.Context, id int64) (*UserStats, error)

	Close() error
}

func validUsername(name string) bool {
	return name != "" && len(name) <= maxUsername
}

// snapshotTeams is the part of a match snapshot needed for hero usage.
type snapshotTeams struct {
	Players []struct {
		ID int64 `json:"id"`
	} `json:"players"`
	Teams [][]struct {
		HeroID string `json:"heroId"`
	} `json:"teams"`
}

// addHeroUsage counts the heroes userID drafted in one snapshot.
func addHeroUsage(usage map[string]int, state []byte, userID int64) {
	var s snapshotTeams
	if err := json.Unmarshal(state, &s); err != nil {
		return
	}
	for i, p := range s.Players {
		if p.ID != userID || i >= len(s.Teams) {
			continue
		}
		for _, u := range s.Teams[i] {
			if u.HeroID != "" {
				usage[u.HeroID]++
			}
		}
	}
}

func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

package match

import (
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/combat"
)

// Phase is the match lifecycle stage. It only ever moves forward.
type Phase string

const (
	PhaseDrafting Phase = "drafting"
	PhaseBattle   Phase = "battle"
	PhaseComplete Phase = "complete"
)

// Mode is how the two participants were paired: through a lobby code or
// against a bot.
type Mode string

const (
	ModePrivate Mode = "private"
	ModeBot     Mode = "bot"
)

// Difficulty selects a bot's roster, strategy and rating stakes.
type Difficulty string

const (
	DifficultyNovice  Difficulty = "novice"
	DifficultyVeteran Difficulty = "veteran"
	DifficultyMaster  Difficulty = "master"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyNovice, DifficultyVeteran, DifficultyMaster:
		return true
	}
	return false
}

// EndReason records how a match reached the complete phase.
type EndReason string

const (
	EndVictory    EndReason = "victory"
	EndSurrender  EndReason = "surrender"
	EndDisconnect EndReason = "disconnect"
)

// Participant is one side of a match.
type Participant struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Elo        int        `json:"elo"`
	Bot        bool       `json:"bot,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// LogEntry is one line of the append-only battle log.
type LogEntry struct {
	Round    int             `json:"round"`
	Text     string          `json:"text"`
	Category combat.Category `json:"category"`
	At       time.Time       `json:"at"`
}

// State is the canonical match record. It marshals to JSON without cycles
// and is the unit of persistence for match history.
type State struct {
	ID          string         `json:"id"`
	Mode        Mode           `json:"mode"`
	Players     [2]Participant `json:"players"`
	Teams       [2]combat.Team `json:"teams"`
	Ready       [2]bool        `json:"ready"`
	Phase       Phase          `json:"phase"`
	Round       int            `json:"round"`
	CurrentTurn int64          `json:"currentTurn,omitempty"`
	FirstTurn   int64          `json:"firstTurn,omitempty"`
	TurnSeq     int            `json:"turnSeq"`
	Deadline    time.Time      `json:"deadline,omitzero"`
	HighestHit  [2]int         `json:"highestHit"`
	Log         []LogEntry     `json:"log"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   time.Time      `json:"startedAt,omitzero"`
	EndedAt     time.Time      `json:"endedAt,omitzero"`
	Winner      int64          `json:"winner,omitempty"`
	EndReason   EndReason      `json:"endReason,omitempty"`
}

// Config holds the timing policy of a match.
type Config struct {
	TeamSize        int
	TurnTimeout     time.Duration
	ReconnectWindow time.Duration
	SettleTimeout   time.Duration
}

// DefaultConfig returns the standard 5v5 timing.
func DefaultConfig() Config {
	return Config{
		TeamSize:        5,
		TurnTimeout:     30 * time.Second,
		ReconnectWindow: 60 * time.Second,
		SettleTimeout:   10 * time.Second,
	}
}

package match

import (
	"time"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/combat"
)

// EventKind names an outbound state change.
type EventKind string

const (
	EventMatchStart         EventKind = "match:start"
	EventTeamUpdate         EventKind = "team:update"
	EventTeamReady          EventKind = "team:ready"
	EventBattleStart        EventKind = "battle:start"
	EventTurnPrompt         EventKind = "turn:prompt"
	EventTurnWaiting        EventKind = "turn:waiting"
	EventTurnResult         EventKind = "turn:result"
	EventTurnTimeout        EventKind = "turn:timeout"
	EventPlayerDisconnected EventKind = "player:disconnected"
	EventPlayerReconnected  EventKind = "player:reconnected"
	EventReconnect          EventKind = "game:reconnect"
	EventSnapshot           EventKind = "game:state"
	EventGameOver           EventKind = "game:over"
)

// Event is what a single player is told about a state change. Teams are
// presented from the recipient's side.
type Event struct {
	Kind          EventKind      `json:"kind"`
	MatchID       string         `json:"matchId"`
	Mode          Mode           `json:"mode"`
	Phase         Phase          `json:"phase"`
	Round         int            `json:"round"`
	TurnSeq       int            `json:"turnSeq"`
	CurrentTurn   int64          `json:"currentTurn,omitempty"`
	YourTurn      bool           `json:"yourTurn"`
	TimeRemaining int            `json:"timeRemaining"`
	You           Participant    `json:"you"`
	Opponent      Participant    `json:"opponent"`
	YourTeam      []UnitView     `json:"yourTeam"`
	OpponentTeam  []UnitView     `json:"opponentTeam"`
	Ready         [2]bool        `json:"ready"`
	Actions       []UnitActions  `json:"actions,omitempty"`
	Outcome       *ActionOutcome `json:"outcome,omitempty"`
	Log           []LogEntry     `json:"log"`
	FullLog       bool           `json:"fullLog,omitempty"`
	Summary       *Summary       `json:"summary,omitempty"`
	Settlement    *Settlement    `json:"settlement,omitempty"`
}

// UnitView is the public snapshot of a unit.
type UnitView struct {
	HeroID    string          `json:"heroId"`
	Name      string          `json:"name"`
	HP        int             `json:"hp"`
	MaxHP     int             `json:"maxHp"`
	Energy    int             `json:"energy"`
	MaxEnergy int             `json:"maxEnergy"`
	Position  combat.Position `json:"position"`
	Alive     bool            `json:"alive"`
	Buffs     []combat.Effect `json:"buffs"`
	Debuffs   []combat.Effect `json:"debuffs"`
}

// UnitActions lists what one of the acting player's units can do.
type UnitActions struct {
	HeroID  string        `json:"heroId"`
	Name    string        `json:"name"`
	Alive   bool          `json:"alive"`
	Stunned bool          `json:"stunned"`
	Skills  []SkillAction `json:"skills"`
}

// SkillAction is one entry of a turn prompt.
type SkillAction struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	EnergyCost        int               `json:"energyCost"`
	Cooldown          int               `json:"cooldown"`
	RemainingCooldown int               `json:"remainingCooldown"`
	Damage            int               `json:"damage"`
	Healing           int               `json:"healing"`
	Usable            bool              `json:"usable"`
	Targeting         catalog.Targeting `json:"targeting"`
}

// ActionOutcome describes the action that produced a turn:result.
type ActionOutcome struct {
	Actor     int64              `json:"actor"`
	HeroID    string             `json:"heroId"`
	SkillID   *int               `json:"skillId,omitempty"`
	SkillName string             `json:"skillName,omitempty"`
	Narration string             `json:"narration,omitempty"`
	Targets   []string           `json:"targets,omitempty"`
	Position  combat.Position    `json:"position,omitempty"`
	Result    *combat.Resolution `json:"result,omitempty"`
}

// PlayerStats aggregates one side's combat output.
type PlayerStats struct {
	Damage     int `json:"damage"`
	Healing    int `json:"healing"`
	HeroesLost int `json:"heroesLost"`
	HighestHit int `json:"highestHit"`
}

// UnitStats is one participating unit's contribution.
type UnitStats struct {
	HeroID  string `json:"heroId"`
	Damage  int    `json:"damage"`
	Healing int    `json:"healing"`
	Alive   bool   `json:"alive"`
}

// Summary is the final account of a completed match handed to settlement.
type Summary struct {
	MatchID  string         `json:"matchId"`
	Mode     Mode           `json:"mode"`
	Players  [2]Participant `json:"players"`
	Winner   int64          `json:"winner"`
	Loser    int64          `json:"loser"`
	Reason   EndReason      `json:"reason"`
	Rounds   int            `json:"rounds"`
	Duration time.Duration  `json:"duration"`
	Stats    [2]PlayerStats `json:"stats"`
	Units    [2][]UnitStats `json:"units"`
}

// Side returns the index of playerID in Players, or -1.
func (s *Summary) Side(playerID int64) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// PlayerSettlement is one participant's post-match changes.
type PlayerSettlement struct {
	PlayerID     int64  `json:"playerId"`
	Bot          bool   `json:"bot,omitempty"`
	Won          bool   `json:"won"`
	OldElo       int    `json:"oldElo"`
	NewElo       int    `json:"newElo"`
	EloDelta     int    `json:"eloDelta"`
	Rank         string `json:"rank,omitempty"`
	Experience   int    `json:"experience"`
	UnlockedHero string `json:"unlockedHero,omitempty"`
}

// Settlement is the outcome of settling a match.
type Settlement struct {
	Players [2]PlayerSettlement `json:"players"`
}

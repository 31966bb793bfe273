package match

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
)

// Notifier routes an event to one player. Implementations are called while
// the match is locked and must not block or call back into the match.
type Notifier interface {
	Notify(playerID int64, ev Event)
}

// UnlockChecker reports which heroes a player may draft.
type UnlockChecker interface {
	UnlockedHeroes(ctx context.Context, playerID int64) ([]string, error)
}

// Settler computes and persists post-match rewards.
type Settler interface {
	Settle(ctx context.Context, summary *Summary) (*Settlement, error)
}

// Recorder persists match snapshots. Calls must return promptly; slow or
// failing storage is the recorder's concern.
type Recorder interface {
	MatchCreated(matchID string, mode Mode, players [2]Participant, snapshot []byte)
	MatchUpdated(matchID string, snapshot []byte)
	MatchFinished(matchID string, winner int64, duration time.Duration, snapshot []byte)
}

// Deps are the collaborators a match needs. Nil fields get inert defaults,
// except Catalog which is required.
type Deps struct {
	Config     Config
	Catalog    catalog.Catalog
	Unlocks    UnlockChecker
	Notifier   Notifier
	Settler    Settler
	Recorder   Recorder
	Clock      quartz.Clock
	Logger     *log.Logger
	OnComplete func(matchID string)
}

func (d Deps) withDefaults() Deps {
	if d.Config.TeamSize == 0 {
		d.Config = DefaultConfig()
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Clock == nil {
		d.Clock = quartz.NewReal()
	}
	if d.Logger == nil {
		d.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if d.OnComplete == nil {
		d.OnComplete = func(string) {}
	}
	return d
}

type nopNotifier struct{}

func (nopNotifier) Notify(int64, Event) {}

type nopRecorder struct{}

func (nopRecorder) MatchCreated(string, Mode, [2]Participant, []byte) {}
func (nopRecorder) MatchUpdated(string, []byte) {}
func (nopRecorder) MatchFinished(string, int64, time.Duration, []byte) {}

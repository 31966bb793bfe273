package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/sethvargo/go-retry"

	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

const (
	defaultJournalBuffer  = 1024
	defaultJournalRetries = 3
	defaultJournalBackoff = 50 * time.Millisecond
)

type journalEntry struct {
	op      string
	matchID string
	write   func(ctx context.Context) error
}

// Journal records match snapshots asynchronously. A single worker applies
// writes in order, retrying each with exponential backoff. It implements
// match.Recorder, so calls never block a match.
type Journal struct {
	store   Store
	archive *Archive
	clock   quartz.Clock
	logger  *log.Logger
	retries uint64
	backoff time.Duration

	mu      sync.RWMutex
	closed  bool
	entries chan journalEntry
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ match.Recorder = (*Journal)(nil)

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithArchive also writes each finished match to a.
func WithArchive(a *Archive) JournalOption {
	return func(j *Journal) { j.archive = a }
}

// WithJournalBuffer sets how many writes may be queued.
func WithJournalBuffer(n int) JournalOption {
	return func(j *Journal) { j.entries = make(chan journalEntry, n) }
}

// WithRetry sets the retry budget and first backoff step for each write.
func WithRetry(retries uint64, base time.Duration) JournalOption {
	return func(j *Journal) {
		j.retries = retries
		j.backoff = base
	}
}

// WithJournalClock sets the clock used to date archive entries.
func WithJournalClock(c quartz.Clock) JournalOption {
	return func(j *Journal) { j.clock = c }
}

// NewJournal starts a journal writing to store. Call Close to drain it.
func NewJournal(store Store, logger *log.Logger, opts ...JournalOption) *Journal {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	j := &Journal{
		store:   store,
		clock:   quartz.NewReal(),
		logger:  logger.WithPrefix("journal"),
		retries: defaultJournalRetries,
		backoff: defaultJournalBackoff,
		entries: make(chan journalEntry, defaultJournalBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.ctx, j.cancel = context.WithCancel(context.Background())
	go j.run()
	return j
}

func (j *Journal) MatchCreated(matchID string, mode match.Mode, players [2]match.Participant, snapshot []byte) {
	rec := MatchRecord{
		ID:      matchID,
		Mode:    string(mode),
		Player1: players[0].ID,
		Player2: players[1].ID,
		State:   snapshot,
	}
	j.enqueue("create", matchID, func(ctx context.Context) error {
		return j.store.CreateMatchRecord(ctx, rec)
	})
}

func (j *Journal) MatchUpdated(matchID string, snapshot []byte) {
	j.enqueue("update", matchID, func(ctx context.Context) error {
		return j.store.UpdateMatchRecord(ctx, matchID, snapshot)
	})
}

func (j *Journal) MatchFinished(matchID string, winner int64, duration time.Duration, snapshot []byte) {
	j.enqueue("finalize", matchID, func(ctx context.Context) error {
		return j.store.FinalizeMatchRecord(ctx, matchID, winner, duration, snapshot)
	})
	if j.archive != nil {
		endedAt := j.clock.Now()
		j.enqueue("archive", matchID, func(context.Context) error {
			path, err := j.archive.Write(matchID, endedAt, snapshot)
			if err == nil {
				j.logger.Debug("Match archived", "match", matchID, "path", path)
			}
			return err
		})
	}
}

func (j *Journal) enqueue(op, matchID string, write func(ctx context.Context) error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.logger.Error("Journal closed, dropping write", "op", op, "match", matchID)
		return
	}
	select {
	case j.entries <- journalEntry{op: op, matchID: matchID, write: write}:
	default:
		j.logger.Error("Journal full, dropping write", "op", op, "match", matchID, "queued", len(j.entries))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.entries {
		if err := j.apply(e); err != nil {
			j.logger.Error("Journal write failed", "op", e.op, "match", e.matchID, "error", err)
		}
	}
}

func (j *Journal) apply(e journalEntry) error {
	backoff := retry.WithMaxRetries(j.retries, retry.NewExponential(j.backoff))
	attempt := 0
	return retry.Do(j.ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := e.write(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrNotFound):
			return err
		default:
			j.logger.Warn("Journal write attempt failed", "op", e.op, "match", e.matchID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
	})
}

// Close stops accepting writes and waits for queued ones to finish. If ctx
// ends first, in-flight retries are abandoned.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.entries)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		j.cancel()
		return nil
	case <-ctx.Done():
		j.cancel()
		<-j.done
		return fmt.Errorf("journal drain interrupted: %w", ctx.Err())
	}
}

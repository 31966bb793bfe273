package registry

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/matchid"
)

func newTestRegistry(t *testing.T, onComplete func(string)) *Registry {
	t.Helper()

	roster, err := catalog.Default()
	require.NoError(t, err)

	logger := log.NewWithOptions(io.Discard, log.Options{})
	return New(match.Deps{
		Catalog:    roster,
		Clock:      quartz.NewMock(t),
		OnComplete: onComplete,
	}, logger)
}

func player(id int64, name string) match.Participant {
	return match.Participant{ID: id, Name: name, Elo: 1200}
}

func TestPairAndCreate(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	m, err := r.PairAndCreate(player(1, "alice"), player(2, "bob"), match.ModePrivate)
	require.NoError(t, err)
	require.NoError(t, matchid.Validate(m.ID()))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, match.PhaseDrafting, m.State().Phase)
	assert.Equal(t, match.ModePrivate, m.State().Mode)

	for _, id := range []int64{1, 2} {
		got, err := r.LookupByPlayer(id)
		require.NoError(t, err)
		assert.Same(t, m, got)
	}
	got, err := r.Get(m.ID())
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = r.LookupByPlayer(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPairAndCreateRejectsBusyPlayers(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	_, err := r.PairAndCreate(player(1, "alice"), player(2, "bob"), match.ModePrivate)
	require.NoError(t, err)

	_, err = r.PairAndCreate(player(3, "carol"), player(2, "bob"), match.ModePrivate)
	assert.ErrorIs(t, err, ErrAlreadyInMatch)

	_, err = r.PairAndCreate(player(3, "carol"), player(3, "carol"), match.ModePrivate)
	assert.ErrorIs(t, err, ErrSamePlayer)

	_, err = r.PairAndCreate(player(3, "carol"), player(4, "dave"), match.ModePrivate)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.Matches(), 2)
}

func TestEvict(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	m, err := r.PairAndCreate(player(1, "alice"), player(2, "bob"), match.ModePrivate)
	require.NoError(t, err)

	r.Evict(m.ID())
	r.Evict(m.ID())
	r.Evict("unknown")

	assert.Equal(t, 0, r.Len())
	_, err = r.LookupByPlayer(1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.PairAndCreate(player(1, "alice"), player(2, "bob"), match.ModePrivate)
	assert.NoError(t, err, "evicted players can be paired again")
}

func TestCompletedMatchIsEvicted(t *testing.T) {
	t.Parallel()

	var completed atomic.Value
	r := newTestRegistry(t, func(id string) { completed.Store(id) })

	m, err := r.PairAndCreate(player(1, "alice"), player(2, "bob"), match.ModePrivate)
	require.NoError(t, err)

	ctx := t.Context()
	for i, hero := range []string{"ironman", "captain-america", "hulk", "black-widow", "thor"} {
		require.NoError(t, m.SelectHero(ctx, 1, hero), "pick %d", i)
		require.NoError(t, m.SelectHero(ctx, 2, hero), "pick %d", i)
	}
	require.NoError(t, m.ConfirmTeam(1))
	require.NoError(t, m.ConfirmTeam(2))
	require.NoError(t, m.Surrender(2))

	assert.Equal(t, 0, r.Len())
	_, err = r.LookupByPlayer(1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, m.ID(), completed.Load())
}

func TestConcurrentPairing(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.PairAndCreate(player(1, "alice"), player(int64(100+i), "rival"), match.ModePrivate)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyInMatch):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 19, rejected)
	assert.Equal(t, 1, r.Len())
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/settlement"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testArena struct {
	server *Server
	http   *httptest.Server
	store  *storage.MemoryStore
}

func newTestArena(t *testing.T) *testArena {
	t.Helper()

	roster, err := catalog.Default()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Match.TeamSize = 1
	cfg.Match.BotThinkDelay = "0s"
	cfg.Settlement.UnlockChance = ptr(0.0)
	require.NoError(t, cfg.Validate())

	store := storage.NewMemoryStore(nil)
	srv := NewServer(cfg, Deps{
		Store:   store,
		Catalog: roster,
		Settler: settlement.New(store, roster, cfg.Policy(), testLogger()),
	}, testLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	health, err := WaitForHealthy(ctx, ts.URL, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	return &testArena{server: srv, http: ts, store: store}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (a *testArena) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.http.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(t MessageType, data any) {
	c.t.Helper()
	msg := map[string]any{"type": t}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// expect reads until a message of type t arrives, skipping others.
func (c *testClient) expect(t MessageType) *Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg), "waiting for %s", t)
		if msg.Type == t {
			return &msg
		}
	}
}

func (c *testClient) expectEvent(kind match.EventKind) match.Event {
	c.t.Helper()
	var ev match.Event
	require.NoError(c.t, json.Unmarshal(c.expect(MessageType(kind)).Data, &ev))
	return ev
}

func (c *testClient) expectError(code string) ErrorData {
	c.t.Helper()
	var data ErrorData
	require.NoError(c.t, json.Unmarshal(c.expect(MessageTypeError).Data, &data))
	assert.Equal(c.t, code, data.Code, data.Message)
	return data
}

func (c *testClient) login(name string) AuthSuccessData {
	c.t.Helper()
	c.send(MessageTypeLogin, LoginData{Username: name})
	var data AuthSuccessData
	require.NoError(c.t, json.Unmarshal(c.expect(MessageTypeAuthSuccess).Data, &data))
	return data
}

// pair logs two players in and matches them through a private lobby.
func (a *testArena) pair(t *testing.T) (*testClient, *testClient) {
	t.Helper()
	alice, bob := a.dial(t), a.dial(t)
	alice.login("alice")
	bob.login("bob")

	alice.send(MessageTypeLobbyCreate, nil)
	var lobby LobbyCreatedData
	require.NoError(t, json.Unmarshal(alice.expect(MessageTypeLobbyCreated).Data, &lobby))
	require.Len(t, lobby.Code, lobbyCodeLength)
	for _, r := range lobby.Code {
		require.Contains(t, lobbyAlphabet, string(r))
	}

	bob.send(MessageTypeLobbyJoin, LobbyJoinData{Code: strings.ToLower(lobby.Code)})
	for _, c := range []*testClient{alice, bob} {
		ev := c.expectEvent(match.EventMatchStart)
		assert.Equal(t, match.ModePrivate, ev.Mode)
		assert.Equal(t, match.PhaseDrafting, ev.Phase)
	}
	return alice, bob
}

func TestPrivateMatchEndToEnd(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice, bob := arena.pair(t)

	alice.send(MessageTypeSelectHero, SelectHeroData{HeroID: "ironman"})
	alice.expectEvent(match.EventTeamUpdate)
	bob.send(MessageTypeSelectHero, SelectHeroData{HeroID: "thor"})
	bob.expectEvent(match.EventTeamUpdate)
	alice.send(MessageTypeConfirmTeam, nil)
	bob.send(MessageTypeConfirmTeam, nil)

	alice.expectEvent(match.EventBattleStart)
	bob.expectEvent(match.EventBattleStart)

	// Whoever holds the turn uses their first usable enemy-targeted skill.
	var prompt match.Event
	actor, waiter := alice, bob
	for {
		require.NoError(t, alice.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg Message
		require.NoError(t, alice.conn.ReadJSON(&msg))
		if msg.Type == MessageType(match.EventTurnPrompt) {
			require.NoError(t, json.Unmarshal(msg.Data, &prompt))
			break
		}
		if msg.Type == MessageType(match.EventTurnWaiting) {
			actor, waiter = bob, alice
			prompt = bob.expectEvent(match.EventTurnPrompt)
			break
		}
	}
	require.True(t, prompt.YourTurn)
	require.Len(t, prompt.Actions, 1)

	skillID := -1
	for _, s := range prompt.Actions[0].Skills {
		if s.Usable && s.Targeting == catalog.TargetEnemy {
			skillID = s.ID
			break
		}
	}
	require.GreaterOrEqual(t, skillID, 0, "no usable enemy skill on the first turn")

	// Acting out of turn is rejected for the waiting player only.
	waiter.send(MessageTypeTurnAction, TurnActionData{
		HeroID:   prompt.OpponentTeam[0].HeroID,
		SkillID:  &skillID,
		TargetID: prompt.Actions[0].HeroID,
	})
	waiter.expectError(string(match.ErrNotYourTurn))

	actor.send(MessageTypeTurnAction, TurnActionData{
		HeroID:   prompt.Actions[0].HeroID,
		SkillID:  &skillID,
		TargetID: prompt.OpponentTeam[0].HeroID,
	})
	result := waiter.expectEvent(match.EventTurnResult)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, skillID, *result.Outcome.SkillID)
	actor.expectEvent(match.EventTurnResult)

	// The player who just waited surrenders.
	waiter.send(MessageTypeSurrender, nil)
	over := actor.expectEvent(match.EventGameOver)
	require.NotNil(t, over.Summary)
	assert.Equal(t, match.EndSurrender, over.Summary.Reason)
	assert.Equal(t, over.You.ID, over.Summary.Winner)
	require.NotNil(t, over.Settlement)
	waiter.expectEvent(match.EventGameOver)

	require.Eventually(t, func() bool { return arena.server.Registry().Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get(arena.http.URL + "/api/leaderboard?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var board []storage.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))
	require.Len(t, board, 2)
	assert.Equal(t, 1016, board[0].Elo)
	assert.Equal(t, 984, board[1].Elo)
}

func TestBotMatch(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice := arena.dial(t)
	auth := alice.login("alice")

	alice.send(MessageTypeBotCreate, BotCreateData{Difficulty: match.DifficultyMaster})
	start := alice.expectEvent(match.EventMatchStart)
	assert.Equal(t, match.ModeBot, start.Mode)
	assert.True(t, start.Opponent.Bot)
	assert.Less(t, start.Opponent.ID, int64(0))
	assert.True(t, strings.HasPrefix(start.Opponent.Name, "MasterBot-"))

	alice.send(MessageTypeSelectHero, SelectHeroData{HeroID: "hulk"})
	alice.send(MessageTypeConfirmTeam, nil)
	battle := alice.expectEvent(match.EventBattleStart)
	require.Len(t, battle.OpponentTeam, 1)
	assert.Equal(t, "captain-america", battle.OpponentTeam[0].HeroID)

	alice.send(MessageTypeSurrender, nil)
	over := alice.expectEvent(match.EventGameOver)
	require.NotNil(t, over.Settlement)
	assert.Equal(t, -10, over.Settlement.Players[0].EloDelta)

	u, err := arena.store.GetUser(t.Context(), auth.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 990, u.Elo)
	assert.Equal(t, 100, u.Experience)

	require.Eventually(t, func() bool {
		arena.server.mu.RLock()
		defer arena.server.mu.RUnlock()
		return len(arena.server.agents) == 0
	}, 5*time.Second, 10*time.Millisecond, "bot agent should stop after game over")
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	c := arena.dial(t)

	c.send(MessageTypeSelectHero, SelectHeroData{HeroID: "thor"})
	c.expectError("not_authenticated")

	c.send(MessageTypeLogin, LoginData{Username: ""})
	c.expectError("invalid_username")

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth:login","data":"nope"}`)))
	c.expectError("invalid_message")

	c.login("carol")
	c.send(MessageTypeLogin, LoginData{Username: "carol"})
	c.expectError("already_authenticated")

	c.send("dance", nil)
	c.expectError("unknown_message_type")

	c.send(MessageTypeConfirmTeam, nil)
	c.expectError("not_in_match")

	c.send(MessageTypeLobbyJoin, LobbyJoinData{Code: "ZZZZZZ"})
	c.expectError("lobby_not_found")

	c.send(MessageTypeBotCreate, BotCreateData{Difficulty: "godlike"})
	c.expectError("invalid_difficulty")

	c.send(MessageTypeTurnAction, map[string]string{"heroId": "thor"})
	c.expectError("invalid_message")

	c.send(MessageTypeLobbyCreate, nil)
	var lobby LobbyCreatedData
	require.NoError(t, json.Unmarshal(c.expect(MessageTypeLobbyCreated).Data, &lobby))
	c.send(MessageTypeLobbyJoin, LobbyJoinData{Code: lobby.Code})
	c.expectError("invalid_opponent")
}

func (c *testClient) createLobby() string {
	c.t.Helper()
	c.send(MessageTypeLobbyCreate, nil)
	var lobby LobbyCreatedData
	require.NoError(c.t, json.Unmarshal(c.expect(MessageTypeLobbyCreated).Data, &lobby))
	return lobby.Code
}

func TestLobbySurvivesFailedJoin(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice, carol, bob := arena.dial(t), arena.dial(t), arena.dial(t)
	alice.login("alice")
	carol.login("carol")
	bob.login("bob")

	code := alice.createLobby()

	carol.send(MessageTypeBotCreate, BotCreateData{Difficulty: match.DifficultyNovice})
	carol.expectEvent(match.EventMatchStart)
	carol.send(MessageTypeLobbyJoin, LobbyJoinData{Code: code})
	carol.expectError("already_in_match")

	bob.send(MessageTypeLobbyJoin, LobbyJoinData{Code: code})
	for _, c := range []*testClient{alice, bob} {
		ev := c.expectEvent(match.EventMatchStart)
		assert.Equal(t, match.ModePrivate, ev.Mode)
	}

	arena.server.mu.RLock()
	defer arena.server.mu.RUnlock()
	assert.Empty(t, arena.server.lobbies)
	assert.Empty(t, arena.server.hosting)
}

func TestBotMatchClosesHostedLobby(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice, bob := arena.dial(t), arena.dial(t)
	alice.login("alice")
	bob.login("bob")

	code := alice.createLobby()
	alice.send(MessageTypeBotCreate, BotCreateData{Difficulty: match.DifficultyVeteran})
	alice.expectEvent(match.EventMatchStart)

	bob.send(MessageTypeLobbyJoin, LobbyJoinData{Code: code})
	bob.expectError("lobby_not_found")

	arena.server.mu.RLock()
	defer arena.server.mu.RUnlock()
	assert.Empty(t, arena.server.hosting)
}

func TestDraftErrors(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice, bob := arena.pair(t)

	// Bob starts with the default unlocks only.
	bob.send(MessageTypeSelectHero, SelectHeroData{HeroID: "groot"})
	bob.expectError(string(match.ErrHeroNotUnlocked))

	alice.send(MessageTypeSelectHero, SelectHeroData{HeroID: "nobody"})
	alice.expectError(string(match.ErrInvalidHero))

	alice.send(MessageTypeGameState, nil)
	state := alice.expectEvent(match.EventSnapshot)
	assert.Equal(t, match.PhaseDrafting, state.Phase)
	assert.True(t, state.FullLog)
}

func TestDisconnectAndReconnect(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	alice, bob := arena.pair(t)

	require.NoError(t, alice.conn.Close())
	bob.expectEvent(match.EventPlayerDisconnected)

	again := arena.dial(t)
	auth := again.login("alice")
	assert.NotEmpty(t, auth.ActiveMatch)
	assert.False(t, auth.Created)

	ev := again.expectEvent(match.EventReconnect)
	assert.True(t, ev.FullLog)
	assert.Equal(t, auth.ActiveMatch, ev.MatchID)
	bob.expectEvent(match.EventPlayerReconnected)

	// The match keeps going on the new session.
	again.send(MessageTypeSelectHero, SelectHeroData{HeroID: "ironman"})
	again.expectEvent(match.EventTeamUpdate)
}

func TestHTTPEndpoints(t *testing.T) {
	t.Parallel()

	arena := newTestArena(t)
	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(arena.http.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Matches)

	resp = get("/api/heroes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var heroes []catalog.HeroDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&heroes))
	assert.Len(t, heroes, 15)

	assert.Equal(t, http.StatusBadRequest, get("/api/leaderboard?limit=abc").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get("/api/users/abc/stats").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/api/users/99/stats").StatusCode)

	u, _, err := arena.store.EnsureUser(t.Context(), "dave")
	require.NoError(t, err)
	resp = get("/api/users/" + strconv.FormatInt(u.ID, 10) + "/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats userStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "dave", stats.User.Username)
	assert.Zero(t, stats.Stats.TotalMatches)

	resp = get("/api/hero-stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, arena.http.URL+"/api/heroes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://client.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflight, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer preflight.Body.Close()
	assert.Equal(t, "*", preflight.Header.Get("Access-Control-Allow-Origin"))
}

func TestWaitForHealthy(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Connections: 2})
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	health, err := WaitForHealthy(ctx, ts.URL+"/", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, health.Connections)
	assert.Equal(t, int32(3), calls.Load())

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)

	ctx, cancel = context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = WaitForHealthy(ctx, down.URL, 5*time.Millisecond)
	assert.Error(t, err)
}

// Package server bridges WebSocket sessions and HTTP clients to the match
// engine. It owns every connection, lobby and bot agent; matches only ever
// see player ids.
package server

import (
	"context"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/Kumar2007/MarvelClashArena/internal/bot"
	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/registry"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store    storage.Store
	Catalog  *catalog.Roster
	Settler  match.Settler
	Recorder match.Recorder
	Clock    quartz.Clock
}

// Server represents the arena WebSocket and HTTP server
type Server struct {
	cfg      *Config
	store    storage.Store
	catalog  *catalog.Roster
	registry *registry.Registry
	clock    quartz.Clock
	logger   *log.Logger
	upgrader websocket.Upgrader
	handler  http.Handler

	ctx    context.Context
	cancel context.CancelFunc
	bots   sync.WaitGroup

	mu          sync.RWMutex
	connections map[string]*Connection
	players     map[int64]string
	agents      map[int64]*bot.Agent
	lobbies     map[string]int64
	hosting     map[int64]string
	nextBotID   int64
}

var _ match.Notifier = (*Server)(nil)

// NewServer creates a server. cfg must already be validated.
func NewServer(cfg *Config, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		catalog:     deps.Catalog,
		clock:       deps.Clock,
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[string]*Connection),
		players:     make(map[int64]string),
		agents:      make(map[int64]*bot.Agent),
		lobbies:     make(map[string]int64),
		hosting:     make(map[int64]string),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	s.registry = registry.New(match.Deps{
		Config:   cfg.MatchConfig(),
		Catalog:  deps.Catalog,
		Unlocks:  deps.Store,
		Notifier: s,
		Settler:  deps.Settler,
		Recorder: deps.Recorder,
		Clock:    deps.Clock,
		Logger:   logger,
	}, logger)
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler serving /ws and the REST API.
func (s *Server) Handler() http.Handler { return s.handler }

// Registry returns the live match registry.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Shutdown closes every connection and waits for bot agents to stop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.bots.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Server stopped", "connections", len(conns))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify routes a match event to a bot agent or to the player's current
// session. It never blocks.
func (s *Server) Notify(playerID int64, ev match.Event) {
	s.mu.RLock()
	agent := s.agents[playerID]
	conn := s.connections[s.players[playerID]]
	s.mu.RUnlock()

	if agent != nil {
		agent.Deliver(ev)
		return
	}
	if conn == nil {
		s.logger.Debug("No session for event", "player", playerID, "kind", ev.Kind)
		return
	}
	conn.sendData(MessageType(ev.Kind), ev)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.cfg.Server.CORSOrigins, "*") || slices.Contains(s.cfg.Server.CORSOrigins, origin)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s)
	s.mu.Lock()
	s.connections[client.sessionID] = client
	total := len(s.connections)
	s.mu.Unlock()

	s.logger.Info("Client connected", "session", client.sessionID, "total", total)
	client.Start()
}

// unregister forgets c. If c was its player's current session, the
// player's match is told about the disconnect.
func (s *Server) unregister(c *Connection) {
	playerID := c.GetPlayer()

	s.mu.Lock()
	delete(s.connections, c.sessionID)
	current := playerID != 0 && s.players[playerID] == c.sessionID
	if current {
		delete(s.players, playerID)
	}
	total := len(s.connections)
	s.mu.Unlock()

	if current {
		s.closeLobby(playerID)
	}

	s.logger.Info("Client disconnected", "session", c.sessionID, "player", playerID, "total", total)

	if !current {
		return
	}
	m, err := s.registry.LookupByPlayer(playerID)
	if err != nil {
		return
	}
	if err := m.Disconnect(playerID); err != nil {
		s.logger.Debug("Disconnect ignored", "player", playerID, "match", m.ID(), "error", err)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Kumar2007/MarvelClashArena/internal/bot"
	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/randutil"
	"github.com/Kumar2007/MarvelClashArena/internal/registry"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

const (
	lobbyAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	lobbyCodeLength = 6
	lobbyAttempts   = 10
)

// requestError is a rejected request the client can act on.
type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

func reject(code, format string, args ...any) error {
	return &requestError{code: code, message: fmt.Sprintf(format, args...)}
}

// dispatch routes one inbound message. Every failure is answered with an
// error message on the requesting connection only.
func (s *Server) dispatch(c *Connection, msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	if err := s.handle(c, msg); err != nil {
		s.replyError(c, msg.Type, err)
	}
}

func (s *Server) handle(c *Connection, msg *Message) error {
	if msg.Type == MessageTypeLogin {
		var data LoginData
		if err := decode(msg, &data); err != nil {
			return err
		}
		return s.handleLogin(c, data)
	}

	playerID := c.GetPlayer()
	if playerID == 0 {
		return reject("not_authenticated", "Must log in first")
	}

	switch msg.Type {
	case MessageTypeLobbyCreate:
		return s.handleLobbyCreate(c, playerID)

	case MessageTypeLobbyJoin:
		var data LobbyJoinData
		if err := decode(msg, &data); err != nil {
			return err
		}
		return s.handleLobbyJoin(c, playerID, data)

	case MessageTypeBotCreate:
		var data BotCreateData
		if err := decode(msg, &data); err != nil {
			return err
		}
		return s.handleBotCreate(c, playerID, data)

	case MessageTypeSelectHero:
		var data SelectHeroData
		if err := decode(msg, &data); err != nil {
			return err
		}
		return s.withMatch(playerID, func(m *match.Match) error {
			return m.SelectHero(c.ctx, playerID, data.HeroID)
		})

	case MessageTypeConfirmTeam:
		return s.withMatch(playerID, func(m *match.Match) error {
			return m.ConfirmTeam(playerID)
		})

	case MessageTypeTurnAction:
		var data TurnActionData
		if err := decode(msg, &data); err != nil {
			return err
		}
		if data.SkillID == nil {
			return reject("invalid_message", "skillId is required")
		}
		return s.withMatch(playerID, func(m *match.Match) error {
			return m.UseSkill(playerID, data.HeroID, *data.SkillID, data.TargetID)
		})

	case MessageTypeTurnSwap:
		var data TurnSwapData
		if err := decode(msg, &data); err != nil {
			return err
		}
		return s.withMatch(playerID, func(m *match.Match) error {
			return m.SwapPosition(playerID, data.HeroID, data.Position)
		})

	case MessageTypeSurrender:
		return s.withMatch(playerID, func(m *match.Match) error {
			return m.Surrender(playerID)
		})

	case MessageTypeGameState:
		return s.withMatch(playerID, func(m *match.Match) error {
			ev, err := m.Snapshot(playerID)
			if err != nil {
				return err
			}
			c.sendData(MessageType(ev.Kind), ev)
			return nil
		})

	default:
		return reject("unknown_message_type", "Unknown message type: %s", msg.Type)
	}
}

func decode(msg *Message, v any) error {
	if len(msg.Data) == 0 {
		return reject("invalid_message", "Missing %s data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return reject("invalid_message", "Failed to parse %s data", msg.Type)
	}
	return nil
}

func (s *Server) replyError(c *Connection, t MessageType, err error) {
	var (
		reqErr *requestError
		actErr *match.ActionError
	)
	switch {
	case errors.As(err, &reqErr):
		c.sendError(reqErr.code, reqErr.message)
	case errors.As(err, &actErr):
		c.sendError(string(actErr.Kind), actErr.Message)
	case errors.Is(err, registry.ErrNotFound):
		c.sendError("not_in_match", "You are not in a match")
	case errors.Is(err, registry.ErrAlreadyInMatch):
		c.sendError("already_in_match", "A player is already in a match")
	case errors.Is(err, registry.ErrSamePlayer):
		c.sendError("invalid_opponent", err.Error())
	case errors.Is(err, storage.ErrInvalidUsername):
		c.sendError("invalid_username", err.Error())
	default:
		c.logger.Error("Request failed", "type", t, "player", c.GetPlayer(), "error", err)
		c.sendError("internal_error", "The request could not be completed")
	}
}

func (s *Server) withMatch(playerID int64, fn func(m *match.Match) error) error {
	m, err := s.registry.LookupByPlayer(playerID)
	if err != nil {
		return err
	}
	return fn(m)
}

func (s *Server) handleLogin(c *Connection, data LoginData) error {
	if c.GetPlayer() != 0 {
		return reject("already_authenticated", "Already logged in as %s", c.GetUsername())
	}

	user, created, err := s.store.EnsureUser(c.ctx, strings.TrimSpace(data.Username))
	if err != nil {
		return err
	}

	s.mu.Lock()
	var replaced *Connection
	if old, ok := s.players[user.ID]; ok && old != c.sessionID {
		replaced = s.connections[old]
	}
	s.players[user.ID] = c.sessionID
	s.mu.Unlock()
	c.SetPlayer(user.ID, user.Username)

	if replaced != nil {
		s.logger.Info("Session replaced", "player", user.ID, "old", replaced.sessionID, "new", c.sessionID)
		replaced.sendError("session_replaced", "Logged in from another session")
		_ = replaced.Close()
	}

	reply := AuthSuccessData{SessionID: c.sessionID, User: user, Created: created}
	m, err := s.registry.LookupByPlayer(user.ID)
	if err == nil {
		reply.ActiveMatch = m.ID()
	}
	c.sendData(MessageTypeAuthSuccess, reply)
	s.logger.Info("Player logged in", "player", user.ID, "username", user.Username, "created", created)

	if m != nil {
		if err := m.Reconnect(user.ID); err != nil {
			s.logger.Debug("Reconnect ignored", "player", user.ID, "match", m.ID(), "error", err)
		}
	}
	return nil
}

func (s *Server) handleLobbyCreate(c *Connection, playerID int64) error {
	if _, err := s.registry.LookupByPlayer(playerID); err == nil {
		return registry.ErrAlreadyInMatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for range lobbyAttempts {
		candidate, err := gonanoid.Generate(lobbyAlphabet, lobbyCodeLength)
		if err != nil {
			return fmt.Errorf("failed to generate lobby code: %w", err)
		}
		if _, taken := s.lobbies[candidate]; !taken {
			code = candidate
			break
		}
		s.logger.Debug("Lobby code collision, regenerating", "code", candidate)
	}
	if code == "" {
		return errors.New("no free lobby code")
	}

	if old, ok := s.hosting[playerID]; ok {
		delete(s.lobbies, old)
	}
	s.lobbies[code] = playerID
	s.hosting[playerID] = code

	s.logger.Info("Lobby created", "code", code, "host", playerID)
	c.sendData(MessageTypeLobbyCreated, LobbyCreatedData{Code: code})
	return nil
}

func (s *Server) handleLobbyJoin(c *Connection, playerID int64, data LobbyJoinData) error {
	code := strings.ToUpper(strings.TrimSpace(data.Code))

	s.mu.RLock()
	host, ok := s.lobbies[code]
	s.mu.RUnlock()

	if !ok {
		return reject("lobby_not_found", "No lobby with code %q", code)
	}
	if host == playerID {
		return reject("invalid_opponent", "You cannot join your own lobby")
	}

	hostP, err := s.participant(c.ctx, host)
	if err != nil {
		return err
	}
	guest, err := s.participant(c.ctx, playerID)
	if err != nil {
		return err
	}

	// The lobby stays open until pairing succeeds, unless the host is the
	// one who is already busy.
	if _, err := s.registry.PairAndCreate(hostP, guest, match.ModePrivate); err != nil {
		if _, lookupErr := s.registry.LookupByPlayer(host); lookupErr == nil {
			s.closeLobby(host)
		}
		return err
	}
	s.closeLobby(host)
	return nil
}

// closeLobby drops the lobby hosted by playerID, if any.
func (s *Server) closeLobby(playerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.hosting[playerID]; ok {
		delete(s.lobbies, code)
		delete(s.hosting, playerID)
		s.logger.Debug("Lobby closed", "code", code, "host", playerID)
	}
}

func (s *Server) handleBotCreate(c *Connection, playerID int64, data BotCreateData) error {
	if !data.Difficulty.Valid() {
		return reject("invalid_difficulty", "Unknown difficulty %q", data.Difficulty)
	}
	human, err := s.participant(c.ctx, playerID)
	if err != nil {
		return err
	}

	rng := randutil.New(randutil.Seed())
	s.mu.Lock()
	s.nextBotID--
	botID := s.nextBotID
	s.mu.Unlock()

	player := bot.Participant(botID, data.Difficulty, rng)
	think := bot.ThinkDelay(data.Difficulty, rng)
	if fixed, ok := s.cfg.BotThinkDelay(); ok {
		think = fixed
	}
	agent := bot.NewAgent(player, bot.ForDifficulty(data.Difficulty, rng), s.catalog, s.logger,
		bot.WithClock(s.clock),
		bot.WithThinkDelay(think))

	// The agent must be reachable before the match announces itself.
	s.mu.Lock()
	s.agents[botID] = agent
	s.mu.Unlock()

	m, err := s.registry.PairAndCreate(human, player, match.ModeBot)
	if err != nil {
		s.dropAgent(botID)
		return err
	}
	s.closeLobby(playerID)

	s.bots.Add(1)
	go func() {
		defer s.bots.Done()
		defer s.dropAgent(botID)
		if err := agent.Run(s.ctx, m); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Bot stopped", "bot", player.Name, "match", m.ID(), "error", err)
		}
	}()
	return nil
}

func (s *Server) dropAgent(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
}

func (s *Server) participant(ctx context.Context, id int64) (match.Participant, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return match.Participant{}, fmt.Errorf("failed to load player %d: %w", id, err)
	}
	return match.Participant{ID: u.ID, Name: u.Username, Elo: u.Elo}, nil
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	clock  quartz.Clock
	logger *log.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenDB opens path with the connection settings and pragmas the store
// relies on. It does not run migrations.
func OpenDB(path string, logger *log.Logger) (*sql.DB, error) {
	logger.Info("Opening database", "path", path)

	// Per-connection settings go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := optimizeSQLite(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs a goose command ("up", "down", "status", "version", ...)
// against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *log.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(logger)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// OpenSQLite opens path, applies pending migrations and returns the store.
func OpenSQLite(ctx context.Context, path string, clock quartz.Clock, logger *log.Logger) (*SQLiteStore, error) {
	logger = logger.WithPrefix("storage")

	db, err := OpenDB(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, "up", logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	logger.Info("Database ready", "path", path)
	return &SQLiteStore{db: db, clock: clock, logger: logger}, nil
}

func optimizeSQLite(db *sql.DB, logger *log.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", p.name, err)
		}
		logger.Debug("SQLite pragma set", "pragma", p.name, "value", p.value)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, username string) (*User, bool, error) {
	if !validUsername(username) {
		return nil, false, ErrInvalidUsername
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	var id int64
	created := false
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, elo, rank, created_at, last_login) VALUES (?, ?, ?, ?, ?)`,
			username, DefaultElo, DefaultRank, now, now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create user: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, false, fmt.Errorf("failed to read user id: %w", err)
		}
		for _, hero := range DefaultUnlockedHeroes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO unlocked_heroes (user_id, hero_id, unlocked_at) VALUES (?, ?, ?)`,
				id, hero, now); err != nil {
				return nil, false, fmt.Errorf("failed to unlock default hero: %w", err)
			}
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, now, id); err != nil {
			return nil, false, fmt.Errorf("failed to update last login: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit user: %w", err)
	}
	if created {
		s.logger.Info("User created", "user", id, "username", username)
	}

	u, err := s.GetUser(ctx, id)
	return u, created, err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, elo, rank, experience, wins, losses, created_at, last_login
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Elo, &u.Rank, &u.Experience, &u.Wins, &u.Losses, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}

	if u.Unlocked, err = s.UnlockedHeroes(ctx, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) UnlockedHeroes(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hero_id FROM unlocked_heroes WHERE user_id = ? ORDER BY unlocked_at, hero_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked heroes: %w", err)
	}
	defer rows.Close()

	heroes := []string{}
	for rows.Next() {
		var hero string
		if err := rows.Scan(&hero); err != nil {
			return nil, fmt.Errorf("failed to scan hero: %w", err)
		}
		heroes = append(heroes, hero)
	}
	return heroes, rows.Err()
}

func (s *SQLiteStore) UpdateUserElo(ctx context.Context, id int64, matchID string, elo int, rank string) error {
	historyID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET elo = ?, rank = ? WHERE id = ?`, elo, rank, id)
	if err != nil {
		return fmt.Errorf("failed to update elo: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO elo_history (id, user_id, match_id, elo, rank, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		historyID, id, matchID, elo, rank, s.now()); err != nil {
		return fmt.Errorf("failed to record elo history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordResult(ctx context.Context, id int64, won bool) error {
	query := `UPDATE users SET losses = losses + 1 WHERE id = ?`
	if won {
		query = `UPDATE users SET wins = wins + 1 WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return expectRow(res)
}

func (s *SQLiteStore) AddExperience(ctx context.Context, id int64, amount int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET experience = experience + ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add experience: %w", err)
	}
	return expectRow(res)
}

func (s *SQLiteStore) UnlockHero(ctx context.Context, id int64, heroID string) (bool, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO unlocked_heroes (user_id, hero_id, unlocked_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		id, heroID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to unlock hero: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) EloHistory(ctx context.Context, id int64, limit int) ([]EloPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, elo, rank, created_at FROM elo_history
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load elo history: %w", err)
	}
	defer rows.Close()

	points := []EloPoint{}
	for rows.Next() {
		var p EloPoint
		if err := rows.Scan(&p.MatchID, &p.Elo, &p.Rank, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan elo history: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) CreateMatchRecord(ctx context.Context, rec MatchRecord) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, mode, player1_id, player2_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.Player1, rec.Player2, string(rec.State), now, now)
	if err != nil {
		return fmt.Errorf("failed to create match %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMatchRecord(ctx context.Context, matchID string, state []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET state = ?, updated_at = ? WHERE id = ?`, string(state), s.now(), matchID)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", matchID, err)
	}
	return expectRow(res)
}

func (s *SQLiteStore) FinalizeMatchRecord(ctx context.Context, matchID string, winner int64, duration time.Duration, state []byte) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches SET winner_id = ?, duration_ms = ?, state = ?, updated_at = ?, ended_at = ?
		WHERE id = ?`,
		winner, duration.Milliseconds(), string(state), now, now, matchID)
	if err != nil {
		return fmt.Errorf("failed to finalize match %s: %w", matchID, err)
	}
	return expectRow(res)
}

func (s *SQLiteStore) GetMatchRecord(ctx context.Context, matchID string) (*MatchRecord, error) {
	var (
		rec      MatchRecord
		state    string
		winner   sql.NullInt64
		duration sql.NullInt64
		ended    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, player1_id, player2_id, winner_id, duration_ms, state, created_at, updated_at, ended_at
		FROM matches WHERE id = ?`, matchID).
		Scan(&rec.ID, &rec.Mode, &rec.Player1, &rec.Player2, &winner, &duration, &state, &rec.CreatedAt, &rec.UpdatedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	rec.State = []byte(state)
	rec.Winner = winner.Int64
	rec.Duration = time.Duration(duration.Int64) * time.Millisecond
	if ended.Valid {
		rec.EndedAt = ended.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) RecordHeroOutcome(ctx context.Context, heroID string, won bool, damage, healing int) error {
	win := 0
	if won {
		win = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hero_stats (hero_id, pick_count, win_count, total_damage, total_healing, total_matches, updated_at)
		VALUES (?, 1, ?, ?, ?, 1, ?)
		ON CONFLICT (hero_id) DO UPDATE SET
			pick_count    = pick_count + 1,
			win_count     = win_count + excluded.win_count,
			total_damage  = total_damage + excluded.total_damage,
			total_healing = total_healing + excluded.total_healing,
			total_matches = total_matches + 1,
			updated_at    = excluded.updated_at`,
		heroID, win, damage, healing, s.now())
	if err != nil {
		return fmt.Errorf("failed to record hero outcome for %s: %w", heroID, err)
	}
	return nil
}

func (s *SQLiteStore) HeroStats(ctx context.Context) ([]HeroStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hero_id, pick_count, win_count, total_damage, total_healing, total_matches, updated_at
		FROM hero_stats ORDER BY pick_count DESC, hero_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load hero stats: %w", err)
	}
	defer rows.Close()

	stats := []HeroStats{}
	for rows.Next() {
		var h HeroStats
		if err := rows.Scan(&h.HeroID, &h.Picks, &h.Wins, &h.Damage, &h.Healing, &h.Matches, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hero stats: %w", err)
		}
		stats = append(stats, h)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, elo, rank FROM users ORDER BY elo DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Elo, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) UserStats(ctx context.Context, id int64) (*UserStats, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT winner_id, state FROM matches
		WHERE (player1_id = ? OR player2_id = ?) AND ended_at IS NOT NULL`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches for user %d: %w", id, err)
	}
	defer rows.Close()

	stats := &UserStats{UserID: id, HeroUsage: map[string]int{}}
	for rows.Next() {
		var (
			winner sql.NullInt64
			state  string
		)
		if err := rows.Scan(&winner, &state); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		stats.TotalMatches++
		if winner.Int64 == id {
			stats.Wins++
		} else {
			stats.Losses++
		}
		addHeroUsage(stats.HeroUsage, []byte(state), id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.WinRate = winRate(stats.Wins, stats.TotalMatches)
	return stats, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

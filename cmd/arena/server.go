package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/Kumar2007/MarvelClashArena/internal/catalog"
	"github.com/Kumar2007/MarvelClashArena/internal/server"
	"github.com/Kumar2007/MarvelClashArena/internal/settlement"
	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// ServerCmd runs the WebSocket and HTTP server
type ServerCmd struct {
	Addr    string `help:"Listen address, overrides the config file"`
	Debug   bool   `help:"Enable debug logging"`
	Memory  bool   `help:"Keep all data in memory instead of SQLite"`
	Heroes  string `help:"Load the hero catalog from an HCL file instead of the built-in roster" type:"existingfile"`
	EnvFile string `name:"env-file" default:".env" help:"dotenv file with ARENA_* overrides"`
}

func (c *ServerCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.EnvFile)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg.Server.LogLevel, c.Debug)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	roster, err := loadRoster(c.Heroes)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := quartz.NewReal()

	var store storage.Store
	if c.Memory {
		logger.Warn("Using in-memory storage, nothing will survive a restart")
		store = storage.NewMemoryStore(clock)
	} else {
		store, err = storage.OpenSQLite(ctx, cfg.Server.Database, clock, logger)
		if err != nil {
			return err
		}
	}
	defer store.Close()

	var journalOpts []storage.JournalOption
	if cfg.Server.ArchiveDir != "" {
		journalOpts = append(journalOpts, storage.WithArchive(storage.NewArchive(cfg.Server.ArchiveDir)))
	}
	journal := storage.NewJournal(store, logger, journalOpts...)

	srv := server.NewServer(cfg, server.Deps{
		Store:    store,
		Catalog:  roster,
		Settler:  settlement.New(store, roster, cfg.Policy(), logger),
		Recorder: journal,
		Clock:    clock,
	}, logger)

	addr := cfg.GetServerAddress()
	if c.Addr != "" {
		addr = c.Addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting arena server",
		"address", addr,
		"heroes", roster.Len(),
		"team_size", cfg.Match.TeamSize,
		"turn_timeout", cfg.Match.TurnTimeout,
		"memory", c.Memory)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			httpServer.Shutdown(shutdownCtx),
			srv.Shutdown(shutdownCtx),
			journal.Close(shutdownCtx),
		)
	})
	return g.Wait()
}

func loadConfig(path, envFile string) (*server.Config, error) {
	cfg, err := server.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := server.LoadEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadRoster(path string) (*catalog.Roster, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

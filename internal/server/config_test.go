package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kumar2007/MarvelClashArena/internal/match"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8080", cfg.GetServerAddress())
	assert.Equal(t, match.DefaultConfig(), cfg.MatchConfig())
	_, fixed := cfg.BotThinkDelay()
	assert.False(t, fixed)

	p := cfg.Policy()
	assert.Equal(t, 32, p.KFactor)
	assert.Equal(t, 20, p.Bot[match.DifficultyMaster].Win)
}

func TestLoadConfigFromHCL(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "arena.hcl", `
server {
  address      = "0.0.0.0"
  port         = 9090
  log_level    = "debug"
  database     = "/var/lib/arena/arena.db"
  archive_dir  = "/var/lib/arena/archive"
  cors_origins = ["https://arena.example.com"]
}

match {
  team_size        = 3
  turn_timeout     = "45s"
  reconnect_window = "2m"
  bot_think_delay  = "250ms"
}

settlement {
  k_factor      = 24
  unlock_chance = 0.5
}

bot "master" {
  win  = 30
  loss = -5
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9090", cfg.GetServerAddress())
	assert.Equal(t, "/var/lib/arena/archive", cfg.Server.ArchiveDir)
	assert.Equal(t, []string{"https://arena.example.com"}, cfg.Server.CORSOrigins)

	mc := cfg.MatchConfig()
	assert.Equal(t, 3, mc.TeamSize)
	assert.Equal(t, 45*time.Second, mc.TurnTimeout)
	assert.Equal(t, 2*time.Minute, mc.ReconnectWindow)
	assert.Equal(t, 10*time.Second, mc.SettleTimeout, "unset durations keep their default")

	think, fixed := cfg.BotThinkDelay()
	assert.True(t, fixed)
	assert.Equal(t, 250*time.Millisecond, think)

	p := cfg.Policy()
	assert.Equal(t, 24, p.KFactor)
	assert.Equal(t, 100, p.Experience)
	assert.InDelta(t, 0.5, p.UnlockChance, 1e-9)
	assert.Equal(t, 30, p.Bot[match.DifficultyMaster].Win)
	assert.Equal(t, -5, p.Bot[match.DifficultyMaster].Loss)
	assert.Equal(t, 15, p.Bot[match.DifficultyVeteran].Win)
}

func TestLoadConfigPartialSettlementKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeFile(t, "arena.hcl", `
settlement {
  k_factor = 24
}
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p := cfg.Policy()
	assert.Equal(t, 24, p.KFactor)
	assert.Equal(t, 100, p.Experience)
	assert.InDelta(t, 0.1, p.UnlockChance, 1e-9, "omitting unlock_chance keeps the default")

	cfg, err = LoadConfig(writeFile(t, "arena.hcl", `
settlement {
  unlock_chance = 0
}
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Zero(t, cfg.Policy().UnlockChance, "an explicit zero disables unlocks")
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeFile(t, "broken.hcl", `server {`))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "unknown.hcl", `server { colour = "blue" }`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"database", func(c *Config) { c.Server.Database = "" }},
		{"team size", func(c *Config) { c.Match.TeamSize = 6 }},
		{"turn timeout", func(c *Config) { c.Match.TurnTimeout = "soon" }},
		{"negative window", func(c *Config) { c.Match.ReconnectWindow = "-1s" }},
		{"think delay", func(c *Config) { c.Match.BotThinkDelay = "quick" }},
		{"k factor", func(c *Config) { c.Settlement.KFactor = -1 }},
		{"unlock chance", func(c *Config) { c.Settlement.UnlockChance = ptr(1.5) }},
		{"unlock chance unset", func(c *Config) { c.Settlement.UnlockChance = nil }},
		{"bot difficulty", func(c *Config) { c.Bots = []BotStakes{{Difficulty: "godlike", Win: 1}} }},
		{"bot duplicate", func(c *Config) {
			c.Bots = []BotStakes{{Difficulty: "novice", Win: 1}, {Difficulty: "novice", Win: 2}}
		}},
		{"bot loss sign", func(c *Config) { c.Bots = []BotStakes{{Difficulty: "novice", Win: 1, Loss: 3}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"ARENA_ADDR":      "127.0.0.1:9999",
		"ARENA_DB":        "/tmp/override.db",
		"ARENA_LOG_LEVEL": "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "127.0.0.1:9999", cfg.GetServerAddress())
	assert.Equal(t, "/tmp/override.db", cfg.Server.Database)
	assert.Equal(t, "warn", cfg.Server.LogLevel)

	env["ARENA_ADDR"] = "no-port"
	assert.Error(t, DefaultConfig().ApplyEnv(lookup))
}

func TestLoadEnvFile(t *testing.T) {
	// Mutates the process environment, so not parallel.
	t.Setenv("ARENA_DB", "")
	require.NoError(t, os.Unsetenv("ARENA_DB"))

	path := writeFile(t, ".env", "ARENA_DB=/srv/arena.db\n")
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env"), path))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(os.LookupEnv))
	assert.Equal(t, "/srv/arena.db", cfg.Server.Database)
}

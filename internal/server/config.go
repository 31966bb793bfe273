package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/Kumar2007/MarvelClashArena/internal/match"
	"github.com/Kumar2007/MarvelClashArena/internal/settlement"
)

// Config represents the complete arena configuration
type Config struct {
	Server     ServerSettings      `hcl:"server,block"`
	Match      *MatchSettings      `hcl:"match,block"`
	Settlement *SettlementSettings `hcl:"settlement,block"`
	Bots       []BotStakes         `hcl:"bot,block"`
}

// ServerSettings contains process-level configuration
type ServerSettings struct {
	Address     string   `hcl:"address,optional"`
	Port        int      `hcl:"port,optional"`
	LogLevel    string   `hcl:"log_level,optional"`
	Database    string   `hcl:"database,optional"`
	ArchiveDir  string   `hcl:"archive_dir,optional"`
	CORSOrigins []string `hcl:"cors_origins,optional"`
}

// MatchSettings holds match timing. Durations use time.ParseDuration syntax.
type MatchSettings struct {
	TeamSize        int    `hcl:"team_size,optional"`
	TurnTimeout     string `hcl:"turn_timeout,optional"`
	ReconnectWindow string `hcl:"reconnect_window,optional"`
	SettleTimeout   string `hcl:"settle_timeout,optional"`
	BotThinkDelay   string `hcl:"bot_think_delay,optional"`
}

// SettlementSettings tunes post-match rewards. UnlockChance is a pointer so
// an explicit 0 can disable unlocks while omission keeps the default.
type SettlementSettings struct {
	KFactor      int      `hcl:"k_factor,optional"`
	Experience   int      `hcl:"experience,optional"`
	UnlockChance *float64 `hcl:"unlock_chance,optional"`
}

// BotStakes overrides the rating change against one bot difficulty
type BotStakes struct {
	Difficulty string `hcl:"difficulty,label"`
	Win        int    `hcl:"win"`
	Loss       int    `hcl:"loss"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:     "localhost",
			Port:        8080,
			LogLevel:    "info",
			Database:    "arena.db",
			CORSOrigins: []string{"*"},
		},
		Match: &MatchSettings{
			TeamSize:        5,
			TurnTimeout:     "30s",
			ReconnectWindow: "60s",
			SettleTimeout:   "10s",
		},
		Settlement: &SettlementSettings{
			KFactor:      32,
			Experience:   100,
			UnlockChance: ptr(0.1),
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.Server.LogLevel
	}
	if c.Server.Database == "" {
		c.Server.Database = def.Server.Database
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = def.Server.CORSOrigins
	}

	if c.Match == nil {
		c.Match = def.Match
	}
	if c.Match.TeamSize == 0 {
		c.Match.TeamSize = def.Match.TeamSize
	}
	if c.Match.TurnTimeout == "" {
		c.Match.TurnTimeout = def.Match.TurnTimeout
	}
	if c.Match.ReconnectWindow == "" {
		c.Match.ReconnectWindow = def.Match.ReconnectWindow
	}
	if c.Match.SettleTimeout == "" {
		c.Match.SettleTimeout = def.Match.SettleTimeout
	}

	if c.Settlement == nil {
		c.Settlement = def.Settlement
	}
	if c.Settlement.KFactor == 0 {
		c.Settlement.KFactor = def.Settlement.KFactor
	}
	if c.Settlement.Experience == 0 {
		c.Settlement.Experience = def.Settlement.Experience
	}
	if c.Settlement.UnlockChance == nil {
		c.Settlement.UnlockChance = def.Settlement.UnlockChance
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Server.Database == "" {
		return errors.New("database path is required")
	}

	if c.Match.TeamSize < 1 || c.Match.TeamSize > 5 {
		return fmt.Errorf("team size must be between 1 and 5, got %d", c.Match.TeamSize)
	}
	durations := map[string]string{
		"turn_timeout":     c.Match.TurnTimeout,
		"reconnect_window": c.Match.ReconnectWindow,
		"settle_timeout":   c.Match.SettleTimeout,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("match %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("match %s must be positive", name)
		}
	}
	if c.Match.BotThinkDelay != "" {
		if d, err := time.ParseDuration(c.Match.BotThinkDelay); err != nil || d < 0 {
			return fmt.Errorf("match bot_think_delay %q is not a valid duration", c.Match.BotThinkDelay)
		}
	}

	if c.Settlement.KFactor <= 0 {
		return fmt.Errorf("settlement k_factor must be positive, got %d", c.Settlement.KFactor)
	}
	if c.Settlement.Experience < 0 {
		return fmt.Errorf("settlement experience must not be negative, got %d", c.Settlement.Experience)
	}
	if chance := c.Settlement.UnlockChance; chance == nil || *chance < 0 || *chance > 1 {
		return fmt.Errorf("settlement unlock_chance must be between 0 and 1, got %v", c.unlockChance())
	}

	seen := map[string]bool{}
	for _, b := range c.Bots {
		if !match.Difficulty(b.Difficulty).Valid() {
			return fmt.Errorf("bot %q: unknown difficulty", b.Difficulty)
		}
		if seen[b.Difficulty] {
			return fmt.Errorf("bot %q: configured twice", b.Difficulty)
		}
		seen[b.Difficulty] = true
		if b.Win < 0 || b.Loss > 0 {
			return fmt.Errorf("bot %q: win must be >= 0 and loss <= 0", b.Difficulty)
		}
	}
	return nil
}

// GetServerAddress returns the full listen address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// MatchConfig converts the match block. Call Validate first.
func (c *Config) MatchConfig() match.Config {
	return match.Config{
		TeamSize:        c.Match.TeamSize,
		TurnTimeout:     mustDuration(c.Match.TurnTimeout),
		ReconnectWindow: mustDuration(c.Match.ReconnectWindow),
		SettleTimeout:   mustDuration(c.Match.SettleTimeout),
	}
}

// BotThinkDelay returns the fixed bot delay and whether one is set.
func (c *Config) BotThinkDelay() (time.Duration, bool) {
	if c.Match.BotThinkDelay == "" {
		return 0, false
	}
	return mustDuration(c.Match.BotThinkDelay), true
}

// Policy builds the settlement policy, starting from the defaults.
func (c *Config) Policy() settlement.Policy {
	p := settlement.DefaultPolicy()
	p.KFactor = c.Settlement.KFactor
	p.Experience = c.Settlement.Experience
	p.UnlockChance = c.unlockChance()
	for _, b := range c.Bots {
		p.Bot[match.Difficulty(b.Difficulty)] = settlement.BotDelta{Win: b.Win, Loss: b.Loss}
	}
	return p
}

func (c *Config) unlockChance() float64 {
	if c.Settlement.UnlockChance == nil {
		return 0
	}
	return *c.Settlement.UnlockChance
}

func ptr[T any](v T) *T { return &v }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// LoadEnv reads .env files into the process environment. Missing files
// are skipped and variables already set are left alone.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from ARENA_ADDR, ARENA_DB and
// ARENA_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if addr, ok := lookup("ARENA_ADDR"); ok && addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("ARENA_ADDR: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("ARENA_ADDR: invalid port %q", port)
		}
		c.Server.Address = host
		c.Server.Port = p
	}
	if db, ok := lookup("ARENA_DB"); ok && db != "" {
		c.Server.Database = db
	}
	if level, ok := lookup("ARENA_LOG_LEVEL"); ok && level != "" {
		c.Server.LogLevel = level
	}
	return nil
}

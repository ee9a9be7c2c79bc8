// Package config loads process settings from VIMY_* environment variables
// with flag overrides, and match setups from YAML files.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
)

// Config holds the process settings. Empty paths and addresses disable the
// feature they configure.
type Config struct {
	SocketPath   string `env:"VIMY_SOCKET" envDefault:"/tmp/vimy-instance.sock"`
	WSAddr       string `env:"VIMY_WS_ADDR"`
	JournalPath  string `env:"VIMY_JOURNAL"`
	SaveDir      string `env:"VIMY_SAVE_DIR"`
	RulesFile    string `env:"VIMY_RULES"`
	MatchFile    string `env:"VIMY_MATCH"`
	LogLevel     string `env:"VIMY_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint string `env:"VIMY_OTEL_ENDPOINT"`

	Seed             uint64 `env:"VIMY_SEED"`
	BuildStep        int    `env:"VIMY_BUILD_STEP" envDefault:"25"`
	OutgoingCapacity int    `env:"VIMY_OUTGOING_CAPACITY" envDefault:"256"`
	PendingCapacity  int    `env:"VIMY_PENDING_CAPACITY" envDefault:"1024"`
	CommandDelay     uint   `env:"VIMY_COMMAND_DELAY"`
}

// Load reads the environment into a Config and then applies flags from
// args, so flags win over the environment.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "unix socket the instance server connects to")
	fs.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "websocket listen address (empty disables)")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "sqlite command journal path (empty disables)")
	fs.StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "directory save and load requests are confined to")
	fs.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "YAML sidebar rules file")
	fs.StringVar(&cfg.MatchFile, "match", cfg.MatchFile, "YAML match file registered at startup")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP HTTP trace endpoint (empty disables)")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 seeds from the clock)")
	fs.IntVar(&cfg.BuildStep, "build-step", cfg.BuildStep, "factory progress per tick")
	fs.IntVar(&cfg.OutgoingCapacity, "outgoing", cfg.OutgoingCapacity, "outgoing command ring capacity")
	fs.IntVar(&cfg.PendingCapacity, "pending", cfg.PendingCapacity, "pending command list capacity")
	fs.UintVar(&cfg.CommandDelay, "command-delay", cfg.CommandDelay, "frames added to every staged command")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}

// Level maps LogLevel to a slog level. Unknown names fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// internal/config/config.go
//
// Process configuration, layered:
//   1. built-in defaults
//   2. optional TOML file (CONFIG_FILE, default ./whackamole.toml)
//   3. environment variables (a .env file is loaded by main beforehand)
//
// Environment variables:
//   PORT, CLIENT_ORIGIN
//   GAME_MAX_CLOCK, GAME_TICK_INTERVAL, GAME_RESTART_ON_RESUME, DAILY_SALT
//   DB_PATH (empty string disables score history)
//   JWT_SECRET, COOKIE_NAME, JWT_EXPIRES_DAYS
//   LOG_LEVEL, LOG_FORMAT

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultFile = "whackamole.toml"

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Game     GameConfig     `toml:"game"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Port         string `toml:"port"`
	ClientOrigin string `toml:"client_origin"` // extra origin allowed for CORS and WebSocket upgrades
}

type GameConfig struct {
	MaxClock        int      `toml:"max_clock"`
	TickInterval    Duration `toml:"tick_interval"`
	RestartOnResume bool     `toml:"restart_on_resume"`
	DailySalt       string   `toml:"daily_salt"` // keys the shared daily layout
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	CookieName  string `toml:"cookie_name"`
	ExpiresDays int    `toml:"expires_days"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Duration lets TOML carry values like "250ms" or "1s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "3002"},
		Game: GameConfig{
			MaxClock:     30,
			TickInterval: Duration{time.Second},
			DailySalt:    "local_dev_salt",
		},
		Database: DatabaseConfig{Path: "./data/scores.db"},
		Auth: AuthConfig{
			JWTSecret:   "dev_secret_change_me",
			CookieName:  "mole_player",
			ExpiresDays: 180,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaults() }

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_FILE (missing default file is fine, a missing explicit file is
// not) and the environment.
func Load() (*Config, error) {
	cfg := defaults()

	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit || path == "" {
		path = defaultFile
		explicit = false
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setStr(&c.Server.Port, "PORT")
	setStr(&c.Server.ClientOrigin, "CLIENT_ORIGIN")
	setStr(&c.Game.DailySalt, "DAILY_SALT")
	setStr(&c.Auth.JWTSecret, "JWT_SECRET")
	setStr(&c.Auth.CookieName, "COOKIE_NAME")
	setStr(&c.Logging.Level, "LOG_LEVEL")
	setStr(&c.Logging.Format, "LOG_FORMAT")

	// DB_PATH may be set to empty on purpose.
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		c.Database.Path = v
	}

	if v := os.Getenv("GAME_MAX_CLOCK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GAME_MAX_CLOCK: %w", err)
		}
		c.Game.MaxClock = n
	}
	if v := os.Getenv("GAME_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GAME_TICK_INTERVAL: %w", err)
		}
		c.Game.TickInterval = Duration{d}
	}
	if v := os.Getenv("GAME_RESTART_ON_RESUME"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GAME_RESTART_ON_RESUME: %w", err)
		}
		c.Game.RestartOnResume = b
	}
	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRES_DAYS: %w", err)
		}
		c.Auth.ExpiresDays = n
	}
	return nil
}

// Validate rejects values the game cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port == "":
		return errors.New("server.port must be set")
	case c.Game.MaxClock <= 0:
		return fmt.Errorf("game.max_clock must be positive, got %d", c.Game.MaxClock)
	case c.Game.TickInterval.Duration <= 0:
		return fmt.Errorf("game.tick_interval must be positive, got %s", c.Game.TickInterval)
	case c.Auth.ExpiresDays <= 0:
		return fmt.Errorf("auth.expires_days must be positive, got %d", c.Auth.ExpiresDays)
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

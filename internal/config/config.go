// Package config loads wallboard configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zulandar/wallboard/internal/models"
)

// DefaultPath is where the CLI looks when no --config flag is given.
const DefaultPath = "wallboard.yaml"

// DefaultPort is the HTTP listen port when none is configured.
const DefaultPort = 3001

// DefaultFrontendURL is the only origin allowed by CORS unless configured.
const DefaultFrontendURL = "http://localhost:3000"

// Config is the top-level wallboard configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Realtime  RealtimeConfig  `yaml:"realtime" toml:"realtime"`
	Seed      SeedConfig      `yaml:"seed" toml:"seed"`
	Journal   JournalConfig   `yaml:"journal" toml:"journal"`
	Telegraph TelegraphConfig `yaml:"telegraph" toml:"telegraph"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int    `yaml:"port" toml:"port"`
	FrontendURL string `yaml:"frontend_url" toml:"frontend_url"`
	Environment string `yaml:"environment" toml:"environment"`
}

// Development reports whether error details may be exposed to clients.
func (s ServerConfig) Development() bool {
	return s.Environment == "development"
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// RealtimeConfig tunes live subscriber delivery.
type RealtimeConfig struct {
	BufferSize        int    `yaml:"buffer_size" toml:"buffer_size"`
	HeartbeatInterval string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
}

// Heartbeat returns the parsed heartbeat interval. Call after validation.
func (r RealtimeConfig) Heartbeat() time.Duration {
	d, _ := time.ParseDuration(r.HeartbeatInterval)
	return d
}

// SeedConfig controls demo data.
type SeedConfig struct {
	SampleData bool `yaml:"sample_data" toml:"sample_data"`
}

// JournalConfig controls the event audit log.
type JournalConfig struct {
	Enabled bool        `yaml:"enabled" toml:"enabled"`
	Driver  string      `yaml:"driver" toml:"driver"`
	Path    string      `yaml:"path" toml:"path"`
	MySQL   MySQLConfig `yaml:"mysql" toml:"mysql"`
}

// MySQLConfig holds connection settings for a MySQL journal.
type MySQLConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Database string `yaml:"database" toml:"database"`
}

// TelegraphConfig controls relaying wallboard events to a chat platform.
type TelegraphConfig struct {
	Enabled       bool          `yaml:"enabled" toml:"enabled"`
	Platform      string        `yaml:"platform" toml:"platform"`
	ChannelID     string        `yaml:"channel_id" toml:"channel_id"`
	MinPriority   string        `yaml:"min_priority" toml:"min_priority"`
	StatusChanges bool          `yaml:"status_changes" toml:"status_changes"`
	DigestCron    string        `yaml:"digest_cron" toml:"digest_cron"`
	Slack         SlackConfig   `yaml:"slack" toml:"slack"`
	Discord       DiscordConfig `yaml:"discord" toml:"discord"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a config file from path and returns a validated Config. Files
// ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// LoadOptional is Load, except a missing file yields Default().
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return finish(&cfg)
}

// ParseTOML unmarshals TOML bytes into a validated Config.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value. Unset variables
// expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.FrontendURL == "" {
		c.Server.FrontendURL = DefaultFrontendURL
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Realtime.BufferSize == 0 {
		c.Realtime.BufferSize = 64
	}
	if c.Realtime.HeartbeatInterval == "" {
		c.Realtime.HeartbeatInterval = "25s"
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "sqlite"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = ":memory:"
	}
	if c.Journal.MySQL.Host == "" {
		c.Journal.MySQL.Host = "127.0.0.1"
	}
	if c.Journal.MySQL.Port == 0 {
		c.Journal.MySQL.Port = 3306
	}
	if c.Journal.MySQL.Database == "" {
		c.Journal.MySQL.Database = "wallboard"
	}
	if c.Telegraph.MinPriority == "" {
		c.Telegraph.MinPriority = string(models.PriorityHigh)
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if !slices.Contains([]string{"development", "production", "test"}, c.Server.Environment) {
		errs = append(errs, fmt.Sprintf("server.environment %q must be development, production or test", c.Server.Environment))
	}
	if !strings.HasPrefix(c.Server.FrontendURL, "http://") && !strings.HasPrefix(c.Server.FrontendURL, "https://") {
		errs = append(errs, fmt.Sprintf("server.frontend_url %q must be an http or https origin", c.Server.FrontendURL))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Realtime.BufferSize < 1 {
		errs = append(errs, "realtime.buffer_size must be positive")
	}
	if d, err := time.ParseDuration(c.Realtime.HeartbeatInterval); err != nil || d < time.Second {
		errs = append(errs, fmt.Sprintf("realtime.heartbeat_interval %q must be a duration of at least 1s", c.Realtime.HeartbeatInterval))
	}

	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case "sqlite":
		case "mysql":
			if c.Journal.MySQL.User == "" {
				errs = append(errs, "journal.mysql.user is required for the mysql driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("journal.driver %q must be sqlite or mysql", c.Journal.Driver))
		}
	}

	if !models.Priority(c.Telegraph.MinPriority).Valid() {
		errs = append(errs, fmt.Sprintf("telegraph.min_priority %q is not a message priority", c.Telegraph.MinPriority))
	}
	if c.Telegraph.Enabled {
		if c.Telegraph.ChannelID == "" {
			errs = append(errs, "telegraph.channel_id is required")
		}
		switch c.Telegraph.Platform {
		case "slack":
			if c.Telegraph.Slack.BotToken == "" {
				errs = append(errs, "telegraph.slack.bot_token is required")
			}
		case "discord":
			if c.Telegraph.Discord.BotToken == "" {
				errs = append(errs, "telegraph.discord.bot_token is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("telegraph.platform %q must be slack or discord", c.Telegraph.Platform))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Package config provides Viper-based configuration loading for the room bot.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// GatewayConfig holds room gateway connection settings.
type GatewayConfig struct {
	// Endpoint is the WebSocket URL of the gateway.
	Endpoint string `mapstructure:"endpoint"`
	// ReconnectDelay is the wait before redialling after a drop.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// KeepaliveInterval is the period between keepalive requests while open.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	// RequestTimeout bounds a correlated request whose context has no deadline.
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// BotConfig identifies the bot and selects the events it receives.
type BotConfig struct {
	Token  string `mapstructure:"token"`
	RoomID string `mapstructure:"room_id"`
	// Intents lists capability names, e.g. ["joins", "messages"] or ["all"].
	Intents []string `mapstructure:"intents"`
	// Cache enables the room occupant cache.
	Cache bool `mapstructure:"cache"`
}

// IntentSet parses Intents into a bitmask.
//
// Postcondition: Returns an error naming the first unknown capability.
func (b BotConfig) IntentSet() (protocol.Intents, error) {
	return protocol.ParseIntents(b.Intents)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// JournalConfig controls persistence of room events.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Buffer is the number of events held for the writer before new ones are dropped.
	Buffer int `mapstructure:"buffer"`
}

// ScriptingConfig controls Lua behaviour scripts. An empty Dir disables them.
type ScriptingConfig struct {
	Dir              string `mapstructure:"dir"`
	InstructionLimit int    `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants. The database section is only
// checked when the journal is enabled.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateGateway(c.Gateway),
		validateBot(c.Bot),
		validateLogging(c.Logging),
		validateJournal(c.Journal),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Journal.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGateway(g GatewayConfig) error {
	var errs []string
	u, err := url.Parse(g.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("gateway.endpoint must be a ws:// or wss:// URL, got %q", g.Endpoint))
	}
	if g.ReconnectDelay <= 0 {
		errs = append(errs, "gateway.reconnect_delay must be positive")
	}
	if g.KeepaliveInterval <= 0 {
		errs = append(errs, "gateway.keepalive_interval must be positive")
	}
	if g.RequestTimeout <= 0 {
		errs = append(errs, "gateway.request_timeout must be positive")
	}
	if g.HandshakeTimeout < 0 {
		errs = append(errs, "gateway.handshake_timeout must not be negative")
	}
	if g.WriteTimeout < 0 {
		errs = append(errs, "gateway.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBot(b BotConfig) error {
	var errs []string
	if b.Token == "" {
		errs = append(errs, "bot.token must not be empty")
	}
	if b.RoomID == "" {
		errs = append(errs, "bot.room_id must not be empty")
	}
	if len(b.Intents) == 0 {
		errs = append(errs, "bot.intents must name at least one capability")
	} else if _, err := b.IntentSet(); err != nil {
		errs = append(errs, "bot.intents: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateJournal(j JournalConfig) error {
	if j.Enabled && j.Buffer < 1 {
		return fmt.Errorf("journal.buffer must be >= 1, got %d", j.Buffer)
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return errors.New("scripting.instruction_limit must not be negative")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return LoadFromViper(v)
}

// LoadDatabase reads only the database and logging sections of the file at
// path. Tools that never join a room use it so that gateway and bot
// settings need not be present.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns validated database and logging settings or a non-nil error.
func LoadDatabase(path string) (DatabaseConfig, LoggingConfig, error) {
	v, err := readFile(path)
	if err != nil {
		return DatabaseConfig{}, LoggingConfig{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DatabaseConfig{}, LoggingConfig{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := errors.Join(validateDatabase(cfg.Database), validateLogging(cfg.Logging)); err != nil {
		return DatabaseConfig{}, LoggingConfig{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg.Database, cfg.Logging, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// ROOMLINK_BOT_TOKEN overrides bot.token, and so on.
	v.SetEnvPrefix("ROOMLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return v, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.endpoint", "wss://highrise.game/web/webapi")
	v.SetDefault("gateway.reconnect_delay", "5s")
	v.SetDefault("gateway.keepalive_interval", "15s")
	v.SetDefault("gateway.request_timeout", "30s")
	v.SetDefault("gateway.handshake_timeout", "10s")
	v.SetDefault("gateway.write_timeout", "10s")

	// Bound so AutomaticEnv can supply the secrets without a file entry.
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.room_id", "")
	v.SetDefault("bot.intents", []string{"all"})
	v.SetDefault("bot.cache", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "roomlink")
	v.SetDefault("database.password", "roomlink")
	v.SetDefault("database.name", "roomlink")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.buffer", 1024)

	v.SetDefault("scripting.dir", "")
	v.SetDefault("scripting.instruction_limit", 100000)
}

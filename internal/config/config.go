// Package config provides Viper-based configuration loading for the room server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the listening port used when neither the config file nor the
// environment supplies one.
const DefaultPort = 3000

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// StaticDir is served at "/" when non-empty.
	StaticDir string `mapstructure:"static_dir"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TransportConfig holds WebSocket connection settings.
type TransportConfig struct {
	// WriteTimeout is the deadline for a single outbound frame.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is how long the server waits for a pong before closing.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// PingPeriod is the keepalive interval; must be shorter than PongTimeout.
	PingPeriod time.Duration `mapstructure:"ping_period"`
	// MaxMessageSize is the largest inbound frame accepted, in bytes.
	MaxMessageSize int64 `mapstructure:"max_message_size"`
	// SendBuffer is the number of outbound messages queued per connection.
	SendBuffer int `mapstructure:"send_buffer"`
	// RateLimit is the sustained move updates per second per connection.
	// Other messages are never throttled.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the move burst allowance per connection.
	RateBurst int `mapstructure:"rate_burst"`
}

// WorldConfig holds room roster and per-room limits.
type WorldConfig struct {
	// RosterFile is an optional YAML room roster; empty uses the built-in roster.
	RosterFile string `mapstructure:"roster_file"`
	// DefaultCapacity applies to roster entries without an explicit capacity.
	DefaultCapacity int `mapstructure:"default_capacity"`
	// ChatHistory is the maximum number of chat entries kept per room.
	ChatHistory int `mapstructure:"chat_history"`
	// ChatTail is the number of recent chat entries sent to a joiner.
	ChatTail int `mapstructure:"chat_tail"`
	// NameMaxLength caps display names, in runes.
	NameMaxLength int `mapstructure:"name_max_length"`
	// ChatMaxLength caps chat text, in runes.
	ChatMaxLength int `mapstructure:"chat_max_length"`
	// ColorMaxLength caps color strings, in runes.
	ColorMaxLength int `mapstructure:"color_max_length"`
	// DefaultName is used when a joiner supplies no name.
	DefaultName string `mapstructure:"default_name"`
	// Seed drives default map generation.
	Seed int64 `mapstructure:"seed"`
}

// ScriptingConfig holds script simulator settings.
type ScriptingConfig struct {
	// InstructionLimit bounds Lua opcodes per simulation run.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Transport TransportConfig `mapstructure:"transport"`
	World     WorldConfig     `mapstructure:"world"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateLogging(c.Logging),
		validateTransport(c.Transport),
		validateWorld(c.World),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
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

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.WriteTimeout <= 0 {
		errs = append(errs, "transport.write_timeout must be positive")
	}
	if t.PongTimeout <= 0 {
		errs = append(errs, "transport.pong_timeout must be positive")
	}
	if t.PingPeriod <= 0 || t.PingPeriod >= t.PongTimeout {
		errs = append(errs, "transport.ping_period must be positive and shorter than transport.pong_timeout")
	}
	if t.MaxMessageSize < 1 {
		errs = append(errs, fmt.Sprintf("transport.max_message_size must be >= 1, got %d", t.MaxMessageSize))
	}
	if t.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("transport.send_buffer must be >= 1, got %d", t.SendBuffer))
	}
	if t.RateLimit <= 0 {
		errs = append(errs, "transport.rate_limit must be positive")
	}
	if t.RateBurst < 1 {
		errs = append(errs, fmt.Sprintf("transport.rate_burst must be >= 1, got %d", t.RateBurst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.DefaultCapacity < 1 {
		errs = append(errs, fmt.Sprintf("world.default_capacity must be >= 1, got %d", w.DefaultCapacity))
	}
	if w.ChatHistory < 1 {
		errs = append(errs, fmt.Sprintf("world.chat_history must be >= 1, got %d", w.ChatHistory))
	}
	if w.ChatTail < 0 || w.ChatTail > w.ChatHistory {
		errs = append(errs, "world.chat_tail must be within [0, world.chat_history]")
	}
	if w.NameMaxLength < 1 {
		errs = append(errs, "world.name_max_length must be >= 1")
	}
	if w.ChatMaxLength < 1 {
		errs = append(errs, "world.chat_max_length must be >= 1")
	}
	if w.ColorMaxLength < 1 {
		errs = append(errs, "world.color_max_length must be >= 1")
	}
	if w.DefaultName == "" {
		errs = append(errs, "world.default_name must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates the result. An empty path skips the file.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with ROOMSYNC_ prefix
	v.SetEnvPrefix("ROOMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "ROOMSYNC_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("binding PORT: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
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
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("transport.write_timeout", "10s")
	v.SetDefault("transport.pong_timeout", "60s")
	v.SetDefault("transport.ping_period", "54s")
	v.SetDefault("transport.max_message_size", 1<<20)
	v.SetDefault("transport.send_buffer", 256)
	v.SetDefault("transport.rate_limit", 60)
	v.SetDefault("transport.rate_burst", 120)

	v.SetDefault("world.roster_file", "")
	v.SetDefault("world.default_capacity", 20)
	v.SetDefault("world.chat_history", 100)
	v.SetDefault("world.chat_tail", 50)
	v.SetDefault("world.name_max_length", 20)
	v.SetDefault("world.chat_max_length", 200)
	v.SetDefault("world.color_max_length", 16)
	v.SetDefault("world.default_name", "Player")
	v.SetDefault("world.seed", 1)

	v.SetDefault("scripting.instruction_limit", 100_000)
}

// Package config loads netchat configuration from flags, environment and
// an optional YAML file, in that order of precedence.
package config

import (
	"math"
	"net"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rectcircle/netchat/internal/variable"
	"github.com/rectcircle/netchat/tools"
)

// Mode - the subcommand being run
type Mode string

const (
	// ModeServe - bind and wait for peers
	ModeServe Mode = "serve"
	// ModeConnect - connect to a serving peer
	ModeConnect Mode = "connect"
)

// Role - role taken by the mode
func (m Mode) Role() Role {
	if m == ModeConnect {
		return Initiator
	}
	return Listener
}

// Flag names shared with cmd/netchat
const (
	FlagAddr      = "addr"
	FlagPort      = "port"
	FlagUDP       = "udp"
	FlagConfig    = "config"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
	FlagLogFile   = "log-file"
)

// Config - resolved configuration of one netchat process
type Config struct {
	Mode     Mode
	Username string
	UDP      bool
	Address  string
	Port     uint16
	Log      LogConfig
}

// LogConfig - logger settings
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string
	// Format: auto, console or json
	Format string
	// File: optional log file, rotated when it grows
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultLogConfig - info level, auto format, stderr only
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "auto",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Protocol - tcp unless UDP is set
func (c *Config) Protocol() Protocol {
	if c.UDP {
		return UDP
	}
	return TCP
}

// Endpoint - validated endpoint configuration for the mode
func (c *Config) Endpoint() (EndpointConfig, error) {
	return NewEndpointConfig(c.Protocol(), c.Mode.Role(), c.Address, c.Port)
}

var flagKeys = map[string]string{
	FlagAddr:      "addr",
	FlagPort:      "port",
	FlagUDP:       "udp",
	FlagLogLevel:  "log.level",
	FlagLogFormat: "log.format",
	FlagLogFile:   "log.file",
}

// Load - resolve the configuration of mode from a parsed flag set.
// The first positional argument is the username.
func Load(mode Mode, fs *pflag.FlagSet) (*Config, error) {
	if mode != ModeServe && mode != ModeConnect {
		return nil, errors.Errorf("unknown mode %q", mode)
	}
	if fs.NArg() > 1 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(variable.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	logDefaults := DefaultLogConfig()
	v.SetDefault("username", tools.CurrentUsername())
	v.SetDefault("addr", variable.DefaultHost)
	v.SetDefault("port", variable.DefaultPort)
	v.SetDefault("udp", false)
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
	v.SetDefault("log.compress", logDefaults.Compress)

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag --%s", name)
			}
		}
	}
	if fs.NArg() == 1 {
		v.Set("username", fs.Arg(0))
	}

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(v.GetString("addr"))
	port, err := parsePort(address, v.Get("port"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode:     mode,
		Username: v.GetString("username"),
		UDP:      v.GetBool("udp"),
		Address:  address,
		Port:     port,
		Log: LogConfig{
			Level:      strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format:     strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePort - a port from any layer, rejected rather than truncated when
// it is not a number in 0-65535
func parsePort(address string, raw interface{}) (uint16, error) {
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToUint64E(raw)
	if err == nil && n > math.MaxUint16 {
		err = errors.Errorf("port %d out of range", n)
	}
	if err != nil {
		return 0, &AddressParseError{Address: net.JoinHostPort(address, cast.ToString(raw)), Err: err}
	}
	return uint16(n), nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	path := ""
	if f := fs.Lookup(FlagConfig); f != nil {
		path = f.Value.String()
	}
	if path == "" && variable.ConfigBaseDir != "" {
		candidate := filepath.Join(variable.ConfigBaseDir, variable.ConfigFileName)
		if tools.PathExist(candidate) {
			path = candidate
		}
	}
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return errors.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Address == "" {
		c.Address = variable.DefaultHost
	}
	return nil
}

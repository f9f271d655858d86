package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rectcircle/netchat/internal/variable"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP(FlagAddr, "a", variable.DefaultHost, "")
	fs.Uint16P(FlagPort, "p", variable.DefaultPort, "")
	fs.BoolP(FlagUDP, "u", false, "")
	fs.StringP(FlagConfig, "c", "", "")
	fs.String(FlagLogLevel, "info", "")
	fs.String(FlagLogFormat, "auto", "")
	fs.String(FlagLogFile, "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func isolateConfigDir(t *testing.T) {
	t.Helper()
	old := variable.ConfigBaseDir
	variable.ConfigBaseDir = t.TempDir()
	t.Cleanup(func() { variable.ConfigBaseDir = old })
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigDir(t)
	cfg, err := Load(ModeServe, newFlagSet(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, ModeServe, cfg.Mode)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, uint16(0), cfg.Port)
	assert.False(t, cfg.UDP)
	assert.Equal(t, TCP, cfg.Protocol())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
}

func TestLoad_Flags(t *testing.T) {
	isolateConfigDir(t)
	cfg, err := Load(ModeConnect, newFlagSet(t, "-u", "-a", "::1", "-p", "9000", "--log-level", "DEBUG", "bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "::1", cfg.Address)
	assert.Equal(t, uint16(9000), cfg.Port)
	assert.Equal(t, UDP, cfg.Protocol())
	assert.Equal(t, "debug", cfg.Log.Level)

	ep, err := cfg.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, Initiator, ep.Role())
	assert.Equal(t, "[::1]:9000", ep.Peer().String())
	assert.Equal(t, "[::]:0", ep.Bind().String())
}

func TestLoad_EnvOverridesDefaultsButNotFlags(t *testing.T) {
	isolateConfigDir(t)
	t.Setenv("NETCHAT_USERNAME", "carol")
	t.Setenv("NETCHAT_PORT", "7000")
	t.Setenv("NETCHAT_LOG_FORMAT", "json")

	cfg, err := Load(ModeServe, newFlagSet(t, "-p", "7001"))
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.Username)
	assert.Equal(t, uint16(7001), cfg.Port)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolateConfigDir(t)
	path := filepath.Join(t.TempDir(), "netchat.yaml")
	content := "username: dave\naddr: 10.0.0.1\nport: 4000\nlog:\n  level: warn\n  file: /tmp/netchat.log\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(ModeServe, newFlagSet(t, "-c", path))
	require.NoError(t, err)
	assert.Equal(t, "dave", cfg.Username)
	assert.Equal(t, "10.0.0.1", cfg.Address)
	assert.Equal(t, uint16(4000), cfg.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/netchat.log", cfg.Log.File)
}

func TestLoad_DefaultConfigFileInBaseDir(t *testing.T) {
	isolateConfigDir(t)
	path := filepath.Join(variable.ConfigBaseDir, variable.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("username: erin\n"), 0o644))

	cfg, err := Load(ModeConnect, newFlagSet(t))
	require.NoError(t, err)
	assert.Equal(t, "erin", cfg.Username)
}

func TestLoad_Errors(t *testing.T) {
	isolateConfigDir(t)
	tests := []struct {
		name string
		mode Mode
		args []string
	}{
		{name: "unknown mode", mode: Mode("listen"), args: []string{"alice"}},
		{name: "extra positional", mode: ModeServe, args: []string{"alice", "bob"}},
		{name: "bad log level", mode: ModeServe, args: []string{"--log-level", "loud"}},
		{name: "bad log format", mode: ModeServe, args: []string{"--log-format", "xml"}},
		{name: "missing config file", mode: ModeServe, args: []string{"-c", "/nonexistent/netchat.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.mode, newFlagSet(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestLoad_PortOutOfRange(t *testing.T) {
	isolateConfigDir(t)
	tests := []struct {
		name string
		env  string
		file string
	}{
		{name: "env too large", env: "70000"},
		{name: "env negative", env: "-1"},
		{name: "env not a number", env: "abc"},
		{name: "file too large", file: "port: 65536\n"},
		{name: "file negative", file: "port: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []string
			if tt.env != "" {
				t.Setenv("NETCHAT_PORT", tt.env)
			}
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "netchat.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
				args = append(args, "-c", path)
			}
			cfg, err := Load(ModeServe, newFlagSet(t, args...))
			assert.Nil(t, cfg)
			var addrErr *AddressParseError
			require.True(t, errors.As(err, &addrErr), "got %v", err)
		})
	}

	t.Run("largest port", func(t *testing.T) {
		t.Setenv("NETCHAT_PORT", " 65535 ")
		cfg, err := Load(ModeServe, newFlagSet(t))
		require.NoError(t, err)
		assert.Equal(t, uint16(65535), cfg.Port)
	})
}

package variable

import (
	"os"
	"path"
)

var (
	// ConfigBaseDir - the project config dir, empty when the home dir is unknown
	ConfigBaseDir string
	// ConfigFileName - config file looked up under ConfigBaseDir
	ConfigFileName string = "netchat.yaml"
	// EnvPrefix - prefix of environment overrides, e.g. NETCHAT_USERNAME
	EnvPrefix string = "NETCHAT"
	// DefaultHost - default target address of both subcommands
	DefaultHost string = "127.0.0.1"
	// DefaultPort - 0 means OS-assigned for a listener
	DefaultPort uint16 = 0
	// ListenBacklog - backlog passed to listen(2)
	ListenBacklog int = 128
	// DatagramBufferSize - inbound read size, large enough for any UDP payload
	DatagramBufferSize int = 65535
)

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	ConfigBaseDir = path.Join(home, ".netchat")
}

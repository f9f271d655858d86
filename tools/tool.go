package tools

import (
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ToAddressString - return "$host:$port"
func ToAddressString(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatInt(int64(port), 10))
}

// CurrentUsername - get the login name of the current user,
// used when no chat username is configured
func CurrentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		// windows style "DOMAIN\user"
		if i := strings.LastIndexByte(u.Username, '\\'); i >= 0 {
			return u.Username[i+1:]
		}
		return u.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name
		}
	}
	return "anonymous"
}

// PathExist - return whether exist of path
func PathExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogAndExitIfErr - will log and exit if err != nil
func LogAndExitIfErr(logger *zap.Logger, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
	// Fatal syncs and calls os.Exit(1)
	logger.Fatal("netchat failed", zap.Error(err))
}

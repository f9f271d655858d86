package tools

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAddressString(t *testing.T) {
	tests := []struct {
		name string
		host string
		port uint16
		want string
	}{
		{name: "ipv4", host: "127.0.0.1", port: 8080, want: "127.0.0.1:8080"},
		{name: "ipv4 ephemeral", host: "0.0.0.0", port: 0, want: "0.0.0.0:0"},
		{name: "ipv6", host: "::1", port: 9000, want: "[::1]:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToAddressString(tt.host, tt.port))
		})
	}
}

func TestCurrentUsername(t *testing.T) {
	got := CurrentUsername()
	assert.NotEmpty(t, got)
	if u, err := user.Current(); err == nil && u.Username != "" && !strings.Contains(u.Username, `\`) {
		assert.Equal(t, u.Username, got)
	}
}

func TestPathExist(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "temp dir exist", path: dir, want: true},
		{name: "os.Args[0] exist", path: os.Args[0], want: true},
		{name: "missing file", path: filepath.Join(dir, "qazwsxedc"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathExist(tt.path))
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testHome = "/home/testuser"

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDirsFor(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want appDirs
	}{
		{
			name: "linux xdg",
			goos: "linux",
			env:  map[string]string{"XDG_CONFIG_HOME": "/custom/config", "XDG_DATA_HOME": "/custom/data"},
			want: appDirs{config: "/custom/config/fxfer", data: "/custom/data/fxfer"},
		},
		{
			name: "linux fallback",
			goos: "linux",
			want: appDirs{
				config: filepath.Join(testHome, ".config", "fxfer"),
				data:   filepath.Join(testHome, ".local", "share", "fxfer"),
			},
		},
		{
			name: "darwin ignores xdg",
			goos: "darwin",
			env:  map[string]string{"XDG_CONFIG_HOME": "/custom/config"},
			want: appDirs{
				config: filepath.Join(testHome, "Library", "Application Support", "fxfer"),
				data:   filepath.Join(testHome, "Library", "Application Support", "fxfer"),
			},
		},
		{
			name: "other platform",
			goos: "freebsd",
			env:  map[string]string{"XDG_DATA_HOME": "/custom/data"},
			want: appDirs{
				config: filepath.Join(testHome, ".config", "fxfer"),
				data:   filepath.Join(testHome, ".local", "share", "fxfer"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dirsFor(tt.goos, testHome, envMap(tt.env)))
		})
	}
}

func TestDirsFor_NoHome(t *testing.T) {
	assert.Equal(t, appDirs{}, dirsFor("linux", "", envMap(nil)))
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("HOME", testHome)
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Contains(t, DefaultConfigDir(), appName)
	assert.Equal(t, filepath.Join(DefaultConfigDir(), "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join(DefaultDataDir(), "journal"), DefaultJournalDir())
}

func TestJoinIfSet(t *testing.T) {
	assert.Empty(t, joinIfSet("", "config.toml"))
	assert.Equal(t, "/a/config.toml", joinIfSet("/a", "config.toml"))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/journal", filepath.Join(home, "journal")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~user/x", "~user/x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandHome(tt.in))
		})
	}
}

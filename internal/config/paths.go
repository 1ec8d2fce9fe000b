package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "fxfer"
	configFileName = "config.toml"
)

// appDirs is where fxfer keeps its config file and its journal.
type appDirs struct {
	config string
	data   string
}

// dirsFor computes appDirs for an OS. Linux follows the XDG base directory
// spec; macOS keeps both under Application Support. Other platforms get the
// XDG fallbacks without consulting the environment.
func dirsFor(goos, home string, getenv func(string) string) appDirs {
	if home == "" {
		return appDirs{}
	}

	switch goos {
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support", appName)
		return appDirs{config: support, data: support}
	case "linux":
		return appDirs{
			config: xdgDir(getenv("XDG_CONFIG_HOME"), home, ".config"),
			data:   xdgDir(getenv("XDG_DATA_HOME"), home, filepath.Join(".local", "share")),
		}
	default:
		return appDirs{
			config: filepath.Join(home, ".config", appName),
			data:   filepath.Join(home, ".local", "share", appName),
		}
	}
}

func xdgDir(xdg, home, fallback string) string {
	if xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, fallback, appName)
}

func hostDirs() appDirs {
	home, err := os.UserHomeDir()
	if err != nil {
		return appDirs{}
	}

	return dirsFor(runtime.GOOS, home, os.Getenv)
}

// DefaultConfigDir returns the platform-specific config directory, or ""
// when the home directory is unknown.
func DefaultConfigDir() string {
	return hostDirs().config
}

// DefaultDataDir returns the platform-specific data directory.
func DefaultDataDir() string {
	return hostDirs().data
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	return joinIfSet(DefaultConfigDir(), configFileName)
}

// DefaultJournalDir returns where the journal lives when not configured.
func DefaultJournalDir() string {
	return joinIfSet(DefaultDataDir(), journalSubdir)
}

func joinIfSet(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}

// expandHome replaces a leading "~" or "~/" with the user's home directory.
// "~user" forms are left alone.
func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, rest)
}

// Package config loads and validates the scoring configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultStorePath is where the local object store lives, honoring
// XDG_DATA_HOME when it is set.
func DefaultStorePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "proof", "objects.db")
	}
	return "~/.local/share/proof/objects.db"
}

// DefaultConfigDir is the directory searched for config.yaml.
func DefaultConfigDir() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "proof")
	}
	return ExpandPath("~/.config/proof")
}

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads KEY=VALUE pairs from the given dotenv files into the
// process environment. Missing files are skipped and variables already set
// are left alone, so the real environment always wins.
func LoadEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		path = ExpandPath(path)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

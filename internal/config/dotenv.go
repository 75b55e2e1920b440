package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given .env files (default .env) into the process
// environment. Existing variables take precedence and empty values are
// ignored. Missing files are skipped. It returns the number of variables set.
func LoadDotEnv(paths ...string) (int, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	set := 0
	for _, p := range paths {
		vars, err := godotenv.Read(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return set, fmt.Errorf("failed to load %s: %w", p, err)
		}
		for key, val := range vars {
			if val == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			if err := os.Setenv(key, val); err != nil {
				return set, fmt.Errorf("failed to set %s from %s: %w", key, p, err)
			}
			set++
		}
	}
	return set, nil
}

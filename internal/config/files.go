// this package resolves where a partition's segment files live by default
// when the driver isn't given an explicit directory
package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir resolves the directory a partition's segment files live
// in when none is given explicitly: $CONFIG_DIR/data if set, else
// ~/.partlog/data.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "data"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".partlog", "data"), nil
}

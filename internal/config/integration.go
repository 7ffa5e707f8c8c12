package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// File and directory names under the configuration directory.
const (
	configFileName = "config.yaml"
	stateDirName   = "batches"
	databaseName   = "content.db"
	logFileName    = "bulkops.log"
)

// GetConfigDir returns the bulkops configuration directory: $BULKOPS_HOME when
// set, ~/.bulkops otherwise.
func GetConfigDir() (string, error) {
	if home := os.Getenv("BULKOPS_HOME"); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".bulkops"), nil
}

// EnsureConfigDir creates the configuration directory.
func EnsureConfigDir() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// DefaultPath is the configuration file read when --config is not given.
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// inConfigDir joins name onto the configuration directory, or returns name
// unchanged when the directory cannot be determined.
func inConfigDir(name string) string {
	dir, err := GetConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

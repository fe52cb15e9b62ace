// Package config resolves cloudgate's config directory and opens the
// persisted settings/token store. It is the ambient configuration layer
// spec.md §6 describes: a single file holding auth tokens and the
// public-network toggle.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Dir resolves the configuration directory following spec.md §6:
// XDG_CONFIG_HOME (Unix), %LOCALAPPDATA% (Windows), falling back to
// HOME. This generalizes the teacher's getConfigDir (which only ever
// checked a repo-local ".cloudfs" then $HOME) to the full environment
// resolution the spec requires.
func Dir() string {
	if d := os.Getenv("CLOUDGATE_CONFIG_DIR"); d != "" {
		return d
	}
	if runtime.GOOS == "windows" {
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, "cloudgate")
		}
	}
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, "cloudgate")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "cloudgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cloudgate"
	}
	return filepath.Join(home, ".config", "cloudgate")
}

// DBPath returns the path to the settings/token SQLite database inside
// Dir(), creating the directory if needed.
func DBPath() (string, error) {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "cloudgate.db"), nil
}

// Passphrase returns the optional SQLCipher passphrase from the
// environment. An empty passphrase means the store is unencrypted,
// matching the teacher's "encrypted if a passphrase is present"
// behavior.
func Passphrase() string {
	return os.Getenv("CLOUDGATE_PASSPHRASE")
}

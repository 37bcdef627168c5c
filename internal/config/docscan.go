// Package config provides configuration helpers for go-docscan commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default service configuration.
const (
	DefaultListenAddr = ":8090"
	DefaultSpoolDir   = "/var/spool/docscan"
	DefaultDataDir    = "data/documents"
)

// ListenAddr returns the HTTP listen address from DOCSCAN_ADDR.
// Falls back to the default if not set.
func ListenAddr() string {
	if addr := os.Getenv("DOCSCAN_ADDR"); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// SpoolDir returns the frame spool directory from DOCSCAN_SPOOL_DIR.
// Falls back to the provided default if not set.
func SpoolDir(defaultDir string) string {
	if dir := os.Getenv("DOCSCAN_SPOOL_DIR"); dir != "" {
		return dir
	}
	return defaultDir
}

// DataDir returns the captured-document directory from DOCSCAN_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv("DOCSCAN_DATA_DIR"); dir != "" {
		return dir
	}
	return DefaultDataDir
}

// LogLevel returns the log level from DOCSCAN_LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("DOCSCAN_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// SignalURL returns the WebRTC signalling URL from DOCSCAN_SIGNAL_URL.
// Panics if not set; only commands that use a remote camera call this.
func SignalURL() string {
	url := os.Getenv("DOCSCAN_SIGNAL_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: DOCSCAN_SIGNAL_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: DOCSCAN_SIGNAL_URL=ws://192.168.68.80:8080/ws go run ./cmd/...")
		os.Exit(1)
	}
	return url
}

// GoogleClientID returns the OAuth client ID from GOOGLE_CLIENT_ID.
func GoogleClientID() string {
	return os.Getenv("GOOGLE_CLIENT_ID")
}

// GoogleClientSecret returns the OAuth client secret from GOOGLE_CLIENT_SECRET.
func GoogleClientSecret() string {
	return os.Getenv("GOOGLE_CLIENT_SECRET")
}

// TokenPath returns the on-disk location of the cached Google OAuth token.
func TokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docscan/google_token.json"
	}
	return filepath.Join(home, ".docscan", "google_token.json")
}

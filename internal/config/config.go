package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pashusagar/pashusagar-cli/pkg/logger"
)

type Config struct {
	// ServerURL is the base URL of the PashuSagar REST API.
	ServerURL string
	// SocketURL is the base URL for the live messaging connection. Derived
	// from ServerURL when not set explicitly.
	SocketURL string

	// Home is the directory where the CLI stores local state.
	Home string
	// AccessKey is the path to the access token file.
	AccessKey string
	// WatermarksPath is the path to the read-watermark file.
	WatermarksPath string

	// Debug enables verbose logging.
	Debug bool
	// LogLevel is the logger threshold.
	LogLevel logger.Level

	// PushoverToken and PushoverUser enable push notifications for inbound
	// messages when both are set.
	PushoverToken string
	PushoverUser  string
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	home := os.Getenv("PASHUSAGAR_HOME_DIR")
	if home == "" {
		home = filepath.Join(homeDir, ".pashusagar")
	}

	if err := os.MkdirAll(home, 0700); err != nil {
		return nil, fmt.Errorf("failed to create pashusagar home: %w", err)
	}

	serverURL := os.Getenv("PASHUSAGAR_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://127.0.0.1:8000"
	}
	serverURL = strings.TrimRight(serverURL, "/")

	socketURL := os.Getenv("PASHUSAGAR_SOCKET_URL")
	if socketURL == "" {
		socketURL = DeriveSocketURL(serverURL)
	}
	socketURL = strings.TrimRight(socketURL, "/")

	debug := os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"
	if !debug {
		debug = os.Getenv("PASHUSAGAR_DEBUG") == "true" || os.Getenv("PASHUSAGAR_DEBUG") == "1"
	}

	level := logger.LevelInfo
	if raw := os.Getenv("PASHUSAGAR_LOG_LEVEL"); raw != "" {
		level, err = logger.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PASHUSAGAR_LOG_LEVEL: %w", err)
		}
	}
	if debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}

	return &Config{
		ServerURL:      serverURL,
		SocketURL:      socketURL,
		Home:           home,
		AccessKey:      filepath.Join(home, "access.key"),
		WatermarksPath: filepath.Join(home, "read_watermarks.json"),
		Debug:          debug,
		LogLevel:       level,
		PushoverToken:  os.Getenv("PASHUSAGAR_PUSHOVER_TOKEN"),
		PushoverUser:   os.Getenv("PASHUSAGAR_PUSHOVER_USER"),
	}, nil
}

// DeriveSocketURL maps an http(s) API origin to its ws(s) counterpart.
func DeriveSocketURL(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://")
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://")
	default:
		return "ws://" + serverURL
	}
}

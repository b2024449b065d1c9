// Package config loads and validates application configuration from
// environment variables, with an optional .env file autoload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the Trainboard client.
// Values are populated by Load from environment variables.
type Config struct {
	// APIBaseURL is the backend base URL including the API prefix,
	// e.g. "http://localhost:8000/api/v1". Required.
	APIBaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// TokenFile is where the session (token + decoded permissions) is
	// persisted between runs. Defaults to
	// $XDG_CONFIG_HOME/trainboard/session.json.
	TokenFile string

	// PollInterval is the delay between task status polls. Defaults to 1s.
	PollInterval time.Duration

	// PollMaxAttempts caps the number of status polls before a lookup is
	// treated as timed out. Defaults to 30.
	PollMaxAttempts int

	// HTTPTimeout is the per-request transport timeout. It does not bound a
	// whole polling run; that ceiling is PollInterval × PollMaxAttempts.
	// Defaults to 15s.
	HTTPTimeout time.Duration

	// DedupeInFlight collapses concurrent lookups for the same route into a
	// single network request when true. Off by default: two simultaneous
	// uncached lookups for one route both hit the network and the last
	// response wins.
	DedupeInFlight bool
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first if present, without
// overriding variables already set in the environment.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	_ = godotenv.Load() // best effort; absence is not an error

	cfg := Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		TokenFile: getEnv("TOKEN_FILE", defaultTokenFile()),
	}

	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollMaxAttempts, err = getInt("POLL_MAX_ATTEMPTS", 30); err != nil {
		return Config{}, err
	}
	if cfg.DedupeInFlight, err = getBool("DEDUPE_IN_FLIGHT", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultTokenFile returns the per-user session file location, preferring
// XDG_CONFIG_HOME and falling back to ~/.config.
func defaultTokenFile() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "session.json"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "trainboard", "session.json")
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

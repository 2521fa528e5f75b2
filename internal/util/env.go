// Package util provides environment variable parsing and identifier helpers shared across components.
package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var errNonPositive = errors.New("must be positive")

// envOr reads key and converts it with parse. Unset or blank variables yield
// def silently; unparsable ones yield def with a warning naming the key.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		slog.Warn("Config ignoring invalid environment value", "key", key, "value", raw, "error", err, "default", def)
		return def
	}
	return v
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// parsePositiveDuration accepts Go durations ("90s", "12h") or a bare number
// of seconds.
func parsePositiveDuration(s string) (time.Duration, error) {
	var d time.Duration
	if secs, err := strconv.Atoi(s); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errNonPositive
	}
	return d, nil
}

// ParseBoolEnv reads true/1/yes/on or false/0/no/off, case-insensitively.
func ParseBoolEnv(key string, defaultValue bool) bool {
	return envOr(key, defaultValue, parseBool)
}

// ParseDurationEnv reads a positive duration; see parsePositiveDuration.
func ParseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	return envOr(key, defaultValue, parsePositiveDuration)
}

// ParseIntEnv reads a base-10 integer.
func ParseIntEnv(key string, defaultValue int) int {
	return envOr(key, defaultValue, strconv.Atoi)
}

package config

import (
	"fmt"
	"strings"
	"time"
)

// durationFields lists every duration-valued setting by its config path.
func durationFields(cfg *Config) map[string]string {
	return map[string]string{
		"fetch.timeout":        cfg.Fetch.Timeout,
		"telegram.timeout":     cfg.Telegram.Timeout,
		"x.timeout":            cfg.X.Timeout,
		"sheet.timeout":        cfg.Sheet.Timeout,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
	}
}

// parseDuration reads a non-negative Go duration. Blank means zero.
func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault returns def when raw is blank or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

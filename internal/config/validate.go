package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the values Parse cannot enforce through decoding alone.
// It does not check the schedule expression; the scheduler owns that grammar.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	for path, raw := range durationFields(cfg) {
		if _, err := parseDuration(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if err := checkURL("firmware.url", cfg.Firmware.URL); err != nil {
		errs = append(errs, err)
	}
	for i, c := range cfg.Shop.Categories {
		if err := checkURL(fmt.Sprintf("shop.categories[%d]", i), c); err != nil {
			errs = append(errs, err)
		}
	}

	r := cfg.Firmware.Rules
	if r.MaxLen < 0 || r.MinCells < 0 || r.PendingColumn < 0 {
		errs = append(errs, errors.New("firmware.rules: values must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}
	return errors.Join(errs...)
}

func checkURL(path, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: absolute http(s) url required, got %q", path, raw)
	}
	return nil
}

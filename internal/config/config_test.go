package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestParseMissingFileUsesDefaults(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.json"))
	m.SetEnvLookup(noEnv)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Firmware.URL != DefaultFirmwareURL {
		t.Fatalf("firmware url=%q", cfg.Firmware.URL)
	}
	if cfg.Firmware.WaveThreshold != DefaultWaveThreshold {
		t.Fatalf("threshold=%d", cfg.Firmware.WaveThreshold)
	}
	if len(cfg.Shop.Categories) != 4 {
		t.Fatalf("categories=%v", cfg.Shop.Categories)
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Fatalf("storage path=%q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, "c.json", `{"firmware":{"url":"https://x.test","treshold":5}}`)
	m := NewConfigManager(p)
	m.SetEnvLookup(noEnv)
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "treshold") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	p := writeFile(t, "c.json", `{"schedule":"15m"}{"schedule":"1h"}`)
	m := NewConfigManager(p)
	m.SetEnvLookup(noEnv)
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestParseYAML(t *testing.T) {
	p := writeFile(t, "c.yaml", `
schedule: "@every 10m"
firmware:
  url: https://fw.test/firmware.php
  wave_threshold: 8
  rules:
    pending_column: 4
shop:
  categories: []
storage:
  driver: file
  path: /tmp/fw/memory.json
`)
	m := NewConfigManager(p)
	m.SetEnvLookup(noEnv)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Schedule != "@every 10m" || cfg.Firmware.WaveThreshold != 8 || cfg.Firmware.Rules.PendingColumn != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Shop.Categories == nil || len(cfg.Shop.Categories) != 0 {
		t.Fatalf("explicit empty categories must stay empty, got %v", cfg.Shop.Categories)
	}
}

func TestEnvOverlay(t *testing.T) {
	p := writeFile(t, "c.json", `{"telegram":{"token":"from-file","chat_id":"1"}}`)
	env := map[string]string{
		EnvTelegramToken:      "from-env",
		EnvChatID:             "  ",
		EnvSheetWebhookURL:    "https://sheet.test/hook",
		EnvXAPIKey:            "k",
		EnvXAccessTokenSecret: "ts",
	}
	m := NewConfigManager(p)
	m.SetEnvLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token=%q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != "1" {
		t.Fatalf("blank env must not clear chat id, got %q", cfg.Telegram.ChatID)
	}
	if cfg.Sheet.WebhookURL != "https://sheet.test/hook" || cfg.X.APIKey != "k" || cfg.X.AccessTokenSecret != "ts" {
		t.Fatalf("unexpected overlay: %+v %+v", cfg.Sheet, cfg.X)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env must be ignored: %v", err)
	}
	p := writeFile(t, ".env", "FLEETWATCH_TEST_DOTENV=hello\n")
	t.Setenv("FLEETWATCH_TEST_DOTENV", "")
	os.Unsetenv("FLEETWATCH_TEST_DOTENV")
	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FLEETWATCH_TEST_DOTENV"); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"bad duration", func(c *Config) { c.Fetch.Timeout = "soon" }, "fetch.timeout"},
		{"negative duration", func(c *Config) { c.X.Timeout = "-1s" }, "x.timeout"},
		{"relative url", func(c *Config) { c.Firmware.URL = "/firmware.php" }, "firmware.url"},
		{"bad category", func(c *Config) { c.Shop.Categories = []string{"ftp://x"} }, "shop.categories[0]"},
		{"driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"rules", func(c *Config) { c.Firmware.Rules.PendingColumn = -1 }, "firmware.rules"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 20*time.Second)
	if err != nil || d != 20*time.Second {
		t.Fatalf("d=%v err=%v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "1500ms", 20*time.Second)
	if err != nil || d != 1500*time.Millisecond {
		t.Fatalf("d=%v err=%v", d, err)
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	oldCfg := Default()
	newCfg := Default()
	newCfg.Telegram.Token = "super-secret"
	newCfg.Schedule = "30m"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "schedule,telegram" {
		t.Fatalf("changed=%v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}

	changed, _ = SummarizeConfigChange(Default(), Default())
	if len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}
}

func TestReloadSkipsUnchangedAndPublishesChanges(t *testing.T) {
	p := writeFile(t, "c.json", `{"schedule":"15m"}`)
	m := NewConfigManager(p)
	m.SetEnvLookup(noEnv)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.reload(testContext(t))
	select {
	case <-ch:
		t.Fatalf("unchanged config must not be published")
	default:
	}

	if err := os.WriteFile(p, []byte(`{"schedule":"30m"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload(testContext(t))
	select {
	case cfg := <-ch:
		if cfg.Schedule != "30m" {
			t.Fatalf("schedule=%q", cfg.Schedule)
		}
	default:
		t.Fatalf("changed config was not published")
	}
	// Committed: a second reload of the same content publishes nothing.
	m.reload(testContext(t))
	select {
	case <-ch:
		t.Fatalf("committed config published twice")
	default:
	}
}

// testContext stands in for testing.T.Context (Go 1.24+): the returned
// context is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

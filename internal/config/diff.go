package config

import (
	"reflect"
	"sort"
	"strings"

	logx "fleetwatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured fields for logging. Secrets are reported only as "_set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) ||
		strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule", strings.TrimSpace(newCfg.Schedule)),
			logx.String("timezone", strings.TrimSpace(newCfg.Timezone)),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)),
		)
	}

	if oldCfg.Fetch != newCfg.Fetch {
		changed = append(changed, "fetch")
		attrs = append(attrs, logx.String("fetch.timeout", newCfg.Fetch.Timeout))
	}

	if oldCfg.Firmware != newCfg.Firmware {
		changed = append(changed, "firmware")
		attrs = append(attrs,
			logx.String("firmware.url", newCfg.Firmware.URL),
			logx.Int("firmware.wave_threshold", newCfg.Firmware.WaveThreshold),
		)
	}

	if !reflect.DeepEqual(oldCfg.Shop, newCfg.Shop) {
		changed = append(changed, "shop")
		attrs = append(attrs, logx.Int("shop.categories", len(newCfg.Shop.Categories)))
	}

	// Channels: only presence of credentials is logged.
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Bool("telegram.chat_id_set", strings.TrimSpace(newCfg.Telegram.ChatID) != ""),
		)
	}
	if oldCfg.X != newCfg.X {
		changed = append(changed, "x")
		attrs = append(attrs, logx.Bool("x.credentials_set",
			newCfg.X.APIKey != "" && newCfg.X.APISecret != "" && newCfg.X.AccessToken != "" && newCfg.X.AccessTokenSecret != ""))
	}
	if oldCfg.Sheet != newCfg.Sheet {
		changed = append(changed, "sheet")
		attrs = append(attrs, logx.Bool("sheet.webhook_set", strings.TrimSpace(newCfg.Sheet.WebhookURL) != ""))
	}

	sort.Strings(changed)
	return changed, attrs
}

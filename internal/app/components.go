package app

import (
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/extract"
	"fleetwatch/internal/fetch"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/storage"
	"fleetwatch/internal/watch"
	logx "fleetwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// channels builds the notification channels in dispatch order.
func channels(cfg *config.Config, log logx.Logger) ([]notify.Channel, error) {
	tgTimeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, notify.DefaultSendTimeout)
	if err != nil {
		return nil, err
	}
	xTimeout, err := config.ParseDurationOrDefault("x.timeout", cfg.X.Timeout, notify.DefaultSendTimeout)
	if err != nil {
		return nil, err
	}
	sheetTimeout, err := config.ParseDurationOrDefault("sheet.timeout", cfg.Sheet.Timeout, notify.DefaultSendTimeout)
	if err != nil {
		return nil, err
	}

	return []notify.Channel{
		notify.NewTelegram(notify.TelegramConfig{
			Token:     cfg.Telegram.Token,
			ChatID:    cfg.Telegram.ChatID,
			APIURL:    cfg.Telegram.APIURL,
			DetailURL: cfg.Firmware.DetailURL,
			Timeout:   tgTimeout,
		}, nil, log),
		notify.NewX(notify.XConfig{
			APIKey:            cfg.X.APIKey,
			APISecret:         cfg.X.APISecret,
			AccessToken:       cfg.X.AccessToken,
			AccessTokenSecret: cfg.X.AccessTokenSecret,
			Endpoint:          cfg.X.Endpoint,
			Timeout:           xTimeout,
		}, nil, log),
		notify.NewSheet(notify.SheetConfig{WebhookURL: cfg.Sheet.WebhookURL, Timeout: sheetTimeout}, nil),
	}, nil
}

func mapWatchConfig(cfg *config.Config) watch.Config {
	r := cfg.Firmware.Rules
	return watch.Config{
		FirmwareURL:   cfg.Firmware.URL,
		WaveThreshold: cfg.Firmware.WaveThreshold,
		BuildRules: extract.BuildRules{
			Prefix:        r.Prefix,
			MaxLen:        r.MaxLen,
			MinCells:      r.MinCells,
			PendingColumn: r.PendingColumn,
		},
		ShopCategories: append([]string(nil), cfg.Shop.Categories...),
		ProductRules: extract.ProductRules{
			Marker:   cfg.Shop.Marker,
			BaseURL:  cfg.Shop.BaseURL,
			Currency: cfg.Shop.Currency,
		},
	}
}

// buildWatcher wires one watcher from cfg around an already opened store.
func buildWatcher(cfg *config.Config, st storage.Store, log logx.Logger) (*watch.Watcher, *notify.Dispatcher, error) {
	fetchTimeout, err := config.ParseDurationOrDefault("fetch.timeout", cfg.Fetch.Timeout, fetch.DefaultTimeout)
	if err != nil {
		return nil, nil, err
	}
	fetcher := fetch.New(fetch.Config{UserAgent: cfg.Fetch.UserAgent, Timeout: fetchTimeout}, nil,
		log.With(logx.String("comp", "fetch")))

	nlog := log.With(logx.String("comp", "notify"))
	chs, err := channels(cfg, nlog)
	if err != nil {
		return nil, nil, err
	}
	d := notify.NewDispatcher(nlog, chs...)
	return watch.New(mapWatchConfig(cfg), fetcher, st, d, log), d, nil
}

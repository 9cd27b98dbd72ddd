package config

import "strings"

const (
	DefaultFirmwareURL   = "https://www.teslafi.com/firmware.php"
	DefaultDetailURL     = "https://www.teslafi.com/firmware.php?detail="
	DefaultShopBaseURL   = "https://shop.tesla.com"
	DefaultStoragePath   = "./memory.json"
	DefaultWaveThreshold = 5
)

// DefaultShopCategories are the catalog pages scanned when none are configured.
var DefaultShopCategories = []string{
	"https://shop.tesla.com/category/charging",
	"https://shop.tesla.com/category/vehicle-accessories",
	"https://shop.tesla.com/category/apparel",
	"https://shop.tesla.com/category/lifestyle",
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills empty fields in place.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
		cfg.Logging.Console = true
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(cfg.Firmware.URL) == "" {
		cfg.Firmware.URL = DefaultFirmwareURL
	}
	if strings.TrimSpace(cfg.Firmware.DetailURL) == "" {
		cfg.Firmware.DetailURL = DefaultDetailURL
	}
	if cfg.Firmware.WaveThreshold <= 0 {
		cfg.Firmware.WaveThreshold = DefaultWaveThreshold
	}
	if cfg.Shop.Categories == nil {
		cfg.Shop.Categories = append([]string(nil), DefaultShopCategories...)
	}
	if strings.TrimSpace(cfg.Shop.BaseURL) == "" {
		cfg.Shop.BaseURL = DefaultShopBaseURL
	}
}

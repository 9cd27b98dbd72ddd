package config

// Config is the on-disk configuration. Secrets are usually left out of the
// file and supplied through the environment (see ApplyEnv).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Schedule enables the long-running mode. Accepted forms: a cron
	// expression, "@every 15m", a bare duration ("15m") or "HH:MM" read as
	// an interval ("00:50" runs every 50 minutes).
	// Empty means a single pass and exit.
	Schedule string `json:"schedule,omitempty"`
	// Timezone for cron and HH:MM schedules (IANA name). Empty means local.
	Timezone string `json:"timezone,omitempty"`

	Storage  StorageConfig  `json:"storage"`
	Fetch    FetchConfig    `json:"fetch"`
	Firmware FirmwareConfig `json:"firmware"`
	Shop     ShopConfig     `json:"shop"`

	Telegram TelegramConfig `json:"telegram"`
	X        XConfig        `json:"x"`
	Sheet    SheetConfig    `json:"sheet"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects where the memory document lives.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./memory.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type FetchConfig struct {
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

type FirmwareConfig struct {
	URL string `json:"url"`
	// DetailURL prefixes the version in chat links.
	DetailURL     string     `json:"detail_url,omitempty"`
	WaveThreshold int        `json:"wave_threshold,omitempty"`
	Rules         BuildRules `json:"rules"`
}

// BuildRules mirrors extract.BuildRules. Zero fields take the built-in
// defaults.
type BuildRules struct {
	Prefix        string `json:"prefix,omitempty"`
	MaxLen        int    `json:"max_len,omitempty"`
	MinCells      int    `json:"min_cells,omitempty"`
	PendingColumn int    `json:"pending_column,omitempty"`
}

type ShopConfig struct {
	// Categories are full category page URLs. Omitted means the default set;
	// an explicit empty list turns the product watcher off.
	Categories []string `json:"categories"`
	BaseURL    string   `json:"base_url,omitempty"`
	Marker     string   `json:"marker,omitempty"`
	Currency   string   `json:"currency,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID string `json:"chat_id,omitempty"`
	// APIURL overrides the Bot API base URL.
	APIURL  string `json:"api_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type XConfig struct {
	APIKey            string `json:"api_key,omitempty"`
	APISecret         string `json:"api_secret,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	AccessTokenSecret string `json:"access_token_secret,omitempty"`
	Endpoint          string `json:"endpoint,omitempty"`
	Timeout           string `json:"timeout,omitempty"`
}

type SheetConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

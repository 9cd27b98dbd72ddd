package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"fleetwatch/internal/model"
	logx "fleetwatch/pkg/logx"
)

const DefaultSendTimeout = 10 * time.Second

// TelegramConfig holds the bot credentials. DetailURL is the base of the
// link added to build messages.
type TelegramConfig struct {
	Token  string
	ChatID string
	// APIURL overrides the Bot API base URL.
	APIURL    string
	DetailURL string
	Timeout   time.Duration
}

// chatRecipient addresses a chat by numeric id or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// Telegram posts Markdown messages through the Bot API sendMessage method.
type Telegram struct {
	cfg TelegramConfig
	bot *tele.Bot
}

// NewTelegram builds the chat channel. Missing token or chat id yields a
// disabled channel and a single error log line.
func NewTelegram(cfg TelegramConfig, hc *http.Client, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.ChatID = strings.TrimSpace(cfg.ChatID)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	t := &Telegram{cfg: cfg}
	if cfg.Token == "" || cfg.ChatID == "" {
		log.Error("telegram disabled: missing token or chat id")
		return t
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	// Offline skips the getMe call; nothing here needs the bot identity.
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  hc,
		Offline: true,
	})
	if err != nil {
		log.Error("telegram disabled: bot init failed", logx.Err(err))
		return t
	}
	t.bot = b
	return t
}

func (t *Telegram) Name() string  { return "telegram" }
func (t *Telegram) Enabled() bool { return t.bot != nil }

func (t *Telegram) Accepts(kind model.EventKind) bool {
	switch kind {
	case model.EventNewBuild, model.EventWave, model.EventNewProduct:
		return true
	default:
		return false
	}
}

func (t *Telegram) Send(ctx context.Context, ev model.Event) error {
	if !t.Enabled() {
		return ErrChannelDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := ChatText(ev, t.cfg.DetailURL)
	_, err := t.bot.Send(chatRecipient(t.cfg.ChatID), text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	return err
}

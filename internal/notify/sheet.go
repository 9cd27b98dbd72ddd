package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleetwatch/internal/model"
)

// SheetConfig points at the spreadsheet webhook.
type SheetConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Sheet posts the version of every new build to a spreadsheet webhook.
// Without a URL it is disabled and silent.
type Sheet struct {
	cfg  SheetConfig
	http *http.Client
}

func NewSheet(cfg SheetConfig, hc *http.Client) *Sheet {
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Sheet{cfg: cfg, http: hc}
}

func (s *Sheet) Name() string                      { return "sheet" }
func (s *Sheet) Enabled() bool                     { return s.cfg.WebhookURL != "" }
func (s *Sheet) Accepts(kind model.EventKind) bool { return kind == model.EventNewBuild }

func (s *Sheet) Send(ctx context.Context, ev model.Event) error {
	if !s.Enabled() {
		return ErrChannelDisabled
	}
	body, err := json.Marshal(map[string]string{"version": ev.Version})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sheet webhook: http=%d", resp.StatusCode)
	}
	return nil
}

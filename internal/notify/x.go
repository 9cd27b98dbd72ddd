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

	"github.com/dghubble/oauth1"

	"fleetwatch/internal/model"
	logx "fleetwatch/pkg/logx"
)

const DefaultXEndpoint = "https://api.twitter.com/2/tweets"

// XConfig holds the four OAuth 1.0a credentials.
type XConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	// Endpoint overrides the post creation URL.
	Endpoint string
	Timeout  time.Duration
}

func (c XConfig) complete() bool {
	for _, v := range []string{c.APIKey, c.APISecret, c.AccessToken, c.AccessTokenSecret} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// X publishes short posts signed with OAuth 1.0a user credentials.
type X struct {
	cfg     XConfig
	http    *http.Client
	enabled bool
}

// NewX builds the microblog channel. hc is the base transport the signing
// client wraps; it may be nil.
func NewX(cfg XConfig, hc *http.Client, log logx.Logger) *X {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultXEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	x := &X{cfg: cfg}
	if !cfg.complete() {
		log.Error("x disabled: missing credentials")
		return x
	}
	ctx := context.Background()
	if hc != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, hc)
	}
	oc := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	x.http = oc.Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret))
	x.enabled = true
	return x
}

func (x *X) Name() string  { return "x" }
func (x *X) Enabled() bool { return x.enabled }

func (x *X) Accepts(kind model.EventKind) bool {
	switch kind {
	case model.EventNewBuild, model.EventWave, model.EventNewProduct:
		return true
	default:
		return false
	}
}

func (x *X) Send(ctx context.Context, ev model.Event) error {
	if !x.enabled {
		return ErrChannelDisabled
	}
	body, err := json.Marshal(map[string]string{"text": PostText(ev)})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := x.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("x post failed: http=%d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

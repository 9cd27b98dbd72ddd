// Package fetch retrieves remote pages with a fixed header set and a bounded
// per-request timeout.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "fleetwatch/pkg/logx"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"
	DefaultTimeout   = 20 * time.Second

	// maxBody caps a single page read.
	maxBody = 16 << 20
)

// ErrStatus is returned for any non-2xx response.
var ErrStatus = errors.New("unexpected http status")

type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Client performs plain GETs. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

// New returns a client. hc may be nil.
func New(cfg Config, hc *http.Client, log logx.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: hc, log: log}
}

// Get returns the body of url. Network errors, timeouts and non-2xx statuses
// are all errors; a 4xx/5xx wraps ErrStatus.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: %w: %d", url, ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	c.log.Debug("fetched",
		logx.String("url", url),
		logx.Int("status", resp.StatusCode),
		logx.Int("bytes", len(body)),
		logx.Duration("took", time.Since(start)),
	)
	return body, nil
}

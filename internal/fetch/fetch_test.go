package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "fleetwatch/pkg/logx"
)

func TestGetSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<table></table>"))
	}))
	defer srv.Close()

	c := New(Config{}, srv.Client(), logx.Nop())
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<table></table>", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestGetNon2xxIsError(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		_, err := New(Config{}, srv.Client(), logx.Nop()).Get(context.Background(), srv.URL)
		srv.Close()
		assert.ErrorIs(t, err, ErrStatus, "status %d", code)
	}
}

func TestGetTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Timeout: 50 * time.Millisecond}, srv.Client(), logx.Nop())
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestGetBadURL(t *testing.T) {
	_, err := New(Config{}, nil, logx.Nop()).Get(context.Background(), "://nope")
	assert.Error(t, err)
}

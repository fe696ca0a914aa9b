package subscription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func newTestFetcher(cfg Config) *Fetcher {
	return NewFetcher(nil, cfg, nil, nil)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com/a.ics", NormalizeURL("webcal://example.com/a.ics"))
	assert.Equal(t, "https://example.com/a.ics", NormalizeURL("WEBCALS://example.com/a.ics"))
	assert.Equal(t, "https://example.com/a.ics", NormalizeURL(" https://example.com/a.ics "))
}

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "text/calendar", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	body, err := newTestFetcher(DefaultConfig()).Fetch(context.Background(), srv.URL+"/cal.ics")
	require.NoError(t, err)
	assert.Equal(t, feed, body)
}

func TestFetcher_FetchRewritesWebcal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	webcal := "webcal://" + strings.TrimPrefix(srv.URL, "http://")
	body, err := newTestFetcher(DefaultConfig()).Fetch(context.Background(), webcal)
	require.NoError(t, err)
	assert.Equal(t, feed, body)
}

func TestFetcher_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(DefaultConfig()).Fetch(context.Background(), srv.URL+"/secret-token/cal.ics")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.NotContains(t, statusErr.Error(), "secret-token")
}

func TestFetcher_FetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("  \r\n"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(DefaultConfig()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestFetcher_FetchBodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxBodySize = 8
	_, err := newTestFetcher(cfg).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetcher_FetchInvalidURL(t *testing.T) {
	_, err := newTestFetcher(DefaultConfig()).Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFetcher_BreakerOpensPerHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Hour
	f := newTestFetcher(cfg)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
	}

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_IdleReadTimeoutTripsBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Hour
	f := newTestFetcher(cfg)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIdleTimeout)
	}

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_CallerCancelDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BreakerFailures = 1
	cfg.BreakerCooldown = time.Hour
	f := newTestFetcher(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(ctx, srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
}

func TestFetcher_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(DefaultConfig())
	assert.True(t, f.Validate(context.Background(), srv.URL+"/ok"))
	assert.False(t, f.Validate(context.Background(), srv.URL+"/missing"))
	assert.False(t, f.Validate(context.Background(), "http://127.0.0.1:0/"))
}

type panickingTransport struct{}

func (panickingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("boom")
}

func TestFetcher_ValidateRecoversPanic(t *testing.T) {
	f := NewFetcher(&http.Client{Transport: panickingTransport{}}, DefaultConfig(), nil, nil)
	assert.False(t, f.Validate(context.Background(), "https://example.com/cal.ics"))
}

// Package subscription downloads remote iCalendar feeds.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

const (
	// UserAgent is sent with every feed request.
	UserAgent = "Synapse-Android/1.0"

	// DefaultTimeout bounds connecting and each wait for response bytes.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps a downloaded feed.
	DefaultMaxBodySize = 16 << 20
)

var (
	// ErrEmptyBody is returned when a feed answers with no content.
	ErrEmptyBody = errors.New("subscription feed returned an empty body")
	// ErrBodyTooLarge is returned when a feed exceeds the configured size.
	ErrBodyTooLarge = errors.New("subscription feed exceeds size limit")
	// ErrCircuitOpen is returned while a host's breaker is open.
	ErrCircuitOpen = errors.New("subscription host temporarily unavailable")
	// ErrIdleTimeout is returned when a feed stops sending its body.
	ErrIdleTimeout = errors.New("subscription feed stalled")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subscription feed %s returned %s", e.URL, e.Status)
}

// Config configures a Fetcher.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// RequestTimeout is the overall bound for one request, body included.
	RequestTimeout time.Duration
	MaxBodySize    int64

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  DefaultTimeout,
		ReadTimeout:     DefaultTimeout,
		RequestTimeout:  2 * time.Minute,
		MaxBodySize:     DefaultMaxBodySize,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}
}

// Fetcher downloads feeds. It holds no per-feed state and is safe for
// concurrent use.
type Fetcher struct {
	client  *http.Client
	config  Config
	logger  *slog.Logger
	metrics observability.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewFetcher creates a fetcher. A nil client gets a transport built from cfg.
func NewFetcher(client *http.Client, cfg Config, logger *slog.Logger, metrics observability.Metrics) *Fetcher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if client == nil {
		client = newHTTPClient(cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Fetcher{
		client:   client,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &http.Client{Transport: transport, Timeout: cfg.RequestTimeout}
}

// NormalizeURL rewrites webcal:// and webcals:// to http:// and https://.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "webcals://"):
		return "https://" + raw[len("webcals://"):]
	case strings.HasPrefix(lower, "webcal://"):
		return "http://" + raw[len("webcal://"):]
	}
	return raw
}

// Fetch downloads the feed at rawURL and returns its text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target := NormalizeURL(rawURL)
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid subscription url %q", rawURL)
	}

	start := time.Now()
	body, err := f.breaker(u.Host).Execute(func() (string, error) {
		return f.get(ctx, target)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s", ErrCircuitOpen, u.Host)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	f.metrics.Timing("subscriptions.fetch.duration", time.Since(start), observability.T("status", status))

	if err != nil {
		f.logger.Warn("subscription fetch failed", "host", u.Host, "error", err)
		return "", err
	}
	f.logger.Debug("subscription fetched", "host", u.Host, "bytes", len(body))
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{URL: redactURL(target), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body := newIdleReader(resp.Body, f.config.ReadTimeout, cancel)
	defer body.stop()

	data, err := io.ReadAll(io.LimitReader(body, f.config.MaxBodySize+1))
	if err != nil {
		if body.expired() {
			return "", fmt.Errorf("failed to read subscription: %w after %s", ErrIdleTimeout, f.config.ReadTimeout)
		}
		return "", fmt.Errorf("failed to read subscription: %w", err)
	}
	if int64(len(data)) > f.config.MaxBodySize {
		return "", ErrBodyTooLarge
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", ErrEmptyBody
	}
	return string(data), nil
}

// Validate reports whether rawURL answers a HEAD request with a 2xx status.
// It never fails; every problem reads as false.
func (f *Fetcher) Validate(ctx context.Context, rawURL string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("subscription validation panicked", "panic", r)
			ok = false
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, NormalizeURL(rawURL), nil)
	if err != nil {
		return false
	}
	setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("subscription validation failed", "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/calendar")
}

// breaker returns the circuit breaker for host, creating it on first use.
// Status, read and idle failures count; caller cancellation does not.
func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker[string] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= f.config.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			if errors.Is(err, ErrIdleTimeout) {
				return false
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Info("subscription circuit breaker state changed",
				"host", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	f.breakers[host] = cb
	return cb
}

// redactURL keeps scheme and host; feed paths often embed private tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}

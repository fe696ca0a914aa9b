// Package httpapi talks to the remote chat service over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/Owl23007/synapse-android-sub000/internal/chat/domain"
)

var (
	// ErrEndpointRequired is returned when no endpoint is configured.
	ErrEndpointRequired = errors.New("chat endpoint is required")
	// ErrUnavailable is returned while the start breaker is open.
	ErrUnavailable = errors.New("chat service temporarily unavailable")
	// ErrMissingTaskID is returned when a start response carries no task id.
	ErrMissingTaskID = errors.New("chat service returned no task id")
)

// APIError is a non-zero envelope code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat service error %d: %s", e.Code, e.Message)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat %s returned %s", e.Op, e.Status)
}

// Config configures a Client.
type Config struct {
	Endpoint string
	Token    string
	Model    string
	// Timeout bounds start and stop requests. The stream is bounded only by
	// the caller's context.
	Timeout time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Model:           "default",
		Timeout:         30 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type startRequest struct {
	Messages []domain.Message `json:"messages"`
	Model    string           `json:"model,omitempty"`
}

type startData struct {
	TaskID string `json:"taskId"`
}

// Client implements the chat pipeline's ChatAPI.
type Client struct {
	endpoint string
	model    string
	timeout  time.Duration
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *slog.Logger
}

// NewClient creates a client. base supplies the transport; nil means
// http.DefaultTransport. A non-empty token is sent as a bearer token.
func NewClient(cfg Config, base http.RoundTripper, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid chat endpoint: %w", err)
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaults.BreakerCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	if base == nil {
		base = http.DefaultTransport
	}

	transport := base
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   base,
		}
	}

	c := &Client{
		endpoint: endpoint,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		http:     &http.Client{Transport: transport},
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "chat",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.Is(err, context.Canceled) || errors.As(err, &apiErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("chat circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// StartChat submits messages and returns the task id.
func (c *Client) StartChat(ctx context.Context, messages []domain.Message) (string, error) {
	taskID, err := c.breaker.Execute(func() (string, error) {
		return c.start(ctx, messages)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrUnavailable
	}
	return taskID, err
}

func (c *Client) start(ctx context.Context, messages []domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(startRequest{Messages: messages, Model: c.model})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send chat request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("start", resp); err != nil {
		return "", err
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if env.Code != 0 {
		return "", &APIError{Code: env.Code, Message: env.Message}
	}
	var data startData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", fmt.Errorf("failed to decode chat response: %w", err)
		}
	}
	if data.TaskID == "" {
		return "", ErrMissingTaskID
	}
	return data.TaskID, nil
}

// OpenStream returns the event stream body for taskID. The caller closes it.
func (c *Client) OpenStream(ctx context.Context, taskID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.taskURL(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat stream: %w", err)
	}
	if err := checkStatus("stream", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// StopChat ends taskID on the server.
func (c *Client) StopChat(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.taskURL(taskID), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to stop chat: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus("stop", resp)
}

func (c *Client) taskURL(taskID string) string {
	return c.endpoint + "/chat/" + url.PathEscape(taskID)
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
}

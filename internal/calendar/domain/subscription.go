package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"

	sharedDomain "github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
)

// DefaultSyncInterval is how often a subscription is refreshed when no
// interval is given.
const DefaultSyncInterval = 24 * time.Hour

var (
	ErrEmptySubscriptionName  = errors.New("subscription name cannot be empty")
	ErrInvalidSubscriptionURL = errors.New("subscription URL must be an http, https or webcal URL")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrDuplicateSubscription  = errors.New("a subscription with this URL already exists")
)

// Subscription is a remote iCalendar feed mirrored into local schedules.
type Subscription struct {
	sharedDomain.BaseEntity
	name         string
	url          string
	color        string
	syncInterval time.Duration
	isEnabled    bool
	lastSyncAt   *time.Time
}

// NewSubscription validates and normalizes a new, enabled subscription.
func NewSubscription(name, rawURL, color string, syncInterval time.Duration) (*Subscription, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptySubscriptionName
	}
	normalized, err := NormalizeSubscriptionURL(rawURL)
	if err != nil {
		return nil, err
	}
	if syncInterval <= 0 {
		syncInterval = DefaultSyncInterval
	}
	return &Subscription{
		BaseEntity:   sharedDomain.NewBaseEntity(),
		name:         strings.TrimSpace(name),
		url:          normalized,
		color:        color,
		syncInterval: syncInterval,
		isEnabled:    true,
	}, nil
}

// RehydrateSubscription rebuilds a persisted subscription.
func RehydrateSubscription(
	id, name, rawURL, color string,
	syncInterval time.Duration,
	isEnabled bool,
	lastSyncAt *time.Time,
	createdAt time.Time,
) *Subscription {
	if syncInterval <= 0 {
		syncInterval = DefaultSyncInterval
	}
	return &Subscription{
		BaseEntity:   sharedDomain.RehydrateBaseEntity(id, createdAt, createdAt),
		name:         name,
		url:          rawURL,
		color:        color,
		syncInterval: syncInterval,
		isEnabled:    isEnabled,
		lastSyncAt:   lastSyncAt,
	}
}

// NormalizeSubscriptionURL trims the URL and checks it is absolute with a
// supported scheme. webcal:// is kept; the fetcher rewrites it per request.
func NormalizeSubscriptionURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidSubscriptionURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal", "webcals":
		return raw, nil
	default:
		return "", ErrInvalidSubscriptionURL
	}
}

func (s *Subscription) Name() string                { return s.name }
func (s *Subscription) URL() string                 { return s.url }
func (s *Subscription) Color() string               { return s.color }
func (s *Subscription) SyncInterval() time.Duration { return s.syncInterval }
func (s *Subscription) IsEnabled() bool             { return s.isEnabled }

// LastSyncAt returns the last successful sync time, nil when never synced.
func (s *Subscription) LastSyncAt() *time.Time {
	if s.lastSyncAt == nil {
		return nil
	}
	t := *s.lastSyncAt
	return &t
}

// MarkSynced records a successful sync.
func (s *Subscription) MarkSynced(now time.Time) {
	t := now.UTC().Truncate(time.Millisecond)
	s.lastSyncAt = &t
	s.Touch()
}

// Enable turns syncing on.
func (s *Subscription) Enable() {
	s.isEnabled = true
	s.Touch()
}

// Disable turns syncing off; schedules already synced are kept.
func (s *Subscription) Disable() {
	s.isEnabled = false
	s.Touch()
}

// IsDue reports whether an enabled subscription should be synced at now.
func (s *Subscription) IsDue(now time.Time) bool {
	if !s.isEnabled {
		return false
	}
	if s.lastSyncAt == nil {
		return true
	}
	return now.Sub(*s.lastSyncAt) >= s.syncInterval
}

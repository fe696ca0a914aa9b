// Package icalendar converts schedules to and from RFC 5545 documents.
package icalendar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// ProductID identifies documents written by this codec.
const ProductID = "-//Synapse Android//Schedule Manager//EN"

// EmptyCalendar is the document exported when there is nothing to export.
const EmptyCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:" + ProductID + "\r\n" +
	"END:VCALENDAR\r\n"

var (
	// ErrEmptyDocument is returned by Decode for blank input.
	ErrEmptyDocument = errors.New("icalendar: empty document")
	// ErrMalformedDocument is returned when the text cannot be tokenised.
	ErrMalformedDocument = errors.New("icalendar: malformed document")
)

// Codec encodes and decodes schedules. It is stateless apart from its
// configuration and safe for concurrent use.
type Codec struct {
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the clock used for DTSTAMP and missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec. loc is the zone for floating and date-only
// values and for events without a usable TZID; nil means UTC.
func NewCodec(loc *time.Location, logger *slog.Logger, opts ...Option) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Codec{loc: loc, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the codec's default zone.
func (c *Codec) Location() *time.Location { return c.loc }

// Encode writes one VCALENDAR holding a VEVENT per schedule.
func (c *Codec) Encode(schedules []*domain.Schedule) (string, error) {
	if len(schedules) == 0 {
		return EmptyCalendar, nil
	}

	cal := NewCalendar()
	stamp := c.now().UTC()
	for _, s := range schedules {
		cal.Children = append(cal.Children, EventFromSchedule(s, stamp).Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// NewCalendar returns an empty VCALENDAR carrying VERSION and PRODID.
func NewCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	return cal
}

// Decode reads every VCALENDAR in text and maps each VEVENT to a schedule
// owned by calendarID. A non-empty subscriptionID is stamped on every
// schedule. Events that cannot be mapped are logged and skipped; only a
// document that cannot be tokenised at all is an error.
func (c *Codec) Decode(text, calendarID, subscriptionID string) ([]*domain.Schedule, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	events, err := c.tokenize(text)
	if err != nil {
		return nil, err
	}

	schedules := make([]*domain.Schedule, 0, len(events))
	for _, event := range events {
		s, err := c.ScheduleFromEvent(event, calendarID, subscriptionID)
		if err != nil {
			c.logger.Warn("skipping invalid event",
				"uid", propValue(event, ical.PropUID),
				"error", err,
			)
			continue
		}
		schedules = append(schedules, s)
	}

	c.logger.Debug("decoded calendar",
		"events", len(events),
		"schedules", len(schedules),
		"subscription_id", subscriptionID,
	)
	return schedules, nil
}

// tokenize returns the VEVENT components of every calendar in text. The
// strict decoder runs first; feeds it rejects go through the lenient parser.
func (c *Codec) tokenize(text string) ([]*ical.Component, error) {
	events, strictErr := strictEvents(text)
	if strictErr == nil {
		return events, nil
	}

	events, lenientErr := lenientEvents(text)
	if lenientErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, strictErr)
	}
	c.logger.Debug("strict decode failed, used lenient parser", "error", strictErr)
	return events, nil
}

func strictEvents(text string) ([]*ical.Component, error) {
	dec := ical.NewDecoder(strings.NewReader(text))

	var events []*ical.Component
	calendars := 0
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		calendars++
		for _, child := range cal.Children {
			if child.Name == ical.CompEvent {
				events = append(events, child)
			}
		}
	}
	if calendars == 0 {
		return nil, errors.New("no VCALENDAR found")
	}
	return events, nil
}

// Package domain models reminders armed for schedules.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// DefaultMessage is shown when a schedule has no location.
const DefaultMessage = "Starting soon"

// ErrExactAlarmDenied is returned by an AlarmService when the platform
// refuses an exact timer. Callers degrade to the inexact tier.
var ErrExactAlarmDenied = errors.New("exact alarms are not permitted")

// Tier is the class of timer a reminder is registered with.
type Tier string

const (
	// TierClockAlarm wakes the device and takes over the lock screen.
	TierClockAlarm Tier = "clock_alarm"
	// TierExactIdleBypass fires on the minute as a passive notification.
	TierExactIdleBypass Tier = "exact_idle_bypass"
	// TierInexactIdleBypass is best-effort on time.
	TierInexactIdleBypass Tier = "inexact_idle_bypass"
)

func (t Tier) String() string { return string(t) }

// IsExact reports whether the tier needs exact-alarm permission.
func (t Tier) IsExact() bool {
	return t == TierClockAlarm || t == TierExactIdleBypass
}

// SelectTier picks the preferred tier for the given capability.
func SelectTier(exactAllowed, isAlarm bool) Tier {
	switch {
	case exactAllowed && isAlarm:
		return TierClockAlarm
	case exactAllowed:
		return TierExactIdleBypass
	default:
		return TierInexactIdleBypass
	}
}

// State is the lifecycle of one (schedule, offset) reminder.
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateArmed       State = "armed"
	StateFired       State = "fired"
	StateCancelled   State = "cancelled"
)

// Handle identifies the timer for one (schedule, offset) pair. Arming the
// same pair twice yields the same handle, so the second registration
// replaces the first.
type Handle struct {
	Key  string `json:"key"`
	Code uint32 `json:"code"`
}

// NewHandle derives the handle for scheduleID and minutes.
func NewHandle(scheduleID string, minutes int) Handle {
	composite := scheduleID + "_" + strconv.Itoa(minutes)
	h := fnv.New32a()
	_, _ = h.Write([]byte(composite))
	return Handle{
		Key:  "REMINDER_" + composite,
		Code: h.Sum32(),
	}
}

// ParseHandleKey splits a key produced by NewHandle.
func ParseHandleKey(key string) (scheduleID string, minutes int, err error) {
	rest, ok := strings.CutPrefix(key, "REMINDER_")
	if !ok {
		return "", 0, fmt.Errorf("invalid reminder key %q", key)
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid reminder key %q", key)
	}
	minutes, err = strconv.Atoi(rest[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid reminder key %q: %w", key, err)
	}
	return rest[:i], minutes, nil
}

func (h Handle) String() string { return h.Key }

// Alarm is what a timer carries to the receiver when it fires.
type Alarm struct {
	Handle     Handle    `json:"handle"`
	ScheduleID string    `json:"schedule_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	TriggerAt  time.Time `json:"trigger_at"`
	Tier       Tier      `json:"tier"`
	Minutes    int       `json:"minutes"`
}

// NewAlarm builds the alarm for one reminder offset. An empty location
// becomes DefaultMessage.
func NewAlarm(scheduleID, title, location string, triggerAt time.Time, minutes int, tier Tier) Alarm {
	message := strings.TrimSpace(location)
	if message == "" {
		message = DefaultMessage
	}
	return Alarm{
		Handle:     NewHandle(scheduleID, minutes),
		ScheduleID: scheduleID,
		Title:      title,
		Message:    message,
		TriggerAt:  triggerAt.UTC(),
		Tier:       tier,
		Minutes:    minutes,
	}
}

// WithTier returns a copy registered under another tier.
func (a Alarm) WithTier(t Tier) Alarm {
	a.Tier = t
	return a
}

// Encode serialises the alarm for stores and event payloads.
func (a Alarm) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// DecodeAlarm reverses Encode.
func DecodeAlarm(data []byte) (Alarm, error) {
	var a Alarm
	if err := json.Unmarshal(data, &a); err != nil {
		return Alarm{}, fmt.Errorf("failed to decode alarm: %w", err)
	}
	if a.Handle.Key == "" {
		return Alarm{}, errors.New("alarm has no handle")
	}
	return a, nil
}

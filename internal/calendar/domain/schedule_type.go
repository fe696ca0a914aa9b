package domain

import (
	"fmt"
	"strings"
)

// ScheduleType classifies a schedule.
type ScheduleType string

const (
	ScheduleTypeMeeting       ScheduleType = "MEETING"
	ScheduleTypePersonal      ScheduleType = "PERSONAL"
	ScheduleTypeWork          ScheduleType = "WORK"
	ScheduleTypeStudy         ScheduleType = "STUDY"
	ScheduleTypeEntertainment ScheduleType = "ENTERTAINMENT"
	ScheduleTypeEvent         ScheduleType = "EVENT"
)

var scheduleTypes = map[ScheduleType]struct {
	display string
	color   string
}{
	ScheduleTypeMeeting:       {"Meeting", "#2196F3"},
	ScheduleTypePersonal:      {"Personal", "#4CAF50"},
	ScheduleTypeWork:          {"Work", "#FF9800"},
	ScheduleTypeStudy:         {"Study", "#9C27B0"},
	ScheduleTypeEntertainment: {"Entertainment", "#E91E63"},
	ScheduleTypeEvent:         {"Event", "#607D8B"},
}

// ParseScheduleType parses a type name case-insensitively.
func ParseScheduleType(s string) (ScheduleType, error) {
	t := ScheduleType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown schedule type %q", s)
	}
	return t, nil
}

func (t ScheduleType) IsValid() bool {
	_, ok := scheduleTypes[t]
	return ok
}

func (t ScheduleType) String() string { return string(t) }

// DisplayName is the human label for the type.
func (t ScheduleType) DisplayName() string { return scheduleTypes[t].display }

// DefaultColor is the hex color used when a schedule has no override.
func (t ScheduleType) DefaultColor() string { return scheduleTypes[t].color }

// ScheduleTypes lists every type in declaration order.
func ScheduleTypes() []ScheduleType {
	return []ScheduleType{
		ScheduleTypeMeeting, ScheduleTypePersonal, ScheduleTypeWork,
		ScheduleTypeStudy, ScheduleTypeEntertainment, ScheduleTypeEvent,
	}
}

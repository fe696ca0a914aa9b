package icalendar

import (
	"strings"

	ics "github.com/arran4/golang-ical"
	"github.com/emersion/go-ical"
)

// lenientEvents parses feeds the strict decoder rejects (bad folding,
// stray lines, missing END) and converts their VEVENTs into go-ical
// components so both paths share one mapping.
func lenientEvents(text string) ([]*ical.Component, error) {
	cal, err := ics.ParseCalendar(strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	var events []*ical.Component
	for _, ve := range cal.Events() {
		comp := ical.NewComponent(ical.CompEvent)
		copyProperties(comp, ve.Properties)
		for _, sub := range ve.Components {
			if alarm, ok := sub.(*ics.VAlarm); ok {
				child := ical.NewComponent(compAlarm)
				copyProperties(child, alarm.Properties)
				comp.Children = append(comp.Children, child)
			}
		}
		events = append(events, comp)
	}
	return events, nil
}

func copyProperties(dst *ical.Component, props []ics.IANAProperty) {
	for _, p := range props {
		prop := ical.NewProp(p.IANAToken)
		prop.Value = p.Value
		for k, v := range p.ICalParameters {
			prop.Params[strings.ToUpper(k)] = append([]string(nil), v...)
		}
		dst.Props.Add(prop)
	}
}

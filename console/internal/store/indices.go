package store

import "strings"

// IndexMapping pairs an alarm-event index prefix with the prefix of the event
// index holding the raw events it references.
type IndexMapping struct {
	AlarmEventPrefix string
	EventPrefix      string
}

// IndexSet names the indices the client queries.
type IndexSet struct {
	Alarms      string
	AlarmEvents string
	Events      string
	Mappings    []IndexMapping
}

// NewIndexSet builds an IndexSet whose single mapping is derived from the
// alarm-event and event patterns.
func NewIndexSet(alarms, alarmEvents, events string) IndexSet {
	return IndexSet{
		Alarms:      alarms,
		AlarmEvents: alarmEvents,
		Events:      events,
		Mappings: []IndexMapping{{
			AlarmEventPrefix: patternPrefix(alarmEvents),
			EventPrefix:      patternPrefix(events),
		}},
	}
}

// DefaultIndexSet is the layout written by the correlation engine.
func DefaultIndexSet() IndexSet {
	return NewIndexSet("siem_alarms", "siem_alarm_events-*", "siem_events-*")
}

// EventIndexFor maps a concrete alarm-event index to its event index, e.g.
// siem_alarm_events-2024.05.01 to siem_events-2024.05.01. Unmapped indices fall
// back to the Events pattern.
func (s IndexSet) EventIndexFor(alarmEventIndex string) string {
	for _, m := range s.Mappings {
		if m.AlarmEventPrefix == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(alarmEventIndex, m.AlarmEventPrefix); ok {
			return m.EventPrefix + suffix
		}
	}
	return s.Events
}

func patternPrefix(pattern string) string {
	return strings.TrimSuffix(strings.TrimSuffix(pattern, "*"), "-")
}

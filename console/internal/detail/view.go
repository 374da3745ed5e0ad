package detail

import (
	"github.com/telhawk-systems/alarm-console/console/internal/models"
)

// Detail is the alarm detail view.
type Detail struct {
	Alarm models.Alarm `json:"alarm"`
	Rules []RuleView   `json:"rules"`

	// Links search the events index for the alarm's addresses.
	SrcIPLinks map[string]string `json:"src_ip_links,omitempty"`
	DstIPLinks map[string]string `json:"dst_ip_links,omitempty"`

	// Stage holds the events of the stage currently shown, if any.
	Stage *StageEvents `json:"stage,omitempty"`
}

// RuleView is a rule with its derived status and a link to its alarm events.
type RuleView struct {
	models.Rule
	DerivedStatus models.RuleStatus `json:"derived_status"`
	Link          string            `json:"link"`
}

// StageEvents are the raw events behind one stage.
type StageEvents struct {
	AlarmID string     `json:"alarm_id"`
	Stage   int        `json:"stage"`
	Total   int        `json:"total"`
	Link    string     `json:"link"`
	Events  []EventRow `json:"events"`
}

// EventRow is an event with field links.
type EventRow struct {
	models.Event
	Links map[string]string `json:"links"`
}

// Rule returns the view of stage, if the alarm has one.
func (d *Detail) Rule(stage int) (RuleView, bool) {
	for _, r := range d.Rules {
		if r.Stage == stage {
			return r, true
		}
	}
	return RuleView{}, false
}

func (l *Loader) build(alarm models.Alarm) *Detail {
	now := l.now()
	d := &Detail{
		Alarm:      alarm,
		Rules:      make([]RuleView, 0, len(alarm.Rules)),
		SrcIPLinks: l.ipLinks(alarm.SrcIPs),
		DstIPLinks: l.ipLinks(alarm.DstIPs),
	}
	for _, r := range alarm.Rules {
		d.Rules = append(d.Rules, RuleView{
			Rule:          r,
			DerivedStatus: models.DeriveStatus(r, now),
			Link:          l.links.CorrelationStage(l.cfg.Indices.AlarmEvents, alarm.ID, r.Stage),
		})
	}
	return d
}

func (l *Loader) ipLinks(ips []string) map[string]string {
	if len(ips) == 0 {
		return nil
	}
	links := make(map[string]string, len(ips))
	for _, ip := range ips {
		links[ip] = l.links.Field(l.cfg.Indices.Events, "", ip)
	}
	return links
}

func (l *Loader) eventRow(ev models.Event) EventRow {
	idx := l.cfg.Indices.Events
	links := map[string]string{
		"event_id": l.links.Field(idx, "event_id", ev.EventID),
	}
	if ev.SrcIP != "" {
		links["src_ip"] = l.links.Field(idx, "src_ip", ev.SrcIP)
	}
	if ev.DstIP != "" {
		links["dst_ip"] = l.links.Field(idx, "dst_ip", ev.DstIP)
	}
	return EventRow{Event: ev, Links: links}
}

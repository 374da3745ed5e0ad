// Package models holds the alarm, rule and event documents the console reads from
// the store, and the projections it derives from them.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RiskClass is an alarm's risk bucket. Unknown values are kept verbatim.
type RiskClass string

const (
	RiskLow      RiskClass = "Low"
	RiskMedium   RiskClass = "Medium"
	RiskHigh     RiskClass = "High"
	RiskCritical RiskClass = "Critical"
)

// ParseRiskClass matches the known classes case-insensitively.
func ParseRiskClass(s string) RiskClass {
	for _, rc := range []RiskClass{RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		if strings.EqualFold(s, string(rc)) {
			return rc
		}
	}
	return RiskClass(s)
}

// UnmarshalJSON normalizes the case of known classes.
func (r *RiskClass) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRiskClass(s)
	return nil
}

// RuleStatus is the lifecycle state of a directive rule.
type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleFinished RuleStatus = "finished"
	RuleInactive RuleStatus = "inactive"
	RuleTimeout  RuleStatus = "timeout"
)

// Rule is one stage of the directive that produced an alarm.
type Rule struct {
	Name        string     `json:"name"`
	Stage       int        `json:"stage"`
	PluginID    int        `json:"plugin_id"`
	PluginSID   []int      `json:"plugin_sid"`
	Occurrence  int        `json:"occurrence"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	PortFrom    string     `json:"port_from"`
	PortTo      string     `json:"port_to"`
	Protocol    string     `json:"protocol,omitempty"`
	Reliability int        `json:"reliability"`
	Timeout     int64      `json:"timeout"`
	StartTime   int64      `json:"start_time,omitempty"`
	EndTime     int64      `json:"end_time,omitempty"`
	Status      RuleStatus `json:"status,omitempty"`

	// EventsCount is resolved by the detail loader and never read from the store.
	EventsCount int `json:"events_count"`
}

// Finished reports whether the rule has matched all its occurrences.
func (r Rule) Finished() bool {
	return r.Status == RuleFinished
}

// DeriveStatus returns the rule's stored status, or infers one from its timing
// when the store has none. A started rule is active however old it is; the
// deadline only decides rules whose start time is not positive.
func DeriveStatus(r Rule, now time.Time) RuleStatus {
	if r.Status != "" {
		return r.Status
	}
	if r.StartTime == 0 {
		return RuleInactive
	}
	if r.StartTime > 0 {
		return RuleActive
	}
	if now.Unix() > r.StartTime+r.Timeout {
		return RuleTimeout
	}
	return RuleInactive
}

// Alarm is a correlated alarm document.
type Alarm struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Kingdom     string    `json:"kingdom"`
	Category    string    `json:"category"`
	RiskClass   RiskClass `json:"risk_class"`
	Risk        int       `json:"risk"`
	Tag         string    `json:"tag"`
	CreatedTime int64     `json:"created_time"`
	UpdateTime  int64     `json:"update_time"`
	Timestamp   string    `json:"timestamp"`
	SrcIPs      []string  `json:"src_ips"`
	DstIPs      []string  `json:"dst_ips"`
	Networks    []string  `json:"networks"`
	Rules       []Rule    `json:"rules"`
	PermIndex   string    `json:"perm_index,omitempty"`

	IntelHits       json.RawMessage `json:"intel_hits,omitempty"`
	Vulnerabilities json.RawMessage `json:"vulnerabilities,omitempty"`
	CustomData      json.RawMessage `json:"custom_data,omitempty"`

	// Index is the concrete index the alarm was read from.
	Index string `json:"index,omitempty"`
}

// AlarmSource is the `_source` of an alarm hit. It differs from Alarm in where
// the id and timestamp live.
type AlarmSource struct {
	Alarm
	AlarmID         string `json:"alarm_id"`
	AtTimestamp     string `json:"@timestamp"`
	SourceTimestamp string `json:"timestamp"`
}

// ToAlarm resolves the document into an Alarm carrying the hit's id and index.
func (s AlarmSource) ToAlarm(docID, index string) Alarm {
	a := s.Alarm
	a.ID = docID
	if a.ID == "" {
		a.ID = s.AlarmID
	}
	a.Timestamp = s.AtTimestamp
	if a.Timestamp == "" {
		a.Timestamp = s.SourceTimestamp
	}
	a.Index = index
	return a
}

// AlarmEvent links a raw event to the alarm stage it contributed to.
type AlarmEvent struct {
	AlarmID   string `json:"alarm_id"`
	Stage     int    `json:"stage"`
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp,omitempty"`

	DocID string `json:"doc_id,omitempty"`
	Index string `json:"index,omitempty"`
}

// Event is a normalized raw event.
type Event struct {
	EventID      string `json:"event_id"`
	Timestamp    string `json:"timestamp"`
	Title        string `json:"title,omitempty"`
	Sensor       string `json:"sensor"`
	PluginID     int    `json:"plugin_id,omitempty"`
	PluginSID    int    `json:"plugin_sid,omitempty"`
	Product      string `json:"product,omitempty"`
	Category     string `json:"category,omitempty"`
	SubCategory  string `json:"subcategory,omitempty"`
	SrcIP        string `json:"src_ip"`
	SrcPort      int    `json:"src_port"`
	DstIP        string `json:"dst_ip"`
	DstPort      int    `json:"dst_port"`
	Protocol     string `json:"protocol"`
	CustomData1  string `json:"custom_data1,omitempty"`
	CustomLabel1 string `json:"custom_label1,omitempty"`
	CustomData2  string `json:"custom_data2,omitempty"`
	CustomLabel2 string `json:"custom_label2,omitempty"`
	CustomData3  string `json:"custom_data3,omitempty"`
	CustomLabel3 string `json:"custom_label3,omitempty"`
}

// TableRow is the alarm list projection.
type TableRow struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Timestamp  string    `json:"timestamp"`
	UpdateTime int64     `json:"update_time"`
	Status     string    `json:"status"`
	RiskClass  RiskClass `json:"risk_class"`
	Tag        string    `json:"tag"`
	SrcIPs     []string  `json:"src_ips"`
	DstIPs     []string  `json:"dst_ips"`
}

func NewTableRow(a Alarm) TableRow {
	return TableRow{
		ID:         a.ID,
		Title:      a.Title,
		Timestamp:  a.Timestamp,
		UpdateTime: a.UpdateTime,
		Status:     a.Status,
		RiskClass:  a.RiskClass,
		Tag:        a.Tag,
		SrcIPs:     a.SrcIPs,
		DstIPs:     a.DstIPs,
	}
}

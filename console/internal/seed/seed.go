// Package seed fills a store with generated alarms, alarm events and events for
// demos and local testing.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
)

// Indexer is satisfied by *store.Client.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs []store.Document) error
}

// Config controls what Run generates.
type Config struct {
	Alarms         int
	Stages         int
	EventsPerStage int
	BatchSize      int
	Indices        store.IndexSet

	// Seed makes the output reproducible when non-zero.
	Seed int64
	Now  func() time.Time
}

// Result counts what was indexed.
type Result struct {
	AlarmIDs    []string `json:"alarm_ids"`
	AlarmEvents int      `json:"alarm_events"`
	Events      int      `json:"events"`
}

var (
	statuses   = []string{"Open", "In-Progress", "Closed"}
	tags       = []string{"Identified Threat", "False Positive", "Valid Threat", "Security Incident"}
	kingdoms   = []string{"Reconnaissance & Probing", "Delivery & Attack", "Exploitation & Installation", "Environmental Awareness"}
	categories = []string{"Misc Activity", "Web Attack", "Brute Force", "Malware Beaconing"}
	protocols  = []string{"TCP", "UDP", "ICMP"}
	sensors    = []string{"suricata", "zeek", "wazuh", "pfsense"}
)

// Runner generates documents and bulk-indexes them in batches.
type Runner struct {
	cfg     Config
	indexer Indexer
	faker   *gofakeit.Faker
	logger  *logging.Logger
}

func NewRunner(cfg Config, indexer Indexer, logger *logging.Logger) *Runner {
	if cfg.Stages <= 0 {
		cfg.Stages = 3
	}
	if cfg.EventsPerStage <= 0 {
		cfg.EventsPerStage = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Indices.Alarms == "" {
		cfg.Indices = store.DefaultIndexSet()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cfg:     cfg,
		indexer: indexer,
		faker:   gofakeit.New(cfg.Seed),
		logger:  logger.Component("seed"),
	}
}

// Run generates cfg.Alarms alarms with their stages and indexes everything.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{AlarmIDs: make([]string, 0, r.cfg.Alarms)}
	batch := make([]store.Document, 0, r.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.indexer.IndexDocuments(ctx, batch); err != nil {
			return fmt.Errorf("index batch: %w", err)
		}
		r.logger.DebugContext(ctx, "batch indexed", logging.Count(len(batch)))
		batch = batch[:0]
		return nil
	}

	for i := 0; i < r.cfg.Alarms; i++ {
		for _, doc := range r.alarm(res) {
			batch = append(batch, doc)
			if len(batch) >= r.cfg.BatchSize {
				if err := flush(); err != nil {
					return res, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	r.logger.InfoContext(ctx, "seeding complete",
		"alarms", len(res.AlarmIDs),
		"alarm_events", res.AlarmEvents,
		"events", res.Events,
	)
	return res, nil
}

// alarm returns the documents of one alarm: its events first, then the alarm.
func (r *Runner) alarm(res *Result) []store.Document {
	f := r.faker
	now := r.cfg.Now().UTC()
	created := f.DateRange(now.Add(-24*time.Hour), now.Add(-time.Hour)).UTC()

	a := models.Alarm{
		ID:          f.UUID(),
		Title:       f.HackerPhrase(),
		Status:      f.RandomString(statuses),
		Kingdom:     f.RandomString(kingdoms),
		Category:    f.RandomString(categories),
		Risk:        f.Number(1, 10),
		Tag:         f.RandomString(tags),
		CreatedTime: created.Unix(),
		UpdateTime:  now.Unix(),
		SrcIPs:      []string{f.IPv4Address()},
		DstIPs:      []string{f.IPv4Address(), f.IPv4Address()},
		Networks:    []string{"10.0.0.0/8"},
	}
	a.RiskClass = models.ParseRiskClass(riskClass(a.Risk))

	alarmEventIndex := dated(r.cfg.Indices.AlarmEvents, now)
	eventIndex := r.cfg.Indices.EventIndexFor(alarmEventIndex)

	var docs []store.Document
	for stage := 1; stage <= r.cfg.Stages; stage++ {
		rule := models.Rule{
			Name:        fmt.Sprintf("%s stage %d", a.Category, stage),
			Stage:       stage,
			PluginID:    f.Number(1000, 1999),
			PluginSID:   []int{f.Number(1, 50000)},
			Occurrence:  r.cfg.EventsPerStage,
			From:        "HOME_NET",
			To:          "ANY",
			PortFrom:    "ANY",
			PortTo:      "ANY",
			Reliability: stage * 2,
			Timeout:     3600,
			StartTime:   created.Unix(),
			Status:      models.RuleFinished,
		}
		if stage == 1 {
			rule.Occurrence = 1
		}
		emitted := rule.Occurrence
		if stage == r.cfg.Stages {
			// the last stage is still collecting
			rule.Status = ""
			rule.StartTime = now.Add(-time.Minute).Unix()
			rule.Occurrence = r.cfg.EventsPerStage * 10
			emitted = f.Number(1, r.cfg.EventsPerStage)
		}
		a.Rules = append(a.Rules, rule)

		for n := 0; n < emitted; n++ {
			ev := r.event(rule, a, created)
			docs = append(docs,
				store.Document{Index: eventIndex, ID: ev.EventID, Body: ev},
				store.Document{Index: alarmEventIndex, Body: models.AlarmEvent{
					AlarmID:   a.ID,
					Stage:     stage,
					EventID:   ev.EventID,
					Timestamp: ev.Timestamp,
				}},
			)
			res.AlarmEvents++
			res.Events++
		}
	}

	ts := now.Format(time.RFC3339)
	docs = append(docs, store.Document{
		Index: r.cfg.Indices.Alarms,
		ID:    a.ID,
		Body:  models.AlarmSource{Alarm: a, AtTimestamp: ts, SourceTimestamp: ts},
	})
	res.AlarmIDs = append(res.AlarmIDs, a.ID)
	return docs
}

func (r *Runner) event(rule models.Rule, a models.Alarm, created time.Time) models.Event {
	f := r.faker
	ts := f.DateRange(created, r.cfg.Now().UTC()).UTC()
	return models.Event{
		EventID:   f.UUID(),
		Timestamp: ts.Format(time.RFC3339),
		Title:     rule.Name,
		Sensor:    f.RandomString(sensors),
		PluginID:  rule.PluginID,
		PluginSID: rule.PluginSID[0],
		Product:   "Intrusion Detection System",
		Category:  a.Category,
		SrcIP:     a.SrcIPs[0],
		SrcPort:   f.Number(1024, 65535),
		DstIP:     f.RandomString(a.DstIPs),
		DstPort:   f.RandomInt([]int{22, 80, 443, 3389, 8080}),
		Protocol:  f.RandomString(protocols),
	}
}

func riskClass(risk int) string {
	switch {
	case risk >= 7:
		return "High"
	case risk >= 3:
		return "Medium"
	default:
		return "Low"
	}
}

// dated turns an index pattern such as siem_events-* into that day's index.
func dated(pattern string, t time.Time) string {
	if !strings.HasSuffix(pattern, "*") {
		return pattern
	}
	return strings.TrimSuffix(pattern, "*") + t.Format("2006.01.02")
}

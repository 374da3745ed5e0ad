package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
)

// AlarmPage is one page of the alarm list.
type AlarmPage struct {
	Alarms []models.Alarm
	Total  int
}

// AlarmEventPage is one page of a stage's alarm events.
type AlarmEventPage struct {
	Events []models.AlarmEvent
	Total  int
}

func (c *Client) search(ctx context.Context, op, index string, query map[string]interface{}) (*searchResponse, error) {
	path, err := c.typedPath(ctx, index, "_search")
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := c.performJSON(ctx, op, http.MethodPost, path, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func decodeAlarms(hits []searchHit) ([]models.Alarm, error) {
	alarms := make([]models.Alarm, 0, len(hits))
	for _, hit := range hits {
		var src models.AlarmSource
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			return nil, fmt.Errorf("decode alarm %s: %w", hit.ID, err)
		}
		alarms = append(alarms, src.ToAlarm(hit.ID, hit.Index))
	}
	return alarms, nil
}

// ListAlarms returns one page of alarms, newest first.
func (c *Client) ListAlarms(ctx context.Context, from, size int) (*AlarmPage, error) {
	query := map[string]interface{}{
		"from":  from,
		"size":  size,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  timestampSort,
	}
	docType, err := c.DocType(ctx)
	if err != nil {
		return nil, err
	}
	if docType == "" {
		query["track_total_hits"] = true
	}

	resp, err := c.search(ctx, "list alarms", c.indices.Alarms, query)
	if err != nil {
		return nil, err
	}

	alarms, err := decodeAlarms(resp.Hits.Hits)
	if err != nil {
		return nil, err
	}
	return &AlarmPage{Alarms: alarms, Total: int(resp.Hits.Total)}, nil
}

// SearchAlarms returns the alarms whose ids are listed, at most MaxResultSize.
func (c *Client) SearchAlarms(ctx context.Context, ids []string) ([]models.Alarm, error) {
	if len(ids) == 0 {
		return []models.Alarm{}, nil
	}
	if len(ids) > MaxResultSize {
		c.logger.DebugContext(ctx, "alarm search truncated", logging.Count(len(ids)))
		ids = ids[:MaxResultSize]
	}

	query := map[string]interface{}{
		"size":  len(ids),
		"query": termsQuery("_id", ids),
		"sort":  timestampSort,
	}

	resp, err := c.search(ctx, "search alarms", c.indices.Alarms, query)
	if err != nil {
		return nil, err
	}
	return decodeAlarms(resp.Hits.Hits)
}

// GetAlarm returns one alarm or ErrAlarmNotFound.
func (c *Client) GetAlarm(ctx context.Context, id string) (*models.Alarm, error) {
	query := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"ids": map[string]interface{}{"values": []string{id}},
		},
	}

	resp, err := c.search(ctx, "get alarm", c.indices.Alarms, query)
	if err != nil {
		return nil, err
	}

	alarms, err := decodeAlarms(resp.Hits.Hits)
	if err != nil {
		return nil, err
	}
	if len(alarms) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
	}
	return &alarms[0], nil
}

// CountCorrelatedEvents counts the alarm events recorded for one stage.
func (c *Client) CountCorrelatedEvents(ctx context.Context, alarmID string, stage int) (int, error) {
	path, err := c.typedPath(ctx, c.indices.AlarmEvents, "_count")
	if err != nil {
		return 0, err
	}

	query := map[string]interface{}{"query": alarmEventsQuery(alarmID, stage)}

	var resp countResponse
	if err := c.performJSON(ctx, "count alarm events", http.MethodPost, path, query, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func decodeAlarmEvents(hits []searchHit) ([]models.AlarmEvent, error) {
	events := make([]models.AlarmEvent, 0, len(hits))
	for _, hit := range hits {
		var ae models.AlarmEvent
		if err := json.Unmarshal(hit.Source, &ae); err != nil {
			return nil, fmt.Errorf("decode alarm event %s: %w", hit.ID, err)
		}
		ae.DocID = hit.ID
		ae.Index = hit.Index
		events = append(events, ae)
	}
	return events, nil
}

// GetAlarmEventsPage returns one page of a stage's alarm events, newest first.
func (c *Client) GetAlarmEventsPage(ctx context.Context, alarmID string, stage, from, size int) (*AlarmEventPage, error) {
	query := map[string]interface{}{
		"from":  from,
		"size":  size,
		"query": alarmEventsQuery(alarmID, stage),
		"sort":  timestampSort,
	}

	resp, err := c.search(ctx, "alarm events page", c.indices.AlarmEvents, query)
	if err != nil {
		return nil, err
	}

	events, err := decodeAlarmEvents(resp.Hits.Hits)
	if err != nil {
		return nil, err
	}
	return &AlarmEventPage{Events: events, Total: int(resp.Hits.Total)}, nil
}

// GetEventsByIDs resolves raw events. Only the first MaxResultSize ids are
// looked up; callers chunk larger sets.
func (c *Client) GetEventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	if len(ids) == 0 {
		return []models.Event{}, nil
	}
	if len(ids) > MaxResultSize {
		c.logger.DebugContext(ctx, "event lookup truncated",
			logging.Count(len(ids)),
			"limit", MaxResultSize,
		)
		ids = ids[:MaxResultSize]
	}

	query := map[string]interface{}{
		"size":  MaxResultSize,
		"query": termsQuery("event_id.keyword", ids),
		"sort":  timestampSort,
	}

	resp, err := c.search(ctx, "get events", c.indices.Events, query)
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var ev models.Event
		if err := json.Unmarshal(hit.Source, &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", hit.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// UpdateAlarmStatus sets the alarm's status with a partial update.
func (c *Client) UpdateAlarmStatus(ctx context.Context, id, status string) error {
	return c.updateAlarm(ctx, "update status", id, map[string]interface{}{"status": status})
}

// UpdateAlarmTag sets the alarm's tag with a partial update.
func (c *Client) UpdateAlarmTag(ctx context.Context, id, tag string) error {
	return c.updateAlarm(ctx, "update tag", id, map[string]interface{}{"tag": tag})
}

func (c *Client) updateAlarm(ctx context.Context, op, id string, doc map[string]interface{}) error {
	docType, err := c.DocType(ctx)
	if err != nil {
		return err
	}

	escaped := url.PathEscape(id)
	path := "/" + c.indices.Alarms + "/_update/" + escaped
	if docType != "" {
		path = "/" + c.indices.Alarms + "/" + docType + "/" + escaped + "/_update"
	}

	var resp updateResponse
	err = c.performJSON(ctx, op, http.MethodPost, path, map[string]interface{}{"doc": doc}, &resp)
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %s", op, ErrAlarmNotFound, id)
		}
		return err
	}

	if resp.Result != "updated" {
		return fmt.Errorf("%s %s: result %q: %w", op, id, resp.Result, ErrUpdateConflict)
	}
	c.logger.InfoContext(ctx, "alarm updated", logging.AlarmID(id), "fields", doc)
	return nil
}

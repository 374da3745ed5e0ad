package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
)

// DeleteReport summarizes a delete cascade.
type DeleteReport struct {
	AlarmID      string `json:"alarm_id"`
	Batches      int    `json:"batches"`
	AlarmEvents  int    `json:"alarm_events"`
	Events       int    `json:"events"`
	AlarmDeleted bool   `json:"alarm_deleted"`
}

// DeleteAlarm removes an alarm together with its alarm events and the raw events
// they reference. Alarm events go first in batches of DeleteBatchSize; the alarm
// document is removed only once none remain. A failure leaves the alarm in place
// and returns a *DeleteError.
func (c *Client) DeleteAlarm(ctx context.Context, id string) (*DeleteReport, error) {
	report := &DeleteReport{AlarmID: id}
	log := c.logger.With(logging.AlarmID(id))

	for {
		resp, err := c.search(ctx, "delete: find alarm events", c.indices.AlarmEvents, map[string]interface{}{
			"size":  DeleteBatchSize,
			"query": termsQuery("alarm_id.keyword", []string{id}),
		})
		if err != nil {
			return report, &DeleteError{AlarmID: id, BatchesRemoved: report.Batches, Err: err}
		}

		batch, err := decodeAlarmEvents(resp.Hits.Hits)
		if err != nil {
			return report, &DeleteError{AlarmID: id, BatchesRemoved: report.Batches, Err: err}
		}
		if len(batch) == 0 {
			break
		}

		if err := c.bulkDeleteAlarmEvents(ctx, batch); err != nil {
			return report, &DeleteError{AlarmID: id, BatchesRemoved: report.Batches, Err: err}
		}
		report.AlarmEvents += len(batch)

		byIndex := make(map[string][]string)
		for _, ae := range batch {
			idx := c.indices.EventIndexFor(ae.Index)
			byIndex[idx] = append(byIndex[idx], ae.EventID)
		}

		indices := make([]string, 0, len(byIndex))
		for idx := range byIndex {
			indices = append(indices, idx)
		}
		sort.Strings(indices)

		for _, idx := range indices {
			deleted, err := c.deleteByQuery(ctx, "delete: events", idx, termsQuery("event_id.keyword", byIndex[idx]))
			if err != nil {
				return report, &DeleteError{AlarmID: id, BatchesRemoved: report.Batches, Err: err}
			}
			report.Events += deleted
		}

		report.Batches++
		log.DebugContext(ctx, "alarm event batch removed", logging.Count(len(batch)), "batch", report.Batches)
	}

	deleted, err := c.deleteByQuery(ctx, "delete: alarm", c.indices.Alarms, map[string]interface{}{
		"ids": map[string]interface{}{"values": []string{id}},
	})
	if err != nil {
		return report, &DeleteError{AlarmID: id, BatchesRemoved: report.Batches, Err: err}
	}
	report.AlarmDeleted = deleted > 0

	log.InfoContext(ctx, "alarm deleted",
		"batches", report.Batches,
		"alarm_events", report.AlarmEvents,
		"events", report.Events,
	)
	return report, nil
}

func (c *Client) bulkDeleteAlarmEvents(ctx context.Context, batch []models.AlarmEvent) error {
	docType, err := c.DocType(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ae := range batch {
		meta := map[string]string{"_index": ae.Index, "_id": ae.DocID}
		if docType != "" {
			meta["_type"] = docType
		}
		if err := enc.Encode(map[string]interface{}{"delete": meta}); err != nil {
			return fmt.Errorf("delete: encode bulk: %w", err)
		}
	}

	body, err := c.perform(ctx, "delete: alarm events", http.MethodPost, "/_bulk?refresh=true", buf.Bytes())
	if err != nil {
		return err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("delete: decode bulk: %w", err)
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for _, res := range item {
				if res.Status >= 300 && res.Status != http.StatusNotFound {
					return &StoreError{Op: "delete: alarm events", Status: res.Status, Body: "bulk item " + res.ID + " failed"}
				}
			}
		}
	}
	return nil
}

func (c *Client) deleteByQuery(ctx context.Context, op, index string, query map[string]interface{}) (int, error) {
	var resp deleteByQueryResponse
	path := "/" + index + "/_delete_by_query?refresh=true"
	if err := c.performJSON(ctx, op, http.MethodPost, path, map[string]interface{}{"query": query}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Failures) > 0 {
		return resp.Deleted, &StoreError{Op: op, Status: http.StatusConflict, Body: string(resp.Failures[0])}
	}
	return resp.Deleted, nil
}

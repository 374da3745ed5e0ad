package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// hitsTotal accepts both the Elasticsearch 6 number and the 7+ object form.
type hitsTotal int

func (t *hitsTotal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value int `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = hitsTotal(obj.Value)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	*t = hitsTotal(n)
	return nil
}

type searchHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Total hitsTotal   `json:"total"`
		Hits  []searchHit `json:"hits"`
	} `json:"hits"`
}

type countResponse struct {
	Count int `json:"count"`
}

type updateResponse struct {
	Result string `json:"result"`
}

type deleteByQueryResponse struct {
	Deleted  int               `json:"deleted"`
	Failures []json.RawMessage `json:"failures"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Result string `json:"result"`
	} `json:"items"`
}

var timestampSort = []map[string]interface{}{
	{"@timestamp": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
}

func termsQuery(field string, values []string) map[string]interface{} {
	return map[string]interface{}{
		"terms": map[string]interface{}{field: values},
	}
}

// alarmEventsQuery matches the events of one alarm stage by exact term.
func alarmEventsQuery(alarmID string, stage int) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []map[string]interface{}{
				{"term": map[string]interface{}{"stage": stage}},
				{"term": map[string]interface{}{"alarm_id.keyword": alarmID}},
			},
		},
	}
}

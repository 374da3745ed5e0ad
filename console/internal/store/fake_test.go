package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/alarm-console/common/logging"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeCluster is a minimal in-memory stand-in for the search cluster.
type fakeCluster struct {
	t            *testing.T
	version      string
	distribution string

	mu           sync.Mutex
	requests     []recordedRequest
	infoCalls    int
	infoFailures int

	alarmEvents []string
	failBulk    bool

	// route overrides the default handlers when it returns true.
	route func(w http.ResponseWriter, r *http.Request, body string) bool
}

func newFakeCluster(t *testing.T, version string) *fakeCluster {
	return &fakeCluster{t: t, version: version}
}

func (f *fakeCluster) start() (*httptest.Server, *Client) {
	srv := httptest.NewServer(f)
	f.t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL, Insecure: true}, logging.Discard())
	require.NoError(f.t, err)
	return srv, client
}

func (f *fakeCluster) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeCluster) pathsWith(suffix string) []recordedRequest {
	var out []recordedRequest
	for _, r := range f.recorded() {
		if strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := string(raw)

	f.mu.Lock()
	if r.URL.Path != "/" {
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/" {
		f.mu.Lock()
		f.infoCalls++
		fail := f.infoFailures > 0
		if fail {
			f.infoFailures--
		}
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		fmt.Fprintf(w, `{"name":"node","version":{"number":%q,"distribution":%q}}`, f.version, f.distribution)
		return
	}

	if f.route != nil && f.route(w, r, body) {
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search") && strings.Contains(body, `"terms":{"alarm_id.keyword"`):
		f.serveAlarmEventBatch(w, body)
	case r.URL.Path == "/_bulk":
		f.serveBulkDelete(w, body)
	case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
		f.serveDeleteByQuery(w, r, body)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no route"}`))
	}
}

func (f *fakeCluster) serveAlarmEventBatch(w http.ResponseWriter, body string) {
	var req struct {
		Size int `json:"size"`
	}
	require.NoError(f.t, json.Unmarshal([]byte(body), &req))

	f.mu.Lock()
	n := len(f.alarmEvents)
	if n > req.Size {
		n = req.Size
	}
	ids := append([]string(nil), f.alarmEvents[:n]...)
	f.mu.Unlock()

	hits := make([]map[string]interface{}, 0, n)
	for _, id := range ids {
		hits = append(hits, map[string]interface{}{
			"_index":  "siem_alarm_events-2024.05.01",
			"_id":     id,
			"_source": map[string]interface{}{"alarm_id": "alarm-1", "stage": 1, "event_id": "ev-" + id},
		})
	}
	writeSearch(w, hits, len(ids))
}

func (f *fakeCluster) serveBulkDelete(w http.ResponseWriter, body string) {
	if f.failBulk {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"bulk rejected"}`))
		return
	}

	deleted := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var line map[string]map[string]string
		require.NoError(f.t, json.Unmarshal(scanner.Bytes(), &line))
		deleted[line["delete"]["_id"]] = true
	}

	f.mu.Lock()
	remaining := f.alarmEvents[:0]
	for _, id := range f.alarmEvents {
		if !deleted[id] {
			remaining = append(remaining, id)
		}
	}
	f.alarmEvents = remaining
	f.mu.Unlock()

	_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
}

func (f *fakeCluster) serveDeleteByQuery(w http.ResponseWriter, r *http.Request, body string) {
	var req struct {
		Query struct {
			Terms map[string][]string `json:"terms"`
		} `json:"query"`
	}
	require.NoError(f.t, json.Unmarshal([]byte(body), &req))

	deleted := 1
	if ids, ok := req.Query.Terms["event_id.keyword"]; ok {
		deleted = len(ids)
	}
	fmt.Fprintf(w, `{"deleted":%d,"failures":[]}`, deleted)
}

func writeSearch(w http.ResponseWriter, hits []map[string]interface{}, total int) {
	resp := map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": total, "relation": "eq"},
			"hits":  hits,
		},
	}
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(resp)
	_, _ = w.Write(buf.Bytes())
}

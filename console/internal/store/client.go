// Package store reads and mutates alarms, alarm events and raw events in an
// Elasticsearch or OpenSearch cluster.
package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/alarm-console/common/logging"
)

const (
	// MaxResultSize caps id lookups and their result sets.
	MaxResultSize = 200

	// DeleteBatchSize is how many alarm events one cascade step removes.
	DeleteBatchSize = 4500

	// legacyDocType is the document type written by Elasticsearch 6 pipelines.
	legacyDocType = "doc"
)

// Config configures a Client.
type Config struct {
	// URL may embed basic-auth credentials.
	URL      string
	Insecure bool
	Timeout  time.Duration
	Indices  IndexSet
}

// Client talks to the store over opensearch-go's transport.
type Client struct {
	client  *opensearch.Client
	conn    Connection
	indices IndexSet
	logger  *logging.Logger

	mu      sync.Mutex
	probed  bool
	docType string
}

// NewClient builds a client without contacting the store; the store may come
// up later.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	conn, err := ParseConnection(cfg.URL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}

	// Callers poll on their own schedule, so the transport never retries.
	osCfg := opensearch.Config{
		Addresses:    []string{conn.Address},
		Username:     conn.Username,
		Password:     conn.Password,
		Transport:    httpClient.Transport,
		DisableRetry: true,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	indices := cfg.Indices
	if indices.Alarms == "" {
		indices = DefaultIndexSet()
	}

	return &Client{
		client:  client,
		conn:    conn,
		indices: indices,
		logger:  logger.Component("store").With(logging.Store(conn.Label())),
	}, nil
}

// Connection returns the parsed connection string.
func (c *Client) Connection() Connection {
	return c.conn
}

func (c *Client) Indices() IndexSet {
	return c.indices
}

// Ping reports whether the store answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.client.Info(c.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w: %w", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ping: %w: %s %s", ErrStoreUnavailable, res.Status(), strings.TrimSpace(string(body)))
	}
	return nil
}

type infoResponse struct {
	Version struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

// DocType returns the document type path segment for the connected cluster:
// "doc" for Elasticsearch before 7, empty otherwise. A successful probe is
// cached for the client's lifetime; failures are retried on the next call.
func (c *Client) DocType(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.probed {
		return c.docType, nil
	}

	res, err := c.client.Info(c.client.Info.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("version probe: %w: %w", ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("version probe: %w: %w", ErrStoreUnavailable, err)
	}
	if res.IsError() {
		return "", &StoreError{Op: "version probe", Status: res.StatusCode, Body: string(body)}
	}

	var info infoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("version probe: decode: %w", err)
	}

	c.docType = docTypeFor(info.Version.Number, info.Version.Distribution)
	c.probed = true
	c.logger.Debug("store version probed",
		"version", info.Version.Number,
		"distribution", info.Version.Distribution,
		"doc_type", c.docType,
	)
	return c.docType, nil
}

func docTypeFor(version, distribution string) string {
	if strings.EqualFold(distribution, "opensearch") {
		return ""
	}
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n >= 7 {
		return ""
	}
	return legacyDocType
}

// perform sends a request and returns the response body. Transport failures wrap
// ErrStoreUnavailable; non-2xx answers become *StoreError.
func (c *Client) perform(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		contentType := "application/json"
		if strings.HasPrefix(path, "/_bulk") {
			contentType = "application/x-ndjson"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	res, err := c.client.Transport.Perform(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w: %w", op, ErrStoreUnavailable, err)
	}

	if res.StatusCode >= 300 {
		return nil, &StoreError{Op: op, Status: res.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) performJSON(ctx context.Context, op, method, path string, req, resp interface{}) error {
	var body []byte
	if req != nil {
		var err error
		body, err = json.Marshal(req)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
	}

	respBody, err := c.perform(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// typedPath joins index, the legacy doc type when present, and the endpoint.
func (c *Client) typedPath(ctx context.Context, index, endpoint string) (string, error) {
	docType, err := c.DocType(ctx)
	if err != nil {
		return "", err
	}
	if docType != "" {
		return "/" + index + "/" + docType + "/" + endpoint, nil
	}
	return "/" + index + "/" + endpoint, nil
}

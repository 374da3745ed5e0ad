package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Document is one document to index.
type Document struct {
	Index string
	ID    string
	Body  interface{}
}

// IndexDocuments bulk-indexes docs and refreshes the touched indices.
func (c *Client) IndexDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	docType, err := c.DocType(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]string{"_index": doc.Index}
		if doc.ID != "" {
			meta["_id"] = doc.ID
		}
		if docType != "" {
			meta["_type"] = docType
		}
		if err := enc.Encode(map[string]interface{}{"index": meta}); err != nil {
			return fmt.Errorf("index documents: encode: %w", err)
		}
		if err := enc.Encode(doc.Body); err != nil {
			return fmt.Errorf("index documents: encode: %w", err)
		}
	}

	body, err := c.perform(ctx, "index documents", http.MethodPost, "/_bulk?refresh=true", buf.Bytes())
	if err != nil {
		return err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("index documents: decode: %w", err)
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for _, res := range item {
				if res.Status >= 300 {
					return &StoreError{Op: "index documents", Status: res.Status, Body: "bulk item " + res.ID + " failed"}
				}
			}
		}
	}
	return nil
}

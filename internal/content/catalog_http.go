package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"guardian/pkg/platform/dependency"
	"guardian/pkg/platform/sentinel"
)

const catalogDependency = "content_catalog"

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPCatalog talks to the platform content API:
//
//	GET    {base}/content/{id}
//	POST   {base}/content/{id}/removal   {"reason": "..."}
//	DELETE {base}/content/{id}/removal
type HTTPCatalog struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

func NewHTTPCatalog(baseURL, apiKey string, timeout time.Duration, client HTTPDoer) *HTTPCatalog {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPCatalog{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *HTTPCatalog) Fetch(ctx context.Context, id string) (*Item, error) {
	body, err := c.do(ctx, http.MethodGet, "/content/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, dependency.NewError(dependency.BadData, catalogDependency, "failed to parse content", err)
	}
	if item.ID == "" {
		item.ID = id
	}
	return &item, nil
}

func (c *HTTPCatalog) Remove(ctx context.Context, id, reason string) error {
	payload, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return fmt.Errorf("marshal removal: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/content/"+url.PathEscape(id)+"/removal", payload)
	return err
}

func (c *HTTPCatalog) Restore(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/content/"+url.PathEscape(id)+"/removal", nil)
	return err
}

func (c *HTTPCatalog) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, dependency.NewError(dependency.Internal, catalogDependency, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dependency.FromTransport(ctx, catalogDependency, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, dependency.NewError(dependency.BadData, catalogDependency, "failed to read response", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, sentinel.ErrNotFound
	}
	if derr := dependency.FromStatus(catalogDependency, resp.StatusCode); derr != nil {
		return nil, derr
	}
	return respBody, nil
}

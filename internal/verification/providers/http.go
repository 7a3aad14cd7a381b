package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"guardian/pkg/platform/dependency"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider posts the request to an identity vendor:
//
//	POST {base}/verify {"subject_id", "method", "fields", "data"}
//	200 {"confidence": 0.93, "flags": ["..."]}
type HTTPProvider struct {
	id      string
	baseURL string
	apiKey  string
	client  HTTPDoer
}

type HTTPProviderConfig struct {
	ID         string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ID == "" {
		cfg.ID = "identity_vendor"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPProvider{id: cfg.ID, baseURL: cfg.BaseURL, apiKey: cfg.APIKey, client: client}
}

func (p *HTTPProvider) ID() string { return p.id }

type vendorRequest struct {
	SubjectID string `json:"subject_id"`
	Method    string `json:"method"`
	Fields    any    `json:"fields"`
	Data      any    `json:"data"`
}

type vendorResponse struct {
	Confidence *float64 `json:"confidence"`
	Flags      []string `json:"flags"`
}

func (p *HTTPProvider) Verify(ctx context.Context, in Input) (*Evidence, error) {
	body, err := json.Marshal(vendorRequest{
		SubjectID: in.SubjectID,
		Method:    string(in.Method),
		Fields:    in.Fields,
		Data:      in.Data,
	})
	if err != nil {
		return nil, dependency.NewError(dependency.BadData, p.id, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, dependency.NewError(dependency.Internal, p.id, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dependency.FromTransport(ctx, p.id, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, dependency.NewError(dependency.BadData, p.id, "failed to read response", err)
	}
	if derr := dependency.FromStatus(p.id, resp.StatusCode); derr != nil {
		return nil, derr
	}

	var out vendorResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, dependency.NewError(dependency.BadData, p.id, "failed to parse response", err)
	}
	if out.Confidence == nil || *out.Confidence < 0 || *out.Confidence > 1 {
		return nil, dependency.NewError(dependency.BadData, p.id, fmt.Sprintf("confidence out of range: %v", out.Confidence), nil)
	}
	return &Evidence{Confidence: *out.Confidence, Flags: out.Flags}, nil
}

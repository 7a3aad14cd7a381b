//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestContext holds state between test steps.
type TestContext struct {
	BaseURL          string
	SigningKey       string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	Token            string
	// Unique is substituted for {unique} so scenarios never collide with
	// earlier runs against the same server.
	Unique string
	Saved  map[string]string
}

func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	key := os.Getenv("GUARDIAN_AUTH_JWT_SIGNING_KEY")
	if key == "" {
		key = "guardian-dev-signing-key"
	}

	return &TestContext{
		BaseURL:    baseURL,
		SigningKey: key,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Unique:     uuid.NewString()[:8],
		Saved:      make(map[string]string),
	}
}

// expand replaces {unique} and {name} placeholders with saved values.
func (tc *TestContext) expand(s string) string {
	s = strings.ReplaceAll(s, "{unique}", tc.Unique)
	for k, v := range tc.Saved {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// Do sends a request with the current bearer token and stores the response.
func (tc *TestContext) Do(method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+tc.expand(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.Token)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// ResponseField resolves a dotted path such as "result.verified" in the
// last JSON response.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var data any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", path)
		}
		if data, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %s not found in response", path)
		}
	}
	return data, nil
}

func (tc *TestContext) LastStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"guardian/internal/scanning/models"
	"guardian/pkg/platform/dependency"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTP calls a vendor moderation API: POST {base}/classify.
type HTTP struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

func NewHTTP(baseURL, apiKey string, timeout time.Duration, client HTTPDoer) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (*HTTP) Name() string { return "vendor" }

type classifyRequest struct {
	ContentID   string   `json:"content_id"`
	ContentType string   `json:"content_type"`
	Payload     []byte   `json:"payload"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type classifyResponse struct {
	Labels []struct {
		Category   string   `json:"category"`
		Confidence float64  `json:"confidence"`
		Evidence   []string `json:"evidence"`
	} `json:"labels"`
}

func (c *HTTP) Classify(ctx context.Context, in Input) ([]Score, error) {
	body, err := json.Marshal(classifyRequest{
		ContentID:   in.ContentID,
		ContentType: string(in.Type),
		Payload:     in.Payload,
		Title:       in.Metadata.Title,
		Tags:        in.Metadata.Tags,
	})
	if err != nil {
		return nil, dependency.NewError(dependency.Internal, "classifier", "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, dependency.NewError(dependency.Internal, "classifier", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dependency.FromTransport(ctx, "classifier", err)
	}
	defer resp.Body.Close()
	if derr := dependency.FromStatus("classifier", resp.StatusCode); derr != nil {
		return nil, derr
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, dependency.NewError(dependency.BadData, "classifier", "failed to decode response", err)
	}
	scores := make([]Score, 0, len(decoded.Labels))
	for _, l := range decoded.Labels {
		t := models.ViolationType(l.Category)
		if !t.IsValid() {
			t = models.ViolationOther
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			return nil, dependency.NewError(dependency.BadData, "classifier",
				fmt.Sprintf("confidence %v out of range", l.Confidence), nil)
		}
		scores = append(scores, Score{Type: t, Confidence: l.Confidence, Evidence: l.Evidence})
	}
	return scores, nil
}

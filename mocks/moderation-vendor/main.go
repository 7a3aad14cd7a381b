package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8082"
	defaultAPIKey    = "moderation-vendor-secret-key"
	defaultLatencyMs = "50"
)

// ClassifyRequest mirrors what guardian's HTTP classifier sends. Payload
// arrives base64 encoded and is decoded by encoding/json.
type ClassifyRequest struct {
	ContentID   string   `json:"content_id"`
	ContentType string   `json:"content_type"`
	Payload     []byte   `json:"payload"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
}

type Label struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

type ClassifyResponse struct {
	ContentID string  `json:"content_id"`
	Labels    []Label `json:"labels"`
	CheckedAt string  `json:"checked_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	apiKey    = getEnv("API_KEY", defaultAPIKey)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

// lexicon holds the "magic" terms that produce labels. One match scores
// 0.8; every further match in the same category adds 0.3, capped at 0.99.
var lexicon = map[string][]string{
	"hate_speech": {"HATE_TERM", "SLUR_TERM"},
	"violence":    {"GORE_TERM", "THREAT_TERM"},
	"copyright":   {"PIRATED_TERM"},
	"other":       {"SPAM_TERM"},
}

// Content containing one of these triggers a vendor failure.
const (
	triggerOutage = "VENDOR_OUTAGE"
	triggerSlow   = "VENDOR_SLOW"
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/classify", handleClassify)

	log.Printf("🛡️  Mock Moderation Vendor API starting on port %s", port)
	log.Printf("📝 API Key: %s", apiKey)
	log.Printf("⏱️  Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "moderation-vendor",
		"version": "1.0.0",
	})
}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if key := r.Header.Get("X-API-Key"); key == "" {
		sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
		return
	} else if key != apiKey {
		sendError(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ContentID == "" {
		sendError(w, "content_id is required", http.StatusBadRequest)
		return
	}

	text := strings.ToUpper(string(req.Payload) + " " + req.Title + " " + strings.Join(req.Tags, " "))
	if strings.Contains(text, triggerOutage) {
		sendError(w, "Classifier backend unavailable", http.StatusServiceUnavailable)
		return
	}
	if strings.Contains(text, triggerSlow) {
		log.Printf("🐢 Stalling response for %s", req.ContentID)
		time.Sleep(30 * time.Second)
	}

	resp := ClassifyResponse{
		ContentID: req.ContentID,
		Labels:    classify(text),
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)

	log.Printf("✅ Classified %s: %d label(s)", req.ContentID, len(resp.Labels))
}

func classify(text string) []Label {
	labels := []Label{}
	for category, terms := range lexicon {
		var evidence []string
		for _, term := range terms {
			if strings.Contains(text, term) {
				evidence = append(evidence, strings.ToLower(term))
			}
		}
		if len(evidence) == 0 {
			continue
		}
		confidence := min(0.3*float64(len(evidence))+0.5, 0.99)
		labels = append(labels, Label{Category: category, Confidence: confidence, Evidence: evidence})
	}
	return labels
}

func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("❌ Error response: %d - %s", code, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}

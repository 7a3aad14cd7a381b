package main

import (
	"crypto/sha256"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "8081"
	defaultAPIKey    = "identity-vendor-secret-key"
	defaultLatencyMs = "100"
)

// VerifyRequest mirrors what guardian's HTTP provider sends.
type VerifyRequest struct {
	SubjectID string            `json:"subject_id"`
	Method    string            `json:"method"`
	Fields    map[string]any    `json:"fields"`
	Data      map[string]string `json:"data"`
}

type VerifyResponse struct {
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
	CheckedAt  string   `json:"checked_at"`
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

// Subject IDs starting with one of these prefixes steer the mock, so e2e
// runs can exercise every provider outcome.
const (
	prefixLowConfidence = "LOWCONF"
	prefixMismatch      = "MISMATCH"
	prefixOutage        = "OUTAGE"
	prefixSlow          = "SLOW"
	prefixGarbage       = "GARBAGE"
	prefixRejected      = "REJECTED"
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/verify", handleVerify)

	log.Printf("🪪  Mock Identity Vendor API starting on port %s", port)
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
		"service": "identity-vendor",
		"version": "1.0.0",
	})
}

func handleVerify(w http.ResponseWriter, r *http.Request) {
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

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SubjectID == "" || req.Method == "" {
		sendError(w, "subject_id and method are required", http.StatusBadRequest)
		return
	}

	subject := strings.ToUpper(req.SubjectID)
	resp := VerifyResponse{Flags: []string{}, CheckedAt: time.Now().UTC().Format(time.RFC3339)}
	switch {
	case strings.HasPrefix(subject, prefixOutage):
		sendError(w, "Upstream registry unavailable", http.StatusServiceUnavailable)
		return
	case strings.HasPrefix(subject, prefixSlow):
		log.Printf("🐢 Stalling response for %s", req.SubjectID)
		time.Sleep(30 * time.Second)
		resp.Confidence = 0.9
	case strings.HasPrefix(subject, prefixGarbage):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"confidence": 1.7}`))
		return
	case strings.HasPrefix(subject, prefixRejected):
		sendError(w, "Document could not be processed", http.StatusUnprocessableEntity)
		return
	case strings.HasPrefix(subject, prefixLowConfidence):
		resp.Confidence = 0.4
		resp.Flags = append(resp.Flags, "low_image_quality")
	case strings.HasPrefix(subject, prefixMismatch):
		resp.Confidence = 0.55
		resp.Flags = append(resp.Flags, "name_mismatch")
	default:
		resp.Confidence = deterministicConfidence(req.SubjectID + "|" + req.Method)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)

	log.Printf("✅ Verification scored: %s/%s -> %.2f %v", req.SubjectID, req.Method, resp.Confidence, resp.Flags)
}

// deterministicConfidence maps a key to a stable score in [0.70, 0.99].
func deterministicConfidence(key string) float64 {
	hash := sha256.Sum256([]byte(key))
	return 0.70 + float64(int(hash[0])%30)/100
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

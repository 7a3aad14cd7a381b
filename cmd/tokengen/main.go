// Package main provides a CLI tool for generating reviewer tokens for the
// Guardian API. Tokens signed with the dev key will NOT work in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	jwttoken "guardian/internal/jwt_token"
	"guardian/pkg/platform/middleware/auth"
)

const (
	// Dev signing key - matches cmd/server when auth.jwt_signing_key is not set
	devSigningKey = "guardian-dev-signing-key"

	defaultIssuer   = "guardian"
	defaultTokenTTL = 8 * time.Hour
)

var knownRoles = []string{auth.RoleReviewer, auth.RoleLegal, auth.RoleAdmin}

type tokenOutput struct {
	Token      string            `json:"token"`
	ReviewerID string            `json:"reviewer_id"`
	Roles      []string          `json:"roles"`
	ExpiresIn  string            `json:"expires_in"`
	Usage      map[string]string `json:"usage"`
}

func main() {
	reviewerID := flag.String("reviewer-id", "", "Reviewer ID. Generated if empty.")
	roles := flag.String("roles", auth.RoleReviewer, "Comma-separated roles: reviewer, legal, admin")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := flag.String("key", "", "Signing key. Defaults to GUARDIAN_AUTH_JWT_SIGNING_KEY, then the dev key.")
	issuer := flag.String("issuer", defaultIssuer, "Token issuer")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Usage = printUsage
	flag.Parse()

	roleList, err := parseRoles(*roles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	id := strings.TrimSpace(*reviewerID)
	if id == "" {
		id = "reviewer-" + uuid.NewString()[:8]
	}

	signingKey, keyType := resolveKey(*key)
	svc := jwttoken.NewJWTService(signingKey, *issuer, *ttl)
	token, err := svc.Issue(id, roleList, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:      token,
			ReviewerID: id,
			Roles:      roleList,
			ExpiresIn:  ttl.String(),
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Reviewer Token (JWT)")
	fmt.Println("====================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Reviewer ID: %s\n", id)
	fmt.Printf("Roles:       %v\n", roleList)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/v1/reports/queue")
}

func printUsage() {
	fmt.Println(`tokengen - Generate reviewer tokens for the Guardian API

WARNING: Without -key or GUARDIAN_AUTH_JWT_SIGNING_KEY the dev signing key is
         used. Only use those tokens for local development and testing.

Usage:
  tokengen [flags]

Examples:
  # Reviewer token with a generated ID
  tokengen

  # Legal staff token for a named reviewer
  tokengen -reviewer-id counsel-1 -roles legal

  # Admin token valid for one hour, as JSON
  tokengen -roles admin -ttl 1h -json

Flags:`)
	flag.PrintDefaults()
}

func parseRoles(s string) ([]string, error) {
	var out []string
	for _, r := range strings.Split(s, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || slices.Contains(out, r) {
			continue
		}
		if !slices.Contains(knownRoles, r) {
			return nil, fmt.Errorf("unknown role %q (want one of %s)", r, strings.Join(knownRoles, ", "))
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	return out, nil
}

func resolveKey(flagKey string) (string, string) {
	if flagKey != "" {
		return flagKey, "flag"
	}
	if env := os.Getenv("GUARDIAN_AUTH_JWT_SIGNING_KEY"); env != "" {
		return env, "env"
	}
	return devSigningKey, "dev"
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

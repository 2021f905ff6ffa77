// Package http provides the HTTP API surface for fingerprintd.
package http

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// DetectRequest is the body for POST /v1/detect. Headers keys are
// case-insensitive and map to every value sent under that name (a response
// may repeat Set-Cookie once per cookie); URLs is the chain of URLs
// associated with the request (final URL first is fine, order does not
// matter to the analyzer); Body is the raw response body (HTML) as a UTF-8
// string.
type DetectRequest struct {
	Headers map[string][]string `json:"headers"`
	URLs    []string            `json:"urls"`
	Body    string              `json:"body"`
}

// DetectResponse is the body for POST /v1/detect. DetectID identifies this
// call in structured logs, so a caller can correlate a slow or suspicious
// response with the corresponding log line.
type DetectResponse struct {
	rulelib.DetectResult
	DetectID string `json:"detect_id"`
}

// StatusResponse is the body for GET /v1/status.
type StatusResponse struct {
	Status          string `json:"status"`
	RuleOrigin      string `json:"rule_origin"`
	TechnologyCount int    `json:"technology_count"`
	CategoryCount   int    `json:"category_count"`
}

package models

import (
	"time"
)

// EndpointClass groups routes sharing one per-user budget.
type EndpointClass string

const (
	// ClassDefault covers console reads and writes against the backend.
	ClassDefault EndpointClass = "default"
	// ClassVerification covers the identity verification wizard.
	ClassVerification EndpointClass = "verification"
	// ClassScreening covers AML screening, each call of which is billed.
	ClassScreening EndpointClass = "screening"
)

// Limit is a sliding-window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limits maps each class to its budget. A class without an entry is not limited.
type Limits map[EndpointClass]Limit

type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

type UserRateLimitExceededResponse struct {
	Error          string    `json:"error"`
	Message        string    `json:"message"`
	QuotaLimit     int       `json:"quota_limit"`
	QuotaRemaining int       `json:"quota_remaining"`
	QuotaReset     time.Time `json:"quota_reset"`
	RetryAfter     int       `json:"retry_after"`
}

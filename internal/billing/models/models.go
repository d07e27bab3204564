package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Balance is a company's remaining verification credits. The backend returns
// either a bare number or {"balance": n}.
type Balance float64

func (b *Balance) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = Balance(n)
		return nil
	}
	var wrapped struct {
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*b = Balance(wrapped.Balance)
	return nil
}

// Verification is one billed verification.
type Verification struct {
	Type       string    `json:"type"`
	Completed  *bool     `json:"completed"`
	CreditCost float64   `json:"creditCost"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusLabel renders the completion badge: Completed, Failed or Pending.
func (v Verification) StatusLabel() string {
	switch {
	case v.Completed == nil:
		return "Pending"
	case *v.Completed:
		return "Completed"
	default:
		return "Failed"
	}
}

// TypeLabel replaces the first underscore, e.g. "id_verification" -> "id verification".
func (v Verification) TypeLabel() string {
	return strings.Replace(v.Type, "_", " ", 1)
}

// UsageByType aggregates credits spent per verification type.
type UsageByType struct {
	Type    string  `json:"type"`
	Count   int     `json:"count"`
	Credits float64 `json:"credits"`
}

// VerificationRow is a display row of the verification history.
type VerificationRow struct {
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	CreditCost float64   `json:"credit_cost"`
	CreatedAt  time.Time `json:"created_at"`
	Date       string    `json:"date"`
}

// Dashboard is the billing and usage screen.
type Dashboard struct {
	Balance       Balance           `json:"balance"`
	Verifications []VerificationRow `json:"verifications"`
	Usage         []UsageByType     `json:"usage"`
	ActiveKeys    int               `json:"active_keys"`
	Message       string            `json:"message,omitempty"`
}

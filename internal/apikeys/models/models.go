package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of an organization API key.
type Status string

const (
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
)

// APIKey is an organization-scoped credential minted by the backend.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CompanyID string    `json:"companyId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	OwnerID   string    `json:"ownerId"`
	Key       string    `json:"apiKey"`
}

// UnmarshalJSON accepts the secret under either "apiKey" or "key"; the backend
// has used both.
func (k *APIKey) UnmarshalJSON(b []byte) error {
	type plain APIKey
	var raw struct {
		plain
		AltKey string `json:"key"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*k = APIKey(raw.plain)
	if k.Key == "" {
		k.Key = raw.AltKey
	}
	return nil
}

func (k APIKey) IsActive() bool {
	return strings.EqualFold(string(k.Status), string(StatusActive))
}

// Masked returns a copy whose secret shows only its last four characters.
func (k APIKey) Masked() APIKey {
	k.Key = MaskSecret(k.Key)
	return k
}

func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("•", len(secret))
	}
	return strings.Repeat("•", 8) + secret[len(secret)-4:]
}

// FirstActive returns the first active key with a non-empty secret.
func FirstActive(keys []APIKey) (APIKey, bool) {
	for _, k := range keys {
		if k.IsActive() && k.Key != "" {
			return k, true
		}
	}
	return APIKey{}, false
}

// Package store holds per-company caches of API key lists.
package store

import (
	"context"
	"time"

	"deeptrack/internal/apikeys/models"
)

// Cache stores a company's key list for a short TTL. A miss returns ok=false.
type Cache interface {
	Get(ctx context.Context, companyID string) (keys []models.APIKey, ok bool, err error)
	Set(ctx context.Context, companyID string, keys []models.APIKey, ttl time.Duration) error
	Invalidate(ctx context.Context, companyID string) error
}

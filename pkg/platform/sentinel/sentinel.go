package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and transports return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store or cache
//   - ErrExpired: session or cache entry has outlived its TTL
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: dependency temporarily unavailable (circuit open, dial failure)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

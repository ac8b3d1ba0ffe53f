package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and codecs return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrMalformed: statement string cannot be decoded (segment count, base64, JSON)
// - ErrExpired: statement or trust mark has expired
// - ErrAlreadyUsed: registration collision on entity id, name, or JWKS URI
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrMalformed    = errors.New("malformed")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

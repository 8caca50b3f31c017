package util

import "errors"

// Sentinel errors for the warehouse and sync failure modes
var (
	// ErrSourceMissing indicates a source file for a table does not exist
	ErrSourceMissing = errors.New("source file missing")

	// ErrMalformedHeader indicates a source file header lacks required columns
	ErrMalformedHeader = errors.New("malformed header")

	// ErrRemoteAuth indicates the authenticated remote client could not be established
	ErrRemoteAuth = errors.New("remote authentication failed")

	// ErrRemoteRequest indicates an individual remote call failed
	ErrRemoteRequest = errors.New("remote request failed")

	// ErrIntegrityMismatch indicates persisted rows diverge from what was expected
	ErrIntegrityMismatch = errors.New("data integrity mismatch")

	// ErrTransaction indicates a multi-statement warehouse write was rolled back
	ErrTransaction = errors.New("transaction failed")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference indicates a malformed remote URL, URI or id
	ErrInvalidReference = errors.New("invalid remote reference")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

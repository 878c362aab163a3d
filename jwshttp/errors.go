package jwshttp

import "errors"

// Signing errors.
var (
	// ErrNoSigner is returned when SignConfig has no signer factory
	// configured.
	ErrNoSigner = errors.New("jwshttp: signer factory must not be nil")

	// ErrBodyNotReplayable is returned when a request has a body but no
	// GetBody function, so the body cannot be read for signing without
	// consuming it.
	ErrBodyNotReplayable = errors.New("jwshttp: request body is not replayable")
)

// Verification errors.
var (
	// ErrNoVerifier is returned when MiddlewareConfig has no verifier
	// factory configured.
	ErrNoVerifier = errors.New("jwshttp: verifier factory must not be nil")

	// ErrInvalidMaxSize is returned when MiddlewareConfig.MaxBodyBytes is
	// negative.
	ErrInvalidMaxSize = errors.New("jwshttp: max body size must not be negative")

	// ErrSignatureNotFound is returned when a request carries no
	// Jws-Signature header.
	ErrSignatureNotFound = errors.New("jwshttp: signature not found")
)

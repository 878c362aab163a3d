package jws

import "errors"

// Parsing errors.
var (
	// ErrMalformed is returned when a detached compact serialization or its
	// header cannot be parsed.
	ErrMalformed = errors.New("jws: malformed detached jws")
)

// Resolution errors.
var (
	// ErrUnsupportedAlgorithm is returned when no signer or verifier can be
	// built for the alg header parameter.
	ErrUnsupportedAlgorithm = errors.New("jws: unsupported algorithm")

	// ErrKeyNotFound is returned when a KeySet holds no key matching the
	// alg and kid header parameters.
	ErrKeyNotFound = errors.New("jws: key not found")

	// ErrNoFactory is returned when a Writer or Reader is created without a
	// signer or verifier factory.
	ErrNoFactory = errors.New("jws: signer or verifier factory must not be nil")
)

// Key material errors.
var (
	// ErrInvalidKey is returned when key material is invalid (nil, wrong
	// curve, insufficient size, etc.).
	ErrInvalidKey = errors.New("jws: invalid key material")
)

// Operation errors.
var (
	// ErrFinished is returned when a Writer or Reader is used after its
	// signature has been produced or checked.
	ErrFinished = errors.New("jws: operation already finished")

	// ErrSignatureInvalid is returned by Verify when the signature does not
	// match the header and payload.
	ErrSignatureInvalid = errors.New("jws: signature verification failed")
)

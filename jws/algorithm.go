package jws

import (
	"crypto"
	"io"

	// Register hash implementations used by the algorithms below.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// Algorithm identifies a JWS signature algorithm per RFC 7518 Section 3.1.
type Algorithm string

const (
	// HS256 is HMAC using SHA-256.
	HS256 Algorithm = "HS256"

	// HS384 is HMAC using SHA-384.
	HS384 Algorithm = "HS384"

	// HS512 is HMAC using SHA-512.
	HS512 Algorithm = "HS512"

	// RS256 is RSASSA-PKCS1-v1_5 using SHA-256.
	RS256 Algorithm = "RS256"

	// RS384 is RSASSA-PKCS1-v1_5 using SHA-384.
	RS384 Algorithm = "RS384"

	// RS512 is RSASSA-PKCS1-v1_5 using SHA-512.
	RS512 Algorithm = "RS512"

	// PS256 is RSASSA-PSS using SHA-256 and MGF1 with SHA-256.
	PS256 Algorithm = "PS256"

	// PS384 is RSASSA-PSS using SHA-384 and MGF1 with SHA-384.
	PS384 Algorithm = "PS384"

	// PS512 is RSASSA-PSS using SHA-512 and MGF1 with SHA-512.
	PS512 Algorithm = "PS512"

	// ES256 is ECDSA using P-256 and SHA-256.
	ES256 Algorithm = "ES256"

	// ES384 is ECDSA using P-384 and SHA-384.
	ES384 Algorithm = "ES384"

	// ES512 is ECDSA using P-521 and SHA-512.
	ES512 Algorithm = "ES512"
)

// Algorithms lists the algorithms supported by NewSigner and NewVerifier.
var Algorithms = []Algorithm{
	HS256, HS384, HS512,
	RS256, RS384, RS512,
	PS256, PS384, PS512,
	ES256, ES384, ES512,
}

// String returns the alg header parameter value.
func (a Algorithm) String() string {
	return string(a)
}

// hash returns the digest function of the algorithm, or 0 when the
// algorithm is unknown.
func (a Algorithm) hash() crypto.Hash {
	switch a {
	case HS256, RS256, PS256, ES256:
		return crypto.SHA256
	case HS384, RS384, PS384, ES384:
		return crypto.SHA384
	case HS512, RS512, PS512, ES512:
		return crypto.SHA512
	default:
		return 0
	}
}

// Signer accumulates a JWS signing input and signs it.
//
// Write consumes the signing input in order and may be called any number of
// times. Sign finalizes the computation and is called at most once; writing
// after Sign is not allowed. A Signer is single-use and not safe for
// concurrent use.
type Signer interface {
	io.Writer

	// Sign returns the signature over everything written so far.
	Sign() ([]byte, error)
}

// Verifier accumulates a JWS signing input and checks a signature over it.
//
// The lifecycle rules of Signer apply.
type Verifier interface {
	io.Writer

	// Verify reports whether signature is valid for everything written so
	// far. A mismatch is reported as false with a nil error; errors are
	// reserved for failures of the verifier itself.
	Verify(signature []byte) (bool, error)
}

// SignerFactory returns a new Signer for the given header. It is called once
// per signing operation, after the alg parameter has been set.
type SignerFactory func(h *Header) (Signer, error)

// VerifierFactory returns a new Verifier for the given header. It is called
// once per verification operation with the parsed, not yet verified, header.
type VerifierFactory func(h *Header) (Verifier, error)

package jws

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vitalvas/jwsdetached/base64url"
)

// Reader verifies a detached JWS against a payload supplied out of band.
//
// NewReader parses the compact serialization and prepares a Verifier. The
// caller then writes the original payload bytes to the Reader and calls
// Verify. The header is only returned once the signature has been checked.
//
// A Reader performs one verification and is not safe for concurrent use.
type Reader struct {
	verifier  Verifier
	payload   *base64url.Encoder
	header    *Header
	signature []byte
	finished  bool
	closed    bool
}

// NewReader parses a detached JWS of the form "header..signature" and
// resolves its Verifier.
func NewReader(compact []byte, verifiers VerifierFactory) (*Reader, error) {
	if verifiers == nil {
		return nil, ErrNoFactory
	}

	encodedHeader, encodedSignature, err := splitDetached(compact)
	if err != nil {
		return nil, err
	}

	rawHeader := make([]byte, base64url.DecodedLen(len(encodedHeader)))

	n, err := base64url.Decode(rawHeader, encodedHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}

	header, err := parseHeader(rawHeader[:n])
	if err != nil {
		return nil, err
	}

	signature := make([]byte, base64url.DecodedLen(len(encodedSignature)))

	n, err = base64url.Decode(signature, encodedSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %w", ErrMalformed, err)
	}

	verifier, err := verifiers(header)
	if err != nil {
		return nil, err
	}

	if err := writeAll(verifier, encodedHeader, dot); err != nil {
		release(verifier)
		return nil, err
	}

	return &Reader{
		verifier:  verifier,
		payload:   base64url.NewEncoder(verifier),
		header:    header,
		signature: signature[:n],
	}, nil
}

// Write feeds payload bytes into the verification.
func (r *Reader) Write(p []byte) (int, error) {
	if r.finished {
		return 0, ErrFinished
	}

	return r.payload.Write(p)
}

// Verify completes the payload and checks the signature. It returns the
// header when the signature matches and a nil header when it does not;
// a mismatch is not an error.
func (r *Reader) Verify() (*Header, error) {
	if r.finished {
		return nil, ErrFinished
	}

	r.finished = true

	if err := r.payload.Close(); err != nil {
		return nil, err
	}

	ok, err := r.verifier.Verify(r.signature)
	if err != nil || !ok {
		return nil, err
	}

	return r.header, nil
}

// Close releases the Verifier.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	r.finished = true

	if c, ok := r.verifier.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Verify checks a detached JWS against the payload read from payload. It
// returns the header on success and ErrSignatureInvalid on mismatch.
func Verify(compact []byte, payload io.Reader, verifiers VerifierFactory) (*Header, error) {
	r, err := NewReader(compact, verifiers)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if _, err := io.Copy(r, payload); err != nil {
		return nil, err
	}

	header, err := r.Verify()
	if err != nil {
		return nil, err
	}

	if header == nil {
		return nil, ErrSignatureInvalid
	}

	return header, nil
}

// splitDetached splits "header..signature" into its encoded segments.
func splitDetached(compact []byte) ([]byte, []byte, error) {
	i := bytes.Index(compact, detached)
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: expected three segments with detached payload", ErrMalformed)
	}

	if bytes.Count(compact, dot) != 2 {
		return nil, nil, fmt.Errorf("%w: expected exactly three segments", ErrMalformed)
	}

	return compact[:i], compact[i+len(detached):], nil
}

package jwshttp

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/vitalvas/jwsdetached/jws"
)

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// MiddlewareConfig configures the server-side body verification middleware.
type MiddlewareConfig struct {
	// Verifiers resolves the Verifier from the signature header. Required.
	Verifiers jws.VerifierFactory

	// OnError is called when the Jws-Signature header is missing or cannot
	// be parsed, or when no verifier can be resolved for it. When nil, a
	// plain 401 Unauthorized response is sent.
	OnError func(w http.ResponseWriter, r *http.Request, err error)

	// MaxBodyBytes limits the request body size with http.MaxBytesReader.
	// Zero means no limit.
	MaxBodyBytes int64
}

type verificationKey struct{}

type verification struct {
	header *jws.Header
}

// Middleware returns a MiddlewareFunc that verifies the detached JWS in the
// Jws-Signature header against the request body.
//
// The header is parsed before the handler runs. The body is then verified
// while the handler reads it: once the body is exhausted the signature is
// checked, and a mismatch is reported by Read returning
// jws.ErrSignatureInvalid in place of io.EOF. Handlers must treat a body read
// error as a rejected request. VerifiedHeader returns the protected header
// after a successful check.
//
// It returns ErrNoVerifier if Verifiers is nil and ErrInvalidMaxSize if
// MaxBodyBytes is negative.
func Middleware(cfg MiddlewareConfig) (MiddlewareFunc, error) {
	if cfg.Verifiers == nil {
		return nil, ErrNoVerifier
	}

	if cfg.MaxBodyBytes < 0 {
		return nil, ErrInvalidMaxSize
	}

	onError := cfg.OnError
	if onError == nil {
		onError = defaultOnError
	}

	verifiers := cfg.Verifiers
	maxBytes := cfg.MaxBodyBytes

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			compact := r.Header.Get(SignatureHeader)
			if compact == "" {
				onError(w, r, ErrSignatureNotFound)
				return
			}

			reader, err := jws.NewReader([]byte(compact), verifiers)
			if err != nil {
				onError(w, r, err)
				return
			}
			defer reader.Close()

			state := &verification{}

			body := r.Body
			if body == nil {
				body = http.NoBody
			}

			if maxBytes > 0 {
				body = http.MaxBytesReader(w, body, maxBytes)
			}

			r = r.WithContext(context.WithValue(r.Context(), verificationKey{}, state))
			r.Body = &verifyingBody{body: body, reader: reader, state: state}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// VerifiedHeader returns the protected header of a request whose body has
// been read to the end and matched its signature.
func VerifiedHeader(r *http.Request) (*jws.Header, bool) {
	state, ok := r.Context().Value(verificationKey{}).(*verification)
	if !ok || state.header == nil {
		return nil, false
	}

	return state.header, true
}

// VerifyBody reads the rest of the request body and returns the verified
// protected header. The body is discarded.
func VerifyBody(r *http.Request) (*jws.Header, error) {
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		return nil, err
	}

	header, ok := VerifiedHeader(r)
	if !ok {
		return nil, ErrSignatureNotFound
	}

	return header, nil
}

// verifyingBody feeds the body into a jws.Reader as it is read.
type verifyingBody struct {
	body   io.ReadCloser
	reader *jws.Reader
	state  *verification
	err    error
}

func (b *verifyingBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}

	n, err := b.body.Read(p)
	if n > 0 {
		if _, werr := b.reader.Write(p[:n]); werr != nil {
			b.err = werr
			return n, werr
		}
	}

	if errors.Is(err, io.EOF) {
		b.err = b.finish()
		return n, b.err
	}

	if err != nil {
		b.err = err
	}

	return n, err
}

func (b *verifyingBody) finish() error {
	header, err := b.reader.Verify()
	if err != nil {
		return err
	}

	if header == nil {
		return jws.ErrSignatureInvalid
	}

	b.state.header = header

	return io.EOF
}

func (b *verifyingBody) Close() error {
	return b.body.Close()
}

// defaultOnError writes a 401 Unauthorized response with no body.
func defaultOnError(w http.ResponseWriter, _ *http.Request, _ error) {
	w.WriteHeader(http.StatusUnauthorized)
}

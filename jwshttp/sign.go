package jwshttp

import (
	"bytes"
	"io"
	"net/http"

	"github.com/vitalvas/jwsdetached/jws"
)

// SignatureHeader carries the detached JWS of the request body.
const SignatureHeader = "Jws-Signature"

// SignConfig configures request body signing.
type SignConfig struct {
	// Algorithm is the signature algorithm. Required.
	Algorithm jws.Algorithm

	// Signers resolves the Signer for each request. Required.
	Signers jws.SignerFactory

	// Header holds extra protected header parameters. It is cloned for
	// every request and never modified.
	Header *jws.Header
}

// SignRequest signs the request body and sets the Jws-Signature header to
// the detached compact serialization.
//
// The body is read through r.GetBody, so r.Body is left untouched and can
// still be sent. Requests with a body but no GetBody fail with
// ErrBodyNotReplayable. A request without a body signs the empty payload.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if cfg.Signers == nil {
		return ErrNoSigner
	}

	header := jws.NewHeader()
	if cfg.Header != nil {
		header = cfg.Header.Clone()
	}

	payload, err := replayBody(r)
	if err != nil {
		return err
	}
	defer payload.Close()

	var compact bytes.Buffer

	err = jws.Sign(&compact, payload, jws.WriterConfig{
		Header:    header,
		Algorithm: cfg.Algorithm,
		Signers:   cfg.Signers,
	})
	if err != nil {
		return err
	}

	r.Header.Set(SignatureHeader, compact.String())

	return nil
}

// replayBody returns a fresh copy of the request body.
func replayBody(r *http.Request) (io.ReadCloser, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return http.NoBody, nil
	}

	if r.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}

	return r.GetBody()
}

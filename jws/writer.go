package jws

import (
	"fmt"
	"io"

	"github.com/vitalvas/jwsdetached/base64url"
)

var (
	dot      = []byte(".")
	detached = []byte("..")
)

// WriterConfig configures a detached JWS Writer.
type WriterConfig struct {
	// Header holds the protected header parameters. The alg parameter is
	// set to Algorithm, replacing any existing value. When nil, a header
	// containing only alg is used.
	Header *Header

	// Algorithm is the signature algorithm. Required.
	Algorithm Algorithm

	// Signers resolves the Signer for the header. Required.
	Signers SignerFactory

	// LeaveOpen keeps the output open on Close. By default the output is
	// closed when it implements io.Closer.
	LeaveOpen bool
}

// Writer produces a detached JWS in compact serialization.
//
// NewWriter writes the encoded header and the empty payload segment to the
// output. Payload bytes written to the Writer are base64url-encoded on the
// fly and fed to the Signer only; they never reach the output. Finish
// appends the signature. The output then holds "header..signature".
//
// A Writer performs one signing operation and is not safe for concurrent
// use.
type Writer struct {
	out       io.Writer
	signer    Signer
	payload   *base64url.Encoder
	leaveOpen bool
	finished  bool
	closed    bool
}

// NewWriter starts a detached JWS on out.
func NewWriter(out io.Writer, cfg WriterConfig) (*Writer, error) {
	if cfg.Signers == nil {
		return nil, ErrNoFactory
	}

	if cfg.Algorithm == "" {
		return nil, fmt.Errorf("%w: algorithm must not be empty", ErrUnsupportedAlgorithm)
	}

	header := cfg.Header
	if header == nil {
		header = NewHeader()
	}

	header.SetAlgorithm(cfg.Algorithm)

	signer, err := cfg.Signers(header)
	if err != nil {
		return nil, err
	}

	started := false
	defer func() {
		if !started {
			release(signer)
		}
	}()

	encodedHeader, err := encodeHeader(header)
	if err != nil {
		return nil, err
	}

	if err := writeAll(signer, encodedHeader, dot); err != nil {
		return nil, err
	}

	if err := writeAll(out, encodedHeader, detached); err != nil {
		return nil, err
	}

	started = true

	return &Writer{
		out:       out,
		signer:    signer,
		payload:   base64url.NewEncoder(signer),
		leaveOpen: cfg.LeaveOpen,
	}, nil
}

// Write feeds payload bytes into the signature.
func (w *Writer) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}

	return w.payload.Write(p)
}

// Finish completes the payload, computes the signature and writes it to the
// output.
func (w *Writer) Finish() error {
	if w.finished {
		return ErrFinished
	}

	w.finished = true

	if err := w.payload.Close(); err != nil {
		return err
	}

	signature, err := w.signer.Sign()
	if err != nil {
		return err
	}

	_, err = w.out.Write(base64url.AppendEncode(nil, signature))

	return err
}

// Close releases the Signer and closes the output unless LeaveOpen was set.
// Closing before Finish leaves an incomplete JWS on the output.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true
	w.finished = true

	var firstErr error

	if c, ok := w.signer.(io.Closer); ok {
		firstErr = c.Close()
	}

	if c, ok := w.out.(io.Closer); ok && !w.leaveOpen {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Sign writes a detached JWS over the payload read from payload to out.
func Sign(out io.Writer, payload io.Reader, cfg WriterConfig) error {
	w, err := NewWriter(out, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := io.Copy(w, payload); err != nil {
		return err
	}

	return w.Finish()
}

func encodeHeader(h *Header) ([]byte, error) {
	raw, err := h.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("jws: encode header: %w", err)
	}

	return base64url.AppendEncode(nil, raw), nil
}

// release closes a Signer or Verifier that holds resources.
func release(capability any) {
	if c, ok := capability.(io.Closer); ok {
		c.Close()
	}
}

func writeAll(w io.Writer, parts ...[]byte) error {
	for _, p := range parts {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}

	return nil
}

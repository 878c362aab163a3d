package base64url

import (
	"errors"
	"io"
)

// ErrClosed is returned by Encoder.Write after Close.
var ErrClosed = errors.New("base64url: write to closed encoder")

// chunkSize is the number of source bytes encoded per downstream write.
// It must be a multiple of 3.
const chunkSize = 3 * 1024

// Encoder is an io.WriteCloser that base64url-encodes everything written to
// it and forwards the encoded text to an underlying writer as soon as whole
// 3-byte groups are available.
//
// Up to two trailing bytes are carried between writes, so the output does not
// depend on how the input is split across Write calls. Close flushes the
// carried bytes without padding.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w      io.Writer
	carry  [2]byte
	nCarry int
	buf    [chunkSize / 3 * 4]byte
	closed bool
	err    error
}

// NewEncoder returns an Encoder writing base64url text to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Write encodes p. Bytes that do not complete a 3-byte group are held until
// the next Write or Close.
func (e *Encoder) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}

	if e.closed {
		return 0, ErrClosed
	}

	n := len(p)

	if e.nCarry > 0 {
		need := 3 - e.nCarry
		if len(p) < need {
			e.nCarry += copy(e.carry[e.nCarry:], p)
			return n, nil
		}

		var group [3]byte
		copy(group[:], e.carry[:e.nCarry])
		copy(group[e.nCarry:], p[:need])
		e.nCarry = 0
		p = p[need:]

		if err := e.emit(group[:], false); err != nil {
			return 0, err
		}
	}

	for len(p) >= 3 {
		end := min(len(p), chunkSize)

		consumed, err := e.encode(p[:end], false)
		if err != nil {
			return 0, err
		}

		p = p[consumed:]
	}

	e.nCarry = copy(e.carry[:], p)

	return n, nil
}

// Close flushes carried bytes to the underlying writer. It does not close
// the underlying writer. Calling Close more than once is a no-op.
func (e *Encoder) Close() error {
	if e.closed {
		return e.err
	}

	e.closed = true

	if e.err != nil || e.nCarry == 0 {
		return e.err
	}

	tail := e.carry[:e.nCarry]
	e.nCarry = 0

	return e.emit(tail, true)
}

func (e *Encoder) emit(src []byte, final bool) error {
	_, err := e.encode(src, final)
	return err
}

func (e *Encoder) encode(src []byte, final bool) (int, error) {
	consumed, written := Encode(e.buf[:], src, final)
	if written == 0 {
		return consumed, nil
	}

	if _, err := e.w.Write(e.buf[:written]); err != nil {
		e.err = err
		return consumed, err
	}

	return consumed, nil
}

package base64url

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrFormat is returned when input is not valid unpadded base64url.
var ErrFormat = errors.New("base64url: malformed input")

var encoding = base64.RawURLEncoding.Strict()

// EncodedLen returns the maximum length of the encoding of n source bytes.
func EncodedLen(n int) int {
	return (n + 2) / 3 * 4
}

// DecodedLen returns the maximum length of the decoding of n encoded bytes.
func DecodedLen(n int) int {
	return (n + 2) / 4 * 3
}

// Encode encodes src into dst, which must hold at least EncodedLen(len(src))
// bytes.
//
// When final is false only whole 3-byte groups are encoded; consumed reports
// how many bytes of src were used and the remaining 0-2 bytes must be passed
// again with the next call. When final is true all of src is encoded and
// trailing padding is omitted.
func Encode(dst, src []byte, final bool) (consumed, written int) {
	if !final {
		consumed = len(src) - len(src)%3
	} else {
		consumed = len(src)
	}

	if consumed == 0 {
		return 0, 0
	}

	encoding.Encode(dst, src[:consumed])

	return consumed, encoding.EncodedLen(consumed)
}

// Decode decodes src into dst, which must hold at least DecodedLen(len(src))
// bytes. Padding characters are not accepted.
func Decode(dst, src []byte) (int, error) {
	if len(src)%4 == 1 {
		return 0, fmt.Errorf("%w: invalid length %d", ErrFormat, len(src))
	}

	// encoding/base64 silently skips line breaks.
	if bytes.ContainsAny(src, "\r\n") {
		return 0, fmt.Errorf("%w: unexpected line break", ErrFormat)
	}

	n, err := encoding.Decode(dst, src)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return n, nil
}

// EncodeToString returns the unpadded base64url encoding of src.
func EncodeToString(src []byte) string {
	return string(AppendEncode(nil, src))
}

// AppendEncode appends the unpadded base64url encoding of src to dst.
func AppendEncode(dst, src []byte) []byte {
	n := EncodedLen(len(src))
	if cap(dst)-len(dst) < n {
		grown := make([]byte, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}

	_, written := Encode(dst[len(dst):len(dst)+n], src, true)

	return dst[:len(dst)+written]
}

// DecodeString returns the bytes represented by the unpadded base64url
// string s.
func DecodeString(s string) ([]byte, error) {
	dst := make([]byte, DecodedLen(len(s)))

	n, err := Decode(dst, []byte(s))
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

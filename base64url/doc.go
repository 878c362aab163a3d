// Package base64url implements the unpadded URL-safe base64 encoding used by
// JSON Web Signatures (RFC 7515 Section 2, RFC 4648 Section 5).
//
// Encode and Decode operate on caller-provided buffers. Encode with final set
// to false only consumes whole 3-byte groups, which lets callers encode a
// stream piece by piece without emitting padding in the middle.
//
// Encoder builds on that to provide an io.WriteCloser that encodes a stream
// of arbitrary chunks and produces the same text as encoding the whole input
// at once:
//
//	enc := base64url.NewEncoder(w)
//	if _, err := io.Copy(enc, src); err != nil {
//	    return err
//	}
//
//	if err := enc.Close(); err != nil {
//	    return err
//	}
package base64url

// Package jws produces and verifies JSON Web Signatures (RFC 7515) with a
// detached payload.
//
// The compact serialization carries only the protected header and the
// signature, "header..signature". The payload is streamed through the
// signature computation on both sides and never held in memory, so payloads
// of any size can be signed.
//
// # Supported Algorithms
//
// Twelve algorithms from RFC 7518 are built in, each computed incrementally
// over a running hash:
//
//   - HS256, HS384, HS512 (HMAC)
//   - RS256, RS384, RS512 (RSASSA-PKCS1-v1_5)
//   - PS256, PS384, PS512 (RSASSA-PSS)
//   - ES256, ES384, ES512 (ECDSA)
//
// Other algorithms can be added to a KeySet with Register.
//
// # Signing
//
// NewWriter writes the encoded header to the output. Payload bytes written
// to the Writer only feed the signature; Finish appends it:
//
//	keys := jws.NewKeySet(jws.Key{ID: "k1", Key: privateKey})
//
//	header := jws.NewHeader()
//	header.Set("custom", "value")
//
//	w, err := jws.NewWriter(out, jws.WriterConfig{
//	    Header:    header,
//	    Algorithm: jws.PS256,
//	    Signers:   keys.SignerFactory(),
//	    LeaveOpen: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if _, err := io.Copy(w, payload); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := w.Finish(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Verifying
//
// NewReader parses the detached JWS and resolves a Verifier from its header.
// The original payload is written to the Reader again; Verify returns the
// header only when the signature matches:
//
//	r, err := jws.NewReader(compact, keys.VerifierFactory())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	if _, err := io.Copy(r, payload); err != nil {
//	    log.Fatal(err)
//	}
//
//	header, err := r.Verify()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if header == nil {
//	    // signature mismatch
//	}
//
// Sign and Verify wrap the whole operation for an io.Reader payload.
//
// # Keys
//
// ParseJWK and ParseJWKSet load keys from JSON Web Keys (RFC 7517);
// MarshalJWK and GenerateKey create them.
package jws

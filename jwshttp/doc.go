// Package jwshttp signs HTTP request bodies with a detached JWS (RFC 7515)
// and verifies them on the server while the body streams.
//
// The compact serialization "header..signature" travels in the
// Jws-Signature request header; the body itself is the payload and is sent
// unchanged.
//
// # Signing Requests
//
// SignRequest reads a copy of the body through r.GetBody and sets the
// header:
//
//	keys := jws.NewKeySet(jws.Key{ID: "client-1", Key: privateKey})
//
//	err := jwshttp.SignRequest(req, jwshttp.SignConfig{
//	    Algorithm: jws.ES256,
//	    Signers:   keys.SignerFactory(),
//	})
//
// # Client Transport
//
// NewTransport creates an http.RoundTripper that signs every outgoing
// request. Pass nil for a clone of http.DefaultTransport:
//
//	client := &http.Client{
//	    Transport: jwshttp.NewTransport(nil, jwshttp.SignConfig{
//	        Algorithm: jws.ES256,
//	        Signers:   keys.SignerFactory(),
//	    }),
//	}
//
// # Server Middleware
//
// Middleware parses the signature before the handler runs and verifies the
// body as the handler reads it. The final Read returns
// jws.ErrSignatureInvalid instead of io.EOF when the body does not match:
//
//	mw, err := jwshttp.Middleware(jwshttp.MiddlewareConfig{
//	    Verifiers: keys.VerifierFactory(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    data, err := io.ReadAll(r.Body)
//	    if err != nil {
//	        http.Error(w, "invalid signature", http.StatusForbidden)
//	        return
//	    }
//
//	    header, _ := jwshttp.VerifiedHeader(r)
//	    // use data and header
//	}))
//
// Handlers that stream the body elsewhere must not commit its effects until
// the body has been read to the end without error.
package jwshttp

package jwshttp

import "net/http"

// Transport adds a Jws-Signature header to every request it sends.
// Requests with a body must be replayable through GetBody.
type Transport struct {
	base   http.RoundTripper
	config SignConfig
}

// NewTransport wraps base with request signing. A nil base falls back to
// a private clone of http.DefaultTransport so that tuning it does not
// affect other clients.
//
//	transport := jwshttp.NewTransport(&http.Transport{
//	    TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
//	}, jwshttp.SignConfig{
//	    Algorithm: jws.ES256,
//	    Signers:   keys.SignerFactory(),
//	})
//	client := &http.Client{Transport: transport}
func NewTransport(base *http.Transport, cfg SignConfig) *Transport {
	t := &Transport{config: cfg}

	if base == nil {
		t.base = http.DefaultTransport.(*http.Transport).Clone()
	} else {
		t.base = base
	}

	return t
}

// RoundTrip implements http.RoundTripper. The caller's request is left
// untouched: the header is set on a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed, err := t.sign(req)
	if err != nil {
		return nil, err
	}

	return t.base.RoundTrip(signed)
}

func (t *Transport) sign(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())

	// SignRequest hashes a GetBody copy. The clone sends a second copy so
	// the caller's Body stays unread for redirects and retries.
	if out.Body != nil && out.Body != http.NoBody && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		out.Body = body
	}

	if err := SignRequest(out, t.config); err != nil {
		if out.Body != nil {
			out.Body.Close()
		}

		return nil, err
	}

	return out, nil
}

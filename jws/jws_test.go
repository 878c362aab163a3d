package jws

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/jwsdetached/base64url"
)

func base64URL(b []byte) string {
	return base64url.EncodeToString(b)
}

func writeChunks(t *testing.T, w io.Writer, data []byte, chunk int) {
	t.Helper()

	for len(data) > 0 {
		n := min(chunk, len(data))
		written, err := w.Write(data[:n])
		require.NoError(t, err)
		require.Equal(t, n, written)
		data = data[n:]
	}
}

// signDetached signs payload written in chunks of the given size.
func signDetached(t *testing.T, header *Header, alg Algorithm, keys *KeySet, payload []byte, chunk int) []byte {
	t.Helper()

	var out bytes.Buffer

	w, err := NewWriter(&out, WriterConfig{
		Header:    header,
		Algorithm: alg,
		Signers:   keys.SignerFactory(),
	})
	require.NoError(t, err)
	defer w.Close()

	writeChunks(t, w, payload, chunk)
	require.NoError(t, w.Finish())

	return out.Bytes()
}

// verifyDetached verifies compact against payload written in chunks of the
// given size.
func verifyDetached(t *testing.T, compact []byte, keys *KeySet, payload []byte, chunk int) (*Header, error) {
	t.Helper()

	r, err := NewReader(compact, keys.VerifierFactory())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	writeChunks(t, r, payload, chunk)

	return r.Verify()
}

func customHeader(t *testing.T) *Header {
	t.Helper()

	h := NewHeader()
	require.NoError(t, h.Set("custom", "value"))

	return h
}

func TestWriteRead(t *testing.T) {
	key, otherKey := testRSAKeys(t)

	payload, err := os.ReadFile("testdata/payload.bin")
	require.NoError(t, err)

	signing := NewKeySet(Key{Key: key})

	t.Run("matching key returns header", func(t *testing.T) {
		compact := signDetached(t, customHeader(t), PS256, signing, payload, 4096)

		header, err := verifyDetached(t, compact, NewKeySet(Key{Key: &key.PublicKey}), payload, 4096)
		require.NoError(t, err)
		require.NotNil(t, header)

		custom, ok := header.GetString("custom")
		assert.True(t, ok)
		assert.Equal(t, "value", custom)
		assert.Equal(t, PS256, header.Algorithm())
	})

	t.Run("mismatched key returns nil header", func(t *testing.T) {
		compact := signDetached(t, customHeader(t), PS256, signing, payload, 4096)

		header, err := verifyDetached(t, compact, NewKeySet(Key{Key: &otherKey.PublicKey}), payload, 4096)
		require.NoError(t, err)
		assert.Nil(t, header)
	})

	t.Run("empty payload", func(t *testing.T) {
		compact := signDetached(t, customHeader(t), PS256, signing, nil, 1)

		header, err := verifyDetached(t, compact, NewKeySet(Key{Key: &key.PublicKey}), nil, 1)
		require.NoError(t, err)
		require.NotNil(t, header)

		header, err = verifyDetached(t, compact, NewKeySet(Key{Key: &key.PublicKey}), []byte{0}, 1)
		require.NoError(t, err)
		assert.Nil(t, header)
	})

	t.Run("compact form layout", func(t *testing.T) {
		compact := signDetached(t, customHeader(t), PS256, signing, payload, 4096)

		segments := strings.Split(string(compact), ".")
		require.Len(t, segments, 3)
		assert.Empty(t, segments[1])

		rawHeader, err := base64url.DecodeString(segments[0])
		require.NoError(t, err)
		assert.Equal(t, `{"custom":"value","alg":"PS256"}`, string(rawHeader))

		sig, err := base64url.DecodeString(segments[2])
		require.NoError(t, err)
		assert.Len(t, sig, 256)
	})

	t.Run("fan-out observes the same payload", func(t *testing.T) {
		var out, observed bytes.Buffer

		w, err := NewWriter(&out, WriterConfig{
			Header:    customHeader(t),
			Algorithm: PS256,
			Signers:   signing.SignerFactory(),
		})
		require.NoError(t, err)
		defer w.Close()

		_, err = io.Copy(io.MultiWriter(w, &observed), bytes.NewReader(payload))
		require.NoError(t, err)
		require.NoError(t, w.Finish())

		assert.Equal(t, payload, observed.Bytes())

		header, err := Verify(out.Bytes(), bytes.NewReader(payload), NewKeySet(Key{Key: key}).VerifierFactory())
		require.NoError(t, err)
		assert.NotNil(t, header)
	})
}

func TestChunkingInvariance(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})

	for _, size := range []int{0, 1, 2, 3, 4, 5, 6, 7, 31, 32, 33, 100, 4097} {
		payload := testSecret(t, size)
		want := signDetached(t, NewHeader(), HS256, keys, payload, max(size, 1))

		for _, chunk := range []int{1, 2, 3, 4, 5, 7, 64} {
			got := signDetached(t, NewHeader(), HS256, keys, payload, chunk)
			assert.Equal(t, string(want), string(got), "size=%d chunk=%d", size, chunk)

			header, err := verifyDetached(t, want, keys, payload, chunk)
			require.NoError(t, err)
			assert.NotNil(t, header, "size=%d chunk=%d", size, chunk)
		}
	}
}

func TestSignatureInput(t *testing.T) {
	// The signature covers encodedHeader "." encodedPayload exactly.
	secret := testSecret(t, 32)
	keys := NewKeySet(Key{Key: secret})
	payload := []byte("streamed payload bytes")

	compact := signDetached(t, NewHeader(), HS256, keys, payload, 5)
	encodedHeader, _, ok := strings.Cut(string(compact), "..")
	require.True(t, ok)

	signer, err := NewSigner(HS256, secret)
	require.NoError(t, err)

	sig := signMessage(t, signer, encodedHeader+"."+base64URL(payload))
	assert.Equal(t, encodedHeader+".."+base64URL(sig), string(compact))
}

func TestRoundTripAlgorithms(t *testing.T) {
	rsaKey, _ := testRSAKeys(t)

	ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	keys := NewKeySet(
		Key{ID: "hmac", Key: testSecret(t, 64)},
		Key{ID: "rsa", Key: rsaKey},
		Key{ID: "ec", Key: ecKey},
	)

	tests := []struct {
		alg Algorithm
		kid string
	}{
		{HS256, "hmac"}, {HS512, "hmac"},
		{RS256, "rsa"}, {PS512, "rsa"},
		{ES384, "ec"},
	}

	payload := testSecret(t, 1000)

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			h := NewHeader()
			require.NoError(t, h.Set(HeaderKeyID, tt.kid))

			compact := signDetached(t, h, tt.alg, keys, payload, 17)

			header, err := verifyDetached(t, compact, keys, payload, 1000)
			require.NoError(t, err)
			require.NotNil(t, header)
			assert.Equal(t, tt.kid, header.KeyID())
		})
	}
}

func TestTamperDetection(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})
	payload := []byte("tamper-evident payload")

	header := NewHeader()
	require.NoError(t, header.Set("custom", "value"))

	compact := signDetached(t, header, HS256, keys, payload, 3)
	sep := bytes.Index(compact, []byte(".."))
	require.Positive(t, sep)

	assertRejected := func(t *testing.T, compact, payload []byte, what string) {
		t.Helper()

		h, err := verifyDetached(t, compact, keys, payload, 4)
		if err == nil {
			assert.Nil(t, h, what)
		}
	}

	t.Run("header segment", func(t *testing.T) {
		for i := 0; i < sep; i++ {
			for bit := 0; bit < 8; bit++ {
				tampered := bytes.Clone(compact)
				tampered[i] ^= 1 << bit
				assertRejected(t, tampered, payload, "header byte")
			}
		}
	})

	t.Run("signature segment", func(t *testing.T) {
		for i := sep + 2; i < len(compact); i++ {
			for bit := 0; bit < 8; bit++ {
				tampered := bytes.Clone(compact)
				tampered[i] ^= 1 << bit
				assertRejected(t, tampered, payload, "signature byte")
			}
		}
	})

	t.Run("payload", func(t *testing.T) {
		for i := range payload {
			for bit := 0; bit < 8; bit++ {
				tampered := bytes.Clone(payload)
				tampered[i] ^= 1 << bit
				assertRejected(t, compact, tampered, "payload byte")
			}
		}
	})

	t.Run("truncated and extended payload", func(t *testing.T) {
		assertRejected(t, compact, payload[:len(payload)-1], "truncated")
		assertRejected(t, compact, append(bytes.Clone(payload), 0), "extended")
	})

	t.Run("untouched input verifies", func(t *testing.T) {
		h, err := verifyDetached(t, compact, keys, payload, 4)
		require.NoError(t, err)
		assert.NotNil(t, h)
	})
}

func TestLargePayloadIsNotBuffered(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})

	var out bytes.Buffer

	w, err := NewWriter(&out, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
	require.NoError(t, err)
	defer w.Close()

	headerLen := out.Len()

	_, err = io.CopyN(w, rand.Reader, 8<<20)
	require.NoError(t, err)
	assert.Equal(t, headerLen, out.Len(), "payload must not reach the output")

	require.NoError(t, w.Finish())
	assert.Equal(t, headerLen+base64url.EncodedLen(32)-1, out.Len())
}

func TestRFC7515AppendixA1(t *testing.T) {
	key := []byte{
		3, 35, 53, 75, 43, 15, 165, 188, 131, 126, 6, 101, 119, 123, 166, 143,
		90, 179, 40, 230, 240, 84, 201, 40, 169, 15, 132, 178, 210, 80, 46, 191,
		211, 251, 90, 146, 210, 6, 71, 239, 150, 138, 180, 195, 119, 98, 61, 34,
		61, 46, 33, 114, 5, 46, 79, 8, 192, 205, 154, 245, 103, 208, 128, 163,
	}
	compact := "eyJ0eXAiOiJKV1QiLA0KICJhbGciOiJIUzI1NiJ9" +
		".." +
		"dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	payload := "{\"iss\":\"joe\",\r\n \"exp\":1300819380,\r\n \"http://example.com/is_root\":true}"

	header, err := Verify([]byte(compact), strings.NewReader(payload), NewKeySet(Key{Key: key}).VerifierFactory())
	require.NoError(t, err)

	typ, ok := header.GetString("typ")
	assert.True(t, ok)
	assert.Equal(t, "JWT", typ)
	assert.Equal(t, HS256, header.Algorithm())
}

func TestInteropWithGoJose(t *testing.T) {
	rsaKey, _ := testRSAKeys(t)
	payload := testSecret(t, 3001)

	t.Run("go-jose verifies our output", func(t *testing.T) {
		var out bytes.Buffer

		err := Sign(&out, bytes.NewReader(payload), WriterConfig{
			Header:    customHeader(t),
			Algorithm: PS256,
			Signers:   NewKeySet(Key{Key: rsaKey}).SignerFactory(),
		})
		require.NoError(t, err)

		obj, err := jose.ParseSigned(out.String(), []jose.SignatureAlgorithm{jose.PS256})
		require.NoError(t, err)
		require.NoError(t, obj.DetachedVerify(payload, &rsaKey.PublicKey))
	})

	t.Run("we verify go-jose output", func(t *testing.T) {
		ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		signer, err := jose.NewSigner(
			jose.SigningKey{Algorithm: jose.ES256, Key: ecKey},
			(&jose.SignerOptions{}).WithHeader("custom", "value"),
		)
		require.NoError(t, err)

		obj, err := signer.Sign(payload)
		require.NoError(t, err)

		compact, err := obj.DetachedCompactSerialize()
		require.NoError(t, err)

		header, err := Verify([]byte(compact), bytes.NewReader(payload), NewKeySet(Key{Key: &ecKey.PublicKey}).VerifierFactory())
		require.NoError(t, err)

		custom, _ := header.GetString("custom")
		assert.Equal(t, "value", custom)
		assert.Equal(t, ES256, header.Algorithm())
	})
}

type closeTracker struct {
	bytes.Buffer
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

type failingSigner struct {
	writeErr error
	signErr  error
	closed   bool
}

func (s *failingSigner) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}

	return len(p), nil
}

func (s *failingSigner) Sign() ([]byte, error) { return []byte{1}, s.signErr }

func (s *failingSigner) Close() error {
	s.closed = true
	return nil
}

func TestWriterLifecycle(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})

	t.Run("double finish", func(t *testing.T) {
		w, err := NewWriter(io.Discard, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
		require.NoError(t, err)

		require.NoError(t, w.Finish())
		assert.ErrorIs(t, w.Finish(), ErrFinished)
	})

	t.Run("write after finish", func(t *testing.T) {
		w, err := NewWriter(io.Discard, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
		require.NoError(t, err)

		require.NoError(t, w.Finish())

		_, err = w.Write([]byte("late"))
		assert.ErrorIs(t, err, ErrFinished)
	})

	t.Run("close closes output", func(t *testing.T) {
		out := &closeTracker{}

		w, err := NewWriter(out, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
		require.NoError(t, err)
		require.NoError(t, w.Finish())
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		assert.Equal(t, 1, out.closed)
	})

	t.Run("leave open", func(t *testing.T) {
		out := &closeTracker{}

		w, err := NewWriter(out, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory(), LeaveOpen: true})
		require.NoError(t, err)
		require.NoError(t, w.Finish())
		require.NoError(t, w.Close())

		assert.Zero(t, out.closed)
	})

	t.Run("close releases signer", func(t *testing.T) {
		signer := &failingSigner{}

		w, err := NewWriter(io.Discard, WriterConfig{
			Algorithm: "custom",
			Signers:   func(*Header) (Signer, error) { return signer, nil },
		})
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.True(t, signer.closed)
	})

	t.Run("close before finish truncates", func(t *testing.T) {
		var out bytes.Buffer

		w, err := NewWriter(&out, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.True(t, strings.HasSuffix(out.String(), ".."))
	})

	t.Run("alg replaces existing value", func(t *testing.T) {
		h := NewHeader()
		h.SetAlgorithm(RS256)

		_, err := NewWriter(io.Discard, WriterConfig{Header: h, Algorithm: HS256, Signers: keys.SignerFactory()})
		require.NoError(t, err)
		assert.Equal(t, HS256, h.Algorithm())
	})
}

func TestWriterErrors(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})
	boom := errors.New("boom")

	t.Run("missing factory", func(t *testing.T) {
		_, err := NewWriter(io.Discard, WriterConfig{Algorithm: HS256})
		assert.ErrorIs(t, err, ErrNoFactory)
	})

	t.Run("missing algorithm", func(t *testing.T) {
		_, err := NewWriter(io.Discard, WriterConfig{Signers: keys.SignerFactory()})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("unsupported algorithm surfaces at create time", func(t *testing.T) {
		_, err := NewWriter(io.Discard, WriterConfig{Algorithm: "none", Signers: keys.SignerFactory()})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("no key for algorithm", func(t *testing.T) {
		_, err := NewWriter(io.Discard, WriterConfig{Algorithm: PS256, Signers: keys.SignerFactory()})
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("output error propagates", func(t *testing.T) {
		_, err := NewWriter(failWriter{boom}, WriterConfig{Algorithm: HS256, Signers: keys.SignerFactory()})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("output error releases signer", func(t *testing.T) {
		signer := &failingSigner{}

		_, err := NewWriter(failWriter{boom}, WriterConfig{
			Algorithm: "custom",
			Signers:   func(*Header) (Signer, error) { return signer, nil },
		})
		assert.ErrorIs(t, err, boom)
		assert.True(t, signer.closed)
	})

	t.Run("signer write error releases signer", func(t *testing.T) {
		signer := &failingSigner{writeErr: boom}

		_, err := NewWriter(io.Discard, WriterConfig{
			Algorithm: "custom",
			Signers:   func(*Header) (Signer, error) { return signer, nil },
		})
		assert.ErrorIs(t, err, boom)
		assert.True(t, signer.closed)
	})

	t.Run("sign error propagates", func(t *testing.T) {
		w, err := NewWriter(io.Discard, WriterConfig{
			Algorithm: "custom",
			Signers:   func(*Header) (Signer, error) { return &failingSigner{signErr: boom}, nil },
		})
		require.NoError(t, err)
		assert.ErrorIs(t, w.Finish(), boom)
	})
}

type failingVerifier struct {
	writeErr error
	closed   bool
}

func (v *failingVerifier) Write(p []byte) (int, error) {
	if v.writeErr != nil {
		return 0, v.writeErr
	}

	return len(p), nil
}

func (v *failingVerifier) Verify([]byte) (bool, error) { return true, nil }

func (v *failingVerifier) Close() error {
	v.closed = true
	return nil
}

type failWriter struct {
	err error
}

func (w failWriter) Write([]byte) (int, error) { return 0, w.err }

func TestReaderErrors(t *testing.T) {
	keys := NewKeySet(Key{Key: testSecret(t, 32)})
	valid := signDetached(t, NewHeader(), HS256, keys, []byte("payload"), 7)
	encodedHeader, encodedSig, _ := strings.Cut(string(valid), "..")

	malformed := map[string]string{
		"no delimiter":          encodedHeader + "." + encodedSig,
		"embedded payload":      encodedHeader + ".cGF5bG9hZA." + encodedSig,
		"four segments":         encodedHeader + ".." + encodedSig + ".",
		"empty header":          ".." + encodedSig,
		"header length mod 4":   "A.." + encodedSig,
		"signature length mod4": encodedHeader + "..A",
		"header not json":       base64URL([]byte("not json")) + ".." + encodedSig,
		"header not object":     base64URL([]byte(`["HS256"]`)) + ".." + encodedSig,
		"empty input":           "",
	}

	for name, compact := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader([]byte(compact), keys.VerifierFactory())
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	t.Run("codec errors are exposed", func(t *testing.T) {
		_, err := NewReader([]byte("A.."+encodedSig), keys.VerifierFactory())
		assert.ErrorIs(t, err, base64url.ErrFormat)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		compact := base64URL([]byte(`{"alg":"none"}`)) + ".." + encodedSig

		_, err := NewReader([]byte(compact), keys.VerifierFactory())
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("missing alg", func(t *testing.T) {
		compact := base64URL([]byte(`{"custom":"value"}`)) + ".." + encodedSig

		_, err := NewReader([]byte(compact), keys.VerifierFactory())
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("missing factory", func(t *testing.T) {
		_, err := NewReader(valid, nil)
		assert.ErrorIs(t, err, ErrNoFactory)
	})

	t.Run("verifier write error releases verifier", func(t *testing.T) {
		boom := errors.New("boom")
		verifier := &failingVerifier{writeErr: boom}

		_, err := NewReader(valid, func(*Header) (Verifier, error) { return verifier, nil })
		assert.ErrorIs(t, err, boom)
		assert.True(t, verifier.closed)
	})

	t.Run("close releases verifier", func(t *testing.T) {
		verifier := &failingVerifier{}

		r, err := NewReader(valid, func(*Header) (Verifier, error) { return verifier, nil })
		require.NoError(t, err)
		assert.False(t, verifier.closed)

		require.NoError(t, r.Close())
		assert.True(t, verifier.closed)
	})

	t.Run("verify twice", func(t *testing.T) {
		r, err := NewReader(valid, keys.VerifierFactory())
		require.NoError(t, err)

		_, err = r.Write([]byte("payload"))
		require.NoError(t, err)

		h, err := r.Verify()
		require.NoError(t, err)
		require.NotNil(t, h)

		_, err = r.Verify()
		assert.ErrorIs(t, err, ErrFinished)

		_, err = r.Write([]byte("more"))
		assert.ErrorIs(t, err, ErrFinished)
	})

	t.Run("verify helper reports mismatch as error", func(t *testing.T) {
		_, err := Verify(valid, strings.NewReader("other"), keys.VerifierFactory())
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})
}

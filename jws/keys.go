package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"hash"
	"math/big"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

// NewSigner returns a streaming Signer for alg.
//
// Key types by algorithm family:
//
//   - HS*: []byte, at least as long as the hash output
//   - RS*, PS*: *rsa.PrivateKey of at least 2048 bits
//   - ES*: *ecdsa.PrivateKey on the matching curve
func NewSigner(alg Algorithm, key any) (Signer, error) {
	switch alg {
	case HS256, HS384, HS512:
		secret, err := hmacKey(alg, key)
		if err != nil {
			return nil, err
		}

		return &hmacSigner{mac: hmac.New(alg.hash().New, secret)}, nil

	case RS256, RS384, RS512, PS256, PS384, PS512:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok || priv == nil {
			return nil, fmt.Errorf("%w: %s requires *rsa.PrivateKey, got %T", ErrInvalidKey, alg, key)
		}

		if err := checkRSAKey(&priv.PublicKey); err != nil {
			return nil, err
		}

		return &rsaSigner{
			digest: digest{h: alg.hash().New()},
			hash:   alg.hash(),
			key:    priv,
			pss:    isPSS(alg),
		}, nil

	case ES256, ES384, ES512:
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok || priv == nil {
			return nil, fmt.Errorf("%w: %s requires *ecdsa.PrivateKey, got %T", ErrInvalidKey, alg, key)
		}

		if err := checkCurve(alg, &priv.PublicKey); err != nil {
			return nil, err
		}

		return &ecdsaSigner{digest: digest{h: alg.hash().New()}, key: priv}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// NewVerifier returns a streaming Verifier for alg.
//
// Asymmetric algorithms accept either the public key or the private key of
// the pair; HS* accepts the shared []byte secret.
func NewVerifier(alg Algorithm, key any) (Verifier, error) {
	switch alg {
	case HS256, HS384, HS512:
		secret, err := hmacKey(alg, key)
		if err != nil {
			return nil, err
		}

		return &hmacVerifier{mac: hmac.New(alg.hash().New, secret)}, nil

	case RS256, RS384, RS512, PS256, PS384, PS512:
		var pub *rsa.PublicKey

		switch k := key.(type) {
		case *rsa.PublicKey:
			pub = k
		case *rsa.PrivateKey:
			if k != nil {
				pub = &k.PublicKey
			}
		}

		if pub == nil {
			return nil, fmt.Errorf("%w: %s requires *rsa.PublicKey, got %T", ErrInvalidKey, alg, key)
		}

		if err := checkRSAKey(pub); err != nil {
			return nil, err
		}

		return &rsaVerifier{
			digest: digest{h: alg.hash().New()},
			hash:   alg.hash(),
			key:    pub,
			pss:    isPSS(alg),
		}, nil

	case ES256, ES384, ES512:
		var pub *ecdsa.PublicKey

		switch k := key.(type) {
		case *ecdsa.PublicKey:
			pub = k
		case *ecdsa.PrivateKey:
			if k != nil {
				pub = &k.PublicKey
			}
		}

		if pub == nil {
			return nil, fmt.Errorf("%w: %s requires *ecdsa.PublicKey, got %T", ErrInvalidKey, alg, key)
		}

		if err := checkCurve(alg, pub); err != nil {
			return nil, err
		}

		return &ecdsaVerifier{digest: digest{h: alg.hash().New()}, key: pub}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// digest accumulates the signing input into a running hash.
type digest struct {
	h hash.Hash
}

func (d *digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

func (d *digest) sum() []byte {
	return d.h.Sum(nil)
}

// --- HMAC ---

type hmacSigner struct {
	mac hash.Hash
}

func (s *hmacSigner) Write(p []byte) (int, error) { return s.mac.Write(p) }

func (s *hmacSigner) Sign() ([]byte, error) {
	return s.mac.Sum(nil), nil
}

type hmacVerifier struct {
	mac hash.Hash
}

func (v *hmacVerifier) Write(p []byte) (int, error) { return v.mac.Write(p) }

func (v *hmacVerifier) Verify(signature []byte) (bool, error) {
	return hmac.Equal(v.mac.Sum(nil), signature), nil
}

func hmacKey(alg Algorithm, key any) ([]byte, error) {
	secret, ok := key.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires []byte, got %T", ErrInvalidKey, alg, key)
	}

	// RFC 7518 Section 3.2: the key must be at least as long as the hash.
	if minLen := alg.hash().Size(); len(secret) < minLen {
		return nil, fmt.Errorf("%w: %s key must be at least %d bytes", ErrInvalidKey, alg, minLen)
	}

	return append([]byte(nil), secret...), nil
}

// --- RSA ---

type rsaSigner struct {
	digest
	hash crypto.Hash
	key  *rsa.PrivateKey
	pss  bool
}

func (s *rsaSigner) Sign() ([]byte, error) {
	if s.pss {
		return rsa.SignPSS(rand.Reader, s.key, s.hash, s.sum(), &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	}

	return rsa.SignPKCS1v15(rand.Reader, s.key, s.hash, s.sum())
}

type rsaVerifier struct {
	digest
	hash crypto.Hash
	key  *rsa.PublicKey
	pss  bool
}

func (v *rsaVerifier) Verify(signature []byte) (bool, error) {
	var err error
	if v.pss {
		err = rsa.VerifyPSS(v.key, v.hash, v.sum(), signature, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	} else {
		err = rsa.VerifyPKCS1v15(v.key, v.hash, v.sum(), signature)
	}

	return err == nil, nil
}

func isPSS(alg Algorithm) bool {
	return alg == PS256 || alg == PS384 || alg == PS512
}

func checkRSAKey(key *rsa.PublicKey) error {
	if key.N == nil || key.N.BitLen() < minRSAKeyBits {
		return fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return nil
}

// --- ECDSA ---

// ECDSA signatures are the fixed-width concatenation R || S
// (RFC 7518 Section 3.4), not ASN.1.

type ecdsaSigner struct {
	digest
	key *ecdsa.PrivateKey
}

func (s *ecdsaSigner) Sign() ([]byte, error) {
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, s.sum())
	if err != nil {
		return nil, err
	}

	size := curveBytes(s.key.Curve)
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	sv.FillBytes(out[size:])

	return out, nil
}

type ecdsaVerifier struct {
	digest
	key *ecdsa.PublicKey
}

func (v *ecdsaVerifier) Verify(signature []byte) (bool, error) {
	size := curveBytes(v.key.Curve)
	if len(signature) != 2*size {
		return false, nil
	}

	r := new(big.Int).SetBytes(signature[:size])
	s := new(big.Int).SetBytes(signature[size:])

	return ecdsa.Verify(v.key, v.sum(), r, s), nil
}

func curveBytes(c elliptic.Curve) int {
	return (c.Params().BitSize + 7) / 8
}

func checkCurve(alg Algorithm, key *ecdsa.PublicKey) error {
	var want elliptic.Curve

	switch alg {
	case ES256:
		want = elliptic.P256()
	case ES384:
		want = elliptic.P384()
	case ES512:
		want = elliptic.P521()
	}

	if key.Curve != want {
		return fmt.Errorf("%w: %s requires curve %s", ErrInvalidKey, alg, want.Params().Name)
	}

	return nil
}

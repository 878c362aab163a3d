package jws

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"slices"
)

// Key binds key material to an optional key ID and algorithm.
type Key struct {
	// ID is matched against the kid header parameter. Headers without kid
	// match any key.
	ID string

	// Algorithm restricts the key to one algorithm. When empty the key is
	// used for any algorithm its type supports.
	Algorithm Algorithm

	// Key is the key material: []byte, *rsa.PrivateKey, *rsa.PublicKey,
	// *ecdsa.PrivateKey or *ecdsa.PublicKey, or any type accepted by a
	// registered constructor.
	Key any
}

// SignerConstructor builds a Signer from key material.
type SignerConstructor func(key any) (Signer, error)

// VerifierConstructor builds a Verifier from key material.
type VerifierConstructor func(key any) (Verifier, error)

type constructors struct {
	signer   SignerConstructor
	verifier VerifierConstructor
}

// KeySet resolves signers and verifiers from header parameters. The alg
// parameter selects the algorithm and kid, when present, selects the key.
//
// A KeySet must not be modified while factories obtained from it are in use.
type KeySet struct {
	keys  []Key
	algos map[Algorithm]constructors
}

// NewKeySet returns a KeySet holding keys.
func NewKeySet(keys ...Key) *KeySet {
	return &KeySet{keys: slices.Clone(keys)}
}

// Add appends keys to the set.
func (s *KeySet) Add(keys ...Key) {
	s.keys = append(s.keys, keys...)
}

// Keys returns the keys in the set.
func (s *KeySet) Keys() []Key {
	return slices.Clone(s.keys)
}

// Register installs constructors for an algorithm in this set, replacing
// the built-in implementation if there is one. Either constructor may be
// nil when the set is only used for signing or only for verification.
func (s *KeySet) Register(alg Algorithm, signer SignerConstructor, verifier VerifierConstructor) {
	if s.algos == nil {
		s.algos = make(map[Algorithm]constructors)
	}

	s.algos[alg] = constructors{signer: signer, verifier: verifier}
}

// SignerFactory returns a SignerFactory backed by the set.
func (s *KeySet) SignerFactory() SignerFactory {
	return func(h *Header) (Signer, error) {
		alg, key, err := s.resolve(h)
		if err != nil {
			return nil, err
		}

		if c, ok := s.algos[alg]; ok {
			if c.signer == nil {
				return nil, fmt.Errorf("%w: %q cannot sign", ErrUnsupportedAlgorithm, alg)
			}

			return c.signer(key.Key)
		}

		return NewSigner(alg, key.Key)
	}
}

// VerifierFactory returns a VerifierFactory backed by the set.
func (s *KeySet) VerifierFactory() VerifierFactory {
	return func(h *Header) (Verifier, error) {
		alg, key, err := s.resolve(h)
		if err != nil {
			return nil, err
		}

		if c, ok := s.algos[alg]; ok {
			if c.verifier == nil {
				return nil, fmt.Errorf("%w: %q cannot verify", ErrUnsupportedAlgorithm, alg)
			}

			return c.verifier(key.Key)
		}

		return NewVerifier(alg, key.Key)
	}
}

func (s *KeySet) resolve(h *Header) (Algorithm, Key, error) {
	alg := h.Algorithm()
	if alg == "" {
		return "", Key{}, fmt.Errorf("%w: missing alg header parameter", ErrUnsupportedAlgorithm)
	}

	_, registered := s.algos[alg]
	if !registered && alg.hash() == 0 {
		return "", Key{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	kid := h.KeyID()

	for _, k := range s.keys {
		if kid != "" && k.ID != kid {
			continue
		}

		if k.Algorithm != "" && k.Algorithm != alg {
			continue
		}

		if !registered && !keyFits(alg, k.Key) {
			continue
		}

		return alg, k, nil
	}

	return "", Key{}, fmt.Errorf("%w: alg %q kid %q", ErrKeyNotFound, alg, kid)
}

// keyFits reports whether key has a type usable with a built-in algorithm.
func keyFits(alg Algorithm, key any) bool {
	switch k := key.(type) {
	case []byte:
		return alg == HS256 || alg == HS384 || alg == HS512
	case *rsa.PrivateKey, *rsa.PublicKey:
		return alg == RS256 || alg == RS384 || alg == RS512 || isPSS(alg)
	case *ecdsa.PrivateKey:
		return k != nil && isECDSA(alg) && checkCurve(alg, &k.PublicKey) == nil
	case *ecdsa.PublicKey:
		return k != nil && isECDSA(alg) && checkCurve(alg, k) == nil
	default:
		return false
	}
}

func isECDSA(alg Algorithm) bool {
	return alg == ES256 || alg == ES384 || alg == ES512
}

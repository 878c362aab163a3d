package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// defaultRSABits is the modulus size used by GenerateKey.
const defaultRSABits = 2048

// ParseJWK parses a single JSON Web Key (RFC 7517).
func ParseJWK(data []byte) (Key, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	return keyFromJWK(jwk)
}

// ParseJWKSet parses a JSON Web Key Set. A single JSON Web Key is accepted
// as a set of one.
func ParseJWKSet(data []byte) (*KeySet, error) {
	var envelope struct {
		Keys json.RawMessage `json:"keys"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if envelope.Keys == nil {
		key, err := ParseJWK(data)
		if err != nil {
			return nil, err
		}

		return NewKeySet(key), nil
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	keys := NewKeySet()

	for _, jwk := range set.Keys {
		key, err := keyFromJWK(jwk)
		if err != nil {
			return nil, err
		}

		keys.Add(key)
	}

	return keys, nil
}

// MarshalJWK encodes a key as an indented JSON Web Key with use "sig". When
// public is set only the public half of an asymmetric key is written;
// symmetric keys have no public half and are rejected.
func MarshalJWK(key Key, public bool) ([]byte, error) {
	jwk := jose.JSONWebKey{
		Key:       key.Key,
		KeyID:     key.ID,
		Algorithm: string(key.Algorithm),
		Use:       "sig",
	}

	_, symmetric := key.Key.([]byte)

	if public {
		if symmetric {
			return nil, fmt.Errorf("%w: symmetric key has no public part", ErrInvalidKey)
		}

		jwk = jwk.Public()
	}

	if !symmetric && !jwk.Valid() {
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, key.Key)
	}

	return json.MarshalIndent(jwk, "", "  ")
}

// GenerateKey creates new key material for alg with a time-ordered UUIDv7
// key ID. RSA keys are 2048 bits; HMAC secrets are as long as the hash.
func GenerateKey(alg Algorithm) (Key, error) {
	var (
		material any
		err      error
	)

	switch alg {
	case HS256, HS384, HS512:
		secret := make([]byte, alg.hash().Size())
		_, err = rand.Read(secret)
		material = secret
	case RS256, RS384, RS512, PS256, PS384, PS512:
		material, err = rsa.GenerateKey(rand.Reader, defaultRSABits)
	case ES256:
		material, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case ES384:
		material, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case ES512:
		material, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	default:
		return Key{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	if err != nil {
		return Key{}, fmt.Errorf("jws: generate %s key: %w", alg, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Key{}, fmt.Errorf("jws: generate key id: %w", err)
	}

	return Key{ID: id.String(), Algorithm: alg, Key: material}, nil
}

func keyFromJWK(jwk jose.JSONWebKey) (Key, error) {
	if jwk.Use != "" && jwk.Use != "sig" {
		return Key{}, fmt.Errorf("%w: key %q has use %q", ErrInvalidKey, jwk.KeyID, jwk.Use)
	}

	return Key{
		ID:        jwk.KeyID,
		Algorithm: Algorithm(jwk.Algorithm),
		Key:       jwk.Key,
	}, nil
}

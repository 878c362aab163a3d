package jws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Header parameter names used by this package.
const (
	HeaderAlgorithm = "alg"
	HeaderKeyID     = "kid"
)

// Header is a JOSE header: a JSON object whose members keep their insertion
// order. Values are held as compact JSON and written back verbatim, so
// parameters this package does not understand survive a round trip.
//
// The zero value is an empty header ready to use.
type Header struct {
	names  []string
	values map[string]json.RawMessage
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{}
}

// Len returns the number of parameters.
func (h *Header) Len() int {
	return len(h.names)
}

// Names returns the parameter names in order.
func (h *Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Has reports whether the parameter is present.
func (h *Header) Has(name string) bool {
	_, ok := h.values[name]
	return ok
}

// Set marshals value and stores it under name. An existing parameter keeps
// its position.
func (h *Header) Set(name string, value any) error {
	raw, err := marshalCompact(value)
	if err != nil {
		return fmt.Errorf("jws: header parameter %q: %w", name, err)
	}

	h.setRaw(name, raw)

	return nil
}

// SetRaw stores a JSON value under name. The value must be valid JSON.
func (h *Header) SetRaw(name string, value json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return fmt.Errorf("jws: header parameter %q: %w", name, err)
	}

	h.setRaw(name, buf.Bytes())

	return nil
}

func (h *Header) setRaw(name string, raw json.RawMessage) {
	if h.values == nil {
		h.values = make(map[string]json.RawMessage)
	}

	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}

	h.values[name] = raw
}

// Delete removes a parameter.
func (h *Header) Delete(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}

	delete(h.values, name)

	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Raw returns the JSON value of a parameter.
func (h *Header) Raw(name string) (json.RawMessage, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Decode unmarshals a parameter into dst. It returns false when the
// parameter is absent.
func (h *Header) Decode(name string, dst any) (bool, error) {
	raw, ok := h.values[name]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("jws: header parameter %q: %w", name, err)
	}

	return true, nil
}

// GetString returns a string parameter. It returns false when the parameter is
// absent or not a JSON string.
func (h *Header) GetString(name string) (string, bool) {
	var s string
	if ok, err := h.Decode(name, &s); !ok || err != nil {
		return "", false
	}

	return s, true
}

// Algorithm returns the alg parameter, or an empty Algorithm when it is
// absent or not a string.
func (h *Header) Algorithm() Algorithm {
	alg, _ := h.GetString(HeaderAlgorithm)
	return Algorithm(alg)
}

// SetAlgorithm sets the alg parameter.
func (h *Header) SetAlgorithm(alg Algorithm) {
	raw, _ := marshalCompact(string(alg))
	h.setRaw(HeaderAlgorithm, raw)
}

// KeyID returns the kid parameter, or an empty string when it is absent.
func (h *Header) KeyID() string {
	kid, _ := h.GetString(HeaderKeyID)
	return kid
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	c := &Header{names: h.Names()}
	if h.values != nil {
		c.values = make(map[string]json.RawMessage, len(h.values))
		for k, v := range h.values {
			c.values[k] = append(json.RawMessage(nil), v...)
		}
	}

	return c
}

// MarshalJSON encodes the header as a compact JSON object with members in
// insertion order.
func (h *Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, name := range h.names {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := marshalCompact(name)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(h.values[name])
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the header with the members of a JSON object.
// Duplicate member names are rejected.
func (h *Header) UnmarshalJSON(data []byte) error {
	parsed, err := parseHeader(data)
	if err != nil {
		return err
	}

	*h = *parsed

	return nil
}

// parseHeader decodes a JSON object, rejecting duplicate names and trailing
// data. Errors wrap ErrMalformed.
func parseHeader(data []byte) (*Header, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: header is not a json object", ErrMalformed)
	}

	h := NewHeader()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
		}

		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: header member name is not a string", ErrMalformed)
		}

		if h.Has(name) {
			return nil, fmt.Errorf("%w: duplicate header parameter %q", ErrMalformed, name)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: header parameter %q: %w", ErrMalformed, name, err)
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, fmt.Errorf("%w: header parameter %q: %w", ErrMalformed, name, err)
		}

		h.setRaw(name, buf.Bytes())
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after header", ErrMalformed)
	}

	return h, nil
}

// marshalCompact encodes v as JSON without HTML escaping or a trailing
// newline.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ErrAmbiguousKey is returned for objects whose members cannot be read the
// same way by every JSON parser.
var ErrAmbiguousKey = errors.New("ambiguous object key")

var errNotObject = errors.New("not a json object")

// decodeObject splits a JSON object into its members, keyed exactly as
// written. Repeated keys, keys that differ only by case, and data after
// the object are rejected.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	fields := make(map[string]json.RawMessage)
	folded := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		fk := foldKey(key)
		if prev, seen := folded[fk]; seen {
			return nil, fmt.Errorf("%w: %q and %q", ErrAmbiguousKey, prev, key)
		}
		folded[fk] = key

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields[key] = value
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after json object")
	}
	return fields, nil
}

// foldKey maps every rune to the smallest rune of its case-folding orbit,
// so keys equal under Unicode simple folding share one form.
func foldKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		low := r
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			if f < low {
				low = f
			}
		}
		b.WriteRune(low)
	}
	return b.String()
}

// stringMember returns the string member key of fields. A missing key
// yields "". A present key holding anything but a string is an error.
func stringMember(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("member %q: %w", key, err)
	}
	return s, nil
}

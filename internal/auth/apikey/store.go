package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avamcp/internal/auth"
)

// Errors returned while building a store.
var (
	ErrInvalidDigest = errors.New("key digest must be a SHA-256 value in hex or base64")
	ErrDuplicateID   = errors.New("duplicate key id")
	ErrEmptyID       = errors.New("key id is empty")
)

// Entry is one registered key.
type Entry struct {
	ID      string
	Name    string
	Digest  []byte
	Allowed []string
	Quota   *auth.Quota
}

// Store is an immutable set of key digests.
type Store struct {
	entries []Entry
}

// NewStore validates and copies entries.
func NewStore(entries []Entry) (*Store, error) {
	seen := make(map[string]struct{}, len(entries))
	copied := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if e.ID == "" {
			return nil, ErrEmptyID
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		if len(e.Digest) != sha256.Size {
			return nil, fmt.Errorf("%w: entry %s", ErrInvalidDigest, e.ID)
		}
		seen[e.ID] = struct{}{}

		e.Digest = append([]byte(nil), e.Digest...)
		e.Allowed = append([]string(nil), e.Allowed...)
		copied = append(copied, e)
	}

	return &Store{entries: copied}, nil
}

// Len returns the number of registered keys.
func (s *Store) Len() int {
	return len(s.entries)
}

// Lookup returns the entry whose digest matches key. Every entry is
// compared; the selection is branch-free so timing reveals nothing about
// the matching position.
func (s *Store) Lookup(key string) (Entry, bool) {
	sum := sha256.Sum256([]byte(key))

	match := -1
	for i := range s.entries {
		eq := subtle.ConstantTimeCompare(sum[:], s.entries[i].Digest)
		match = subtle.ConstantTimeSelect(eq, i, match)
	}

	if match < 0 {
		return Entry{}, false
	}
	return s.entries[match], true
}

// HashKey returns the standard base64 SHA-256 digest of key, the format
// used in configuration files.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ParseDigest decodes a configured digest in hex, standard base64 or
// URL-safe base64.
func ParseDigest(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	decoders := []func(string) ([]byte, error){
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
	}
	for _, decode := range decoders {
		if b, err := decode(s); err == nil && len(b) == sha256.Size {
			return b, nil
		}
	}
	return nil, ErrInvalidDigest
}

// Package id generates and parses record primary keys.
package id

import (
	"github.com/google/uuid"
)

// ID is the primary key of every record.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, so keys sort by creation time.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse parses the canonical text form.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero ID, used for records not stored yet.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// ParseAll parses the selection of a bulk action, failing on the first
// malformed value.
func ParseAll(values []string) ([]ID, error) {
	ids := make([]ID, 0, len(values))
	for _, v := range values {
		parsed, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

// Package idgen generates and parses the UUIDs used as record identifiers.
package idgen

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Version selects a UUID variant.
type Version uint8

const (
	V4 Version = 4
	V7 Version = 7
)

// canonicalLen is the length of the hyphenated xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.
const canonicalLen = 36

var ErrNotCanonical = errors.New("identifier is not a canonical UUID")

/***************
 * UUID v4
 ***************/

type v4Gen struct{}

// NewV4 returns a Generator that produces UUID v4 values.
func NewV4() Generator { return v4Gen{} }

func (v4Gen) Generate() (uuid.UUID, error) {
	return uuid.NewRandom()
}

/***************
 * UUID v7
 ***************/

type v7Gen struct {
	maxRetries int
}

type V7Option func(*v7Gen)

// WithRetries sets how many times to retry uuid.NewV7() after the initial attempt.
// Defaults to 1. Set to 0 to disable retries.
func WithRetries(n int) V7Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// NewV7 returns a Generator that produces time-ordered UUID v7 values.
func NewV7(opts ...V7Option) Generator {
	g := &v7Gen{maxRetries: 1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		id, err := uuid.NewV7()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.maxRetries+1, last)
}

// New returns a Generator for the requested UUID version.
// Unknown versions fall back to v4.
func New(v Version, v7opts ...V7Option) Generator {
	switch v {
	case V7:
		return NewV7(v7opts...)
	default:
		return NewV4()
	}
}

// Parse accepts only the canonical hyphenated text form of a UUID, of any
// version or variant. The braced, urn:uuid: and bare 32-hex forms that
// uuid.Parse tolerates are rejected.
func Parse(s string) (uuid.UUID, error) {
	if len(s) != canonicalLen {
		return uuid.Nil, ErrNotCanonical
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrNotCanonical, err)
	}
	return id, nil
}

// Valid reports whether s is a canonical UUID.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Package shortcode generates the short codes assigned to shortened
// URLs. Codes are drawn from a fixed alphabet either at random, derived
// deterministically from the destination URL, or a hybrid of the two,
// with uniqueness enforced against an injected existence check.
package shortcode

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// DefaultAlphabet is the alphanumeric-plus-separator character set
	// codes are drawn from.
	DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	// MinLength and MaxLength bound the accepted code length.
	MinLength = 3
	MaxLength = 30

	// attemptsPerChar scales the uniqueness retry budget with the
	// requested length.
	attemptsPerChar = 10
)

// ErrExhausted is returned when the uniqueness retry budget runs out.
// The caller may retry later or widen the alphabet or length.
var ErrExhausted = errors.New("short code attempts exhausted")

// ExistsFunc reports whether a candidate code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces short codes of a fixed length over a fixed alphabet.
type Generator struct {
	alphabet string
	length   int
	salt     string
	randSrc  io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithAlphabet overrides the default alphabet.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) {
		g.alphabet = alphabet
	}
}

// WithSalt sets the salt mixed into deterministic codes.
func WithSalt(salt string) Option {
	return func(g *Generator) {
		g.salt = salt
	}
}

// WithRandSource overrides the randomness source, e.g. for tests.
func WithRandSource(r io.Reader) Option {
	return func(g *Generator) {
		g.randSrc = r
	}
}

// New returns a Generator for codes of the given length.
func New(length int, opts ...Option) (*Generator, error) {
	const op = "shortcode.New"

	g := &Generator{
		alphabet: DefaultAlphabet,
		length:   length,
		randSrc:  rand.Reader,
	}

	for _, opt := range opts {
		opt(g)
	}

	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("%s: length must be between %d and %d, got %d", op, MinLength, MaxLength, length)
	}
	if len(g.alphabet) < 2 || len(g.alphabet) > 256 {
		return nil, fmt.Errorf("%s: alphabet must hold between 2 and 256 characters, got %d", op, len(g.alphabet))
	}
	// codes are built byte-wise, so a multibyte rune in the alphabet
	// would be sliced into invalid UTF-8 fragments
	for i := 0; i < len(g.alphabet); i++ {
		if g.alphabet[i] >= utf8.RuneSelf {
			return nil, fmt.Errorf("%s: alphabet must contain only ASCII characters", op)
		}
	}

	return g, nil
}

// Random draws a code uniformly from the alphabet. Each character comes
// from a 32-bit draw narrowed by rejection sampling, so no character is
// favored by modulo bias.
func (g *Generator) Random() (string, error) {
	const op = "shortcode.Generator.Random"

	code := make([]byte, g.length)
	for i := range code {
		c, err := g.randomChar()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		code[i] = c
	}

	return string(code), nil
}

func (g *Generator) randomChar() (byte, error) {
	n := uint64(len(g.alphabet))
	// largest multiple of n that fits in 32 bits; draws at or above it
	// are rejected
	bound := (uint64(1) << 32) / n * n

	var buf [4]byte
	for {
		if _, err := io.ReadFull(g.randSrc, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read random bytes: %w", err)
		}
		v := uint64(binary.BigEndian.Uint32(buf[:]))
		if v < bound {
			return g.alphabet[v%n], nil
		}
	}
}

// Deterministic derives a code from input: the salted SHA-256 digest is
// mapped byte by byte onto the alphabet and truncated to the configured
// length. The same (input, salt, length, alphabet) always yields the
// same code; the truncated digest space makes collisions possible by
// construction.
func (g *Generator) Deterministic(input string) string {
	digest := sha256.Sum256([]byte(g.salt + input))

	code := make([]byte, g.length)
	for i := range code {
		code[i] = g.alphabet[int(digest[i%len(digest)])%len(g.alphabet)]
	}

	return string(code)
}

// Unique generates random candidates until exists reports one free,
// giving up with ErrExhausted after a budget proportional to the code
// length.
func (g *Generator) Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	const op = "shortcode.Generator.Unique"

	maxAttempts := attemptsPerChar * g.length
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := g.Random()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check candidate: %w", op, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrExhausted)
}

// Hybrid tries the deterministic code for input first and falls back to
// random generation with uniqueness retries when it is taken.
func (g *Generator) Hybrid(ctx context.Context, input string, exists ExistsFunc) (string, error) {
	const op = "shortcode.Generator.Hybrid"

	code := g.Deterministic(input)

	taken, err := exists(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: failed to check candidate: %w", op, err)
	}
	if !taken {
		return code, nil
	}

	return g.Unique(ctx, exists)
}

// Package secret generates human-typable pre-shared keys.
package secret

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Alphabet excludes visually ambiguous characters (0/O, 1/l/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// Passphrase length bounds.
const (
	MinLength     = 12
	MaxLength     = 16
	DefaultLength = 12
)

// Service defines the interface for passphrase generation.
type Service interface {
	Generate(length int) (string, error)
}

// Impl draws characters from a cryptographically secure source.
type Impl struct {
	random io.Reader
}

// New creates a generator backed by crypto/rand.
func New() *Impl {
	return &Impl{random: rand.Reader}
}

// NewWithReader creates a generator with a custom random source (for testing).
func NewWithReader(r io.Reader) *Impl {
	return &Impl{random: r}
}

// Generate returns a fresh passphrase of the given length. Nothing is cached:
// every call draws new randomness.
func (g *Impl) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("passphrase length must be between %d and %d, got %d", MinLength, MaxLength, length)
	}

	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}

	return string(out), nil
}

package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// HashBuilder accumulates labelled values into a stable fingerprint
type HashBuilder struct {
	buf []byte
}

// WriteString appends a length-prefixed string
func (b *HashBuilder) WriteString(s string) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(len(s)))
	b.buf = append(b.buf, s...)
}

// WriteFloat appends the IEEE-754 bits of f
func (b *HashBuilder) WriteFloat(f float64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, math.Float64bits(f))
}

// WriteInt appends a signed integer
func (b *HashBuilder) WriteInt(n int) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(n))
}

// Sum returns the fingerprint of everything written so far
func (b *HashBuilder) Sum() Hash {
	return NewHash(b.buf)
}

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

// Short returns the first 12 hex characters, enough for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Fingerprinter accumulates strings and float64 values into a sha256 digest.
// Floats are hashed by their IEEE-754 bits, so identical matrices hash
// identically and any single-bit difference changes the digest.
type Fingerprinter struct {
	buf []byte
}

func (f *Fingerprinter) String(s string) *Fingerprinter {
	f.Int(len(s))
	f.buf = append(f.buf, s...)
	return f
}

func (f *Fingerprinter) Int(v int) *Fingerprinter {
	f.buf = binary.LittleEndian.AppendUint64(f.buf, uint64(v))
	return f
}

func (f *Fingerprinter) Float(v float64) *Fingerprinter {
	f.buf = binary.LittleEndian.AppendUint64(f.buf, math.Float64bits(v))
	return f
}

func (f *Fingerprinter) Sum() Hash {
	return NewHash(f.buf)
}

// DeriveSeed derives an independent, reproducible seed for a named stream
// (e.g. "assignment", "sampling", "bootstrap") from a run's root seed.
func DeriveSeed(root uint64, stream string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], root)
	sum := sha256.Sum256(append(buf[:], stream...))
	return binary.LittleEndian.Uint64(sum[:8])
}

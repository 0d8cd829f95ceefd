// Package field provides the scalar, vector, matrix and polynomial
// arithmetic used throughout the proof system. All algebra is over the
// BN254 scalar field; elements serialize as 32-byte little-endian
// canonical encodings.
package field

import (
	"fmt"
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Bytes is the serialized size of one field element.
const Bytes = fr.Bytes

// Log2Order returns log2 of the field order, used to budget challenge
// bits when decoding XOF output into leaf indices.
func Log2Order() float64 {
	f, _ := new(big.Float).SetInt(fr.Modulus()).Float64()
	return math.Log2(f)
}

// FromUint32 sets e to the field element representing a.
func FromUint32(e *fr.Element, a uint32) {
	e.SetUint64(uint64(a))
}

// ToUint32 returns the low 32 bits of the canonical integer
// representation of e.
func ToUint32(e *fr.Element) uint32 {
	var b big.Int
	e.BigInt(&b)
	return uint32(b.Uint64())
}

// PutElement writes the canonical little-endian encoding of e into
// buf[:Bytes].
func PutElement(buf []byte, e *fr.Element) {
	fr.LittleEndian.PutElement((*[Bytes]byte)(buf[:Bytes]), *e)
}

// GetElement parses a canonical little-endian encoding from buf[:Bytes].
// Non-canonical encodings (values not reduced modulo the field order)
// are rejected.
func GetElement(e *fr.Element, buf []byte) error {
	v, err := fr.LittleEndian.Element((*[Bytes]byte)(buf[:Bytes]))
	if err != nil {
		return fmt.Errorf("field: non-canonical element encoding: %w", err)
	}
	e.Set(&v)
	return nil
}

// Random samples a uniform field element from crypto/rand.
func Random(e *fr.Element) error {
	if _, err := e.SetRandom(); err != nil {
		return fmt.Errorf("field: sampling failed: %w", err)
	}
	return nil
}

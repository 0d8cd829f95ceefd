// Package xof provides the deterministic hashing used for commitments
// and Fiat-Shamir challenges: a SHAKE256-based extendable-output
// function for arbitrary-length inputs, and Poseidon2-based 2-to-1 and
// 4-to-1 compressions for the fixed-width hashing inside Merkle trees.
package xof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	"golang.org/x/crypto/sha3"

	"github.com/MuriData/capss/pkg/field"
)

// DigestSize is the byte size of all commitment digests (one field
// element).
const DigestSize = 32

// Digest is a commitment digest.
type Digest [DigestSize]byte

// Sum hashes the concatenation of the inputs into a digest.
func Sum(inputs ...[]byte) Digest {
	var d Digest
	h := sha3.NewShake256()
	for _, in := range inputs {
		h.Write(in)
	}
	h.Read(d[:])
	return d
}

// Expand fills out with XOF output of the concatenated inputs.
func Expand(out []byte, inputs ...[]byte) {
	h := sha3.NewShake256()
	for _, in := range inputs {
		h.Write(in)
	}
	h.Read(out)
}

// feltChunk is the number of XOF bytes consumed per sampled field
// element; the 16-byte surplus over the field size keeps the modular
// reduction bias negligible.
const feltChunk = field.Bytes + 16

// SampleFelts derives n field elements from the XOF of the concatenated
// inputs.
func SampleFelts(n int, inputs ...[]byte) field.Vec {
	h := sha3.NewShake256()
	for _, in := range inputs {
		h.Write(in)
	}
	out := field.NewVec(n)
	var buf [feltChunk]byte
	for i := range out {
		h.Read(buf[:])
		out[i].SetBytes(buf[:])
	}
	return out
}

// Compress2 compresses two digests into one with the Poseidon2
// Merkle-Damgard hasher.
func Compress2(a, b Digest) Digest {
	return compress(a[:], b[:])
}

// Compress4 compresses four digests into one.
func Compress4(a, b, c, d Digest) Digest {
	return compress(a[:], b[:], c[:], d[:])
}

func compress(chunks ...[]byte) Digest {
	h := poseidon2.NewMerkleDamgardHasher()
	var e fr.Element
	for _, c := range chunks {
		// Digests carry little-endian element encodings; the hasher
		// consumes canonical big-endian blocks.
		e.SetBytes(reverse(c))
		eb := e.Bytes()
		h.Write(eb[:])
	}
	var d Digest
	e.SetBytes(h.Sum(nil))
	field.PutElement(d[:], &e)
	return d
}

func reverse(b []byte) []byte {
	r := make([]byte, len(b))
	for i := range b {
		r[i] = b[len(b)-1-i]
	}
	return r
}

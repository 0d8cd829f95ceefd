// Package anemoi implements the Anemoi arithmetization-oriented
// permutation used as the one-way function of the signature scheme: the
// round-key schedule, the open Flystel S-box layer and the MDS layer,
// together with the low-degree round verification residues consumed by
// the proof system.
package anemoi

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/xof"
)

// Permutation parameters of the BN254 instantiation: a single Flystel
// column (state width 2) with the degree-5 S-box.
const (
	StateSize = 2
	NumRounds = 21
	Alpha     = 5
	// RoundWitnessSize is the number of auxiliary witness elements per
	// round; the open Flystel needs none.
	RoundWitnessSize = 0
)

// generator is the constant g of the instantiation; beta = g and
// delta = g^-1.
const generator = 3

var (
	once        sync.Once
	beta, delta fr.Element
	alphaInvExp big.Int
	roundKeys   field.Vec
)

func params() {
	once.Do(func() {
		beta.SetUint64(generator)
		delta.SetUint64(generator)
		delta.Inverse(&delta)

		// Exponent of the alpha-th root map: Alpha^-1 mod (r-1).
		rMinus1 := new(big.Int).Sub(fr.Modulus(), big.NewInt(1))
		alphaInvExp.ModInverse(big.NewInt(Alpha), rMinus1)

		roundKeys = xof.SampleFelts(NumRounds*StateSize, []byte("anemoi-bn254-round-keys"))
	})
}

// SboxParameters returns (alpha, beta, delta) of the Flystel S-box.
func SboxParameters() (int, fr.Element, fr.Element) {
	params()
	return Alpha, beta, delta
}

// RoundKeys returns the NumRounds*StateSize round-key schedule, laid
// out round-major.
func RoundKeys() field.Vec {
	params()
	return roundKeys.Clone()
}

func mulByGenerator(c, a *fr.Element) {
	var g fr.Element
	g.SetUint64(generator)
	c.Mul(a, &g)
}

// MDS applies the MDS layer in place. Supported state widths are 2, 4,
// 6 and 8 (one to four Flystel columns).
func MDS(state field.Vec) {
	nbCols := len(state) / 2
	var tmp fr.Element
	switch nbCols {
	case 1:
		state[1].Add(&state[1], &state[0])
		state[0].Add(&state[0], &state[1])
	case 2:
		mulByGenerator(&tmp, &state[1])
		state[0].Add(&state[0], &tmp)
		mulByGenerator(&tmp, &state[0])
		state[1].Add(&state[1], &tmp)
		mulByGenerator(&tmp, &state[2])
		state[3].Add(&state[3], &tmp)
		mulByGenerator(&tmp, &state[3])
		state[2].Add(&state[2], &tmp)
		state[2], state[3] = state[3], state[2]
		state[2].Add(&state[2], &state[0])
		state[3].Add(&state[3], &state[1])
		state[0].Add(&state[0], &state[2])
		state[1].Add(&state[1], &state[3])
	case 3, 4:
		mdsInternal(state[:nbCols])
		rotateLeft(state[nbCols:])
		mdsInternal(state[nbCols:])
		// PHT layer
		for i := 0; i < nbCols; i++ {
			state[nbCols+i].Add(&state[nbCols+i], &state[i])
		}
		for i := 0; i < nbCols; i++ {
			state[i].Add(&state[i], &state[nbCols+i])
		}
	}
}

func mdsInternal(s field.Vec) {
	var tmp fr.Element
	switch len(s) {
	case 3:
		mulByGenerator(&tmp, &s[2])
		tmp.Add(&s[0], &tmp)
		s[2].Add(&s[2], &s[1])
		s[0].Add(&tmp, &s[2])
		s[1].Add(&s[1], &tmp)
	case 4:
		s[0].Add(&s[0], &s[1])
		s[2].Add(&s[2], &s[3])
		mulByGenerator(&tmp, &s[0])
		s[3].Add(&s[3], &tmp)
		tmp.Add(&s[1], &s[2])
		mulByGenerator(&s[1], &tmp)
		s[0].Add(&s[0], &s[1])
		mulByGenerator(&tmp, &s[3])
		s[2].Add(&s[2], &tmp)
		s[1].Add(&s[1], &s[2])
		s[3].Add(&s[3], &s[0])
	}
}

func rotateLeft(s field.Vec) {
	first := s[0]
	copy(s, s[1:])
	s[len(s)-1] = first
}

// Sbox applies the open Flystel layer, mapping (x, y) per column to
// (u, v) with t = x - beta*y^2, v = y - t^(1/alpha), u = t + beta*v^2 +
// delta.
func Sbox(out, in field.Vec) {
	params()
	nbCols := len(in) / 2
	var t, v, u, tmp fr.Element
	for i := 0; i < nbCols; i++ {
		x, y := in[i], in[nbCols+i]
		tmp.Mul(&y, &y)
		tmp.Mul(&tmp, &beta)
		t.Sub(&x, &tmp)

		tmp.Exp(t, &alphaInvExp)
		v.Sub(&y, &tmp)

		u.Mul(&v, &v)
		u.Mul(&u, &beta)
		u.Add(&u, &delta)
		u.Add(&u, &t)

		out[i] = u
		out[nbCols+i] = v
	}
}

// Round applies one full round (add round constants, MDS, S-box) to
// state in place. cst holds the StateSize round constants.
func Round(state field.Vec, cst field.Vec) {
	tmp := field.NewVec(len(state))
	tmp.Add(state, cst)
	MDS(tmp)
	Sbox(state, tmp)
}

// Permute applies the full permutation to state in place.
func Permute(state field.Vec) {
	params()
	for r := 0; r < NumRounds; r++ {
		Round(state, roundKeys[r*StateSize:(r+1)*StateSize])
	}
}

// VerificationResidues fills out with the per-column residues of one
// round transition from in to out-state: with (x, y) the state after
// round constants and MDS, t = x - beta*y^2,
//
//	R1 = (y-v)^alpha - t
//	R2 = u - (beta*v^2 + delta) - t
//
// Both vanish exactly when (u, v) is the S-box image of (x, y).
func VerificationResidues(out, inState, outState, cst field.Vec) {
	params()
	state := field.NewVec(len(inState))
	state.Add(inState, cst)
	MDS(state)

	nbCols := len(inState) / 2
	var t, tmp, yMinusV fr.Element
	for i := 0; i < nbCols; i++ {
		x, y := state[i], state[nbCols+i]
		u, v := outState[i], outState[nbCols+i]

		tmp.Mul(&y, &y)
		tmp.Mul(&tmp, &beta)
		t.Sub(&x, &tmp)

		yMinusV.Sub(&y, &v)
		powAlpha(&out[i], &yMinusV)
		out[i].Sub(&out[i], &t)

		tmp.Mul(&v, &v)
		tmp.Mul(&tmp, &beta)
		tmp.Add(&tmp, &delta)
		out[nbCols+i].Sub(&u, &tmp)
		out[nbCols+i].Sub(&out[nbCols+i], &t)
	}
}

func powAlpha(c, a *fr.Element) {
	// a^5 with three multiplications.
	var sq fr.Element
	sq.Mul(a, a)
	c.Mul(&sq, &sq)
	c.Mul(c, a)
}

// VerificationResiduesPolys is the polynomial form of
// VerificationResidues: states are given coordinate-wise as
// polynomials of degree witDegree and every residue is produced with
// degree Alpha*witDegree.
func VerificationResiduesPolys(out []field.Poly, inState, outState, cst []field.Poly, witDegree int) {
	params()
	stateSize := len(inState)
	state := make([]field.Poly, stateSize)
	for i := range state {
		state[i] = field.NewPoly(witDegree)
		state[i].Add(inState[i], cst[i])
	}
	MDSPoly(state)

	nbCols := stateSize / 2
	for i := 0; i < nbCols; i++ {
		x, y := state[i], state[nbCols+i]
		u, v := outState[i], outState[nbCols+i]

		// t = x - beta*y^2
		t := field.Mul(y, y)
		t.MulScalar(t, &beta)
		t.Neg(t)
		t.Add(t, x)

		yMinusV := field.NewPoly(witDegree)
		yMinusV.Sub(y, v)
		sq := field.Mul(yMinusV, yMinusV)
		r1 := field.Mul(field.Mul(sq, sq), yMinusV)
		r1.Sub(r1, t)

		r2long := field.Mul(v, v)
		r2long.MulScalar(r2long, &beta)
		r2long[0].Add(&r2long[0], &delta)
		r2long.Neg(r2long)
		r2long.Add(r2long, u)
		r2long.Sub(r2long, t)
		r2 := field.NewPoly(Alpha * witDegree)
		copy(r2, r2long)

		out[i] = r1
		out[nbCols+i] = r2
	}
}

// MDSPoly applies the MDS layer to a state of polynomials in place.
func MDSPoly(state []field.Poly) {
	nbCols := len(state) / 2
	switch nbCols {
	case 1:
		state[1].Add(state[1], state[0])
		state[0].Add(state[0], state[1])
	case 2:
		tmp := field.NewPoly(state[0].Degree())
		mulPolyByGenerator(tmp, state[1])
		state[0].Add(state[0], tmp)
		mulPolyByGenerator(tmp, state[0])
		state[1].Add(state[1], tmp)
		mulPolyByGenerator(tmp, state[2])
		state[3].Add(state[3], tmp)
		mulPolyByGenerator(tmp, state[3])
		state[2].Add(state[2], tmp)
		state[2], state[3] = state[3], state[2]
		state[2].Add(state[2], state[0])
		state[3].Add(state[3], state[1])
		state[0].Add(state[0], state[2])
		state[1].Add(state[1], state[3])
	case 3, 4:
		mdsInternalPoly(state[:nbCols])
		first := state[nbCols]
		copy(state[nbCols:], state[nbCols+1:])
		state[len(state)-1] = first
		mdsInternalPoly(state[nbCols:])
		for i := 0; i < nbCols; i++ {
			state[nbCols+i].Add(state[nbCols+i], state[i])
		}
		for i := 0; i < nbCols; i++ {
			state[i].Add(state[i], state[nbCols+i])
		}
	}
}

func mdsInternalPoly(s []field.Poly) {
	tmp := field.NewPoly(s[0].Degree())
	switch len(s) {
	case 3:
		mulPolyByGenerator(tmp, s[2])
		tmp.Add(s[0], tmp)
		s[2].Add(s[2], s[1])
		s[0].Add(tmp, s[2])
		s[1].Add(s[1], tmp)
	case 4:
		s[0].Add(s[0], s[1])
		s[2].Add(s[2], s[3])
		mulPolyByGenerator(tmp, s[0])
		s[3].Add(s[3], tmp)
		tmp.Add(s[1], s[2])
		mulPolyByGenerator(s[1], tmp)
		s[0].Add(s[0], s[1])
		mulPolyByGenerator(tmp, s[3])
		s[2].Add(s[2], tmp)
		s[1].Add(s[1], s[2])
		s[3].Add(s[3], s[0])
	}
}

func mulPolyByGenerator(c, a field.Poly) {
	var g fr.Element
	g.SetUint64(generator)
	c.MulScalar(a, &g)
}

// Package lppc defines the linear-preprocessing polynomial-constraint
// statement consumed by the proof system: a matrix witness whose rows
// are packed into polynomials, a family of parallel polynomial
// constraints of bounded degree, and a family of linear constraints
// with a public result vector.
package lppc

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
)

// ErrInvalidWitness reports a witness that does not satisfy the
// statement.
var ErrInvalidWitness = errors.New("lppc: invalid witness")

// Config carries the dimensions of an LPPC statement.
type Config struct {
	// NWitRows is the number of rows of the matrix witness.
	NWitRows int
	// PackingFactor is the number of columns of the matrix witness;
	// row i is packed as the polynomial interpolating the row over the
	// packing points 0..PackingFactor-1.
	PackingFactor int
	// ConstraintDegree bounds the algebraic degree of the polynomial
	// constraints.
	ConstraintDegree int
	NPolyConstraints int
	NLinearConstraints int
}

// WitnessSize returns the number of field elements of a witness.
func (c *Config) WitnessSize() int {
	return c.NWitRows * c.PackingFactor
}

// Statement is one LPPC statement instance. The prover-side methods
// operate on the witness in polynomial form; the verifier-side methods
// operate on opened evaluations.
type Statement interface {
	Config() *Config

	// ConstraintPolyPolynomials returns the polynomial-constraint
	// output polynomials, each of degree ConstraintDegree*witDegree,
	// for witness rows given as polynomials of degree witDegree.
	ConstraintPolyPolynomials(witPolys []field.Poly, packingPoints field.Vec, witDegree int) []field.Poly

	// ConstraintLinPolynomials returns the individual linear-constraint
	// output polynomials of degree witDegree+PackingFactor-1.
	ConstraintLinPolynomials(witPolys []field.Poly, packingPoints field.Vec, witDegree int) []field.Poly

	// ConstraintLinPolynomialsBatched returns, for every batching
	// coefficient row of gammas, the gamma-weighted combination of the
	// linear-constraint output polynomials.
	ConstraintLinPolynomialsBatched(witPolys []field.Poly, packingPoints field.Vec, gammas field.Mat, witDegree int) []field.Poly

	// LinearResult returns the public outputs of the linear
	// constraints.
	LinearResult() field.Vec

	// ConstraintPolyEvals evaluates the polynomial-constraint outputs
	// at the given points from the opened witness evaluations; the
	// result is indexed [point][constraint].
	ConstraintPolyEvals(evalPoints field.Vec, witEvals field.Mat, packingPoints field.Vec) field.Mat

	// ConstraintLinEvals is the linear-constraint counterpart of
	// ConstraintPolyEvals.
	ConstraintLinEvals(evalPoints field.Vec, witEvals field.Mat, packingPoints field.Vec) field.Mat
}

// CheckWitness verifies that witness satisfies the statement: every
// polynomial constraint vanishes on the packing points and every
// linear constraint sums to its public result over them.
func CheckWitness(st Statement, witness field.Vec) error {
	cfg := st.Config()
	mu := cfg.PackingFactor
	if len(witness) != cfg.WitnessSize() {
		return fmt.Errorf("%w: witness has %d elements, want %d", ErrInvalidWitness, len(witness), cfg.WitnessSize())
	}

	packingPoints := field.NewVec(mu)
	for j := range packingPoints {
		field.FromUint32(&packingPoints[j], uint32(j))
	}

	witPolys := make([]field.Poly, cfg.NWitRows)
	rows := make(field.Mat, cfg.NWitRows)
	for i := range witPolys {
		rows[i] = field.Vec(witness[i*mu : (i+1)*mu])
	}
	for i, p := range field.InterpolateMultiple(rows, packingPoints) {
		witPolys[i] = p
	}

	inPpol := st.ConstraintPolyPolynomials(witPolys, packingPoints, mu-1)
	for i := range inPpol {
		for j := range packingPoints {
			if res := inPpol[i].Eval(&packingPoints[j]); !res.IsZero() {
				return fmt.Errorf("%w: polynomial constraint %d does not vanish at packing point %d", ErrInvalidWitness, i, j)
			}
		}
	}

	inPlin := st.ConstraintLinPolynomials(witPolys, packingPoints, mu-1)
	vt := st.LinearResult()
	var res, tmp fr.Element
	for i := range inPlin {
		res.SetZero()
		for j := range packingPoints {
			tmp = inPlin[i].Eval(&packingPoints[j])
			res.Add(&res, &tmp)
		}
		if !res.Equal(&vt[i]) {
			return fmt.Errorf("%w: linear constraint %d", ErrInvalidWitness, i)
		}
	}
	return nil
}

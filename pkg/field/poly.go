package field

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// Poly is a dense polynomial over the field. Coefficient i is the
// coefficient of X^i; the degree bound of a Poly is len(p)-1.
type Poly []fr.Element

// NewPoly returns the zero polynomial of the given degree bound.
func NewPoly(degree int) Poly {
	return make(Poly, degree+1)
}

// RandomPoly returns a uniformly random polynomial of the given degree.
func RandomPoly(degree int) (Poly, error) {
	v, err := RandomVec(degree + 1)
	return Poly(v), err
}

// Clone returns a copy of p.
func (p Poly) Clone() Poly {
	c := make(Poly, len(p))
	copy(c, p)
	return c
}

// Degree returns the degree bound of p.
func (p Poly) Degree() int {
	return len(p) - 1
}

// Add sets p = a + b over the coefficients of p. Shorter operands are
// treated as zero-padded.
func (p Poly) Add(a, b Poly) {
	for i := range p {
		switch {
		case i < len(a) && i < len(b):
			p[i].Add(&a[i], &b[i])
		case i < len(a):
			p[i].Set(&a[i])
		case i < len(b):
			p[i].Set(&b[i])
		default:
			p[i].SetZero()
		}
	}
}

// Sub sets p = a - b with zero-padding of shorter operands.
func (p Poly) Sub(a, b Poly) {
	var zero fr.Element
	for i := range p {
		av, bv := &zero, &zero
		if i < len(a) {
			av = &a[i]
		}
		if i < len(b) {
			bv = &b[i]
		}
		p[i].Sub(av, bv)
	}
}

// Neg sets p = -a.
func (p Poly) Neg(a Poly) {
	for i := range p {
		p[i].Neg(&a[i])
	}
}

// MulScalar sets p = s * a.
func (p Poly) MulScalar(a Poly, s *fr.Element) {
	for i := range p {
		p[i].Mul(&a[i], s)
	}
}

// Mul returns a * b as a fresh polynomial of degree deg(a)+deg(b).
func Mul(a, b Poly) Poly {
	c := NewPoly(a.Degree() + b.Degree())
	var tmp fr.Element
	for i := range a {
		for j := range b {
			tmp.Mul(&a[i], &b[j])
			c[i+j].Add(&c[i+j], &tmp)
		}
	}
	return c
}

// Eval returns p evaluated at x using Horner's rule.
func (p Poly) Eval(x *fr.Element) fr.Element {
	var acc fr.Element
	acc.Set(&p[len(p)-1])
	for i := len(p) - 2; i >= 0; i-- {
		acc.Mul(&acc, x)
		acc.Add(&acc, &p[i])
	}
	return acc
}

// EvalMultiple evaluates every polynomial of polys at every point; the
// result matrix is indexed [point][poly].
func EvalMultiple(polys []Poly, points Vec) Mat {
	evals := NewMat(len(points), len(polys))
	for i := range points {
		for j := range polys {
			evals[i][j] = polys[j].Eval(&points[i])
		}
	}
	return evals
}

// mulLinear multiplies p (degree d) in place by (X - root), writing the
// result into out which must have room for degree d+1.
func mulLinear(out, p Poly, root *fr.Element) {
	d := len(p) - 1
	var negRoot, tmp fr.Element
	negRoot.Neg(root)
	out[d+1].Set(&p[d])
	for i := 0; i < d; i++ {
		tmp.Set(&p[d-i])
		out[d-i].Set(&p[d-i-1])
		tmp.Mul(&negRoot, &tmp)
		out[d-i].Add(&out[d-i], &tmp)
	}
	out[0].Mul(&negRoot, &p[0])
}

// Vanishing returns the monic polynomial prod (X - roots[i]).
func Vanishing(roots Vec) Poly {
	v := NewPoly(len(roots))
	v[0].SetOne()
	for j, cur := 0, v[:1]; j < len(roots); j++ {
		next := v[:j+2]
		mulLinear(next, cur.Clone(), &roots[j])
		cur = next
	}
	return v
}

// Lagrange returns the Lagrange basis polynomial for points[ind]: the
// unique polynomial of degree len(points)-1 that is 1 at points[ind] and
// 0 at every other point.
func Lagrange(points Vec, ind int) Poly {
	lag := NewPoly(len(points) - 1)
	lag[0].SetOne()
	var acc, tmp fr.Element
	acc.SetOne()
	cur := lag[:1]
	for j := range points {
		if j == ind {
			continue
		}
		next := lag[:len(cur)+1]
		mulLinear(next, cur.Clone(), &points[j])
		cur = next
		tmp.Sub(&points[ind], &points[j])
		acc.Mul(&acc, &tmp)
	}
	acc.Inverse(&acc)
	lag.MulScalar(lag, &acc)
	return lag
}

// Interpolate returns the unique polynomial of degree len(points)-1
// taking value evals[i] at points[i].
func Interpolate(evals, points Vec) Poly {
	p := NewPoly(len(points) - 1)
	var scale fr.Element
	for i := range points {
		lag := Lagrange(points, i)
		scale.Set(&evals[i])
		lag.MulScalar(lag, &scale)
		p.Add(p, lag)
	}
	return p
}

// InterpolateMultiple interpolates one polynomial per row of evals over
// the shared points, reusing the Lagrange basis across rows.
func InterpolateMultiple(evals Mat, points Vec) []Poly {
	basis := make([]Poly, len(points))
	for i := range points {
		basis[i] = Lagrange(points, i)
	}
	polys := make([]Poly, len(evals))
	var tmp fr.Element
	for k := range evals {
		p := NewPoly(len(points) - 1)
		for i := range points {
			for j := range p {
				tmp.Mul(&basis[i][j], &evals[k][i])
				p[j].Add(&p[j], &tmp)
			}
		}
		polys[k] = p
	}
	return polys
}

// RemoveLinearFactor returns p / (X - root), assuming root is a root of
// p. The quotient has degree deg(p)-1.
func RemoveLinearFactor(p Poly, root *fr.Element) Poly {
	d := len(p) - 1
	out := NewPoly(d - 1)
	var tmp fr.Element
	out[d-1].Set(&p[d])
	for i := d - 2; i >= 0; i-- {
		out[i].Set(&p[i+1])
		tmp.Mul(root, &out[i+1])
		out[i].Add(&out[i], &tmp)
	}
	return out
}

// Restore rebuilds a polynomial of the given degree from its high
// coefficients (positions len(evals)..degree) and its evaluations at
// points. The low part is interpolated from the evaluations after
// subtracting the contribution of the high part shifted by
// X^len(evals).
func Restore(high, evals, points Vec, degree int) Poly {
	m := len(evals)
	shifted := NewVec(m)
	var powEval, shift fr.Element
	for i := range points {
		powEval.Set(&points[i])
		for j := 0; j < m-1; j++ {
			powEval.Mul(&powEval, &points[i])
		}
		shift = Poly(high).Eval(&points[i])
		shift.Mul(&shift, &powEval)
		shifted[i].Sub(&evals[i], &shift)
	}
	p := NewPoly(degree)
	low := Interpolate(shifted, points)
	copy(p, low)
	copy(p[m:], high)
	return p
}

package field

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genElement() gopter.Gen {
	return gen.UInt64().Map(func(seed uint64) fr.Element {
		var e fr.Element
		e.SetUint64(seed)
		e.Mul(&e, &e)
		var shift fr.Element
		shift.SetUint64(0x9e3779b97f4a7c15)
		e.Add(&e, &shift)
		return e
	})
}

func TestFieldProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("addition commutes", prop.ForAll(
		func(a, b fr.Element) bool {
			var x, y fr.Element
			x.Add(&a, &b)
			y.Add(&b, &a)
			return x.Equal(&y)
		}, genElement(), genElement(),
	))

	properties.Property("multiplication commutes", prop.ForAll(
		func(a, b fr.Element) bool {
			var x, y fr.Element
			x.Mul(&a, &b)
			y.Mul(&b, &a)
			return x.Equal(&y)
		}, genElement(), genElement(),
	))

	properties.Property("multiplication distributes over addition", prop.ForAll(
		func(a, b, c fr.Element) bool {
			var sum, left, right, t1, t2 fr.Element
			sum.Add(&b, &c)
			left.Mul(&a, &sum)
			t1.Mul(&a, &b)
			t2.Mul(&a, &c)
			right.Add(&t1, &t2)
			return left.Equal(&right)
		}, genElement(), genElement(), genElement(),
	))

	properties.Property("a * a^-1 = 1 for a != 0", prop.ForAll(
		func(a fr.Element) bool {
			if a.IsZero() {
				return true
			}
			var inv, prod, one fr.Element
			inv.Inverse(&a)
			prod.Mul(&a, &inv)
			one.SetOne()
			return prod.Equal(&one)
		}, genElement(),
	))

	properties.TestingRun(t)
}

func TestUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 2, 1000, 1 << 20, 0xffffffff} {
		var e fr.Element
		FromUint32(&e, v)
		if got := ToUint32(&e); got != v {
			t.Fatalf("uint32 round trip: got %d, want %d", got, v)
		}
	}
}

func TestElementSerialization(t *testing.T) {
	e, err := RandomVec(1)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, Bytes)
	PutElement(buf, &e[0])
	var back fr.Element
	if err := GetElement(&back, buf); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(&e[0]) {
		t.Fatal("element serialization round trip mismatch")
	}

	// The all-ones buffer encodes an integer above the field order.
	for i := range buf {
		buf[i] = 0xff
	}
	if err := GetElement(&back, buf); err == nil {
		t.Fatal("expected rejection of non-canonical encoding")
	}
}

func TestInterpolateEvaluate(t *testing.T) {
	points := NewVec(5)
	for i := range points {
		FromUint32(&points[i], uint32(i))
	}
	evals, err := RandomVec(5)
	if err != nil {
		t.Fatal(err)
	}
	p := Interpolate(evals, points)
	if p.Degree() != 4 {
		t.Fatalf("interpolated degree %d, want 4", p.Degree())
	}
	for i := range points {
		if got := p.Eval(&points[i]); !got.Equal(&evals[i]) {
			t.Fatalf("interpolation does not reproduce evaluation %d", i)
		}
	}
}

func TestVanishing(t *testing.T) {
	roots, err := RandomVec(6)
	if err != nil {
		t.Fatal(err)
	}
	v := Vanishing(roots)
	if !v[len(v)-1].IsOne() {
		t.Fatal("vanishing polynomial is not monic")
	}
	for i := range roots {
		if got := v.Eval(&roots[i]); !got.IsZero() {
			t.Fatalf("vanishing polynomial does not vanish on root %d", i)
		}
	}
	// A fresh random point is a root only with negligible probability.
	probe, err := RandomVec(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Eval(&probe[0]); got.IsZero() {
		t.Fatal("vanishing polynomial vanishes off its roots")
	}
}

func TestRemoveLinearFactor(t *testing.T) {
	roots, err := RandomVec(4)
	if err != nil {
		t.Fatal(err)
	}
	v := Vanishing(roots)
	q := RemoveLinearFactor(v, &roots[2])
	expect := Vanishing(append(append(Vec{}, roots[:2]...), roots[3]))
	if !Vec(q).Equal(Vec(expect)) {
		t.Fatal("quotient does not match the vanishing polynomial of the remaining roots")
	}
}

func TestRestore(t *testing.T) {
	const degree = 9
	const nEvals = 4
	p, err := RandomPoly(degree)
	if err != nil {
		t.Fatal(err)
	}
	points, err := RandomVec(nEvals)
	if err != nil {
		t.Fatal(err)
	}
	evals := NewVec(nEvals)
	for i := range points {
		evals[i] = p.Eval(&points[i])
	}
	restored := Restore(Vec(p[nEvals:]), evals, points, degree)
	if !Vec(restored).Equal(Vec(p)) {
		t.Fatal("restore did not rebuild the polynomial")
	}
}

func TestMatInverse(t *testing.T) {
	const n = 5
	var m Mat
	for {
		var err error
		rows := make(Mat, n)
		for i := range rows {
			if rows[i], err = RandomVec(n); err != nil {
				t.Fatal(err)
			}
		}
		m = rows
		inv := NewMat(n, n)
		if err := m.Inverse(inv); err == nil {
			prod := NewMat(n, n)
			prod.Mul(m, inv)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if i == j && !prod[i][j].IsOne() || i != j && !prod[i][j].IsZero() {
						t.Fatal("m * m^-1 is not the identity")
					}
				}
			}
			break
		}
	}

	singular := NewMat(2, 2)
	inv := NewMat(2, 2)
	if err := singular.Inverse(inv); err == nil {
		t.Fatal("expected singular matrix rejection")
	}
}

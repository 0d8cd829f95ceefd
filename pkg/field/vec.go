package field

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Vec is a vector of field elements.
type Vec []fr.Element

// NewVec returns a zero vector of the given length.
func NewVec(n int) Vec {
	return make(Vec, n)
}

// RandomVec returns a uniformly random vector of the given length.
func RandomVec(n int) (Vec, error) {
	v := make(Vec, n)
	for i := range v {
		if err := Random(&v[i]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Clone returns a copy of v.
func (v Vec) Clone() Vec {
	c := make(Vec, len(v))
	copy(c, v)
	return c
}

// Add sets v = a + b element-wise. The three vectors must have the same
// length as v.
func (v Vec) Add(a, b Vec) {
	for i := range v {
		v[i].Add(&a[i], &b[i])
	}
}

// Sub sets v = a - b element-wise.
func (v Vec) Sub(a, b Vec) {
	for i := range v {
		v[i].Sub(&a[i], &b[i])
	}
}

// Neg sets v = -a element-wise.
func (v Vec) Neg(a Vec) {
	for i := range v {
		v[i].Neg(&a[i])
	}
}

// Scale sets v = s * a element-wise.
func (v Vec) Scale(a Vec, s *fr.Element) {
	for i := range v {
		v[i].Mul(&a[i], s)
	}
}

// InnerProduct returns <v, b>.
func (v Vec) InnerProduct(b Vec) fr.Element {
	var acc, tmp fr.Element
	for i := range v {
		tmp.Mul(&v[i], &b[i])
		acc.Add(&acc, &tmp)
	}
	return acc
}

// Equal reports whether v and b hold the same elements.
func (v Vec) Equal(b Vec) bool {
	if len(v) != len(b) {
		return false
	}
	for i := range v {
		if !v[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

// Serialize writes the little-endian encoding of v into buf, which must
// hold at least len(v)*Bytes bytes.
func (v Vec) Serialize(buf []byte) {
	for i := range v {
		PutElement(buf[i*Bytes:], &v[i])
	}
}

// Deserialize parses len(v) elements from buf.
func (v Vec) Deserialize(buf []byte) error {
	for i := range v {
		if err := GetElement(&v[i], buf[i*Bytes:]); err != nil {
			return err
		}
	}
	return nil
}

// VecSize returns the serialized byte size of a vector of n elements.
func VecSize(n int) int {
	return n * Bytes
}

// Mat is a row-major matrix of field elements.
type Mat []Vec

// NewMat returns a zero matrix with the given dimensions.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	for i := range m {
		m[i] = NewVec(cols)
	}
	return m
}

// Mul sets m = a * b where a is (rows(m) x n) and b is (n x cols(m)).
func (m Mat) Mul(a, b Mat) {
	var tmp fr.Element
	for i := range m {
		for k := range m[i] {
			m[i][k].SetZero()
			for j := range a[i] {
				tmp.Mul(&a[i][j], &b[j][k])
				m[i][k].Add(&m[i][k], &tmp)
			}
		}
	}
}

// MulVec sets c = m * b.
func (m Mat) MulVec(c Vec, b Vec) {
	var tmp fr.Element
	for i := range m {
		c[i].SetZero()
		for j := range m[i] {
			tmp.Mul(&m[i][j], &b[j])
			c[i].Add(&c[i], &tmp)
		}
	}
}

// Inverse sets inv to the inverse of the square matrix m using
// Gauss-Jordan elimination. It returns an error if m is singular.
func (m Mat) Inverse(inv Mat) error {
	n := len(m)
	a := make(Mat, n)
	for i := range a {
		a[i] = m[i].Clone()
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				inv[i][j].SetOne()
			} else {
				inv[i][j].SetZero()
			}
		}
	}

	tmp := NewVec(n)
	for i := 0; i < n; i++ {
		pivot := -1
		for k := i; k < n; k++ {
			if !a[k][i].IsZero() {
				pivot = k
				break
			}
		}
		if pivot < 0 {
			return fmt.Errorf("field: matrix is singular")
		}
		if pivot != i {
			a[i], a[pivot] = a[pivot], a[i]
			inv[i], inv[pivot] = inv[pivot], inv[i]
		}

		var invPivot fr.Element
		invPivot.Inverse(&a[i][i])
		a[i].Scale(a[i], &invPivot)
		inv[i].Scale(inv[i], &invPivot)

		var factor fr.Element
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor.Set(&a[k][i])
			tmp.Scale(a[i], &factor)
			a[k].Sub(a[k], tmp)
			tmp.Scale(inv[i], &factor)
			inv[k].Sub(inv[k], tmp)
		}
	}
	return nil
}

package xof

import (
	"fmt"

	"github.com/MuriData/capss/pkg/field"
)

// Challenge formats for batching-coefficient matrices. Both the
// degree-enforcing test and the PIOP constraint batching draw an
// (rows x cols) coefficient matrix from a digest under one of three
// formats.
const (
	// FormatPowers derives row k as the powers of a single random
	// element.
	FormatPowers = 0
	// FormatUniform derives every coefficient independently.
	FormatUniform = 1
	// FormatHybrid derives the matrix as R*V where R is a small
	// uniform matrix and V a matrix of powers; this bounds evaluator
	// cost while keeping per-row independence.
	FormatHybrid = 2

	numFormats = 3
)

// ValidFormat reports whether format selects a known challenge format.
func ValidFormat(format int) bool {
	return format >= 0 && format < numFormats
}

// ChallengeMatrix derives a (rows x cols) batching-coefficient matrix
// from the XOF of the seed inputs under the selected format.
func ChallengeMatrix(format, rows, cols int, seed ...[]byte) (field.Mat, error) {
	out := field.NewMat(rows, cols)
	switch format {
	case FormatPowers:
		gamma := SampleFelts(rows, seed...)
		for k := 0; k < rows; k++ {
			out[k][0].Set(&gamma[k])
			for j := 1; j < cols; j++ {
				out[k][j].Mul(&out[k][j-1], &gamma[k])
			}
		}
	case FormatUniform:
		gamma := SampleFelts(rows*cols, seed...)
		for k := 0; k < rows; k++ {
			copy(out[k], gamma[k*cols:(k+1)*cols])
		}
	case FormatHybrid:
		gamma := SampleFelts((rows+1)+(rows+1)*rows, seed...)
		matRnd := field.NewMat(rows, rows+1)
		matPowers := field.NewMat(rows+1, cols)
		for k := 0; k < rows; k++ {
			copy(matRnd[k], gamma[k*(rows+1):(k+1)*(rows+1)])
		}
		for k := 0; k < rows+1; k++ {
			matPowers[k][0].SetOne()
			for j := 1; j < cols; j++ {
				matPowers[k][j].Mul(&matPowers[k][j-1], &gamma[rows*(rows+1)+k])
			}
		}
		out.Mul(matRnd, matPowers)
	default:
		return nil, fmt.Errorf("xof: unknown challenge format %d", format)
	}
	return out, nil
}

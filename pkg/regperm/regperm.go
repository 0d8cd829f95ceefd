// Package regperm instantiates the LPPC statement for a regular
// permutation: the prover knows a secret x such that iterating the
// Anemoi round function over (iv || x) yields a state whose first
// entries equal the public output y.
package regperm

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/anemoi"
	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/lppc"
)

// ErrConfig reports invalid statement parameters.
var ErrConfig = errors.New("regperm: invalid configuration")

// Config fixes the shape of a regular-permutation statement.
type Config struct {
	lppc           lppc.Config
	stateSize      int
	numRounds      int
	batchingFactor int
	witnessSize    int // per-round auxiliary witness elements
	ivSize         int
	ySize          int
}

// NewConfig builds a statement configuration for the given batching
// factor and public sizes. The witness matrix has
// stateSize*(b+1) + roundWitnessSize*b rows and ceil(numRounds/b)
// columns; round states chain column-wise.
func NewConfig(batchingFactor, ivSize, ySize int) (*Config, error) {
	if batchingFactor == 0 {
		return nil, fmt.Errorf("%w: batching factor must be non-zero", ErrConfig)
	}
	if ivSize == 0 || ySize == 0 {
		return nil, fmt.Errorf("%w: iv size and output size must be non-zero", ErrConfig)
	}
	if ivSize >= anemoi.StateSize {
		return nil, fmt.Errorf("%w: iv size %d must be smaller than the state size %d", ErrConfig, ivSize, anemoi.StateSize)
	}
	if ySize > anemoi.StateSize {
		return nil, fmt.Errorf("%w: output size %d exceeds the state size %d", ErrConfig, ySize, anemoi.StateSize)
	}

	stateSize := anemoi.StateSize
	numRounds := anemoi.NumRounds
	witnessSize := anemoi.RoundWitnessSize
	alpha, _, _ := anemoi.SboxParameters()
	packingFactor := (numRounds + batchingFactor - 1) / batchingFactor

	cfg := &Config{
		lppc: lppc.Config{
			NWitRows:           stateSize*(batchingFactor+1) + witnessSize*batchingFactor,
			PackingFactor:      packingFactor,
			ConstraintDegree:   alpha,
			NPolyConstraints:   batchingFactor * (stateSize + witnessSize),
			NLinearConstraints: stateSize*(packingFactor-1) + ivSize + ySize,
		},
		stateSize:      stateSize,
		numRounds:      numRounds,
		batchingFactor: batchingFactor,
		witnessSize:    witnessSize,
		ivSize:         ivSize,
		ySize:          ySize,
	}
	return cfg, nil
}

// Lppc returns the generic LPPC dimensions of the statement.
func (c *Config) Lppc() *lppc.Config {
	return &c.lppc
}

// SecretSize returns the number of secret field elements.
func (c *Config) SecretSize() int {
	return c.stateSize - c.ivSize
}

// SerializedSize returns the byte size of a serialized statement
// (iv || y).
func (c *Config) SerializedSize() int {
	return field.VecSize(c.ivSize) + field.VecSize(c.ySize)
}

// Statement is one public instance (iv, y) of the regular-permutation
// relation.
type Statement struct {
	cfg *Config
	iv  field.Vec
	y   field.Vec
}

// NewStatement builds a statement from its public values.
func NewStatement(cfg *Config, iv, y field.Vec) (*Statement, error) {
	if len(iv) != cfg.ivSize || len(y) != cfg.ySize {
		return nil, fmt.Errorf("%w: iv/y sizes do not match the configuration", ErrConfig)
	}
	return &Statement{cfg: cfg, iv: iv.Clone(), y: y.Clone()}, nil
}

// Random samples a fresh instance: a random iv and secret, with y
// derived by running the permutation. It returns the statement and the
// secret.
func Random(cfg *Config) (*Statement, field.Vec, error) {
	iv, err := field.RandomVec(cfg.ivSize)
	if err != nil {
		return nil, nil, err
	}
	x, err := field.RandomVec(cfg.SecretSize())
	if err != nil {
		return nil, nil, err
	}

	state := field.NewVec(cfg.stateSize)
	copy(state, iv)
	copy(state[cfg.ivSize:], x)
	roundKeys := anemoi.RoundKeys()
	for r := 0; r < cfg.numRounds; r++ {
		anemoi.Round(state, roundKeys[r*cfg.stateSize:(r+1)*cfg.stateSize])
	}

	st := &Statement{cfg: cfg, iv: iv, y: state[:cfg.ySize].Clone()}
	return st, x, nil
}

// Serialize writes (iv || y) into buf.
func (st *Statement) Serialize(buf []byte) {
	st.iv.Serialize(buf)
	st.y.Serialize(buf[field.VecSize(st.cfg.ivSize):])
}

// Deserialize parses a statement from buf.
func Deserialize(cfg *Config, buf []byte) (*Statement, error) {
	if len(buf) < cfg.SerializedSize() {
		return nil, fmt.Errorf("%w: serialized statement too short", ErrConfig)
	}
	iv := field.NewVec(cfg.ivSize)
	if err := iv.Deserialize(buf); err != nil {
		return nil, err
	}
	y := field.NewVec(cfg.ySize)
	if err := y.Deserialize(buf[field.VecSize(cfg.ivSize):]); err != nil {
		return nil, err
	}
	return &Statement{cfg: cfg, iv: iv, y: y}, nil
}

// BuildWitness lays the round-by-round execution on secret x out as the
// matrix witness: the first stateSize rows hold the state entering each
// packed column, the next batchingFactor*stateSize rows the states
// after each batched round, and the remaining rows the per-round
// auxiliary witness.
func (st *Statement) BuildWitness(secret field.Vec) (field.Vec, error) {
	cfg := st.cfg
	if len(secret) != cfg.SecretSize() {
		return nil, fmt.Errorf("%w: secret has %d elements, want %d", ErrConfig, len(secret), cfg.SecretSize())
	}
	mu := cfg.lppc.PackingFactor
	b := cfg.batchingFactor
	stateSize := cfg.stateSize
	witness := field.NewVec(cfg.lppc.WitnessSize())

	state := field.NewVec(stateSize)
	copy(state, st.iv)
	copy(state[cfg.ivSize:], secret)
	roundKeys := anemoi.RoundKeys()

	for round := 0; round < b*mu; round++ {
		col := round / b
		if round%b == 0 {
			for i := 0; i < stateSize; i++ {
				witness[i*mu+col] = state[i]
			}
		}

		// Rounds past numRounds only pad the last column; their
		// constants are irrelevant as long as prover and verifier
		// agree.
		cst := roundKeys[:stateSize]
		if round < cfg.numRounds {
			cst = roundKeys[round*stateSize : (round+1)*stateSize]
		}
		anemoi.Round(state, cst)

		offsetRow := ((round % b) + 1) * stateSize
		for i := 0; i < stateSize; i++ {
			witness[(offsetRow+i)*mu+col] = state[i]
		}
	}
	return witness, nil
}

// Config returns the generic LPPC dimensions.
func (st *Statement) Config() *lppc.Config {
	return &st.cfg.lppc
}

// roundConstantValues fills v with the constants of state coordinate i
// for batch slot j across the packed columns.
func (st *Statement) roundConstantValues(v field.Vec, roundKeys field.Vec, i, j int) {
	cfg := st.cfg
	for k := range v {
		round := k*cfg.batchingFactor + j
		if round < cfg.numRounds {
			v[k] = roundKeys[round*cfg.stateSize+i]
		} else {
			v[k] = roundKeys[i]
		}
	}
}

// ConstraintPolyPolynomials implements lppc.Statement.
func (st *Statement) ConstraintPolyPolynomials(witPolys []field.Poly, packingPoints field.Vec, witDegree int) []field.Poly {
	cfg := st.cfg
	b := cfg.batchingFactor
	stateSize := cfg.stateSize
	witnessSize := cfg.witnessSize
	roundKeys := anemoi.RoundKeys()

	out := make([]field.Poly, cfg.lppc.NPolyConstraints)
	cstPolys := make([]field.Poly, stateSize)
	v := field.NewVec(len(packingPoints))
	for j := 0; j < b; j++ {
		for i := 0; i < stateSize; i++ {
			st.roundConstantValues(v, roundKeys, i, j)
			cstPolys[i] = field.Interpolate(v, packingPoints)
		}
		anemoi.VerificationResiduesPolys(
			out[j*(stateSize+witnessSize):],
			witPolys[j*stateSize:(j+1)*stateSize],
			witPolys[(j+1)*stateSize:(j+2)*stateSize],
			cstPolys,
			witDegree,
		)
	}
	return out
}

// lagrangeBasis returns the Lagrange basis polynomials over the packing
// points.
func lagrangeBasis(packingPoints field.Vec) []field.Poly {
	lag := make([]field.Poly, len(packingPoints))
	for j := range packingPoints {
		lag[j] = field.Lagrange(packingPoints, j)
	}
	return lag
}

// ConstraintLinPolynomials implements lppc.Statement. The linear
// constraints are, in order: the column-chaining constraints, the iv
// constraint on the first column, and the output constraint on the
// last column.
func (st *Statement) ConstraintLinPolynomials(witPolys []field.Poly, packingPoints field.Vec, witDegree int) []field.Poly {
	cfg := st.cfg
	mu := cfg.lppc.PackingFactor
	b := cfg.batchingFactor
	stateSize := cfg.stateSize
	outDegree := witDegree + mu - 1
	offset := mu*b - cfg.numRounds
	lag := lagrangeBasis(packingPoints)

	out := make([]field.Poly, cfg.lppc.NLinearConstraints)
	for j := 0; j < mu-1; j++ {
		for i := 0; i < stateSize; i++ {
			tmp1 := field.Mul(lag[j], witPolys[b*stateSize+i])
			tmp2 := field.Mul(lag[j+1], witPolys[i])
			p := field.NewPoly(outDegree)
			p.Sub(tmp1, tmp2)
			out[j*stateSize+i] = p
		}
	}
	for j := 0; j < cfg.ivSize; j++ {
		out[(mu-1)*stateSize+j] = field.Mul(lag[0], witPolys[j])
	}
	for j := 0; j < cfg.ySize; j++ {
		out[(mu-1)*stateSize+cfg.ivSize+j] = field.Mul(lag[mu-1], witPolys[(b-offset)*stateSize+j])
	}
	return out
}

// ConstraintLinPolynomialsBatched implements lppc.Statement.
func (st *Statement) ConstraintLinPolynomialsBatched(witPolys []field.Poly, packingPoints field.Vec, gammas field.Mat, witDegree int) []field.Poly {
	cfg := st.cfg
	outDegree := witDegree + cfg.lppc.PackingFactor - 1
	individual := st.ConstraintLinPolynomials(witPolys, packingPoints, witDegree)

	out := make([]field.Poly, len(gammas))
	tmp := field.NewPoly(outDegree)
	for rep := range gammas {
		p := field.NewPoly(outDegree)
		for num := range individual {
			tmp.MulScalar(individual[num], &gammas[rep][num])
			p.Add(p, tmp)
		}
		out[rep] = p
	}
	return out
}

// LinearResult implements lppc.Statement.
func (st *Statement) LinearResult() field.Vec {
	cfg := st.cfg
	mu := cfg.lppc.PackingFactor
	vt := field.NewVec(cfg.lppc.NLinearConstraints)
	copy(vt[cfg.stateSize*(mu-1):], st.iv)
	copy(vt[cfg.stateSize*(mu-1)+cfg.ivSize:], st.y)
	return vt
}

// ConstraintPolyEvals implements lppc.Statement.
func (st *Statement) ConstraintPolyEvals(evalPoints field.Vec, witEvals field.Mat, packingPoints field.Vec) field.Mat {
	cfg := st.cfg
	b := cfg.batchingFactor
	stateSize := cfg.stateSize
	witnessSize := cfg.witnessSize
	roundKeys := anemoi.RoundKeys()

	out := field.NewMat(len(evalPoints), cfg.lppc.NPolyConstraints)
	cst := field.NewVec(stateSize)
	v := field.NewVec(len(packingPoints))
	for num := range evalPoints {
		for j := 0; j < b; j++ {
			for i := 0; i < stateSize; i++ {
				st.roundConstantValues(v, roundKeys, i, j)
				cstPoly := field.Interpolate(v, packingPoints)
				cst[i] = cstPoly.Eval(&evalPoints[num])
			}
			anemoi.VerificationResidues(
				out[num][j*(stateSize+witnessSize):],
				witEvals[num][j*stateSize:(j+1)*stateSize],
				witEvals[num][(j+1)*stateSize:(j+2)*stateSize],
				cst,
			)
		}
	}
	return out
}

// ConstraintLinEvals implements lppc.Statement.
func (st *Statement) ConstraintLinEvals(evalPoints field.Vec, witEvals field.Mat, packingPoints field.Vec) field.Mat {
	cfg := st.cfg
	mu := cfg.lppc.PackingFactor
	b := cfg.batchingFactor
	stateSize := cfg.stateSize
	offset := mu*b - cfg.numRounds
	lag := lagrangeBasis(packingPoints)

	out := field.NewMat(len(evalPoints), cfg.lppc.NLinearConstraints)
	lagEvals := field.NewVec(mu)
	var tmp1, tmp2 fr.Element
	for num := range evalPoints {
		for j := 0; j < mu; j++ {
			lagEvals[j] = lag[j].Eval(&evalPoints[num])
		}
		for j := 0; j < mu-1; j++ {
			for i := 0; i < stateSize; i++ {
				tmp1.Mul(&lagEvals[j], &witEvals[num][b*stateSize+i])
				tmp2.Mul(&lagEvals[j+1], &witEvals[num][i])
				out[num][j*stateSize+i].Sub(&tmp1, &tmp2)
			}
		}
		for j := 0; j < cfg.ivSize; j++ {
			out[num][(mu-1)*stateSize+j].Mul(&lagEvals[0], &witEvals[num][j])
		}
		for j := 0; j < cfg.ySize; j++ {
			out[num][(mu-1)*stateSize+cfg.ivSize+j].Mul(&lagEvals[mu-1], &witEvals[num][(b-offset)*stateSize+j])
		}
	}
	return out
}

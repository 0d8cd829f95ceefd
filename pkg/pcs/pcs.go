// Package pcs implements the polynomial commitment scheme: a batch of
// polynomials of possibly-different degrees is laid out column-wise
// into a matrix of mu coefficient rows, randomised for hiding,
// optionally stacked by a factor beta, and committed through the linear
// vector commitment scheme. Openings reveal evaluations at
// caller-chosen field points.
package pcs

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/lvcs"
	"github.com/MuriData/capss/pkg/merkle"
)

// ErrConfig reports invalid scheme parameters.
var ErrConfig = errors.New("pcs: invalid configuration")

// ErrProofRejected reports an opening proof inconsistent with the
// commitment.
var ErrProofRejected = errors.New("pcs: proof rejected")

// Config fixes one PCS instance.
type Config struct {
	// Degrees lists the degree of every committed polynomial.
	Degrees []int
	// NOpenedEvals is the number of evaluation points per opening.
	NOpenedEvals int
	// Mu is the number of coefficient rows of the layout matrix.
	Mu int
	// Beta is the stacking factor: how many unstacked column groups
	// share one LVCS column.
	Beta int

	DecsNEvals             int
	DecsNOpenedEvals       int
	DecsEta                int
	DecsPowBits            int
	DecsUseCommitmentTapes bool
	DecsFormatChallenge    int
	DecsTree               *merkle.Config
}

// Pcs is a validated PCS instance.
type Pcs struct {
	cfg            Config
	lvcs           *lvcs.Lvcs
	width          []int // columns per polynomial
	delta          []int // unused top cells of the last column
	nUnstackedRows int
	nUnstackedCols int
	nLvcsRows      int
	nLvcsCols      int
	nOpenedCombi   int
	fullrankCols   []int
}

// Key is the prover state between commit and open.
type Key struct {
	lvcsKey *lvcs.Key
}

// New validates cfg and derives the stacked layout. A polynomial that
// fits one column must fill it exactly, otherwise its degree bound
// cannot be enforced.
func New(cfg Config) (*Pcs, error) {
	if len(cfg.Degrees) == 0 {
		return nil, fmt.Errorf("%w: no polynomials", ErrConfig)
	}
	if cfg.Mu == 0 || cfg.Beta == 0 || cfg.NOpenedEvals == 0 {
		return nil, fmt.Errorf("%w: mu, beta and opened-eval count must be non-zero", ErrConfig)
	}
	m := cfg.NOpenedEvals
	mu := cfg.Mu

	p := &Pcs{
		cfg:   cfg,
		width: make([]int, len(cfg.Degrees)),
		delta: make([]int, len(cfg.Degrees)),
	}
	for j, d := range cfg.Degrees {
		p.width[j] = (d + 1 - m + (mu - 1)) / mu
		p.delta[j] = mu*p.width[j] + m - (d + 1)
		if p.width[j] == 1 && p.delta[j] != 0 {
			return nil, fmt.Errorf("%w: polynomial %d of degree %d does not fill its single column", ErrConfig, j, d)
		}
		p.nUnstackedCols += p.width[j]
	}
	p.nUnstackedRows = mu + m
	p.nLvcsRows = p.nUnstackedRows * cfg.Beta
	p.nLvcsCols = (p.nUnstackedCols + cfg.Beta - 1) / cfg.Beta
	p.nOpenedCombi = cfg.Beta * m

	p.fullrankCols = make([]int, p.nOpenedCombi)
	for i := 0; i < cfg.Beta; i++ {
		for j := 0; j < m; j++ {
			p.fullrankCols[i*m+j] = i*(mu+m) + j
		}
	}

	l, err := lvcs.New(lvcs.Config{
		NRows:                  p.nLvcsRows,
		NCols:                  p.nLvcsCols,
		NOpenedCombi:           p.nOpenedCombi,
		DecsNEvals:             cfg.DecsNEvals,
		DecsNOpenedEvals:       cfg.DecsNOpenedEvals,
		DecsEta:                cfg.DecsEta,
		DecsPowBits:            cfg.DecsPowBits,
		DecsUseCommitmentTapes: cfg.DecsUseCommitmentTapes,
		DecsFormatChallenge:    cfg.DecsFormatChallenge,
		DecsTree:               cfg.DecsTree,
	})
	if err != nil {
		return nil, err
	}
	p.lvcs = l
	return p, nil
}

// TranscriptSize returns the byte size of the commitment transcript.
func (p *Pcs) TranscriptSize() int {
	return p.lvcs.TranscriptSize()
}

// MaxProofSize returns an upper bound on the opening proof size.
func (p *Pcs) MaxProofSize() int {
	partial := 0
	for _, w := range p.width {
		partial += field.VecSize(w - 1)
	}
	return p.lvcs.MaxProofSize() + partial*p.cfg.NOpenedEvals
}

// Commit lays the polynomials out into the stacked matrix and commits
// it through LVCS.
func (p *Pcs) Commit(salt []byte, polys []field.Poly) ([]byte, *Key, error) {
	cfg := p.cfg
	if len(polys) != len(cfg.Degrees) {
		return nil, nil, fmt.Errorf("%w: got %d polynomials, want %d", ErrConfig, len(polys), len(cfg.Degrees))
	}
	m := cfg.NOpenedEvals
	mu := cfg.Mu

	rows := field.NewMat(p.nUnstackedRows, p.nUnstackedCols)
	offset := 0
	for j, poly := range polys {
		if poly.Degree() != cfg.Degrees[j] {
			return nil, nil, fmt.Errorf("%w: polynomial %d has degree %d, want %d", ErrConfig, j, poly.Degree(), cfg.Degrees[j])
		}
		w := p.width[j]

		// Coefficients fill the columns top-down; the last column only
		// uses its bottom mu+m-delta cells.
		ind := 0
		for i := 0; i < w-1; i++ {
			for k := 0; k < mu; k++ {
				rows[k][offset+i] = poly[ind]
				ind++
			}
		}
		for k := p.delta[j]; k < p.nUnstackedRows; k++ {
			rows[k][offset+w-1] = poly[ind]
			ind++
		}

		// Hiding: per opened evaluation, fresh randomness lands in the
		// random rows, compensated in the coefficient rows so the
		// evaluation relation is preserved.
		if w > 1 {
			for i := 0; i < m; i++ {
				rnd, err := field.RandomVec(w - 1)
				if err != nil {
					return nil, nil, err
				}
				copy(rows[mu+i][offset:offset+w-1], rnd)
				for c := 0; c < w-2; c++ {
					rows[i][offset+1+c].Sub(&rows[i][offset+1+c], &rnd[c])
				}
				rows[p.delta[j]+i][offset+w-1].Sub(&rows[p.delta[j]+i][offset+w-1], &rnd[w-2])
			}
		}
		offset += w
	}

	stacked := p.stack(rows)
	transcript, lvcsKey, err := p.lvcs.Commit(salt, stacked)
	if err != nil {
		return nil, nil, err
	}
	return transcript, &Key{lvcsKey: lvcsKey}, nil
}

// stack folds the unstacked matrix into the LVCS shape: stacked row i
// is slice i/nUnstackedRows of unstacked row i%nUnstackedRows,
// zero-padded at the tail.
func (p *Pcs) stack(rows field.Mat) field.Mat {
	stacked := field.NewMat(p.nLvcsRows, p.nLvcsCols)
	for i := 0; i < p.nLvcsRows; i++ {
		src := rows[i%p.nUnstackedRows]
		start := (i / p.nUnstackedRows) * p.nLvcsCols
		if start+p.nLvcsCols <= p.nUnstackedCols {
			copy(stacked[i], src[start:start+p.nLvcsCols])
		} else if start < p.nUnstackedCols {
			copy(stacked[i], src[start:])
		}
	}
	return stacked
}

// buildCoefficients produces the LVCS opening coefficients for the
// evaluation points: combination j*beta+k carries the powers
// (1, r_j, ..., r_j^(mu+m-1)) placed on block k of the stacked rows.
func (p *Pcs) buildCoefficients(evalPoints field.Vec) field.Mat {
	m := p.cfg.NOpenedEvals
	mu := p.cfg.Mu
	beta := p.cfg.Beta

	coeffs := field.NewMat(p.nOpenedCombi, p.nLvcsRows)
	powers := field.NewVec(mu + m)
	for j := 0; j < m; j++ {
		powers[0].SetOne()
		for k := 1; k < mu+m; k++ {
			powers[k].Mul(&powers[k-1], &evalPoints[j])
		}
		for k := 0; k < beta; k++ {
			copy(coeffs[j*beta+k][(mu+m)*k:], powers)
		}
	}
	return coeffs
}

// columnWeight advances pow through the column weights of polynomial k:
// full columns weigh r^mu, the transition into the last column weighs
// r^(mu-delta).
func (p *Pcs) columnWeight(pow *fr.Element, rToMu, r *fr.Element, k, i int) {
	switch {
	case i < p.width[k]-2:
		pow.Mul(pow, rToMu)
	case i == p.width[k]-2:
		for h := 0; h < p.cfg.Mu-p.delta[k]; h++ {
			pow.Mul(pow, r)
		}
	}
}

// Open opens every committed polynomial at the evaluation points. The
// returned matrix of claimed evaluations is indexed [point][poly]; the
// proof carries the per-polynomial partial evaluations that let the
// verifier re-derive the opened combinations.
func (p *Pcs) Open(key *Key, evalPoints field.Vec, prTranscript []byte) ([]byte, field.Mat, error) {
	cfg := p.cfg
	m := cfg.NOpenedEvals
	mu := cfg.Mu
	beta := cfg.Beta
	nPolys := len(cfg.Degrees)

	coeffs := p.buildCoefficients(evalPoints)
	lvcsProof, combi, err := p.lvcs.Open(key.lvcsKey, coeffs, p.fullrankCols, prTranscript)
	if err != nil {
		return nil, nil, err
	}

	proof := make([]byte, 0, p.MaxProofSize())
	proof = append(proof, lvcsProof...)

	evals := field.NewMat(m, nPolys)
	partial := field.NewVec(p.nUnstackedCols)
	var pow, tmp, rToMu fr.Element
	for j := 0; j < m; j++ {
		rToMu.Set(&evalPoints[j])
		for i := 1; i < mu; i++ {
			rToMu.Mul(&rToMu, &evalPoints[j])
		}

		numCol := 0
		numCombi := beta * j
		ind := 0
		for k := 0; k < nPolys; k++ {
			polyInd := ind
			evals[j][k].SetZero()
			pow.SetOne()
			for i := 0; i < p.width[k]; i++ {
				if i > 0 {
					partial[ind] = combi[numCombi][numCol]
					ind++
				}
				tmp.Mul(&combi[numCombi][numCol], &pow)
				evals[j][k].Add(&evals[j][k], &tmp)
				p.columnWeight(&pow, &rToMu, &evalPoints[j], k, i)
				numCol++
				if numCol >= p.nLvcsCols {
					numCol = 0
					numCombi++
				}
			}
			buf := make([]byte, field.VecSize(p.width[k]-1))
			field.Vec(partial[polyInd:ind]).Serialize(buf)
			proof = append(proof, buf...)
		}

		// The stacked tail past the data columns must be zero padding.
		if numCombi < beta*(j+1) {
			for ; numCol < p.nLvcsCols; numCol++ {
				if !combi[numCombi][numCol].IsZero() {
					return nil, nil, fmt.Errorf("%w: non-zero stacking padding", ErrProofRejected)
				}
			}
		}
	}
	return proof, evals, nil
}

// RecomputeTranscript rebuilds the commitment transcript from the
// claimed evaluations and the opening proof.
func (p *Pcs) RecomputeTranscript(salt []byte, evalPoints field.Vec, prTranscript []byte, evals field.Mat, proof []byte) ([]byte, error) {
	cfg := p.cfg
	m := cfg.NOpenedEvals
	mu := cfg.Mu
	beta := cfg.Beta
	nPolys := len(cfg.Degrees)

	partialSize := 0
	for _, w := range p.width {
		partialSize += field.VecSize(w - 1)
	}
	partialSize *= m
	if len(proof) < partialSize {
		return nil, fmt.Errorf("%w: proof too short", ErrProofRejected)
	}
	lvcsProof := proof[:len(proof)-partialSize]
	partialBuf := proof[len(proof)-partialSize:]

	coeffs := p.buildCoefficients(evalPoints)
	combi := field.NewMat(p.nOpenedCombi, p.nLvcsCols)
	unstacked := field.NewVec(p.nUnstackedCols)
	var pow, tmp, sum, rToMu fr.Element
	for j := 0; j < m; j++ {
		rToMu.Set(&evalPoints[j])
		for i := 1; i < mu; i++ {
			rToMu.Mul(&rToMu, &evalPoints[j])
		}

		polyInd := 0
		for k := 0; k < nPolys; k++ {
			w := p.width[k]
			if err := field.Vec(unstacked[polyInd+1 : polyInd+w]).Deserialize(partialBuf); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
			}
			partialBuf = partialBuf[field.VecSize(w-1):]

			// The first column value is whatever makes the claimed
			// evaluation hold.
			sum.SetZero()
			pow.SetOne()
			for i := 1; i < w; i++ {
				p.columnWeight(&pow, &rToMu, &evalPoints[j], k, i-1)
				tmp.Mul(&unstacked[polyInd+i], &pow)
				sum.Add(&sum, &tmp)
			}
			unstacked[polyInd].Sub(&evals[j][k], &sum)
			polyInd += w
		}

		for i := 0; i < beta; i++ {
			row := combi[j*beta+i]
			start := i * p.nLvcsCols
			for c := range row {
				row[c].SetZero()
			}
			if start+p.nLvcsCols <= p.nUnstackedCols {
				copy(row, unstacked[start:start+p.nLvcsCols])
			} else if start < p.nUnstackedCols {
				copy(row, unstacked[start:])
			}
		}
	}

	return p.lvcs.RecomputeTranscript(salt, coeffs, p.fullrankCols, prTranscript, combi, lvcsProof)
}

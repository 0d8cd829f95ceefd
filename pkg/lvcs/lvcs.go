// Package lvcs implements the linear vector commitment scheme: a
// matrix is committed row-wise through the degree-enforcing commitment
// scheme, and the prover can later open arbitrary linear combinations
// of the rows. Rows are extended with random columns so that the opened
// evaluations leak nothing beyond the combinations.
package lvcs

import (
	"errors"
	"fmt"

	"github.com/MuriData/capss/pkg/decs"
	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/merkle"
	"github.com/MuriData/capss/pkg/xof"
)

// ErrConfig reports invalid scheme parameters.
var ErrConfig = errors.New("lvcs: invalid configuration")

// ErrProofRejected reports an opening proof that does not match the
// committed transcript.
var ErrProofRejected = errors.New("lvcs: proof rejected")

// Config fixes one LVCS instance. The Decs* fields configure the
// underlying degree-enforcing commitment.
type Config struct {
	NRows        int
	NCols        int
	NOpenedCombi int

	DecsNEvals             int
	DecsNOpenedEvals       int
	DecsEta                int
	DecsPowBits            int
	DecsUseCommitmentTapes bool
	DecsFormatChallenge    int
	DecsTree               *merkle.Config
}

// Lvcs is a validated LVCS instance.
type Lvcs struct {
	cfg                 Config
	decs                *decs.Decs
	interpolationPoints field.Vec
}

// Key is the prover state between commit and open.
type Key struct {
	extendedRows field.Mat
	decsKey      *decs.Key
}

// New validates cfg and builds the underlying DECS instance. Each
// extended row is interpolated over the fixed points: the opened-eval
// indices 0..m-1 carry the random extension and the following points
// carry the data columns.
func New(cfg Config) (*Lvcs, error) {
	if cfg.NRows == 0 || cfg.NCols == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrConfig)
	}
	if cfg.NOpenedCombi == 0 || cfg.NOpenedCombi > cfg.NRows {
		return nil, fmt.Errorf("%w: opened combination count %d out of range", ErrConfig, cfg.NOpenedCombi)
	}
	d, err := decs.New(decs.Config{
		NPolys:             cfg.NRows,
		PolyDegree:         cfg.NCols + cfg.DecsNOpenedEvals - 1,
		NEvals:             cfg.DecsNEvals,
		NOpenedEvals:       cfg.DecsNOpenedEvals,
		Eta:                cfg.DecsEta,
		PowBits:            cfg.DecsPowBits,
		UseCommitmentTapes: cfg.DecsUseCommitmentTapes,
		FormatChallenge:    cfg.DecsFormatChallenge,
		Tree:               cfg.DecsTree,
	})
	if err != nil {
		return nil, err
	}

	m := cfg.DecsNOpenedEvals
	points := field.NewVec(cfg.NCols + m)
	for i := 0; i < cfg.NCols; i++ {
		field.FromUint32(&points[i], uint32(m+i))
	}
	for i := 0; i < m; i++ {
		field.FromUint32(&points[cfg.NCols+i], uint32(i))
	}
	return &Lvcs{cfg: cfg, decs: d, interpolationPoints: points}, nil
}

// TranscriptSize returns the byte size of the commitment transcript.
func (l *Lvcs) TranscriptSize() int {
	return l.decs.TranscriptSize()
}

// MaxProofSize returns an upper bound on the opening proof size.
func (l *Lvcs) MaxProofSize() int {
	cfg := l.cfg
	m := cfg.DecsNOpenedEvals
	size := decs.NonceSize + l.decs.MaxProofSize()
	size += cfg.NOpenedCombi * field.VecSize(m)
	size += m * field.VecSize(cfg.NRows-cfg.NOpenedCombi)
	return size
}

// Commit extends the rows with random columns, interpolates each
// extended row and commits the polynomials through DECS.
func (l *Lvcs) Commit(salt []byte, rows field.Mat) ([]byte, *Key, error) {
	cfg := l.cfg
	if len(rows) != cfg.NRows {
		return nil, nil, fmt.Errorf("%w: got %d rows, want %d", ErrConfig, len(rows), cfg.NRows)
	}
	m := cfg.DecsNOpenedEvals

	key := &Key{extendedRows: field.NewMat(cfg.NRows, cfg.NCols+m)}
	for j := range rows {
		copy(key.extendedRows[j], rows[j])
		rnd, err := field.RandomVec(m)
		if err != nil {
			return nil, nil, err
		}
		copy(key.extendedRows[j][cfg.NCols:], rnd)
	}

	polys := field.InterpolateMultiple(key.extendedRows, l.interpolationPoints)
	transcript, decsKey, err := l.decs.Commit(salt, polys)
	if err != nil {
		return nil, nil, err
	}
	key.decsKey = decsKey
	return transcript, key, nil
}

// challengeHash binds the opening to the prior transcript and the
// extended combinations.
func (l *Lvcs) challengeHash(prTranscript []byte, extendedCombis field.Mat) xof.Digest {
	buf := make([]byte, 0, len(prTranscript)+len(extendedCombis)*field.VecSize(len(extendedCombis[0])))
	buf = append(buf, prTranscript...)
	rowBuf := make([]byte, field.VecSize(len(extendedCombis[0])))
	for k := range extendedCombis {
		extendedCombis[k].Serialize(rowBuf)
		buf = append(buf, rowBuf...)
	}
	return xof.Sum(buf)
}

// Open opens the row combinations selected by the coefficient matrix.
// fullrankCols names the rows on which the coefficients form an
// invertible submatrix; the opened evaluations of those rows are left
// out of the proof and recomputed by the verifier. It returns the proof
// and the opened combinations restricted to the data columns.
func (l *Lvcs) Open(key *Key, coeffs field.Mat, fullrankCols []int, prTranscript []byte) ([]byte, field.Mat, error) {
	cfg := l.cfg
	m := cfg.DecsNOpenedEvals
	r := cfg.NOpenedCombi

	extendedCombis := field.NewMat(r, cfg.NCols+m)
	extendedCombis.Mul(coeffs, key.extendedRows)
	combi := field.NewMat(r, cfg.NCols)
	for k := 0; k < r; k++ {
		copy(combi[k], extendedCombis[k][:cfg.NCols])
	}

	transHash := l.challengeHash(prTranscript, extendedCombis)
	evalPoints, nonce, err := l.decs.OpeningChallenge(transHash[:])
	if err != nil {
		return nil, nil, err
	}

	decsProof, evals, err := l.decs.Open(key.decsKey, evalPoints)
	if err != nil {
		return nil, nil, err
	}

	proof := make([]byte, 0, l.MaxProofSize())
	tailBuf := make([]byte, field.VecSize(m))
	for k := 0; k < r; k++ {
		field.Vec(extendedCombis[k][cfg.NCols:]).Serialize(tailBuf)
		proof = append(proof, tailBuf...)
	}
	proof = append(proof, nonce[:]...)

	subset := field.NewVec(cfg.NRows - r)
	subsetBuf := make([]byte, field.VecSize(len(subset)))
	for j := 0; j < m; j++ {
		ind := 0
		pos := 0
		for k := 0; k < cfg.NRows; k++ {
			if ind < r && fullrankCols[ind] == k {
				ind++
				continue
			}
			subset[pos] = evals[j][k]
			pos++
		}
		subset.Serialize(subsetBuf)
		proof = append(proof, subsetBuf...)
	}
	proof = append(proof, decsProof...)
	return proof, combi, nil
}

// RecomputeTranscript rebuilds the DECS commitment transcript from an
// opening proof and the claimed combinations. The full evaluation
// matrix is recovered by solving the linear system on the fullrank
// rows.
func (l *Lvcs) RecomputeTranscript(salt []byte, coeffs field.Mat, fullrankCols []int, prTranscript []byte, combi field.Mat, proof []byte) ([]byte, error) {
	cfg := l.cfg
	m := cfg.DecsNOpenedEvals
	r := cfg.NOpenedCombi

	fixed := r*field.VecSize(m) + decs.NonceSize + m*field.VecSize(cfg.NRows-r)
	if len(proof) < fixed {
		return nil, fmt.Errorf("%w: proof too short", ErrProofRejected)
	}

	extendedCombis := field.NewMat(r, cfg.NCols+m)
	for k := 0; k < r; k++ {
		copy(extendedCombis[k], combi[k])
		if err := field.Vec(extendedCombis[k][cfg.NCols:]).Deserialize(proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		proof = proof[field.VecSize(m):]
	}
	transHash := l.challengeHash(prTranscript, extendedCombis)

	var nonce [decs.NonceSize]byte
	copy(nonce[:], proof[:decs.NonceSize])
	proof = proof[decs.NonceSize:]
	evalPoints, err := l.decs.RecomputeOpeningChallenge(transHash[:], nonce)
	if err != nil {
		return nil, err
	}

	// Evaluate the opened combination polynomials at the challenge
	// points.
	combiPolys := field.InterpolateMultiple(extendedCombis, l.interpolationPoints)
	evalsQ := field.EvalMultiple(combiPolys, evalPoints)

	// Split the coefficients into the invertible part and the rest.
	part1 := field.NewMat(r, r)
	part2 := field.NewMat(r, cfg.NRows-r)
	for j := 0; j < r; j++ {
		ind := 0
		for k := 0; k < cfg.NRows; k++ {
			if ind < r && fullrankCols[ind] == k {
				part1[j][ind] = coeffs[j][k]
				ind++
			} else {
				part2[j][k-ind] = coeffs[j][k]
			}
		}
	}
	part1Inv := field.NewMat(r, r)
	if err := part1.Inverse(part1Inv); err != nil {
		return nil, fmt.Errorf("%w: coefficient submatrix not invertible", ErrProofRejected)
	}

	evals := field.NewMat(m, cfg.NRows)
	subset := field.NewVec(cfg.NRows - r)
	tmp := field.NewVec(r)
	res := field.NewVec(r)
	for j := 0; j < m; j++ {
		if err := subset.Deserialize(proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		proof = proof[field.VecSize(len(subset)):]
		part2.MulVec(tmp, subset)
		tmp.Sub(evalsQ[j], tmp)
		part1Inv.MulVec(res, tmp)
		ind := 0
		for k := 0; k < cfg.NRows; k++ {
			if ind < r && fullrankCols[ind] == k {
				evals[j][k] = res[ind]
				ind++
			} else {
				evals[j][k] = subset[k-ind]
			}
		}
	}

	return l.decs.RecomputeTranscript(salt, evalPoints, evals, proof)
}

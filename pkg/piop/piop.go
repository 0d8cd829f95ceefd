// Package piop implements the polynomial interactive oracle proof on
// top of an LPPC statement: all polynomial constraints and all linear
// constraints are batched into rho combined polynomials each, masked,
// and appended to the transcript. The verifier recomputes the combined
// polynomials from the opened witness evaluations and the proof.
package piop

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/lppc"
	"github.com/MuriData/capss/pkg/xof"
)

// ErrConfig reports invalid parameters.
var ErrConfig = errors.New("piop: invalid configuration")

// ErrProofRejected reports a proof inconsistent with the opened
// evaluations.
var ErrProofRejected = errors.New("piop: proof rejected")

// Config fixes one PIOP instance.
type Config struct {
	// Rho is the number of batching repetitions.
	Rho int
	// NOpenedEvals is the number of opened evaluation points.
	NOpenedEvals int
	FormatChallenge int
}

// Piop is a validated PIOP instance for one LPPC shape.
type Piop struct {
	cfg           Config
	lppcCfg       lppc.Config
	packingPoints field.Vec
	outPpolDegree int
	outPlinDegree int
}

// InputDegrees returns the degrees of the witness polynomials and of
// the two mask families for the given LPPC shape and PIOP parameters.
func InputDegrees(lppcCfg *lppc.Config, cfg Config) (witDegree, maskPolyDegree, maskLinDegree int) {
	mu := lppcCfg.PackingFactor
	m := cfg.NOpenedEvals
	witDegree = mu + m - 1
	maskPolyDegree = lppcCfg.ConstraintDegree*(mu+m-1) - mu
	maskLinDegree = (mu + m - 1) + (mu - 1)
	return
}

// New validates the parameters and fixes the packing points 0..mu-1.
func New(lppcCfg *lppc.Config, cfg Config) (*Piop, error) {
	if cfg.Rho == 0 || cfg.NOpenedEvals == 0 {
		return nil, fmt.Errorf("%w: rho and opened-eval count must be non-zero", ErrConfig)
	}
	if !xof.ValidFormat(cfg.FormatChallenge) {
		return nil, fmt.Errorf("%w: unknown challenge format %d", ErrConfig, cfg.FormatChallenge)
	}
	mu := lppcCfg.PackingFactor
	points := field.NewVec(mu)
	for i := range points {
		field.FromUint32(&points[i], uint32(i))
	}
	_, maskPolyDegree, maskLinDegree := InputDegrees(lppcCfg, cfg)
	return &Piop{
		cfg:           cfg,
		lppcCfg:       *lppcCfg,
		packingPoints: points,
		outPpolDegree: maskPolyDegree,
		outPlinDegree: maskLinDegree,
	}, nil
}

// PackingPoints returns the packing points.
func (p *Piop) PackingPoints() field.Vec {
	return p.packingPoints
}

// TranscriptSize returns the byte size of the output transcript.
func (p *Piop) TranscriptSize() int {
	return xof.DigestSize + p.cfg.Rho*(field.VecSize(p.outPpolDegree+1)+field.VecSize(p.outPlinDegree))
}

// ProofSize returns the byte size of the proof.
func (p *Piop) ProofSize() int {
	m := p.cfg.NOpenedEvals
	return p.cfg.Rho * (field.VecSize(p.outPpolDegree+1-m) + field.VecSize(p.outPlinDegree-m))
}

// nMaxConstraints is the batching-coefficient count shared by both
// constraint families.
func (p *Piop) nMaxConstraints() int {
	if p.lppcCfg.NPolyConstraints > p.lppcCfg.NLinearConstraints {
		return p.lppcCfg.NPolyConstraints
	}
	return p.lppcCfg.NLinearConstraints
}

// PrepareInputs interpolates the witness rows into hiding polynomials
// and samples the two mask families. Every L-mask polynomial sums to
// zero over the packing points.
func (p *Piop) PrepareInputs(witness field.Vec) (witPolys, pMasks, lMasks []field.Poly, err error) {
	mu := p.lppcCfg.PackingFactor
	m := p.cfg.NOpenedEvals
	witDegree := mu + m - 1

	witPolys = make([]field.Poly, p.lppcCfg.NWitRows)
	for i := range witPolys {
		rnd, rerr := field.RandomVec(m)
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		row := field.Vec(witness[i*mu : (i+1)*mu])
		witPolys[i] = field.Restore(rnd, row, p.packingPoints, witDegree)
	}

	pMasks = make([]field.Poly, p.cfg.Rho)
	for i := range pMasks {
		if pMasks[i], err = field.RandomPoly(p.outPpolDegree); err != nil {
			return nil, nil, nil, err
		}
	}

	lMasks = make([]field.Poly, p.cfg.Rho)
	for i := range lMasks {
		if lMasks[i], err = p.randomSumZeroPoly(); err != nil {
			return nil, nil, nil, err
		}
	}
	return witPolys, pMasks, lMasks, nil
}

// randomSumZeroPoly samples a polynomial of degree outPlinDegree whose
// evaluations over the packing points sum to zero: the non-constant
// coefficients are uniform and the constant term absorbs the sum.
func (p *Piop) randomSumZeroPoly() (field.Poly, error) {
	poly, err := field.RandomPoly(p.outPlinDegree)
	if err != nil {
		return nil, err
	}
	poly[0].SetZero()
	var acc, tmp, factor fr.Element
	for i := range p.packingPoints {
		tmp = poly.Eval(&p.packingPoints[i])
		acc.Add(&acc, &tmp)
	}
	factor.SetUint64(uint64(len(p.packingPoints)))
	acc.Neg(&acc)
	poly[0].Div(&acc, &factor)
	return poly, nil
}

// Run executes the prover side: it derives the batching challenge from
// the input transcript, folds the constraint polynomials, divides the
// polynomial batch by the vanishing polynomial of the packing points,
// masks both batches and emits transcript and proof.
func (p *Piop) Run(st lppc.Statement, inTranscript []byte, witPolys, pMasks, lMasks []field.Poly) (outTranscript, proof []byte, err error) {
	mu := p.lppcCfg.PackingFactor
	m := p.cfg.NOpenedEvals
	rho := p.cfg.Rho
	witDegree := mu + m - 1
	extDegree := p.outPpolDegree + mu

	hashFpp := xof.Sum(inTranscript)
	gammas, err := xof.ChallengeMatrix(p.cfg.FormatChallenge, rho, p.nMaxConstraints(), hashFpp[:])
	if err != nil {
		return nil, nil, err
	}

	outTranscript = make([]byte, 0, p.TranscriptSize())
	outTranscript = append(outTranscript, hashFpp[:]...)
	proof = make([]byte, 0, p.ProofSize())

	inPpol := st.ConstraintPolyPolynomials(witPolys, p.packingPoints, witDegree)
	inPlin := st.ConstraintLinPolynomialsBatched(witPolys, p.packingPoints, gammas, witDegree)

	tmp := field.NewPoly(extDegree)
	for rep := 0; rep < rho; rep++ {
		// Polynomial constraints: batch, divide out the packing
		// points, mask. The division must be exact; a remainder means
		// the witness is invalid.
		outPpol := field.NewPoly(extDegree)
		for num := 0; num < p.lppcCfg.NPolyConstraints; num++ {
			tmp.MulScalar(inPpol[num], &gammas[rep][num])
			outPpol.Add(outPpol, tmp)
		}
		for num := 0; num < mu; num++ {
			outPpol = field.RemoveLinearFactor(outPpol, &p.packingPoints[num])
		}
		outPpol.Add(outPpol, pMasks[rep])

		// Linear constraints: the statement already folded them with
		// the batching coefficients.
		outPlin := field.NewPoly(p.outPlinDegree)
		outPlin.Add(inPlin[rep], lMasks[rep])

		buf := make([]byte, field.VecSize(p.outPpolDegree+1))
		field.Vec(outPpol).Serialize(buf)
		outTranscript = append(outTranscript, buf...)
		buf = make([]byte, field.VecSize(p.outPlinDegree))
		field.Vec(outPlin[1:]).Serialize(buf)
		outTranscript = append(outTranscript, buf...)

		buf = make([]byte, field.VecSize(p.outPpolDegree+1-m))
		field.Vec(outPpol[m:]).Serialize(buf)
		proof = append(proof, buf...)
		buf = make([]byte, field.VecSize(p.outPlinDegree-m))
		field.Vec(outPlin[m+1:]).Serialize(buf)
		proof = append(proof, buf...)
	}
	return outTranscript, proof, nil
}

// RecomputeTranscript executes the verifier side from the opened
// evaluations of the witness and mask polynomials at the challenge
// points.
func (p *Piop) RecomputeTranscript(st lppc.Statement, inTranscript []byte, evalPoints field.Vec, witEvals, pMaskEvals, lMaskEvals field.Mat, proof []byte) ([]byte, error) {
	mu := p.lppcCfg.PackingFactor
	m := p.cfg.NOpenedEvals
	rho := p.cfg.Rho

	if len(proof) != p.ProofSize() {
		return nil, fmt.Errorf("%w: proof has %d bytes, want %d", ErrProofRejected, len(proof), p.ProofSize())
	}

	hashFpp := xof.Sum(inTranscript)
	gammas, err := xof.ChallengeMatrix(p.cfg.FormatChallenge, rho, p.nMaxConstraints(), hashFpp[:])
	if err != nil {
		return nil, err
	}

	outTranscript := make([]byte, 0, p.TranscriptSize())
	outTranscript = append(outTranscript, hashFpp[:]...)

	inEpol := st.ConstraintPolyEvals(evalPoints, witEvals, p.packingPoints)
	inElin := st.ConstraintLinEvals(evalPoints, witEvals, p.packingPoints)
	vt := st.LinearResult()

	// The constant term of the linear batch is restored through an
	// extra interpolation point at zero, then corrected so the batch
	// sums to the public linear result over the packing points.
	pointsWithZero := field.NewVec(m + 1)
	copy(pointsWithZero, evalPoints)
	lag := field.Lagrange(pointsWithZero, m)
	var correction fr.Element
	var tmp, tmp2 fr.Element
	for num := 0; num < mu; num++ {
		tmp = lag.Eval(&p.packingPoints[num])
		correction.Add(&correction, &tmp)
	}

	outEpol := field.NewVec(m)
	outElin := field.NewVec(m + 1)
	ppolHigh := field.NewVec(p.outPpolDegree + 1 - m)
	plinHigh := field.NewVec(p.outPlinDegree - m)
	scaledLag := field.NewPoly(m)
	for rep := 0; rep < rho; rep++ {
		// Polynomial constraints.
		for j := 0; j < m; j++ {
			outEpol[j].SetZero()
			for num := 0; num < p.lppcCfg.NPolyConstraints; num++ {
				tmp.Mul(&inEpol[j][num], &gammas[rep][num])
				outEpol[j].Add(&outEpol[j], &tmp)
			}
			tmp.SetOne()
			for num := 0; num < mu; num++ {
				tmp2.Sub(&evalPoints[j], &p.packingPoints[num])
				tmp.Mul(&tmp, &tmp2)
			}
			outEpol[j].Div(&outEpol[j], &tmp)
			outEpol[j].Add(&outEpol[j], &pMaskEvals[j][rep])
		}
		if err := ppolHigh.Deserialize(proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		proof = proof[field.VecSize(len(ppolHigh)):]
		outPpol := field.Restore(ppolHigh, outEpol, evalPoints, p.outPpolDegree)

		// Linear constraints.
		for j := 0; j < m; j++ {
			outElin[j].SetZero()
			for num := 0; num < p.lppcCfg.NLinearConstraints; num++ {
				tmp.Mul(&inElin[j][num], &gammas[rep][num])
				outElin[j].Add(&outElin[j], &tmp)
			}
			outElin[j].Add(&outElin[j], &lMaskEvals[j][rep])
		}
		outElin[m].SetZero()
		if err := plinHigh.Deserialize(proof); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		proof = proof[field.VecSize(len(plinHigh)):]
		outPlin := field.Restore(plinHigh, outElin, pointsWithZero, p.outPlinDegree)

		var res fr.Element
		for num := 0; num < p.lppcCfg.NLinearConstraints; num++ {
			tmp.Mul(&vt[num], &gammas[rep][num])
			res.Add(&res, &tmp)
		}
		for num := 0; num < mu; num++ {
			tmp = outPlin.Eval(&p.packingPoints[num])
			res.Sub(&res, &tmp)
		}
		res.Div(&res, &correction)
		scaledLag.MulScalar(lag, &res)
		field.Poly(outPlin[:m+1]).Add(field.Poly(outPlin[:m+1]), scaledLag)

		buf := make([]byte, field.VecSize(p.outPpolDegree+1))
		field.Vec(outPpol).Serialize(buf)
		outTranscript = append(outTranscript, buf...)
		buf = make([]byte, field.VecSize(p.outPlinDegree))
		field.Vec(outPlin[1:]).Serialize(buf)
		outTranscript = append(outTranscript, buf...)
	}
	return outTranscript, nil
}

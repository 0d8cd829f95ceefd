// Package smallwood assembles the proof system: witness and mask
// polynomials are committed through the polynomial commitment scheme,
// the PIOP batches the LPPC constraints, a grinded challenge selects
// the opened evaluation points, and the resulting non-interactive
// argument binds caller-supplied data.
package smallwood

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/lppc"
	"github.com/MuriData/capss/pkg/merkle"
	"github.com/MuriData/capss/pkg/pcs"
	"github.com/MuriData/capss/pkg/piop"
	"github.com/MuriData/capss/pkg/xof"
)

// Byte sizes of the fixed proof fields.
const (
	SaltSize  = 32
	NonceSize = 4
)

// ErrProofRejected reports a proof that fails verification.
var ErrProofRejected = errors.New("smallwood: proof rejected")

// logger is the package logger; silent unless SetLogger installs one.
var logger = zerolog.Nop()

// SetLogger installs a logger for debug proof-size breakdowns.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Config fixes one instance of the proof system.
type Config struct {
	// Rho is the number of PIOP batching repetitions.
	Rho int
	// NOpenedEvals is the number of opened evaluation points.
	NOpenedEvals int
	// Beta is the PCS stacking factor.
	Beta int
	PiopFormatChallenge int
	// OpeningPowBits grinds the PIOP opening challenge.
	OpeningPowBits int

	DecsNEvals             int
	DecsNOpenedEvals       int
	DecsEta                int
	DecsPowBits            int
	DecsUseCommitmentTapes bool
	DecsFormatChallenge    int
	DecsTree               *merkle.Config
}

// Smallwood is a validated prover/verifier instance for one LPPC
// shape.
type Smallwood struct {
	cfg     Config
	lppcCfg lppc.Config
	pcs     *pcs.Pcs
	piop    *piop.Piop

	witDegree      int
	maskPolyDegree int
	maskLinDegree  int
	fixedProofSize int // proof size minus the PCS opening proof
}

// New validates the configuration and sizes the committed polynomial
// batch: the witness rows followed by rho P-masks and rho L-masks.
func New(lppcCfg *lppc.Config, cfg Config) (*Smallwood, error) {
	piopCfg := piop.Config{
		Rho:             cfg.Rho,
		NOpenedEvals:    cfg.NOpenedEvals,
		FormatChallenge: cfg.PiopFormatChallenge,
	}
	pp, err := piop.New(lppcCfg, piopCfg)
	if err != nil {
		return nil, err
	}
	witDegree, maskPolyDegree, maskLinDegree := piop.InputDegrees(lppcCfg, piopCfg)

	nPolys := lppcCfg.NWitRows + 2*cfg.Rho
	degrees := make([]int, nPolys)
	for i := 0; i < lppcCfg.NWitRows; i++ {
		degrees[i] = witDegree
	}
	for i := 0; i < cfg.Rho; i++ {
		degrees[lppcCfg.NWitRows+i] = maskPolyDegree
		degrees[lppcCfg.NWitRows+cfg.Rho+i] = maskLinDegree
	}

	pc, err := pcs.New(pcs.Config{
		Degrees:                degrees,
		NOpenedEvals:           cfg.NOpenedEvals,
		Mu:                     lppcCfg.PackingFactor,
		Beta:                   cfg.Beta,
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

	sw := &Smallwood{
		cfg:            cfg,
		lppcCfg:        *lppcCfg,
		pcs:            pc,
		piop:           pp,
		witDegree:      witDegree,
		maskPolyDegree: maskPolyDegree,
		maskLinDegree:  maskLinDegree,
	}
	sw.fixedProofSize = NonceSize + SaltSize + xof.DigestSize +
		pp.ProofSize() + cfg.NOpenedEvals*field.VecSize(nPolys)
	return sw, nil
}

// MaxProofSize returns an upper bound on the proof size.
func (sw *Smallwood) MaxProofSize() int {
	return sw.fixedProofSize + sw.pcs.MaxProofSize()
}

// openingChallenge derives the opened evaluation points and the
// proof-of-work value from a nonce and the PIOP transcript hash.
func (sw *Smallwood) openingChallenge(nonce [NonceSize]byte, hPiop []byte) (field.Vec, uint32) {
	m := sw.cfg.NOpenedEvals
	var nonceFelt fr.Element
	field.FromUint32(&nonceFelt, binary.LittleEndian.Uint32(nonce[:]))
	nonceBuf := make([]byte, field.Bytes)
	field.PutElement(nonceBuf, &nonceFelt)

	if sw.cfg.OpeningPowBits == 0 {
		return xof.SampleFelts(m, nonceBuf, hPiop), 0
	}
	out := xof.SampleFelts(m+1, nonceBuf, hPiop)
	buf := make([]byte, field.Bytes)
	field.PutElement(buf, &out[m])
	vpow := uint32(buf[0]) | uint32(buf[1])<<8
	vpow &= (1 << sw.cfg.OpeningPowBits) - 1
	return out[:m], vpow
}

// Prove produces a proof that the witness satisfies the statement,
// bound to boundData.
func (sw *Smallwood) Prove(st lppc.Statement, witness field.Vec, boundData []byte) ([]byte, error) {
	cfg := sw.cfg
	m := cfg.NOpenedEvals
	nWitRows := sw.lppcCfg.NWitRows

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("smallwood: salt sampling failed: %w", err)
	}

	witPolys, pMasks, lMasks, err := sw.piop.PrepareInputs(witness)
	if err != nil {
		return nil, err
	}
	allPolys := make([]field.Poly, 0, nWitRows+2*cfg.Rho)
	allPolys = append(allPolys, witPolys...)
	allPolys = append(allPolys, pMasks...)
	allPolys = append(allPolys, lMasks...)

	pcsTranscript, pcsKey, err := sw.pcs.Commit(salt, allPolys)
	if err != nil {
		return nil, err
	}

	inTranscript := make([]byte, 0, len(pcsTranscript)+len(boundData))
	inTranscript = append(inTranscript, pcsTranscript...)
	inTranscript = append(inTranscript, boundData...)
	piopTranscript, piopProof, err := sw.piop.Run(st, inTranscript, witPolys, pMasks, lMasks)
	if err != nil {
		return nil, err
	}
	hPiop := xof.Sum(piopTranscript)

	// Grind until the challenge passes the proof of work and avoids
	// the packing points, where the witness polynomials would open to
	// bare witness values.
	var nonce [NonceSize]byte
	packingPoints := sw.piop.PackingPoints()
	var evalPoints field.Vec
	for counter := uint32(0); ; counter++ {
		binary.LittleEndian.PutUint32(nonce[:], counter)
		points, vpow := sw.openingChallenge(nonce, hPiop[:])
		ok := vpow == 0
		for i := range points {
			for j := range packingPoints {
				if points[i].Equal(&packingPoints[j]) {
					ok = false
				}
			}
		}
		if ok {
			evalPoints = points
			break
		}
	}

	pcsProof, allEvals, err := sw.pcs.Open(pcsKey, evalPoints, hPiop[:])
	if err != nil {
		return nil, err
	}

	proof := make([]byte, 0, sw.fixedProofSize+len(pcsProof))
	proof = append(proof, nonce[:]...)
	proof = append(proof, salt...)
	proof = append(proof, hPiop[:]...)
	proof = append(proof, piopProof...)
	proof = append(proof, pcsProof...)
	evalBuf := make([]byte, field.VecSize(nWitRows+2*cfg.Rho))
	for j := 0; j < m; j++ {
		allEvals[j].Serialize(evalBuf)
		proof = append(proof, evalBuf...)
	}

	logger.Debug().
		Int("proof_size", len(proof)).
		Int("pcs_proof_size", len(pcsProof)).
		Int("piop_proof_size", len(piopProof)).
		Msg("smallwood proof assembled")
	return proof, nil
}

// Verify checks a proof against the statement and the bound data.
func (sw *Smallwood) Verify(st lppc.Statement, boundData []byte, proof []byte) error {
	cfg := sw.cfg
	m := cfg.NOpenedEvals
	nWitRows := sw.lppcCfg.NWitRows
	nPolys := nWitRows + 2*cfg.Rho

	if len(proof) < sw.fixedProofSize {
		return fmt.Errorf("%w: proof too short", ErrProofRejected)
	}
	pcsProofSize := len(proof) - sw.fixedProofSize

	var nonce [NonceSize]byte
	copy(nonce[:], proof[:NonceSize])
	proof = proof[NonceSize:]
	salt := proof[:SaltSize]
	proof = proof[SaltSize:]
	hPiop := proof[:xof.DigestSize]
	proof = proof[xof.DigestSize:]
	piopProof := proof[:sw.piop.ProofSize()]
	proof = proof[sw.piop.ProofSize():]
	pcsProof := proof[:pcsProofSize]
	proof = proof[pcsProofSize:]

	allEvals := field.NewMat(m, nPolys)
	for j := 0; j < m; j++ {
		if err := allEvals[j].Deserialize(proof); err != nil {
			return fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		proof = proof[field.VecSize(nPolys):]
	}

	evalPoints, vpow := sw.openingChallenge(nonce, hPiop)
	if vpow != 0 {
		return fmt.Errorf("%w: proof-of-work value is non-zero", ErrProofRejected)
	}

	pcsTranscript, err := sw.pcs.RecomputeTranscript(salt, evalPoints, hPiop, allEvals, pcsProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}

	witEvals := field.NewMat(m, nWitRows)
	pMaskEvals := field.NewMat(m, cfg.Rho)
	lMaskEvals := field.NewMat(m, cfg.Rho)
	for j := 0; j < m; j++ {
		copy(witEvals[j], allEvals[j][:nWitRows])
		copy(pMaskEvals[j], allEvals[j][nWitRows:nWitRows+cfg.Rho])
		copy(lMaskEvals[j], allEvals[j][nWitRows+cfg.Rho:])
	}

	inTranscript := make([]byte, 0, len(pcsTranscript)+len(boundData))
	inTranscript = append(inTranscript, pcsTranscript...)
	inTranscript = append(inTranscript, boundData...)
	piopTranscript, err := sw.piop.RecomputeTranscript(st, inTranscript, evalPoints, witEvals, pMaskEvals, lMaskEvals, piopProof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}

	recomputed := xof.Sum(piopTranscript)
	for i := range recomputed {
		if recomputed[i] != hPiop[i] {
			return fmt.Errorf("%w: transcript hash mismatch", ErrProofRejected)
		}
	}
	return nil
}

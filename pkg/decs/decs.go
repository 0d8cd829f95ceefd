// Package decs implements the degree-enforcing commitment scheme: a
// batch of polynomials is committed through their evaluations in a
// salted Merkle tree, the maximum degree is enforced by masked random
// linear combinations (the DEC test), and a calibrated proof of work
// selects the opened evaluation indices.
package decs

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/merkle"
	"github.com/MuriData/capss/pkg/xof"
)

// Byte sizes of the fixed commitment artifacts.
const (
	SaltSize  = 32
	TapeSize  = 16
	NonceSize = 4
)

// ErrConfig reports invalid scheme parameters.
var ErrConfig = errors.New("decs: invalid configuration")

// ErrProofRejected reports an opening proof that does not match the
// committed transcript.
var ErrProofRejected = errors.New("decs: proof rejected")

// Config fixes one DECS instance.
type Config struct {
	NPolys       int
	PolyDegree   int
	NEvals       int
	NOpenedEvals int
	// Eta is the number of repetitions of the DEC test.
	Eta int
	// PowBits calibrates the proof of work of the opening challenge.
	PowBits int
	// UseCommitmentTapes adds a fresh random tape to every leaf hash.
	UseCommitmentTapes bool
	FormatChallenge    int
	// Tree optionally overrides the Merkle tree shape; by default a
	// binary tree over NEvals leaves is used.
	Tree *merkle.Config
}

// Decs is a validated DECS instance.
type Decs struct {
	cfg  Config
	tree *merkle.Tree
	plan openingPlan
}

// Key is the prover state between commit and open.
type Key struct {
	committedPolys []field.Poly
	maskingPolys   []field.Poly
	decPolys       []field.Poly
	mtKey          *merkle.Key
	tapes          [][]byte
}

// New validates cfg and precomputes the opening-challenge plan.
func New(cfg Config) (*Decs, error) {
	if cfg.NPolys == 0 || cfg.NEvals == 0 {
		return nil, fmt.Errorf("%w: polynomial and evaluation counts must be non-zero", ErrConfig)
	}
	if cfg.NOpenedEvals == 0 || cfg.NOpenedEvals > cfg.NEvals {
		return nil, fmt.Errorf("%w: opened count %d out of range", ErrConfig, cfg.NOpenedEvals)
	}
	if cfg.Eta == 0 || cfg.Eta >= 32 {
		return nil, fmt.Errorf("%w: eta %d out of range", ErrConfig, cfg.Eta)
	}
	if cfg.PowBits >= 32 {
		return nil, fmt.Errorf("%w: pow bits %d out of range", ErrConfig, cfg.PowBits)
	}
	if !xof.ValidFormat(cfg.FormatChallenge) {
		return nil, fmt.Errorf("%w: unknown challenge format %d", ErrConfig, cfg.FormatChallenge)
	}

	treeCfg := merkle.Config{NLeaves: cfg.NEvals}
	if cfg.Tree != nil {
		treeCfg = *cfg.Tree
	}
	tree, err := merkle.NewTree(treeCfg)
	if err != nil {
		return nil, err
	}
	if tree.NLeaves() != cfg.NEvals {
		return nil, fmt.Errorf("%w: tree has %d leaves, want %d", ErrConfig, tree.NLeaves(), cfg.NEvals)
	}

	d := &Decs{cfg: cfg, tree: tree}
	d.plan = planOpening(cfg.NEvals, cfg.NOpenedEvals, cfg.PowBits)
	return d, nil
}

// TranscriptSize returns the byte size of the commitment transcript.
func (d *Decs) TranscriptSize() int {
	return xof.DigestSize + d.cfg.Eta*field.VecSize(d.cfg.PolyDegree+1)
}

// MaxProofSize returns an upper bound on the opening proof size.
func (d *Decs) MaxProofSize() int {
	cfg := d.cfg
	size := d.tree.MaxAuthSize(cfg.NOpenedEvals)
	size += cfg.NOpenedEvals * field.VecSize(cfg.Eta)
	size += cfg.Eta * field.VecSize(cfg.PolyDegree+1-cfg.NOpenedEvals)
	if cfg.UseCommitmentTapes {
		size += cfg.NOpenedEvals * TapeSize
	}
	return size
}

// leafDigest hashes the evaluations of one leaf, with the optional
// commitment tape.
func (d *Decs) leafDigest(salt []byte, evals field.Vec, tape []byte) xof.Digest {
	buf := make([]byte, field.VecSize(len(evals)))
	evals.Serialize(buf)
	if tape != nil {
		return xof.Sum(salt, buf, tape)
	}
	return xof.Sum(salt, buf)
}

// Commit commits to the polynomials and returns the transcript together
// with the opening key.
func (d *Decs) Commit(salt []byte, polys []field.Poly) ([]byte, *Key, error) {
	cfg := d.cfg
	if len(polys) != cfg.NPolys {
		return nil, nil, fmt.Errorf("%w: got %d polynomials, want %d", ErrConfig, len(polys), cfg.NPolys)
	}

	key := &Key{
		committedPolys: make([]field.Poly, cfg.NPolys),
		maskingPolys:   make([]field.Poly, cfg.Eta),
		decPolys:       make([]field.Poly, cfg.Eta),
	}
	for j, p := range polys {
		if p.Degree() != cfg.PolyDegree {
			return nil, nil, fmt.Errorf("%w: polynomial %d has degree %d, want %d", ErrConfig, j, p.Degree(), cfg.PolyDegree)
		}
		key.committedPolys[j] = p.Clone()
	}
	for k := range key.maskingPolys {
		m, err := field.RandomPoly(cfg.PolyDegree)
		if err != nil {
			return nil, nil, err
		}
		key.maskingPolys[k] = m
	}

	// Merkle leaves: all evaluations of the committed and masking
	// polynomials, leaf i at evaluation point i.
	leaves := make([]xof.Digest, cfg.NEvals)
	if cfg.UseCommitmentTapes {
		key.tapes = make([][]byte, cfg.NEvals)
	}
	evals := field.NewVec(cfg.NPolys + cfg.Eta)
	var point fr.Element
	for i := 0; i < cfg.NEvals; i++ {
		field.FromUint32(&point, uint32(i))
		for j, p := range key.committedPolys {
			evals[j] = p.Eval(&point)
		}
		for k, m := range key.maskingPolys {
			evals[cfg.NPolys+k] = m.Eval(&point)
		}
		var tape []byte
		if cfg.UseCommitmentTapes {
			tape = make([]byte, TapeSize)
			if _, err := rand.Read(tape); err != nil {
				return nil, nil, fmt.Errorf("decs: tape sampling failed: %w", err)
			}
			key.tapes[i] = tape
		}
		leaves[i] = d.leafDigest(salt, evals, tape)
	}

	root, mtKey, err := d.tree.Expand(salt, leaves)
	if err != nil {
		return nil, nil, err
	}
	key.mtKey = mtKey
	hashMT := xof.Sum(salt, root[:])

	gamma, err := xof.ChallengeMatrix(cfg.FormatChallenge, cfg.Eta, cfg.NPolys, hashMT[:])
	if err != nil {
		return nil, nil, err
	}

	tmp := field.NewPoly(cfg.PolyDegree)
	for k := 0; k < cfg.Eta; k++ {
		dec := field.NewPoly(cfg.PolyDegree)
		for j := 0; j < cfg.NPolys; j++ {
			tmp.MulScalar(key.committedPolys[j], &gamma[k][j])
			dec.Add(dec, tmp)
		}
		dec.Add(dec, key.maskingPolys[k])
		key.decPolys[k] = dec
	}

	transcript := make([]byte, 0, d.TranscriptSize())
	transcript = append(transcript, hashMT[:]...)
	polyBuf := make([]byte, field.VecSize(cfg.PolyDegree+1))
	for k := 0; k < cfg.Eta; k++ {
		field.Vec(key.decPolys[k]).Serialize(polyBuf)
		transcript = append(transcript, polyBuf...)
	}
	return transcript, key, nil
}

// Open reveals the evaluations of the committed polynomials at the
// challenge points and returns the opening proof alongside them. The
// evaluation matrix is indexed [point][poly].
func (d *Decs) Open(key *Key, evalPoints field.Vec) ([]byte, field.Mat, error) {
	cfg := d.cfg
	indices := make([]int, len(evalPoints))
	for j := range evalPoints {
		indices[j] = int(field.ToUint32(&evalPoints[j]))
	}
	auth, err := d.tree.OpenMulti(key.mtKey, indices)
	if err != nil {
		return nil, nil, err
	}

	proof := make([]byte, 0, d.MaxProofSize())
	proof = append(proof, auth...)

	evals := field.NewMat(cfg.NOpenedEvals, cfg.NPolys)
	maskEvals := field.NewVec(cfg.Eta)
	maskBuf := make([]byte, field.VecSize(cfg.Eta))
	for j := range evalPoints {
		for k, p := range key.committedPolys {
			evals[j][k] = p.Eval(&evalPoints[j])
		}
		for k, m := range key.maskingPolys {
			maskEvals[k] = m.Eval(&evalPoints[j])
		}
		maskEvals.Serialize(maskBuf)
		proof = append(proof, maskBuf...)
		if cfg.UseCommitmentTapes {
			proof = append(proof, key.tapes[indices[j]]...)
		}
	}

	highBuf := make([]byte, field.VecSize(cfg.PolyDegree+1-cfg.NOpenedEvals))
	for k := 0; k < cfg.Eta; k++ {
		high := field.Vec(key.decPolys[k][cfg.NOpenedEvals:])
		high.Serialize(highBuf)
		proof = append(proof, highBuf...)
	}
	return proof, evals, nil
}

// RecomputeTranscript rebuilds the commitment transcript from the
// opened evaluations and the opening proof. A verifier compares the
// result against the transcript the upper layer committed to.
func (d *Decs) RecomputeTranscript(salt []byte, evalPoints field.Vec, evals field.Mat, proof []byte) ([]byte, error) {
	cfg := d.cfg
	m := cfg.NOpenedEvals

	fixed := m*field.VecSize(cfg.Eta) + cfg.Eta*field.VecSize(cfg.PolyDegree+1-m)
	if cfg.UseCommitmentTapes {
		fixed += m * TapeSize
	}
	if len(proof) < fixed {
		return nil, fmt.Errorf("%w: proof too short", ErrProofRejected)
	}
	authSize := len(proof) - fixed
	auth := proof[:authSize]
	buf := proof[authSize:]

	indices := make([]int, m)
	for j := range evalPoints {
		indices[j] = int(field.ToUint32(&evalPoints[j]))
	}

	// Rebuild the opened leaf digests.
	leaves := make([]xof.Digest, m)
	maskEvals := field.NewMat(m, cfg.Eta)
	evalsAll := field.NewVec(cfg.NPolys + cfg.Eta)
	for j := 0; j < m; j++ {
		if err := maskEvals[j].Deserialize(buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		buf = buf[field.VecSize(cfg.Eta):]
		copy(evalsAll, evals[j])
		copy(evalsAll[cfg.NPolys:], maskEvals[j])
		var tape []byte
		if cfg.UseCommitmentTapes {
			tape = buf[:TapeSize]
			buf = buf[TapeSize:]
		}
		leaves[j] = d.leafDigest(salt, evalsAll, tape)
	}

	root, err := d.tree.RetrieveRoot(salt, indices, leaves, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	hashMT := xof.Sum(salt, root[:])

	gamma, err := xof.ChallengeMatrix(cfg.FormatChallenge, cfg.Eta, cfg.NPolys, hashMT[:])
	if err != nil {
		return nil, err
	}

	transcript := make([]byte, 0, d.TranscriptSize())
	transcript = append(transcript, hashMT[:]...)

	decEvals := field.NewVec(m)
	high := field.NewVec(cfg.PolyDegree + 1 - m)
	polyBuf := make([]byte, field.VecSize(cfg.PolyDegree+1))
	var tmp fr.Element
	for k := 0; k < cfg.Eta; k++ {
		for i := 0; i < m; i++ {
			decEvals[i].SetZero()
			for j := 0; j < cfg.NPolys; j++ {
				tmp.Mul(&evals[i][j], &gamma[k][j])
				decEvals[i].Add(&decEvals[i], &tmp)
			}
			decEvals[i].Add(&decEvals[i], &maskEvals[i][k])
		}
		if err := high.Deserialize(buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofRejected, err)
		}
		buf = buf[field.VecSize(len(high)):]
		dec := field.Restore(high, decEvals, evalPoints, cfg.PolyDegree)
		field.Vec(dec).Serialize(polyBuf)
		transcript = append(transcript, polyBuf...)
	}
	return transcript, nil
}

// OpeningChallenge grinds a nonce until the transcript hash decodes
// into an accepted set of distinct leaf indices, and returns the
// challenge evaluation points with the successful nonce. The loop is
// bounded in expectation by 2^PowBits.
func (d *Decs) OpeningChallenge(transHash []byte) (field.Vec, [NonceSize]byte, error) {
	var nonce [NonceSize]byte
	for counter := uint32(0); ; counter++ {
		binary.LittleEndian.PutUint32(nonce[:], counter)
		if points, ok := d.decodeOpeningIndices(nonce, transHash); ok {
			return points, nonce, nil
		}
		if counter == math.MaxUint32 {
			return nil, nonce, fmt.Errorf("decs: opening challenge grind exhausted")
		}
	}
}

// RecomputeOpeningChallenge replays the challenge derivation for a
// claimed nonce, rejecting when the proof of work does not hold.
func (d *Decs) RecomputeOpeningChallenge(transHash []byte, nonce [NonceSize]byte) (field.Vec, error) {
	points, ok := d.decodeOpeningIndices(nonce, transHash)
	if !ok {
		return nil, fmt.Errorf("%w: proof-of-work nonce does not verify", ErrProofRejected)
	}
	return points, nil
}

// decodeOpeningIndices draws the challenge field elements for a nonce
// and decodes them into sorted leaf indices; it reports failure when
// any element exceeds its acceptance cap or the indices collide.
func (d *Decs) decodeOpeningIndices(nonce [NonceSize]byte, transHash []byte) (field.Vec, bool) {
	var nonceFelt fr.Element
	field.FromUint32(&nonceFelt, binary.LittleEndian.Uint32(nonce[:]))
	nonceBuf := make([]byte, field.Bytes)
	field.PutElement(nonceBuf, &nonceFelt)

	drawn := xof.SampleFelts(len(d.plan.queries), nonceBuf, transHash)
	indices, ok := d.plan.decode(drawn)
	if !ok {
		return nil, false
	}
	merkle.SortIndices(indices)

	seen := bitset.New(uint(d.cfg.NEvals))
	for _, idx := range indices {
		if seen.Test(uint(idx)) {
			return nil, false
		}
		seen.Set(uint(idx))
	}

	points := field.NewVec(len(indices))
	for j, idx := range indices {
		field.FromUint32(&points[j], uint32(idx))
	}
	return points, true
}

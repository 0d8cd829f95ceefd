package piop

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/regperm"
)

func testSetup(t *testing.T) (*Piop, *regperm.Statement, []field.Poly, []field.Poly, []field.Poly) {
	t.Helper()
	lppcCfg, err := regperm.NewConfig(7, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	st, secret, err := regperm.Random(lppcCfg)
	if err != nil {
		t.Fatal(err)
	}
	witness, err := st.BuildWitness(secret)
	if err != nil {
		t.Fatal(err)
	}

	pp, err := New(lppcCfg.Lppc(), Config{Rho: 2, NOpenedEvals: 2, FormatChallenge: 0})
	if err != nil {
		t.Fatal(err)
	}
	witPolys, pMasks, lMasks, err := pp.PrepareInputs(witness)
	if err != nil {
		t.Fatal(err)
	}
	return pp, st, witPolys, pMasks, lMasks
}

func evalAll(polys []field.Poly, points field.Vec) field.Mat {
	out := field.NewMat(len(points), len(polys))
	for j := range points {
		for i := range polys {
			out[j][i] = polys[i].Eval(&points[j])
		}
	}
	return out
}

func TestRunRecomputeTranscript(t *testing.T) {
	pp, st, witPolys, pMasks, lMasks := testSetup(t)
	inTranscript := []byte("committed pcs transcript plus message")

	outTranscript, proof, err := pp.Run(st, inTranscript, witPolys, pMasks, lMasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(outTranscript) != pp.TranscriptSize() {
		t.Fatalf("transcript has %d bytes, want %d", len(outTranscript), pp.TranscriptSize())
	}
	if len(proof) != pp.ProofSize() {
		t.Fatalf("proof has %d bytes, want %d", len(proof), pp.ProofSize())
	}

	// Honest opened evaluations at random points.
	evalPoints, err := field.RandomVec(2)
	if err != nil {
		t.Fatal(err)
	}
	witEvals := evalAll(witPolys, evalPoints)
	pMaskEvals := evalAll(pMasks, evalPoints)
	lMaskEvals := evalAll(lMasks, evalPoints)

	recomputed, err := pp.RecomputeTranscript(st, inTranscript, evalPoints, witEvals, pMaskEvals, lMaskEvals, proof)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outTranscript, recomputed) {
		t.Fatal("recomputed transcript mismatch")
	}
}

func TestLMaskSumsToZero(t *testing.T) {
	pp, _, _, _, lMasks := testSetup(t)
	points := pp.PackingPoints()
	for rep := range lMasks {
		var sum fr.Element
		for i := range points {
			v := lMasks[rep].Eval(&points[i])
			sum.Add(&sum, &v)
		}
		if !sum.IsZero() {
			t.Fatalf("L-mask %d does not sum to zero over the packing points", rep)
		}
	}
}

func TestTamperedProofChangesTranscript(t *testing.T) {
	pp, st, witPolys, pMasks, lMasks := testSetup(t)
	inTranscript := []byte("committed pcs transcript plus message")
	outTranscript, proof, err := pp.Run(st, inTranscript, witPolys, pMasks, lMasks)
	if err != nil {
		t.Fatal(err)
	}
	evalPoints, err := field.RandomVec(2)
	if err != nil {
		t.Fatal(err)
	}
	witEvals := evalAll(witPolys, evalPoints)
	pMaskEvals := evalAll(pMasks, evalPoints)
	lMaskEvals := evalAll(lMasks, evalPoints)

	tampered := append([]byte(nil), proof...)
	tampered[8] ^= 0x40
	recomputed, err := pp.RecomputeTranscript(st, inTranscript, evalPoints, witEvals, pMaskEvals, lMaskEvals, tampered)
	if err == nil && bytes.Equal(outTranscript, recomputed) {
		t.Fatal("tampered proof still reproduces the transcript")
	}
}

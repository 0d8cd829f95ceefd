package lvcs

import (
	"bytes"
	"testing"

	"github.com/MuriData/capss/pkg/field"
)

func testConfig() Config {
	return Config{
		NRows:               6,
		NCols:               10,
		NOpenedCombi:        2,
		DecsNEvals:          64,
		DecsNOpenedEvals:    5,
		DecsEta:             2,
		DecsPowBits:         2,
		DecsFormatChallenge: 0,
	}
}

func testSalt() []byte {
	salt := make([]byte, 32)
	for i := range salt {
		salt[i] = byte(0x30 + i)
	}
	return salt
}

func randomRows(t *testing.T, n, cols int) field.Mat {
	t.Helper()
	rows := make(field.Mat, n)
	for i := range rows {
		var err error
		if rows[i], err = field.RandomVec(cols); err != nil {
			t.Fatal(err)
		}
	}
	return rows
}

// fullrankCoeffs builds a coefficient matrix whose restriction to the
// given rows is the identity, plus random weight elsewhere.
func fullrankCoeffs(t *testing.T, r, nRows int, fullrank []int) field.Mat {
	t.Helper()
	coeffs := randomRows(t, r, nRows)
	for k := 0; k < r; k++ {
		for j, col := range fullrank {
			if j == k {
				coeffs[k][col].SetOne()
			} else {
				coeffs[k][col].SetZero()
			}
		}
	}
	return coeffs
}

func TestCommitOpenRecompute(t *testing.T) {
	cfg := testConfig()
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	salt := testSalt()
	rows := randomRows(t, cfg.NRows, cfg.NCols)

	transcript, key, err := l.Commit(salt, rows)
	if err != nil {
		t.Fatal(err)
	}

	fullrank := []int{1, 4}
	coeffs := fullrankCoeffs(t, cfg.NOpenedCombi, cfg.NRows, fullrank)
	prTranscript := []byte("upper layer transcript")

	proof, combi, err := l.Open(key, coeffs, fullrank, prTranscript)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) > l.MaxProofSize() {
		t.Fatalf("proof of %d bytes exceeds bound %d", len(proof), l.MaxProofSize())
	}

	// The opened combinations must be the actual linear combinations of
	// the committed rows.
	var tmp field.Vec = field.NewVec(cfg.NCols)
	want := field.NewMat(cfg.NOpenedCombi, cfg.NCols)
	for k := 0; k < cfg.NOpenedCombi; k++ {
		for j := 0; j < cfg.NRows; j++ {
			tmp.Scale(rows[j], &coeffs[k][j])
			want[k].Add(want[k], tmp)
		}
		if !combi[k].Equal(want[k]) {
			t.Fatalf("opened combination %d mismatch", k)
		}
	}

	recomputed, err := l.RecomputeTranscript(salt, coeffs, fullrank, prTranscript, combi, proof)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(transcript, recomputed) {
		t.Fatal("recomputed transcript mismatch")
	}
}

func TestNonInvertibleSubmatrixRejected(t *testing.T) {
	cfg := testConfig()
	l, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	salt := testSalt()
	_, key, err := l.Commit(salt, randomRows(t, cfg.NRows, cfg.NCols))
	if err != nil {
		t.Fatal(err)
	}

	fullrank := []int{1, 4}
	coeffs := fullrankCoeffs(t, cfg.NOpenedCombi, cfg.NRows, fullrank)
	prTranscript := []byte("upper layer transcript")
	proof, combi, err := l.Open(key, coeffs, fullrank, prTranscript)
	if err != nil {
		t.Fatal(err)
	}

	// Zero out the fullrank columns: the submatrix becomes singular.
	for k := range coeffs {
		for _, col := range fullrank {
			coeffs[k][col].SetZero()
		}
	}
	if _, err := l.RecomputeTranscript(salt, coeffs, fullrank, prTranscript, combi, proof); err == nil {
		t.Fatal("expected singular submatrix rejection")
	}
}

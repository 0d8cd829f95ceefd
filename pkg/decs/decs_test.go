package decs

import (
	"bytes"
	"testing"

	"github.com/MuriData/capss/pkg/field"
)

func testConfig() Config {
	return Config{
		NPolys:          4,
		PolyDegree:      20,
		NEvals:          64,
		NOpenedEvals:    6,
		Eta:             2,
		PowBits:         2,
		FormatChallenge: 0,
	}
}

func testSalt() []byte {
	salt := make([]byte, SaltSize)
	for i := range salt {
		salt[i] = byte(i * 7)
	}
	return salt
}

func randomPolys(t *testing.T, n, degree int) []field.Poly {
	t.Helper()
	polys := make([]field.Poly, n)
	for i := range polys {
		var err error
		if polys[i], err = field.RandomPoly(degree); err != nil {
			t.Fatal(err)
		}
	}
	return polys
}

func commitOpenRecompute(t *testing.T, cfg Config) {
	t.Helper()
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	salt := testSalt()
	polys := randomPolys(t, cfg.NPolys, cfg.PolyDegree)

	transcript, key, err := d.Commit(salt, polys)
	if err != nil {
		t.Fatal(err)
	}
	if len(transcript) != d.TranscriptSize() {
		t.Fatalf("transcript has %d bytes, want %d", len(transcript), d.TranscriptSize())
	}

	transHash := []byte("decs opening challenge transcript")
	evalPoints, nonce, err := d.OpeningChallenge(transHash)
	if err != nil {
		t.Fatal(err)
	}
	replayed, err := d.RecomputeOpeningChallenge(transHash, nonce)
	if err != nil {
		t.Fatal(err)
	}
	if !evalPoints.Equal(replayed) {
		t.Fatal("opening challenge does not replay")
	}

	proof, evals, err := d.Open(key, evalPoints)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) > d.MaxProofSize() {
		t.Fatalf("proof of %d bytes exceeds bound %d", len(proof), d.MaxProofSize())
	}

	recomputed, err := d.RecomputeTranscript(salt, evalPoints, evals, proof)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(transcript, recomputed) {
		t.Fatal("recomputed transcript mismatch")
	}
}

func TestCommitOpenRecompute(t *testing.T) {
	commitOpenRecompute(t, testConfig())
}

func TestChallengeFormats(t *testing.T) {
	for format := 0; format < 3; format++ {
		cfg := testConfig()
		cfg.FormatChallenge = format
		commitOpenRecompute(t, cfg)
	}
}

func TestCommitmentTapes(t *testing.T) {
	cfg := testConfig()
	cfg.UseCommitmentTapes = true
	commitOpenRecompute(t, cfg)
}

func TestTamperedProofRejected(t *testing.T) {
	cfg := testConfig()
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	salt := testSalt()
	transcript, key, err := d.Commit(salt, randomPolys(t, cfg.NPolys, cfg.PolyDegree))
	if err != nil {
		t.Fatal(err)
	}
	evalPoints, _, err := d.OpeningChallenge([]byte("hash"))
	if err != nil {
		t.Fatal(err)
	}
	proof, evals, err := d.Open(key, evalPoints)
	if err != nil {
		t.Fatal(err)
	}

	// Flipping the first auth-path byte must change the recomputed
	// transcript or fail outright.
	tampered := append([]byte(nil), proof...)
	tampered[0] ^= 1
	recomputed, err := d.RecomputeTranscript(salt, evalPoints, evals, tampered)
	if err == nil && bytes.Equal(recomputed, transcript) {
		t.Fatal("tampered proof still reproduces the transcript")
	}

	if _, err := d.RecomputeTranscript(salt, evalPoints, evals, proof[:10]); err == nil {
		t.Fatal("expected short proof rejection")
	}
}

func TestInvalidConfig(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Eta = 0 },
		func(c *Config) { c.Eta = 32 },
		func(c *Config) { c.PowBits = 32 },
		func(c *Config) { c.NOpenedEvals = c.NEvals + 1 },
		func(c *Config) { c.FormatChallenge = 5 },
		func(c *Config) { c.NPolys = 0 },
	}
	for i, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected configuration rejection", i)
		}
	}
}

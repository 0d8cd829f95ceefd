package xof

import (
	"bytes"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("salt"), []byte("data"))
	b := Sum([]byte("salt"), []byte("data"))
	if a != b {
		t.Fatal("Sum is not deterministic")
	}
	c := Sum([]byte("salt"), []byte("datb"))
	if a == c {
		t.Fatal("Sum does not separate inputs")
	}
}

func TestExpand(t *testing.T) {
	out1 := make([]byte, 96)
	out2 := make([]byte, 96)
	Expand(out1, []byte("seed"))
	Expand(out2, []byte("seed"))
	if !bytes.Equal(out1, out2) {
		t.Fatal("Expand is not deterministic")
	}
	Expand(out2, []byte("seee"))
	if bytes.Equal(out1, out2) {
		t.Fatal("Expand does not separate inputs")
	}
}

func TestSampleFelts(t *testing.T) {
	a := SampleFelts(8, []byte("challenge"))
	b := SampleFelts(8, []byte("challenge"))
	if len(a) != 8 || !a.Equal(b) {
		t.Fatal("SampleFelts is not deterministic")
	}
	c := SampleFelts(8, []byte("challengf"))
	if a.Equal(c) {
		t.Fatal("SampleFelts does not separate inputs")
	}
}

func TestCompress(t *testing.T) {
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))
	if Compress2(a, b) != Compress2(a, b) {
		t.Fatal("Compress2 is not deterministic")
	}
	if Compress2(a, b) == Compress2(b, a) {
		t.Fatal("Compress2 ignores input order")
	}
	if Compress4(a, b, a, b) == Compress4(b, a, b, a) {
		t.Fatal("Compress4 ignores input order")
	}
}

func TestChallengeMatrixShapes(t *testing.T) {
	seed := []byte("seed")
	for format := 0; format < 3; format++ {
		m, err := ChallengeMatrix(format, 3, 7, seed)
		if err != nil {
			t.Fatalf("format %d: %v", format, err)
		}
		if len(m) != 3 || len(m[0]) != 7 {
			t.Fatalf("format %d: wrong shape", format)
		}
	}
	if _, err := ChallengeMatrix(3, 2, 2, seed); err == nil {
		t.Fatal("expected unknown format rejection")
	}
}

func TestChallengeMatrixPowers(t *testing.T) {
	m, err := ChallengeMatrix(FormatPowers, 2, 5, []byte("seed"))
	if err != nil {
		t.Fatal(err)
	}
	for k := range m {
		for j := 1; j < len(m[k]); j++ {
			var want = m[k][j-1]
			want.Mul(&want, &m[k][0])
			if !m[k][j].Equal(&want) {
				t.Fatalf("row %d is not a power sequence", k)
			}
		}
	}
}

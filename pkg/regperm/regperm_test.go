package regperm

import (
	"testing"

	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/lppc"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfig(7, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestWitnessSatisfiesStatement(t *testing.T) {
	cfg := testConfig(t)
	st, secret, err := Random(cfg)
	if err != nil {
		t.Fatal(err)
	}
	witness, err := st.BuildWitness(secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := lppc.CheckWitness(st, witness); err != nil {
		t.Fatal(err)
	}
}

func TestWrongSecretFailsCheck(t *testing.T) {
	cfg := testConfig(t)
	st, secret, err := Random(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var one = secret[0]
	one.SetOne()
	secret[0].Add(&secret[0], &one)
	witness, err := st.BuildWitness(secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := lppc.CheckWitness(st, witness); err == nil {
		t.Fatal("witness for a wrong secret passes the check")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	st, _, err := Random(cfg)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, cfg.SerializedSize())
	st.Serialize(buf)
	back, err := Deserialize(cfg, buf)
	if err != nil {
		t.Fatal(err)
	}
	if !back.iv.Equal(st.iv) || !back.y.Equal(st.y) {
		t.Fatal("statement serialization round trip mismatch")
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := NewConfig(0, 1, 1); err == nil {
		t.Fatal("expected rejection of zero batching factor")
	}
	if _, err := NewConfig(7, 0, 1); err == nil {
		t.Fatal("expected rejection of empty iv")
	}
	if _, err := NewConfig(7, 2, 1); err == nil {
		t.Fatal("expected rejection of iv covering the whole state")
	}
	if _, err := NewConfig(7, 1, 3); err == nil {
		t.Fatal("expected rejection of oversized output")
	}
}

// TestConstraintEvalsMatchPolys checks that evaluating the constraint
// polynomials agrees with the evaluation-side constraint functions on
// the same witness.
func TestConstraintEvalsMatchPolys(t *testing.T) {
	cfg := testConfig(t)
	st, secret, err := Random(cfg)
	if err != nil {
		t.Fatal(err)
	}
	witness, err := st.BuildWitness(secret)
	if err != nil {
		t.Fatal(err)
	}

	mu := cfg.Lppc().PackingFactor
	packingPoints := field.NewVec(mu)
	for i := range packingPoints {
		field.FromUint32(&packingPoints[i], uint32(i))
	}
	witDegree := mu - 1
	rows := make(field.Mat, cfg.Lppc().NWitRows)
	for i := range rows {
		rows[i] = field.Vec(witness[i*mu : (i+1)*mu])
	}
	witPolys := field.InterpolateMultiple(rows, packingPoints)

	point, err := field.RandomVec(1)
	if err != nil {
		t.Fatal(err)
	}
	witEvals := field.NewMat(1, len(witPolys))
	for i := range witPolys {
		witEvals[0][i] = witPolys[i].Eval(&point[0])
	}

	inPpol := st.ConstraintPolyPolynomials(witPolys, packingPoints, witDegree)
	inEpol := st.ConstraintPolyEvals(point, witEvals, packingPoints)
	for i := range inPpol {
		if got := inPpol[i].Eval(&point[0]); !got.Equal(&inEpol[0][i]) {
			t.Fatalf("polynomial constraint %d does not commute with evaluation", i)
		}
	}

	inPlin := st.ConstraintLinPolynomials(witPolys, packingPoints, witDegree)
	inElin := st.ConstraintLinEvals(point, witEvals, packingPoints)
	for i := range inPlin {
		if got := inPlin[i].Eval(&point[0]); !got.Equal(&inElin[0][i]) {
			t.Fatalf("linear constraint %d does not commute with evaluation", i)
		}
	}
}

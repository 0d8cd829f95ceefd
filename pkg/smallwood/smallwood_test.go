package smallwood

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuriData/capss/pkg/merkle"
	"github.com/MuriData/capss/pkg/regperm"
)

func testInstance(t *testing.T) (*Smallwood, *regperm.Statement, []byte) {
	t.Helper()
	lppcCfg, err := regperm.NewConfig(7, 1, 1)
	require.NoError(t, err)
	st, secret, err := regperm.Random(lppcCfg)
	require.NoError(t, err)
	witness, err := st.BuildWitness(secret)
	require.NoError(t, err)

	sw, err := New(lppcCfg.Lppc(), Config{
		Rho:                 1,
		NOpenedEvals:        1,
		Beta:                1,
		PiopFormatChallenge: 0,
		DecsNEvals:          1024,
		DecsNOpenedEvals:    13,
		DecsEta:             2,
		DecsPowBits:         4,
		DecsFormatChallenge: 0,
		DecsTree:            &merkle.Config{NLeaves: 1024, Height: 5, Arities: []int{4, 4, 4, 4, 4}},
	})
	require.NoError(t, err)

	proof, err := sw.Prove(st, witness, []byte("bound message"))
	require.NoError(t, err)
	return sw, st, proof
}

func TestProveVerify(t *testing.T) {
	sw, st, proof := testInstance(t)
	require.LessOrEqual(t, len(proof), sw.MaxProofSize())
	require.NoError(t, sw.Verify(st, []byte("bound message"), proof))
}

func TestWrongBoundDataRejected(t *testing.T) {
	sw, st, proof := testInstance(t)
	require.Error(t, sw.Verify(st, []byte("other message"), proof))
}

func TestBitFlipsRejected(t *testing.T) {
	sw, st, proof := testInstance(t)
	// Probe a byte in every proof section: nonce, salt, transcript
	// hash, PIOP proof, PCS proof, opened evaluations.
	offsets := []int{0, NonceSize, NonceSize + SaltSize, NonceSize + SaltSize + 40, len(proof) / 2, len(proof) - 1}
	for _, off := range offsets {
		tampered := append([]byte(nil), proof...)
		tampered[off] ^= 1
		if err := sw.Verify(st, []byte("bound message"), tampered); err == nil {
			t.Fatalf("bit flip at offset %d accepted", off)
		}
	}
}

func TestTruncatedProofRejected(t *testing.T) {
	sw, st, proof := testInstance(t)
	require.Error(t, sw.Verify(st, []byte("bound message"), proof[:len(proof)-1]))
	require.Error(t, sw.Verify(st, []byte("bound message"), proof[:10]))
}

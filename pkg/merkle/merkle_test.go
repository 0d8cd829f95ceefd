package merkle

import (
	"testing"

	"github.com/MuriData/capss/pkg/xof"
)

func testLeaves(n int) []xof.Digest {
	leaves := make([]xof.Digest, n)
	for i := range leaves {
		leaves[i] = xof.Sum([]byte{byte(i), byte(i >> 8), 0x5a})
	}
	return leaves
}

func roundTrip(t *testing.T, cfg Config, indices []int) {
	t.Helper()
	tree, err := NewTree(cfg)
	if err != nil {
		t.Fatal(err)
	}
	salt := []byte("0123456789abcdef0123456789abcdef")
	leaves := testLeaves(tree.NLeaves())

	root, key, err := tree.Expand(salt, leaves)
	if err != nil {
		t.Fatal(err)
	}
	auth, err := tree.OpenMulti(key, indices)
	if err != nil {
		t.Fatal(err)
	}
	if len(auth) > tree.MaxAuthSize(len(indices)) {
		t.Fatalf("auth path of %d bytes exceeds bound %d", len(auth), tree.MaxAuthSize(len(indices)))
	}

	opened := make([]xof.Digest, len(indices))
	for i, idx := range indices {
		opened[i] = leaves[idx]
	}
	got, err := tree.RetrieveRoot(salt, indices, opened, auth)
	if err != nil {
		t.Fatal(err)
	}
	if got != root {
		t.Fatal("retrieved root does not match expanded root")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	roundTrip(t, Config{NLeaves: 64}, []int{0, 1, 17, 63})
	roundTrip(t, Config{NLeaves: 100}, []int{5, 50, 99})
	roundTrip(t, Config{NLeaves: 2}, []int{0})
}

func TestArity4RoundTrip(t *testing.T) {
	cfg := Config{NLeaves: 1000, Height: 6, Arities: []int{4, 4, 4, 4, 4, 4}}
	roundTrip(t, cfg, []int{0, 7, 15, 999})
	roundTrip(t, cfg, []int{998, 999})
	roundTrip(t, cfg, []int{0})
}

func TestTruncatedRoundTrip(t *testing.T) {
	cfg := Config{NLeaves: 256, Height: 8, Truncated: 3}
	roundTrip(t, cfg, []int{0, 100, 255})
	cfg = Config{NLeaves: 250, Height: 4, Arities: []int{4, 4, 4, 4}, Truncated: 2}
	roundTrip(t, cfg, []int{1, 2, 3, 200})
}

func TestInvalidConfig(t *testing.T) {
	cases := []Config{
		{},
		{NLeaves: 8, Height: 3, Arities: []int{2, 1, 2}},
		{NLeaves: 16, Height: 2, Arities: []int{2, 2}},
		{NLeaves: 8, Height: 3, Truncated: 3},
	}
	for i, cfg := range cases {
		if _, err := NewTree(cfg); err == nil {
			t.Fatalf("case %d: expected configuration rejection", i)
		}
	}
}

func TestNonAscendingIndices(t *testing.T) {
	tree, err := NewTree(Config{NLeaves: 32})
	if err != nil {
		t.Fatal(err)
	}
	salt := make([]byte, 32)
	_, key, err := tree.Expand(salt, testLeaves(32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.OpenMulti(key, []int{3, 3}); err == nil {
		t.Fatal("expected rejection of duplicate indices")
	}
	if _, err := tree.OpenMulti(key, []int{5, 2}); err == nil {
		t.Fatal("expected rejection of descending indices")
	}
}

func TestShortAuthPath(t *testing.T) {
	tree, err := NewTree(Config{NLeaves: 32})
	if err != nil {
		t.Fatal(err)
	}
	salt := make([]byte, 32)
	leaves := testLeaves(32)
	_, key, err := tree.Expand(salt, leaves)
	if err != nil {
		t.Fatal(err)
	}
	indices := []int{4, 9}
	auth, err := tree.OpenMulti(key, indices)
	if err != nil {
		t.Fatal(err)
	}
	opened := []xof.Digest{leaves[4], leaves[9]}
	if _, err := tree.RetrieveRoot(salt, indices, opened, auth[:len(auth)-xof.DigestSize]); err == nil {
		t.Fatal("expected rejection of truncated auth path")
	}
}

func TestTamperedLeafChangesRoot(t *testing.T) {
	tree, err := NewTree(Config{NLeaves: 16})
	if err != nil {
		t.Fatal(err)
	}
	salt := make([]byte, 32)
	leaves := testLeaves(16)
	root, key, err := tree.Expand(salt, leaves)
	if err != nil {
		t.Fatal(err)
	}
	indices := []int{3}
	auth, err := tree.OpenMulti(key, indices)
	if err != nil {
		t.Fatal(err)
	}
	bad := leaves[3]
	bad[0] ^= 1
	got, err := tree.RetrieveRoot(salt, indices, []xof.Digest{bad}, auth)
	if err != nil {
		t.Fatal(err)
	}
	if got == root {
		t.Fatal("tampered leaf still authenticates")
	}
}

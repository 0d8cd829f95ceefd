// Package merkle implements the salted Merkle tree backing the
// commitment schemes: per-level arities, optional truncation of the top
// levels, and multi-index openings with a shared authentication path.
package merkle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MuriData/capss/pkg/xof"
)

// ErrConfig reports an invalid tree configuration.
var ErrConfig = errors.New("merkle: invalid configuration")

// ErrProofRejected reports an authentication path that does not open
// the claimed leaves.
var ErrProofRejected = errors.New("merkle: proof rejected")

// Config describes the shape of a Merkle tree.
//
// Height and Arities may be omitted: a zero Height selects a binary
// tree of minimal height for NLeaves, and nil Arities selects a binary
// tree of the given height. A zero NLeaves selects the full arity
// product. Truncated > 0 stops authentication paths at that depth; the
// remaining top levels are recomputed from the revealed frontier.
type Config struct {
	NLeaves   int
	Height    int
	Arities   []int
	Truncated int
}

// Tree is a validated tree shape. It holds no node data; expanding a
// tree produces a separate Key.
type Tree struct {
	nLeaves    int
	height     int
	arities    []int
	truncated  int
	depthWidth []int // max node count per depth, depthWidth[height] = nLeaves
}

// Key holds all node digests of an expanded tree, owned by the prover
// between commit and open.
type Key struct {
	nodes [][]xof.Digest // indexed by depth, 0 = root level
}

// NewTree validates cfg and resolves its defaulted fields.
func NewTree(cfg Config) (*Tree, error) {
	if cfg.NLeaves == 0 && cfg.Height == 0 {
		return nil, fmt.Errorf("%w: neither leaf count nor height given", ErrConfig)
	}

	var height int
	var arities []int
	var nLeaves int
	if cfg.Height != 0 {
		height = cfg.Height
		arities = make([]int, height)
		maxLeaves := 1
		for i := 0; i < height; i++ {
			a := 2
			if cfg.Arities != nil {
				a = cfg.Arities[i]
			}
			if a < 2 {
				return nil, fmt.Errorf("%w: arity %d at depth %d", ErrConfig, a, i)
			}
			if prod := int64(maxLeaves) * int64(a); prod > 1<<32 {
				return nil, fmt.Errorf("%w: arity product overflows", ErrConfig)
			}
			arities[i] = a
			maxLeaves *= a
		}
		nLeaves = cfg.NLeaves
		if nLeaves == 0 {
			nLeaves = maxLeaves
		} else if nLeaves > maxLeaves {
			return nil, fmt.Errorf("%w: %d leaves exceed capacity %d", ErrConfig, cfg.NLeaves, maxLeaves)
		}
	} else {
		nLeaves = cfg.NLeaves
		height = ceilLog2(nLeaves)
		arities = make([]int, height)
		for i := range arities {
			arities[i] = 2
		}
	}
	if cfg.Truncated >= height {
		return nil, fmt.Errorf("%w: truncation depth %d not below height %d", ErrConfig, cfg.Truncated, height)
	}

	depthWidth := make([]int, height+1)
	w := 1
	for i := 0; i < height; i++ {
		depthWidth[i] = w
		w *= arities[i]
	}
	depthWidth[height] = nLeaves

	return &Tree{
		nLeaves:    nLeaves,
		height:     height,
		arities:    arities,
		truncated:  cfg.Truncated,
		depthWidth: depthWidth,
	}, nil
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int { return t.nLeaves }

// MaxAuthSize returns an upper bound on the byte size of an
// authentication path opening nOpen leaves: the smaller of nLeaves
// digests and (arity-1)*nOpen digests summed over all levels. The
// frontier nodes that a truncated tree adds to the path are not
// counted, so for Truncated > 0 the path can exceed this value.
func (t *Tree) MaxAuthSize(nOpen int) int {
	bound1 := t.nLeaves
	bound2 := 0
	for i := 0; i < t.height; i++ {
		bound2 += (t.arities[i] - 1) * nOpen
	}
	if bound2 < bound1 {
		return bound2 * xof.DigestSize
	}
	return bound1 * xof.DigestSize
}

// compressNodes hashes a sibling group into its parent digest. The salt
// and parent index are reserved by the interface but, matching the
// committed transcript format, do not enter the hash.
func compressNodes(_ []byte, _ int, children []xof.Digest) xof.Digest {
	var zero xof.Digest
	switch len(children) {
	case 1:
		return xof.Compress2(children[0], zero)
	case 2:
		return xof.Compress2(children[0], children[1])
	case 3:
		return xof.Compress4(children[0], children[1], children[2], zero)
	case 4:
		return xof.Compress4(children[0], children[1], children[2], children[3])
	default:
		flat := make([]byte, 0, len(children)*xof.DigestSize)
		for i := range children {
			flat = append(flat, children[i][:]...)
		}
		return xof.Sum(flat)
	}
}

// Expand builds the full tree over the given leaf digests and returns
// the root together with the opening key.
func (t *Tree) Expand(salt []byte, leaves []xof.Digest) (xof.Digest, *Key, error) {
	if len(leaves) != t.nLeaves {
		return xof.Digest{}, nil, fmt.Errorf("%w: got %d leaves, want %d", ErrConfig, len(leaves), t.nLeaves)
	}

	key := &Key{nodes: make([][]xof.Digest, t.height+1)}
	key.nodes[t.height] = make([]xof.Digest, t.nLeaves)
	copy(key.nodes[t.height], leaves)

	lastIndex := t.nLeaves - 1
	for h := t.height - 1; h >= 0; h-- {
		arity := t.arities[h]
		lastChildren := (lastIndex + 1) % arity
		if lastChildren == 0 {
			lastChildren = arity
		}
		lastIndex /= arity
		key.nodes[h] = make([]xof.Digest, lastIndex+1)
		for parent := 0; parent <= lastIndex; parent++ {
			n := arity
			if parent == lastIndex {
				n = lastChildren
			}
			group := key.nodes[h+1][arity*parent : arity*parent+n]
			key.nodes[h][parent] = compressNodes(salt, parent, group)
		}
	}
	return key.nodes[0][0], key, nil
}

// revealedNode identifies one digest emitted to the authentication
// path.
type revealedNode struct {
	depth, index int
}

type queueEntry struct {
	index, depth int
	node         xof.Digest
}

// fifo is the explicit queue driving the multi-opening walk; the same
// discipline is shared by the prover and the verifier so the path is
// consumed in emission order.
type fifo struct {
	entries []queueEntry
	head    int
}

func (q *fifo) push(e queueEntry) { q.entries = append(q.entries, e) }
func (q *fifo) peek() *queueEntry { return &q.entries[q.head] }
func (q *fifo) empty() bool       { return q.head == len(q.entries) }

func (q *fifo) pop() queueEntry {
	e := q.entries[q.head]
	q.head++
	return e
}

func checkAscending(indices []int, nLeaves int) error {
	for i, idx := range indices {
		if idx < 0 || idx >= nLeaves {
			return fmt.Errorf("%w: leaf index %d out of range", ErrConfig, idx)
		}
		if i > 0 && indices[i-1] >= idx {
			return fmt.Errorf("%w: leaf indices not strictly ascending", ErrConfig)
		}
	}
	return nil
}

// revealedNodes walks the tree bottom-up and lists, in emission order,
// the sibling digests a verifier is missing when it knows exactly the
// leaves at the given indices.
func (t *Tree) revealedNodes(indices []int) ([]revealedNode, error) {
	if err := checkAscending(indices, t.nLeaves); err != nil {
		return nil, err
	}

	var revealed []revealedNode
	q := &fifo{}
	for _, idx := range indices {
		q.push(queueEntry{index: idx, depth: t.height})
	}
	lastIndex := t.nLeaves - 1
	currentDepth := t.height

	for q.peek().depth != t.truncated {
		e := q.pop()
		index, depth := e.index, e.depth
		arity := t.arities[depth-1]
		if depth < currentDepth {
			lastIndex /= t.arities[depth-1]
		}
		currentDepth = depth
		parent := index / arity

		firstSibling := index - index%arity
		nextFirstSibling := firstSibling + arity
		if nextFirstSibling > lastIndex {
			nextFirstSibling = lastIndex + 1
		}
		for i := 0; i < nextFirstSibling-firstSibling; i++ {
			switch {
			case firstSibling+i < index:
				revealed = append(revealed, revealedNode{depth, firstSibling + i})
			case !q.empty() && q.peek().depth == depth && index < q.peek().index && q.peek().index < nextFirstSibling:
				index = q.pop().index
			default:
				index = nextFirstSibling
			}
		}
		q.push(queueEntry{index: parent, depth: depth - 1})
	}

	if t.truncated > 0 {
		lastIndex /= t.arities[t.truncated-1]
		for i := 0; i <= lastIndex; i++ {
			if !q.empty() && q.peek().index == i {
				q.pop()
			} else {
				revealed = append(revealed, revealedNode{t.truncated, i})
			}
		}
	}
	return revealed, nil
}

// OpenMulti produces the authentication path for the leaves at the
// given strictly-ascending indices.
func (t *Tree) OpenMulti(key *Key, indices []int) ([]byte, error) {
	revealed, err := t.revealedNodes(indices)
	if err != nil {
		return nil, err
	}
	auth := make([]byte, 0, len(revealed)*xof.DigestSize)
	for _, rn := range revealed {
		d := key.nodes[rn.depth][rn.index]
		auth = append(auth, d[:]...)
	}
	return auth, nil
}

// RetrieveRoot recomputes the root from the opened leaves and the
// authentication path produced by OpenMulti. It mirrors the opening
// walk and consumes the path in the exact emission order.
func (t *Tree) RetrieveRoot(salt []byte, indices []int, leaves []xof.Digest, auth []byte) (xof.Digest, error) {
	if err := checkAscending(indices, t.nLeaves); err != nil {
		return xof.Digest{}, err
	}
	if len(leaves) != len(indices) {
		return xof.Digest{}, fmt.Errorf("%w: %d leaves for %d indices", ErrConfig, len(leaves), len(indices))
	}

	nextAuth := func() (xof.Digest, error) {
		var d xof.Digest
		if len(auth) < xof.DigestSize {
			return d, fmt.Errorf("%w: authentication path too short", ErrProofRejected)
		}
		copy(d[:], auth[:xof.DigestSize])
		auth = auth[xof.DigestSize:]
		return d, nil
	}

	q := &fifo{}
	for i, idx := range indices {
		q.push(queueEntry{index: idx, depth: t.height, node: leaves[i]})
	}
	lastIndex := t.nLeaves - 1
	currentDepth := t.height
	children := make([]xof.Digest, 0, 8)

	for q.peek().depth != t.truncated {
		e := q.pop()
		index, depth, node := e.index, e.depth, e.node
		arity := t.arities[depth-1]
		if depth < currentDepth {
			lastIndex /= t.arities[depth-1]
		}
		currentDepth = depth
		parent := index / arity

		firstSibling := index - index%arity
		nextFirstSibling := firstSibling + arity
		if nextFirstSibling > lastIndex {
			nextFirstSibling = lastIndex + 1
		}
		children = children[:0]
		for i := 0; i < nextFirstSibling-firstSibling; i++ {
			switch {
			case firstSibling+i < index:
				d, err := nextAuth()
				if err != nil {
					return xof.Digest{}, err
				}
				children = append(children, d)
			case !q.empty() && q.peek().depth == depth && index < q.peek().index && q.peek().index < nextFirstSibling:
				children = append(children, node)
				next := q.pop()
				index, node = next.index, next.node
			default:
				children = append(children, node)
				index = nextFirstSibling
			}
		}
		q.push(queueEntry{index: parent, depth: depth - 1, node: compressNodes(salt, parent, children)})
	}

	if t.truncated == 0 {
		return q.pop().node, nil
	}

	// Rebuild the truncated top from the revealed frontier.
	lastIndex /= t.arities[t.truncated-1]
	frontier := make([]xof.Digest, lastIndex+1)
	for i := 0; i <= lastIndex; i++ {
		if !q.empty() && q.peek().index == i {
			frontier[i] = q.pop().node
		} else {
			d, err := nextAuth()
			if err != nil {
				return xof.Digest{}, err
			}
			frontier[i] = d
		}
	}
	top, err := NewTree(Config{
		NLeaves: lastIndex + 1,
		Height:  t.truncated,
		Arities: t.arities[:t.truncated],
	})
	if err != nil {
		return xof.Digest{}, err
	}
	root, _, err := top.Expand(salt, frontier)
	return root, err
}

// SortIndices sorts leaf indices in place into the ascending order
// required by OpenMulti.
func SortIndices(indices []int) {
	sort.Ints(indices)
}

func ceilLog2(x int) int {
	n := 0
	for 1<<n < x {
		n++
	}
	return n
}

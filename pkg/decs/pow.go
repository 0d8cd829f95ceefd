package decs

import (
	"math"
	"math/big"

	"github.com/MuriData/capss/pkg/field"
)

// openingPlan is the precomputed split of the opened leaf indices
// across challenge field elements. Each drawn element carries a fixed
// number of base-NEvals digits; the bits left over above the digits are
// the proof-of-work budget, and an element is accepted only when it
// stays at or below its cap.
type openingPlan struct {
	nEvals  int
	queries []int      // indices decoded from element i
	caps    []*big.Int // acceptance cap per element
}

// planOpening distributes m indices over as few field elements as
// possible, adding spare elements until the accumulated fractional
// "unused" bits reach the proof-of-work target.
func planOpening(nEvals, m, powBits int) openingPlan {
	log2Order := field.Log2Order()
	log2N := math.Log2(float64(nEvals))
	const margin = 0.001
	maxPerElement := int(math.Floor(log2Order/log2N - margin))

	delta := 0
	for {
		size := (m+maxPerElement-1)/maxPerElement + delta
		minQ := m / size
		maxQ := (m + size - 1) / size
		nbAtMax := m % size

		queries := make([]int, size)
		additional := make([]int, size)
		w := 0.0
		for i := 0; i < size; i++ {
			if i < nbAtMax {
				queries[i] = maxQ
			} else {
				queries[i] = minQ
			}
			exact := log2Order - float64(queries[i])*log2N
			additional[i] = int(math.Floor(exact))
			w += exact - float64(additional[i])
		}

		ok := true
		for ind := 0; w < float64(powBits); ind++ {
			if ind >= size {
				ok = false
				break
			}
			missing := powBits - int(math.Floor(w))
			add := missing
			if additional[ind] < add {
				add = additional[ind]
			}
			w += float64(add)
			additional[ind] -= add
		}
		if !ok {
			delta++
			continue
		}

		caps := make([]*big.Int, size)
		bigN := big.NewInt(int64(nEvals))
		for i := 0; i < size; i++ {
			c := new(big.Int).Exp(bigN, big.NewInt(int64(queries[i])), nil)
			c.Lsh(c, uint(additional[i]))
			c.Sub(c, big.NewInt(1))
			caps[i] = c
		}
		return openingPlan{nEvals: nEvals, queries: queries, caps: caps}
	}
}

// decode digit-decodes the drawn challenge elements into leaf indices,
// reporting failure when any element exceeds its acceptance cap.
func (p *openingPlan) decode(drawn field.Vec) ([]int, bool) {
	var v big.Int
	for i := range drawn {
		drawn[i].BigInt(&v)
		if v.Cmp(p.caps[i]) > 0 {
			return nil, false
		}
	}

	var indices []int
	bigN := big.NewInt(int64(p.nEvals))
	var rem big.Int
	for i := range drawn {
		drawn[i].BigInt(&v)
		for j := 0; j < p.queries[i]; j++ {
			v.DivMod(&v, bigN, &rem)
			indices = append(indices, int(rem.Int64()))
		}
	}
	return indices, true
}

package ranking

import (
	"fmt"
	"sort"
)

// Neighbor is one result of a nearest-neighbor search.
type Neighbor struct {
	// Index is the position of the vector in the index.
	Index int
	// Distance is the squared Euclidean distance to the query.
	Distance float64
}

// FlatL2 is an exact, brute-force nearest-neighbor index over vectors of a
// single dimension. Distances are squared L2.
type FlatL2 struct {
	dim     int
	vectors [][]float32
}

// NewFlatL2 creates an empty index for vectors of the given dimension.
func NewFlatL2(dim int) *FlatL2 {
	return &FlatL2{dim: dim}
}

// Add appends vectors to the index. Their positions continue from Len().
func (ix *FlatL2) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", ix.Len()+i, len(v), ix.dim)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Len returns the number of indexed vectors.
func (ix *FlatL2) Len() int {
	return len(ix.vectors)
}

// Search returns the k nearest vectors to q, closest first. k is capped at
// Len(); equal distances keep index order.
func (ix *FlatL2) Search(q []float32, k int) ([]Neighbor, error) {
	if len(q) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(q), ix.dim)
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	all := make([]Neighbor, len(ix.vectors))
	for i, v := range ix.vectors {
		all[i] = Neighbor{Index: i, Distance: squaredL2(q, v)}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Distance < all[b].Distance
	})
	return all[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

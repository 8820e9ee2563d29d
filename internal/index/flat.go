package index

import (
	"fmt"
	"sort"
)

// FlatL2 is an exact, append-only vector index ranking by squared Euclidean
// distance. Row ids are insertion positions.
type FlatL2 struct {
	dim  int
	data []float32
}

func NewFlatL2(dim int) *FlatL2 {
	return &FlatL2{dim: dim}
}

func (f *FlatL2) Dim() int { return f.dim }

func (f *FlatL2) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

func (f *FlatL2) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.dim, len(vec))
	}
	f.data = append(f.data, vec...)
	return nil
}

// Search returns up to k ids and distances, nearest first. Equal distances
// keep insertion order. k is capped at the number of stored vectors.
func (f *FlatL2) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.dim, len(query))
	}

	n := f.Len()
	order := make([]int, n)
	dists := make([]float32, n)
	for i := 0; i < n; i++ {
		order[i] = i
		dists[i] = squaredL2(query, f.data[i*f.dim:(i+1)*f.dim])
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	k = max(0, min(k, n))
	ids := make([]int, k)
	out := make([]float32, k)
	for i := 0; i < k; i++ {
		ids[i] = order[i]
		out[i] = dists[order[i]]
	}
	return ids, out, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

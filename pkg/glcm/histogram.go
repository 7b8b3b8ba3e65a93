package glcm

import "math"

// histogram is a sparse co-occurrence matrix. A window holds at most a few
// dozen pairs, so only touched cells are stored, in first-touch order.
type histogram struct {
	index  map[[2]int]int
	cells  [][2]int
	counts []float64
	total  float64
}

func newHistogram() *histogram {
	return &histogram{index: make(map[[2]int]int)}
}

func (h *histogram) reset() {
	for k := range h.index {
		delete(h.index, k)
	}
	h.cells = h.cells[:0]
	h.counts = h.counts[:0]
	h.total = 0
}

func (h *histogram) add(a, b int) {
	key := [2]int{a, b}
	if j, ok := h.index[key]; ok {
		h.counts[j]++
	} else {
		h.index[key] = len(h.cells)
		h.cells = append(h.cells, key)
		h.counts = append(h.counts, 1)
	}
	h.total++
}

// addSymmetric counts the pair in both orders
func (h *histogram) addSymmetric(a, b int) {
	h.add(a, b)
	h.add(b, a)
}

// measures returns entropy -Σ p ln p, variance Σ (i-μ)² p with μ = Σ i p,
// and dissimilarity Σ |i-j| p of the normalized matrix
func (h *histogram) measures() (entropy, variance, dissimilarity float64) {
	var mean float64
	for j, cell := range h.cells {
		mean += float64(cell[0]) * h.counts[j] / h.total
	}
	for j, cell := range h.cells {
		p := h.counts[j] / h.total
		entropy -= p * math.Log(p)
		di := float64(cell[0]) - mean
		variance += di * di * p
		dissimilarity += math.Abs(float64(cell[0]-cell[1])) * p
	}
	return
}

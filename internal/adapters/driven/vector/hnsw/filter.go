package hnsw

import (
	"sort"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// matchesFilters applies the conjunctive metadata filters to a node.
func matchesFilters(n *node, f domain.SearchFilters) bool {
	if len(f.Types) > 0 && !containsType(f.Types, n.docType) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, n.category) {
		return false
	}
	if !f.CreatedAfter.IsZero() && n.createdAt < f.CreatedAfter.Unix() {
		return false
	}
	if !f.CreatedBefore.IsZero() && n.createdAt > f.CreatedBefore.Unix() {
		return false
	}
	if len(f.ProductIDs) > 0 && !overlaps(f.ProductIDs, n.productIDs) {
		return false
	}
	return true
}

func containsType(haystack []domain.DocumentType, needle domain.DocumentType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// sortScored orders by similarity descending, id ascending for stability.
func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].sim != s[j].sim {
			return s[i].sim > s[j].sim
		}
		return s[i].id < s[j].id
	})
}

// maxHeap pops the most similar candidate first.
type maxHeap []scored

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].sim > h[j].sim }
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any) { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minHeap keeps the worst retained result at the root so it can be
// evicted when a better candidate appears.
type minHeap []scored

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].sim < h[j].sim }
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any) { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

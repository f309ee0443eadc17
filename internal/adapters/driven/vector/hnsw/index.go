// Package hnsw provides an in-process vector index with per-tenant
// namespaces, metadata filtering and tenant-scoped deletion. Large
// namespaces are searched through a Hierarchical Navigable Small World
// graph; small ones fall back to an exact scan, where the graph overhead
// buys nothing.
package hnsw

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/logger"
	"github.com/salesmind/ragcore/internal/vectormath"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default graph parameters.
const (
	// DefaultM is the number of bidirectional links per node and level.
	DefaultM = 16

	// DefaultEFConstruction is the candidate list size during insertion.
	DefaultEFConstruction = 200

	// DefaultEFSearch is the candidate list size during search.
	DefaultEFSearch = 64

	// DefaultBruteForceThreshold is the namespace size below which the
	// index scans exactly instead of walking the graph.
	DefaultBruteForceThreshold = 1000
)

// Config tunes the index. Zero values take defaults.
type Config struct {
	// Dimension is the fixed vector dimension (required).
	Dimension int

	// M is the per-level link count.
	M int

	// EFConstruction is the candidate list size during insertion.
	EFConstruction int

	// EFSearch is the candidate list size during search.
	EFSearch int

	// BruteForceThreshold switches small namespaces to exact search.
	BruteForceThreshold int

	// Seed makes level sampling reproducible; 0 uses a fixed default.
	Seed int64
}

// Index is a tenant-partitioned HNSW vector index.
type Index struct {
	mu        sync.RWMutex
	dimension int
	m         int
	efCons    int
	efSearch  int
	bruteMax  int
	levelMult float64
	rng       *rand.Rand
	tenants   map[string]*namespace
}

// node is one stored vector with its metadata and graph links.
type node struct {
	chunkID    string
	documentID string
	content    string
	vector     []float32 // unit norm
	docType    domain.DocumentType
	category   string
	createdAt  int64
	productIDs []string
	level      int
	links      [][]int
	deleted    bool
}

// namespace is one tenant's isolated partition of the index.
type namespace struct {
	nodes    []*node
	byChunk  map[string]int
	byDoc    map[string][]int
	entry    int
	maxLevel int
	alive    int
}

func newNamespace() *namespace {
	return &namespace{
		byChunk:  make(map[string]int),
		byDoc:    make(map[string][]int),
		entry:    -1,
		maxLevel: -1,
	}
}

// New creates an Index for vectors of cfg.Dimension.
func New(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive", domain.ErrValidation)
	}
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EFConstruction <= 0 {
		cfg.EFConstruction = DefaultEFConstruction
	}
	if cfg.EFSearch <= 0 {
		cfg.EFSearch = DefaultEFSearch
	}
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = DefaultBruteForceThreshold
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	return &Index{
		dimension: cfg.Dimension,
		m:         cfg.M,
		efCons:    cfg.EFConstruction,
		efSearch:  cfg.EFSearch,
		bruteMax:  cfg.BruteForceThreshold,
		levelMult: 1 / math.Log(float64(cfg.M)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		tenants:   make(map[string]*namespace),
	}, nil
}

// Dimension returns the fixed vector dimension.
func (ix *Index) Dimension() int {
	return ix.dimension
}

// Index adds one document's chunks to the tenant's namespace. All
// vectors are validated before anything is written, so a failed call
// leaves the namespace untouched and a concurrent search never observes
// a partially indexed document.
func (ix *Index) Index(ctx context.Context, tenantID string, doc *domain.Document, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if doc == nil {
		return fmt.Errorf("%w: document is required", domain.ErrValidation)
	}
	for i := range chunks {
		if err := vectormath.Validate(chunks[i].Embedding, ix.dimension); err != nil {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, err)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ns, ok := ix.tenants[tenantID]
	if !ok {
		ns = newNamespace()
		ix.tenants[tenantID] = ns
	}

	// Re-indexing a document replaces its previous vectors.
	ix.removeDocumentLocked(ns, doc.ID)

	for i := range chunks {
		n := &node{
			chunkID:    chunks[i].ID,
			documentID: doc.ID,
			content:    chunks[i].Content,
			vector:     vectormath.Normalize(chunks[i].Embedding),
			docType:    doc.Type,
			category:   doc.Category,
			createdAt:  doc.CreatedAt.Unix(),
			productIDs: doc.Sales.ProductIDs,
		}
		ix.insertLocked(ns, n)
	}

	logger.Debug("Indexed %d vectors for document %s (tenant=%s, namespace size=%d)",
		len(chunks), doc.ID, tenantID, ns.alive)

	return nil
}

// Search returns hits above opts.Threshold in the tenant's namespace,
// best first. A tenant with no namespace yields an empty result, not an
// error.
func (ix *Index) Search(ctx context.Context, tenantID string, query []float32, opts driven.VectorSearchOptions) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := vectormath.Validate(query, ix.dimension); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ns, ok := ix.tenants[tenantID]
	if !ok || ns.alive == 0 {
		return nil, nil
	}

	q := vectormath.Normalize(query)

	var candidates []scored
	if ns.alive <= ix.bruteMax {
		candidates = ix.scanExact(ns, q, opts.Filters)
	} else {
		ef := ix.efSearch
		if opts.Filters.Empty() {
			if ef < limit {
				ef = limit * 2
			}
		} else {
			// Over-fetch so post-filtering can still fill the limit.
			ef = max(ef, limit*8)
		}
		candidates = ix.searchGraph(ns, q, ef, opts.Filters)
	}

	hits := make([]driven.VectorHit, 0, limit)
	for _, c := range candidates {
		if c.sim < opts.Threshold {
			continue
		}
		n := ns.nodes[c.id]
		hits = append(hits, driven.VectorHit{
			ChunkID:    n.chunkID,
			DocumentID: n.documentID,
			Content:    n.content,
			Similarity: c.sim,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// DeleteDocument removes every vector of the document from the tenant's
// namespace. Deleting an unknown document is a no-op.
func (ix *Index) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ns, ok := ix.tenants[tenantID]
	if !ok {
		return nil
	}
	removed := ix.removeDocumentLocked(ns, documentID)
	logger.Debug("Deleted %d vectors for document %s (tenant=%s)", removed, documentID, tenantID)
	return nil
}

// DeleteChunks removes the given chunks from the tenant's namespace.
// Chunk ids belonging to other tenants are ignored.
func (ix *Index) DeleteChunks(ctx context.Context, tenantID string, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ns, ok := ix.tenants[tenantID]
	if !ok {
		return nil
	}
	for _, id := range chunkIDs {
		ix.removeChunkLocked(ns, id)
	}
	return nil
}

// Close releases resources.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tenants = make(map[string]*namespace)
	return nil
}

// --- internal graph operations (callers hold ix.mu) ---

// scored pairs a node id with its similarity to the query.
type scored struct {
	id  int
	sim float64
}

// scanExact scores every live, filter-matching node.
func (ix *Index) scanExact(ns *namespace, q []float32, filters domain.SearchFilters) []scored {
	out := make([]scored, 0, ns.alive)
	for id, n := range ns.nodes {
		if n == nil || n.deleted || !matchesFilters(n, filters) {
			continue
		}
		out = append(out, scored{id: id, sim: dot(q, n.vector)})
	}
	sortScored(out)
	return out
}

// searchGraph walks the HNSW graph: greedy descent through the upper
// levels, then a beam search of width ef at level 0.
func (ix *Index) searchGraph(ns *namespace, q []float32, ef int, filters domain.SearchFilters) []scored {
	entry := ns.entry
	if entry < 0 {
		return nil
	}

	cur := entry
	curSim := dot(q, ns.nodes[cur].vector)
	for level := ns.maxLevel; level > 0; level-- {
		for changed := true; changed; {
			changed = false
			for _, nb := range ix.neighbors(ns, cur, level) {
				if sim := dot(q, ns.nodes[nb].vector); sim > curSim {
					cur, curSim = nb, sim
					changed = true
				}
			}
		}
	}

	results := ix.searchLayer(ns, q, cur, ef, 0)

	out := make([]scored, 0, len(results))
	for _, c := range results {
		n := ns.nodes[c.id]
		if n.deleted || !matchesFilters(n, filters) {
			continue
		}
		out = append(out, c)
	}
	sortScored(out)
	return out
}

// searchLayer is the beam search primitive shared by insertion and
// querying. It returns up to ef candidates on one level, unfiltered;
// deleted nodes are traversed but surface nowhere.
func (ix *Index) searchLayer(ns *namespace, q []float32, entry, ef, level int) []scored {
	visited := map[int]bool{entry: true}

	entrySim := dot(q, ns.nodes[entry].vector)
	candidates := &maxHeap{{id: entry, sim: entrySim}}
	results := &minHeap{{id: entry, sim: entrySim}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)
		worst := (*results)[0].sim
		if c.sim < worst && results.Len() >= ef {
			break
		}

		for _, nb := range ix.neighbors(ns, c.id, level) {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			sim := dot(q, ns.nodes[nb].vector)
			if results.Len() < ef || sim > (*results)[0].sim {
				heap.Push(candidates, scored{id: nb, sim: sim})
				heap.Push(results, scored{id: nb, sim: sim})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	return out
}

// insertLocked adds a node to the namespace graph.
func (ix *Index) insertLocked(ns *namespace, n *node) {
	level := ix.randomLevel()
	n.level = level
	n.links = make([][]int, level+1)

	id := len(ns.nodes)
	ns.nodes = append(ns.nodes, n)
	ns.byChunk[n.chunkID] = id
	ns.byDoc[n.documentID] = append(ns.byDoc[n.documentID], id)
	ns.alive++

	if ns.entry < 0 {
		ns.entry = id
		ns.maxLevel = level
		return
	}

	cur := ns.entry
	curSim := dot(n.vector, ns.nodes[cur].vector)
	for l := ns.maxLevel; l > level; l-- {
		for changed := true; changed; {
			changed = false
			for _, nb := range ix.neighbors(ns, cur, l) {
				if sim := dot(n.vector, ns.nodes[nb].vector); sim > curSim {
					cur, curSim = nb, sim
					changed = true
				}
			}
		}
	}

	for l := min(level, ns.maxLevel); l >= 0; l-- {
		candidates := ix.searchLayer(ns, n.vector, cur, ix.efCons, l)

		maxLinks := ix.m
		if l == 0 {
			maxLinks = ix.m * 2
		}

		count := 0
		for _, c := range candidates {
			if c.id == id {
				continue
			}
			n.links[l] = append(n.links[l], c.id)
			ix.linkBack(ns, c.id, id, l, maxLinks)
			count++
			if count == ix.m {
				break
			}
		}
		if len(candidates) > 0 {
			cur = candidates[0].id
		}
	}

	if level > ns.maxLevel {
		ns.maxLevel = level
		ns.entry = id
	}
}

// linkBack adds a reverse edge and prunes the neighbour list to the
// weakest links when it overflows.
func (ix *Index) linkBack(ns *namespace, from, to, level, maxLinks int) {
	n := ns.nodes[from]
	if level >= len(n.links) {
		return
	}
	n.links[level] = append(n.links[level], to)
	if len(n.links[level]) <= maxLinks {
		return
	}

	links := n.links[level]
	sims := make([]scored, len(links))
	for i, nb := range links {
		sims[i] = scored{id: nb, sim: dot(n.vector, ns.nodes[nb].vector)}
	}
	sortScored(sims)
	pruned := make([]int, maxLinks)
	for i := 0; i < maxLinks; i++ {
		pruned[i] = sims[i].id
	}
	n.links[level] = pruned
}

// neighbors returns the out-links of a node on one level.
func (ix *Index) neighbors(ns *namespace, id, level int) []int {
	n := ns.nodes[id]
	if n == nil || level >= len(n.links) {
		return nil
	}
	return n.links[level]
}

// removeDocumentLocked tombstones every node of a document.
func (ix *Index) removeDocumentLocked(ns *namespace, documentID string) int {
	ids := ns.byDoc[documentID]
	for _, id := range ids {
		ix.tombstone(ns, id)
	}
	delete(ns.byDoc, documentID)
	return len(ids)
}

// removeChunkLocked tombstones a single chunk node.
func (ix *Index) removeChunkLocked(ns *namespace, chunkID string) {
	id, ok := ns.byChunk[chunkID]
	if !ok {
		return
	}
	n := ns.nodes[id]
	ix.tombstone(ns, id)

	ids := ns.byDoc[n.documentID]
	for i, other := range ids {
		if other == id {
			ns.byDoc[n.documentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// tombstone marks a node deleted. The node stays traversable so graph
// connectivity survives; search and entry selection skip it.
func (ix *Index) tombstone(ns *namespace, id int) {
	n := ns.nodes[id]
	if n == nil || n.deleted {
		return
	}
	n.deleted = true
	delete(ns.byChunk, n.chunkID)
	ns.alive--

	if ns.entry == id {
		ns.entry, ns.maxLevel = ix.pickEntry(ns)
	}
}

// pickEntry selects the highest-level live node as the new entry point.
func (ix *Index) pickEntry(ns *namespace) (int, int) {
	best, bestLevel := -1, -1
	for id, n := range ns.nodes {
		if n == nil || n.deleted {
			continue
		}
		if n.level > bestLevel {
			best, bestLevel = id, n.level
		}
	}
	return best, bestLevel
}

// maxNodeLevel caps sampled levels; the geometric tail beyond it has no
// practical benefit for any realistic namespace size.
const maxNodeLevel = 32

// randomLevel samples a node level from the standard HNSW geometric
// distribution.
func (ix *Index) randomLevel() int {
	return levelFor(ix.rng.Float64(), ix.levelMult)
}

// levelFor maps a uniform sample in [0,1) to a node level. A sample of
// exactly 0 would make -log infinite, so it lands on the cap.
func levelFor(u, mult float64) int {
	if u <= 0 {
		return maxNodeLevel
	}
	level := int(math.Floor(-math.Log(u) * mult))
	if level > maxNodeLevel {
		level = maxNodeLevel
	}
	return level
}

// dot is the cosine similarity of two unit vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

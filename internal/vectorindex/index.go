package vectorindex

import (
	"math"
	"sort"
	"sync"
	"time"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

const normTolerance = 1e-5

// Index holds unit vectors and their snapshots in memory, aligned by
// position: the i-th vector in vectors belongs to the i-th id in ids
// (spec section 4.4's alignment invariant). An RWMutex guards the index:
// Search, Get, Exists and Stats share it, Upsert and Clear hold it
// exclusively; persistence is layered on top in persistence.go.
type Index struct {
	mu        sync.RWMutex
	dimension int
	ids       []int
	vectors   [][]float32
	records   map[int]Record
}

// New creates an empty index. dimension is fixed once the first record is
// upserted; zero means "not yet established."
func New() *Index {
	return &Index{records: make(map[int]Record)}
}

// Upsert applies spec section 4.4's upsert semantics: for each pair,
// require Success and a non-empty vector, defensively L2-normalize, and
// replace-or-append by id. A pair whose vector dimension mismatches the
// index's established dimension is skipped and reported in the returned
// skipped slice rather than failing the whole call (spec section 7's
// Internal kind is reserved for a genuine invariant violation, not a
// per-record skip the caller can see and act on).
func (idx *Index) Upsert(inputs []UpsertInput) (skipped []int, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, in := range inputs {
		if !in.Success || len(in.Embedding) == 0 {
			skipped = append(skipped, in.WorkItem.ID)
			continue
		}
		if idx.dimension == 0 {
			idx.dimension = len(in.Embedding)
		}
		if len(in.Embedding) != idx.dimension {
			skipped = append(skipped, in.WorkItem.ID)
			continue
		}

		vec := normalize(in.Embedding)
		record := Record{
			WorkItemID:      in.WorkItem.ID,
			Embedding:       vec,
			WorkItem:        in.WorkItem,
			EmbeddingSource: in.Source,
			InsertedAt:      currentTime(),
		}

		if pos, ok := idx.position(in.WorkItem.ID); ok {
			idx.vectors[pos] = vec
		} else {
			idx.ids = append(idx.ids, in.WorkItem.ID)
			idx.vectors = append(idx.vectors, vec)
		}
		idx.records[in.WorkItem.ID] = record
	}
	return skipped, nil
}

// currentTime is a seam so tests can avoid depending on wall-clock time
// for determinism; production code uses time.Now.
var currentTime = time.Now

func (idx *Index) position(id int) (int, bool) {
	for i, existing := range idx.ids {
		if existing == id {
			return i, true
		}
	}
	return 0, false
}

// Search returns up to k neighbors of query, sorted descending by inner
// product (spec section 4.4). query must already be L2-normalized by the
// caller; Search normalizes defensively anyway since the cost is
// negligible at these index sizes.
func (idx *Index) Search(query []float32, k int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimension != 0 && len(query) != idx.dimension {
		return nil, coreerrors.Internal("query vector dimension mismatch", nil)
	}
	q := normalize(query)

	results := make([]SearchResult, 0, len(idx.ids))
	for i, id := range idx.ids {
		score := dot(q, idx.vectors[i])
		results = append(results, SearchResult{
			WorkItemID:   id,
			InnerProduct: score,
			Record:       idx.records[id],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].InnerProduct > results[j].InnerProduct
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Clear drops all records (spec section 4.4).
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids = nil
	idx.vectors = nil
	idx.records = make(map[int]Record)
	idx.dimension = 0
}

// Exists reports whether id has a record.
func (idx *Index) Exists(id int) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.records[id]
	return ok
}

// Get returns the record for id, if present.
func (idx *Index) Get(id int) (Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	r, ok := idx.records[id]
	return r, ok
}

// Stats implements spec section 4.4's stats() operation. Memory is
// approximated as 4 bytes per float plus a fixed per-record overhead for
// the snapshot and bookkeeping.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	const perRecordOverhead = 256
	mem := int64(len(idx.ids)) * (int64(idx.dimension)*4 + perRecordOverhead)
	return Stats{Count: len(idx.ids), Dimension: idx.dimension, ApproxMemoryBytes: mem}
}

// normalize L2-normalizes v, tolerating vectors already within
// normTolerance of unit length without re-scaling floating error in.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	if math.Abs(mag-1) <= normTolerance {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

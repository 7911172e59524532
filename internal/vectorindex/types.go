// Package vectorindex implements the Embedding Index (C4): a persistent
// map from work-item id to unit vector plus stored metadata, searched by
// exact inner product. Per spec section 9's redesign note, this is a
// brute-force dense-matrix scan rather than an approximate nearest-
// neighbor structure — the dataset sizes this core targets (bounded
// per-request candidate sets, not a corpus-wide index) don't justify the
// accuracy tradeoff an ANN library like coder/hnsw would introduce, and
// the spec's own invariants (exact inner-product search, §4.4) rule out
// an approximate structure outright.
package vectorindex

import "time"

// WorkItemSnapshot is the denormalized work-item data stored alongside a
// vector so results can be rendered without a second tracker round trip
// (spec section 3's IndexRecord).
type WorkItemSnapshot struct {
	ID           int
	Title        string
	Description  string
	WorkItemType string
	State        string
	AreaPath     string
	Tags         string
	Priority     int
	CreatedDate  time.Time
}

// EmbeddingSourceInfo records how a vector was produced, used for
// diagnostics (spec section 9's "mark those vectors in diagnostics").
type EmbeddingSourceInfo struct {
	Model    string
	Tokens   int
	Fallback bool
}

// Record is one entry in the index: exactly one per work-item id (spec
// section 3's IndexRecord).
type Record struct {
	WorkItemID     int
	Embedding      []float32
	WorkItem       WorkItemSnapshot
	EmbeddingSource EmbeddingSourceInfo
	InsertedAt     time.Time
}

// UpsertInput pairs a snapshot with its freshly computed embedding and
// the success flag the caller observed from the embedding collaborator
// (spec section 4.4's upsert contract).
type UpsertInput struct {
	WorkItem  WorkItemSnapshot
	Embedding []float32
	Source    EmbeddingSourceInfo
	Success   bool
}

// SearchResult is one neighbor returned by Search.
type SearchResult struct {
	WorkItemID   int
	InnerProduct float32
	Record       Record
}

// Stats summarizes the index's current state (spec section 4.4's
// stats() operation).
type Stats struct {
	Count           int
	Dimension       int
	ApproxMemoryBytes int64
}

// Package embedclient implements the abstract embedding provider
// collaborator consumed by the Relatedness Engine (spec section 6): an
// HTTP-backed client with retry and circuit-breaker protection, an LRU
// cache wrapper, and a deterministic content-hash fallback embedder used
// when the real provider is unavailable (spec section 9).
package embedclient

import (
	"context"
	"math"
	"time"
)

// MaxBatchSize is the largest batch the Relatedness Engine will submit in
// one call (spec section 4.4 step 3 and section 9's batching policy).
const MaxBatchSize = 25

// DefaultDimension is the fixed embedding dimension used across an index
// generation (spec section 3's Embedding glossary entry).
const DefaultDimension = 1536

// Result is one text's embedding outcome. Entries with OK=false carry an
// empty Vector; the caller is responsible for falling back (spec section
// 6's collaborator contract).
type Result struct {
	Vector []float32
	Tokens int
	Model  string
	OK     bool
}

// Embedder is the abstract embedding provider (spec section 6):
//
//	Embed(texts[<=25], deadline) -> [{vector, tokens, model, ok}]
//
// The returned slice always has len(results) == len(texts).
type Embedder interface {
	Embed(ctx context.Context, texts []string, deadline time.Time) ([]Result, error)
	Dimensions() int
	ModelName() string
}

// normalizeVector scales v to unit L2 norm, matching the convention used
// throughout the pipeline (spec section 3's Embedding invariant: ‖v‖ = 1).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}

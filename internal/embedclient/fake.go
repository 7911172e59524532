package embedclient

import (
	"context"
	"time"
)

// Fake is a deterministic in-memory Embedder for tests. By default it
// delegates to a HashFallback so callers get stable, content-derived
// vectors without a network dependency; Err, when set, is returned for
// every call to simulate a wholly unavailable provider.
type Fake struct {
	Err   error
	model string
	inner *HashFallback
}

// NewFake creates a Fake embedder of the given dimension.
func NewFake(dimension int) *Fake {
	return &Fake{model: "fake-provider", inner: NewHashFallback(dimension)}
}

// Embed implements Embedder.
func (f *Fake) Embed(ctx context.Context, texts []string, deadline time.Time) ([]Result, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	results, err := f.inner.Embed(ctx, texts, deadline)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Model = f.model
	}
	return results, nil
}

// Dimensions implements Embedder.
func (f *Fake) Dimensions() int { return f.inner.Dimensions() }

// ModelName implements Embedder.
func (f *Fake) ModelName() string { return f.model }

var (
	_ Embedder = (*Fake)(nil)
	_ Embedder = (*HashFallback)(nil)
	_ Embedder = (*HTTPClient)(nil)
	_ Embedder = (*CachedEmbedder)(nil)
)

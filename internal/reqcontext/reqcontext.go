// Package reqcontext carries the request-scoped values the relatedness
// core threads through its pipeline instead of relying on package-level
// singletons: a deadline-bearing context.Context, a correlation id, a
// logger, and a mutable diagnostics sink.
package reqcontext

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Diagnostics accumulates non-fatal observations made while servicing one
// request: partial-result markers, ids whose embedding fell back to the
// content-hash path, slice-level tracker failures, and free-form notes.
// All methods are safe for concurrent use since C2's slice loop and C5's
// embedding-batch loop may both report into the same Diagnostics.
type Diagnostics struct {
	mu sync.Mutex

	partial              bool
	embeddingFallbackIDs []int
	sliceErrors          []string
	notes                []string
}

// MarkPartial records that the pipeline returned before completing every
// phase, per spec section 5's cancellation behavior.
func (d *Diagnostics) MarkPartial() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partial = true
}

// Partial reports whether MarkPartial has been called.
func (d *Diagnostics) Partial() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.partial
}

// AddEmbeddingFallbackID records a work item id whose embedding was
// produced by the content-hash fallback rather than the embedding
// provider.
func (d *Diagnostics) AddEmbeddingFallbackID(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.embeddingFallbackIDs = append(d.embeddingFallbackIDs, id)
}

// EmbeddingFallbackIDs returns a copy of the recorded fallback ids.
func (d *Diagnostics) EmbeddingFallbackIDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.embeddingFallbackIDs))
	copy(out, d.embeddingFallbackIDs)
	return out
}

// AddSliceError records a per-slice tracker query failure (spec section
// 4.2: logged, the slice contributes zero items, later slices still run).
func (d *Diagnostics) AddSliceError(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sliceErrors = append(d.sliceErrors, msg)
}

// SliceErrors returns a copy of the recorded slice errors.
func (d *Diagnostics) SliceErrors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sliceErrors))
	copy(out, d.sliceErrors)
	return out
}

// AddNote records a free-form diagnostic note (e.g. threshold relaxation).
func (d *Diagnostics) AddNote(note string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, note)
}

// Notes returns a copy of the recorded notes.
func (d *Diagnostics) Notes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.notes))
	copy(out, d.notes)
	return out
}

// Context bundles the values one relatedness request threads through the
// pipeline. It replaces the package-level logger/config singletons the
// teacher's CLI tooling uses with values passed explicitly.
type Context struct {
	// Ctx is the deadline-and-cancellation-bearing stdlib context. Every
	// suspension point in section 5 (tracker call, embedding call,
	// persisted-index I/O) must observe Ctx.Done().
	Ctx context.Context

	// RequestID correlates log lines and diagnostics for one request. It is
	// not used to name the index directory, which comes from configuration.
	RequestID string

	Logger      *slog.Logger
	Diagnostics *Diagnostics
}

// New creates a request Context with a fresh request id and diagnostics
// sink. Pass a context.Context already carrying the caller's deadline.
func New(ctx context.Context, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Context{
		Ctx:         ctx,
		RequestID:   id,
		Logger:      logger.With(slog.String("request_id", id)),
		Diagnostics: &Diagnostics{},
	}
}

// WithRequestID overrides the generated request id, used by callers (and
// tests) that need a deterministic id.
func (c *Context) WithRequestID(id string) *Context {
	c.RequestID = id
	c.Logger = c.Logger.With(slog.String("request_id", id))
	return c
}

// Package llmrelate implements the optional LLM relationship collaborator
// (spec section 6): given pairs of already-ranked work items, infer a
// best-guess relationship label for each pair. It is never called by
// internal/relatedness's core Analyze path (spec section 5 SUPPLEMENTED
// FEATURES); callers invoke it explicitly as a post-pass over a ranked
// result.
package llmrelate

import (
	"context"
	"time"
)

// RelationshipType is one of the labels the collaborator may assign to a
// pair of related work items.
type RelationshipType string

const (
	RelationshipDuplicate   RelationshipType = "duplicate"
	RelationshipBlocks      RelationshipType = "blocks"
	RelationshipRelatesTo   RelationshipType = "relates_to"
	RelationshipParentChild RelationshipType = "parent_child"
	RelationshipUnknown     RelationshipType = "unknown"
)

// Pair names two work items whose relationship is to be inferred.
type Pair struct {
	SeedID      int
	SeedTitle   string
	OtherID     int
	OtherTitle  string
	SeedText    string
	OtherText   string
}

// RelationshipEdge is one inferred relationship, matching spec section 6's
// `Infer(pairs, deadline) -> [RelationshipEdge]` contract.
type RelationshipEdge struct {
	SeedID     int
	OtherID    int
	Type       RelationshipType
	Confidence float64
	OK         bool
}

// Inferrer is the abstract LLM relationship collaborator. Implementations
// must treat Infer as a single suspension point honoring deadline.
type Inferrer interface {
	Infer(ctx context.Context, pairs []Pair, deadline time.Time) ([]RelationshipEdge, error)
}

// Package relatedness implements the Relatedness Engine (C5): the
// end-to-end orchestrator that turns a seed work item into a ranked,
// explained list of related items (spec section 4.5).
package relatedness

import "github.com/Aman-CERP/relatedness-core/internal/vectorindex"

// SimilarityResult is one ranked neighbor (spec section 3).
type SimilarityResult struct {
	WorkItemID      int
	Score           float64
	Rank            int
	MatchedSnapshot vectorindex.WorkItemSnapshot
	ExplanationHints []string
}

// AnalyzeResult is analyze(seed_ref, strategy)'s return value (spec
// section 4.5's public contract).
type AnalyzeResult struct {
	Ranked []SimilarityResult
}

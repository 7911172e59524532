// Package tracker defines the issue-tracker collaborator consumed by the
// Candidate Fetcher and Relatedness Engine (spec section 6), plus a thin
// HTTP client implementation and an in-memory fake for tests. The tracker
// itself — authentication, the wire protocol, UI — is out of scope; only
// the narrow interface the core depends on lives here.
package tracker

import "time"

// WorkItem is an immutable snapshot of one tracked work item for the
// duration of a request (spec section 3).
type WorkItem struct {
	ID             int
	Title          string
	Description    string
	WorkItemType   string
	State          string
	Priority       int
	AreaPath       string
	IterationPath  string
	Tags           string // semicolon-separated multiset
	AssignedTo     string
	CreatedDate    time.Time
	ChangedDate    time.Time

	// AcceptanceCriteria, ReproSteps, and BusinessValue feed the Text
	// Normalizer's field-assembly step (spec section 4.3) but are not part
	// of the core WorkItem fields enumerated in spec section 3's data
	// model table; they're carried as optional fields present on many
	// tracker backends.
	AcceptanceCriteria string
	ReproSteps         string
	BusinessValue      string
}

// Team names a tracker team and its resolved area path.
type Team struct {
	Name     string
	AreaPath string
}

// Strategy selects a Candidate Fetcher retrieval strategy (spec section
// 4.2).
type Strategy string

const (
	StrategyBalanced Strategy = "balanced"
	StrategyLaser    Strategy = "laser"
)

// StructuredQuery is the structured form a Fetcher builds and hands to
// QueryByStructuredQuery (spec section 4.2, step 4).
type StructuredQuery struct {
	Project        string
	ExcludeID      int
	ExcludeStates  []string
	Types          []string
	AreaPaths      []string
	CreatedAfter   time.Time
	CreatedBefore  time.Time
	TitlePhrases       []string
	DescriptionPhrases []string // balanced only
	OrderByNewestFirst bool
}

// QueryResultRef is one row of a structured-query result: just enough to
// hydrate in a later batch call.
type QueryResultRef struct {
	ID int
}

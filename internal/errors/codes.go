// Package errors provides structured error handling for the relatedness core.
//
// Every error the core returns across its public surface carries one of the
// six kinds named in spec.md section 7: NotFound, TrackerUnavailable,
// EmbeddingUnavailable, IndexCorrupt, Timeout, Internal. The core never
// panics or throws across that surface; callers always get a ranked list
// (possibly empty) plus diagnostics, or one of these kinds.
package errors

// Kind is one of the terminal error kinds a caller of the core can receive.
type Kind string

const (
	// KindNotFound indicates the seed work item id is absent in the tracker.
	KindNotFound Kind = "NotFound"

	// KindTrackerUnavailable indicates connectivity or auth failure to the
	// issue tracker before any slice of a candidate fetch returned.
	KindTrackerUnavailable Kind = "TrackerUnavailable"

	// KindEmbeddingUnavailable indicates every embedding batch failed and
	// the hash fallback is disabled by configuration.
	KindEmbeddingUnavailable Kind = "EmbeddingUnavailable"

	// KindIndexCorrupt indicates the persisted index files failed an
	// integrity check. Recoverable by clearing the index.
	KindIndexCorrupt Kind = "IndexCorrupt"

	// KindTimeout indicates the request deadline expired before any ranked
	// item was produced.
	KindTimeout Kind = "Timeout"

	// KindInternal indicates an invariant violation, e.g. a vector
	// dimension mismatch that should never occur given upstream checks.
	KindInternal Kind = "Internal"
)

// Category groups kinds for coarse-grained handling (retry policy, alerting).
type Category string

const (
	CategoryNotFound   Category = "NOT_FOUND"
	CategoryUpstream   Category = "UPSTREAM"
	CategoryPersistence Category = "PERSISTENCE"
	CategoryTimeout    Category = "TIMEOUT"
	CategoryInternal   Category = "INTERNAL"
)

// Severity mirrors how urgently an operator should treat the error.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

func categoryForKind(k Kind) Category {
	switch k {
	case KindNotFound:
		return CategoryNotFound
	case KindTrackerUnavailable, KindEmbeddingUnavailable:
		return CategoryUpstream
	case KindIndexCorrupt:
		return CategoryPersistence
	case KindTimeout:
		return CategoryTimeout
	default:
		return CategoryInternal
	}
}

func severityForKind(k Kind) Severity {
	switch k {
	case KindIndexCorrupt:
		return SeverityFatal
	case KindTrackerUnavailable, KindEmbeddingUnavailable, KindTimeout:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func retryableForKind(k Kind) bool {
	switch k {
	case KindTrackerUnavailable, KindEmbeddingUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

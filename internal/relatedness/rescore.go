package relatedness

import (
	"strings"

	"github.com/Aman-CERP/relatedness-core/internal/vectorindex"
)

var typeFamilies = map[string]string{
	"bug":     "bug",
	"defect":  "bug",
	"story":   "story",
	"task":    "task",
	"subtask": "task",
}

func typeFamily(workItemType string) (string, bool) {
	family, ok := typeFamilies[strings.ToLower(workItemType)]
	return family, ok
}

var activeStates = map[string]struct{}{
	"active":      {},
	"new":         {},
	"in progress": {},
}

var closedStates = map[string]struct{}{
	"closed":   {},
	"done":     {},
	"resolved": {},
}

// rescore computes spec section 4.5 step 7's adjusted score for one
// neighbor: base (the inner-product score) plus a bounded, additive
// feature boost.
func rescore(seed, neighbor vectorindex.WorkItemSnapshot, base float64) (adjusted float64, hints []string) {
	m := 1.0

	if strings.EqualFold(seed.WorkItemType, neighbor.WorkItemType) {
		m += 0.15
		hints = append(hints, "same work item type")
	} else if seedFamily, ok := typeFamily(seed.WorkItemType); ok {
		if neighborFamily, ok2 := typeFamily(neighbor.WorkItemType); ok2 && seedFamily == neighborFamily {
			m += 0.05
			hints = append(hints, "same type family")
		}
	}

	if areaBoost := jaccardAreaPath(seed.AreaPath, neighbor.AreaPath); areaBoost > 0 {
		m += areaBoost * 0.10
		hints = append(hints, "overlapping area path")
	}

	if tagBoost := float64(tagOverlapCount(seed.Tags, neighbor.Tags)) * 0.03; tagBoost > 0 {
		if tagBoost > 0.08 {
			tagBoost = 0.08
		}
		m += tagBoost
		hints = append(hints, "shared tags")
	}

	state := strings.ToLower(neighbor.State)
	if _, ok := activeStates[state]; ok {
		m += 0.03
	} else if _, ok := closedStates[state]; ok {
		m += 0.01
	}

	titleBoost, titleHint := titleBoostFor(seed.Title, neighbor.Title)
	m += titleBoost
	if titleHint != "" {
		hints = append(hints, titleHint)
	}

	if descBoost := float64(stemmedWordOverlap(seed.Description, neighbor.Description)) * 0.02; descBoost > 0 {
		if descBoost > 0.10 {
			descBoost = 0.10
		}
		m += descBoost
	}

	if seed.Priority == neighbor.Priority {
		m += 0.05
		hints = append(hints, "same priority")
	} else if abs(seed.Priority-neighbor.Priority) == 1 {
		m += 0.02
	}

	var boost float64
	if base > 0.5 {
		boost = (m - 1) * 0.20
	} else {
		boost = (m - 1) * 0.05
	}

	adjusted = base + boost
	if adjusted > 1.0 {
		adjusted = 1.0
	}
	return adjusted, hints
}

// titleBoostFor applies spec section 4.5's title-similarity tier rule,
// returning the boost and a human-readable hint when a tier fires.
func titleBoostFor(a, b string) (float64, string) {
	sim := titleSimilarity(a, b)
	switch {
	case sim > 0.90:
		return 0.20, "very similar title"
	case sim > 0.80:
		return 0.15, "similar title"
	case sim > 0.70:
		return 0.10, "somewhat similar title"
	default:
		overlap := float64(stemmedWordOverlap(a, b)) * 0.03
		if overlap > 0.15 {
			overlap = 0.15
		}
		return overlap, ""
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

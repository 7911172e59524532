package tracker

import (
	"context"
	"sort"
	"strings"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

// Fake is an in-memory Client used by tests and by the example CLI. It
// applies the structured query filters (excluded id, excluded states,
// type, area path, creation window, phrase containment) the same way a
// real tracker would, so Candidate Fetcher tests can exercise real
// filtering logic without a network dependency. The query's Project is
// not used for filtering.
type Fake struct {
	Items []*WorkItem
	Teams []Team

	// SliceErr, if set, is returned by QueryByStructuredQuery for queries
	// whose CreatedAfter matches one of the listed times, simulating a
	// per-slice tracker failure (spec section 4.2's failure semantics).
	SliceErr map[int64]error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// GetWorkItem implements Client.
func (f *Fake) GetWorkItem(_ context.Context, id int) (*WorkItem, error) {
	for _, item := range f.Items {
		if item.ID == id {
			cp := *item
			return &cp, nil
		}
	}
	return nil, coreerrors.NotFound("work item not found", nil)
}

// GetWorkItemsBatch implements Client.
func (f *Fake) GetWorkItemsBatch(_ context.Context, ids []int) ([]*WorkItem, error) {
	if len(ids) > MaxBatchSize {
		return nil, coreerrors.Internal("batch too large", nil)
	}
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*WorkItem
	for _, item := range f.Items {
		if _, ok := want[item.ID]; ok {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

// QueryByStructuredQuery implements Client.
func (f *Fake) QueryByStructuredQuery(_ context.Context, q StructuredQuery) ([]QueryResultRef, error) {
	if err, ok := f.SliceErr[q.CreatedAfter.Unix()]; ok && err != nil {
		return nil, err
	}

	matches := make([]*WorkItem, 0)
	for _, item := range f.Items {
		if item.ID == q.ExcludeID {
			continue
		}
		if containsFold(q.ExcludeStates, item.State) {
			continue
		}
		if len(q.Types) > 0 && !containsFold(q.Types, item.WorkItemType) {
			continue
		}
		if len(q.AreaPaths) > 0 && !underAnyAreaPath(item.AreaPath, q.AreaPaths) {
			continue
		}
		if !q.CreatedAfter.IsZero() && item.CreatedDate.Before(q.CreatedAfter) {
			continue
		}
		if !q.CreatedBefore.IsZero() && !item.CreatedDate.Before(q.CreatedBefore) {
			continue
		}
		if !matchesPhrases(item, q) {
			continue
		}
		cp := *item
		matches = append(matches, &cp)
	}

	if q.OrderByNewestFirst {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].CreatedDate.After(matches[j].CreatedDate)
		})
	}

	refs := make([]QueryResultRef, len(matches))
	for i, m := range matches {
		refs[i] = QueryResultRef{ID: m.ID}
	}
	return refs, nil
}

// GetTeams implements Client.
func (f *Fake) GetTeams(_ context.Context, _ string) ([]Team, error) {
	out := make([]Team, len(f.Teams))
	copy(out, f.Teams)
	return out, nil
}

func matchesPhrases(item *WorkItem, q StructuredQuery) bool {
	if len(q.TitlePhrases) == 0 && len(q.DescriptionPhrases) == 0 {
		return true
	}
	title := strings.ToLower(item.Title)
	desc := strings.ToLower(item.Description)
	for _, p := range q.TitlePhrases {
		if strings.Contains(title, strings.ToLower(p)) {
			return true
		}
	}
	for _, p := range q.DescriptionPhrases {
		if strings.Contains(desc, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func underAnyAreaPath(itemPath string, allowed []string) bool {
	for _, a := range allowed {
		if itemPath == a || strings.HasPrefix(itemPath, a+`\`) {
			return true
		}
	}
	return false
}

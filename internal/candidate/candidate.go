// Package candidate implements the Candidate Fetcher (C2): it expands a
// seed work item into a bounded, deduplicated set of candidate items via
// time-batched phrase queries across the allowed teams (spec section
// 4.2).
package candidate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/relatedness-core/internal/phrase"
	"github.com/Aman-CERP/relatedness-core/internal/reqcontext"
	"github.com/Aman-CERP/relatedness-core/internal/tracker"
)

// MaxConcurrentHydrationBatches bounds the fan-out of GetWorkItemsBatch
// calls during hydration (spec section 9: hydration batching is a
// legitimately parallel sub-phase, unlike the slice loop it follows).
const MaxConcurrentHydrationBatches = 4

// BalancedResultCap is the default short-circuit threshold for balanced
// search (spec section 4.2 step 5, overridable via BALANCED_RESULT_CAP).
const BalancedResultCap = 350

// InterSliceDelay is the mandated pause between time-slice queries (spec
// section 9's "500ms spacing between slices... to avoid overwhelming the
// tracker").
const InterSliceDelay = 500 * time.Millisecond

// Config controls the fetcher's retrieval widths, independent of the
// ambient config package so the fetcher can be unit tested without it.
type Config struct {
	BalancedResultCap int
	InterSliceDelay   time.Duration
}

// DefaultConfig matches spec.md's defaults.
func DefaultConfig() Config {
	return Config{BalancedResultCap: BalancedResultCap, InterSliceDelay: InterSliceDelay}
}

type slice struct {
	after  time.Time
	before time.Time
}

// timeSlices returns n consecutive windows of months calendar months each,
// newest-first, covering n*months months ending at now (spec section 4.2
// step 3).
func timeSlices(now time.Time, n int, months int) []slice {
	slices := make([]slice, n)
	cursor := now
	for i := 0; i < n; i++ {
		next := cursor.AddDate(0, -months, 0)
		slices[i] = slice{after: next, before: cursor}
		cursor = next
	}
	return slices
}

func balancedSlices(now time.Time) []slice {
	return timeSlices(now, 8, 3)
}

func laserSlices(now time.Time) []slice {
	return timeSlices(now, 6, 6)
}

// Fetcher implements C2's public contract.
type Fetcher struct {
	client tracker.Client
	cfg    Config
	now    func() time.Time
}

// New creates a Fetcher backed by client.
func New(client tracker.Client, cfg Config) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, now: time.Now}
}

// Fetch implements spec section 4.2's fetch(seed, teams, types, strategy)
// contract: the seed is always first in the returned sequence.
func (f *Fetcher) Fetch(
	rc *reqcontext.Context,
	seed *tracker.WorkItem,
	teams []tracker.Team,
	types []string,
	strategy tracker.Strategy,
) ([]*tracker.WorkItem, error) {
	areaPaths := resolveAreaPaths(teams)
	if len(areaPaths) == 0 {
		rc.Diagnostics.AddNote("no teams resolved an area path; returning seed only")
		return []*tracker.WorkItem{seed}, nil
	}

	var ids []int
	var err error
	switch strategy {
	case tracker.StrategyLaser:
		ids, err = f.fetchLaser(rc, seed, areaPaths, types)
	default:
		ids, err = f.fetchBalanced(rc, seed, areaPaths, types)
	}
	if err != nil {
		return nil, err
	}

	hydrated, err := f.hydrate(rc.Ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*tracker.WorkItem, 0, len(hydrated)+1)
	out = append(out, seed)
	out = append(out, hydrated...)
	return out, nil
}

// resolveAreaPaths extracts the verified area paths from teams, skipping
// any with an empty path (spec section 4.2 step 1).
func resolveAreaPaths(teams []tracker.Team) []string {
	var paths []string
	for _, t := range teams {
		if t.AreaPath != "" {
			paths = append(paths, t.AreaPath)
		}
	}
	return paths
}

func (f *Fetcher) fetchBalanced(rc *reqcontext.Context, seed *tracker.WorkItem, areaPaths, types []string) ([]int, error) {
	resultCap := f.cfg.BalancedResultCap
	if resultCap <= 0 {
		resultCap = BalancedResultCap
	}

	phrases := phrase.Extract(seed.Title, 3)

	seen := make(map[int]struct{})
	var ordered []int

	slices := balancedSlices(f.now())
	for i, sl := range slices {
		if i > 0 {
			f.sleepBetweenSlices(rc.Ctx)
		}

		refs, err := f.runBalancedSlice(rc, seed, areaPaths, types, phrases, sl)
		if err != nil {
			rc.Diagnostics.AddSliceError(err.Error())
			rc.Diagnostics.MarkPartial()
			continue
		}

		// First slice empty-handed: per spec section 4.2 step 2, fall
		// back to shorter phrases and reuse them for every later slice.
		if i == 0 && len(refs) == 0 {
			phrases = phrase.Extract(seed.Title, 2)
			refs, err = f.runBalancedSlice(rc, seed, areaPaths, types, phrases, sl)
			if err != nil {
				rc.Diagnostics.AddSliceError(err.Error())
				rc.Diagnostics.MarkPartial()
				continue
			}
		}

		for _, r := range refs {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			ordered = append(ordered, r.ID)
		}

		if len(ordered) > resultCap {
			break
		}
	}
	return ordered, nil
}

func (f *Fetcher) runBalancedSlice(
	rc *reqcontext.Context,
	seed *tracker.WorkItem,
	areaPaths, types, phrases []string,
	sl slice,
) ([]tracker.QueryResultRef, error) {
	q := tracker.StructuredQuery{
		ExcludeID:          seed.ID,
		ExcludeStates:      []string{"Removed"},
		Types:              types,
		AreaPaths:          areaPaths,
		CreatedAfter:       sl.after,
		CreatedBefore:      sl.before,
		TitlePhrases:       phrases,
		DescriptionPhrases: phrases,
		OrderByNewestFirst: true,
	}
	return f.client.QueryByStructuredQuery(rc.Ctx, q)
}

func (f *Fetcher) fetchLaser(rc *reqcontext.Context, seed *tracker.WorkItem, areaPaths, types []string) ([]int, error) {
	seen := make(map[int]struct{})
	var ordered []int

	slices := laserSlices(f.now())
	for i, sl := range slices {
		if i > 0 {
			f.sleepBetweenSlices(rc.Ctx)
		}

		q := tracker.StructuredQuery{
			ExcludeID:          seed.ID,
			ExcludeStates:      []string{"Removed"},
			Types:              types,
			AreaPaths:          areaPaths,
			CreatedAfter:       sl.after,
			CreatedBefore:      sl.before,
			TitlePhrases:       []string{seed.Title},
			OrderByNewestFirst: true,
		}

		refs, err := f.client.QueryByStructuredQuery(rc.Ctx, q)
		if err != nil {
			rc.Diagnostics.AddSliceError(err.Error())
			rc.Diagnostics.MarkPartial()
			continue
		}

		for _, r := range refs {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			ordered = append(ordered, r.ID)
		}
	}
	return ordered, nil
}

func (f *Fetcher) sleepBetweenSlices(ctx context.Context) {
	delay := f.cfg.InterSliceDelay
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// hydrate fetches full WorkItems for ids in batches of up to
// tracker.MaxBatchSize, preserving ids' order (spec section 4.2 step 6).
func (f *Fetcher) hydrate(ctx context.Context, ids []int) ([]*tracker.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[int]*tracker.WorkItem, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentHydrationBatches)

	for start := 0; start < len(ids); start += tracker.MaxBatchSize {
		end := start + tracker.MaxBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batchIDs := ids[start:end]
		g.Go(func() error {
			batch, err := f.client.GetWorkItemsBatch(gctx, batchIDs)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, item := range batch {
				byID[item.ID] = item
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*tracker.WorkItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

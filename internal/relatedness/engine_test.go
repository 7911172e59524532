package relatedness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/relatedness-core/internal/candidate"
	"github.com/Aman-CERP/relatedness-core/internal/embedclient"
	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
	"github.com/Aman-CERP/relatedness-core/internal/normalize"
	"github.com/Aman-CERP/relatedness-core/internal/reqcontext"
	"github.com/Aman-CERP/relatedness-core/internal/tracker"
	"github.com/Aman-CERP/relatedness-core/internal/vectorindex"
)

const testDimension = 32

func newRC(t *testing.T) *reqcontext.Context {
	t.Helper()
	return reqcontext.New(context.Background(), nil)
}

func newEngine(t *testing.T, items []*tracker.WorkItem, teams []tracker.Team, cfg Config) (*Engine, *tracker.Fake) {
	t.Helper()
	fake := &tracker.Fake{Items: items, Teams: teams}
	fetcher := candidate.New(fake, candidate.Config{BalancedResultCap: candidate.BalancedResultCap, InterSliceDelay: 0})
	normalizer := normalize.New(normalize.DefaultConfig())
	embedder := embedclient.NewFake(testDimension)
	fallback := embedclient.NewHashFallback(testDimension)
	index := vectorindex.New()
	return New(fake, fetcher, normalizer, embedder, fallback, index, cfg), fake
}

func workItem(id int, title, areaPath string) *tracker.WorkItem {
	return &tracker.WorkItem{
		ID:           id,
		Title:        title,
		Description:  title + " has enough descriptive text to pass the minimum length gate for normalization.",
		WorkItemType: "Bug",
		State:        "Active",
		AreaPath:     areaPath,
		Priority:     2,
		CreatedDate:  time.Now().Add(-24 * time.Hour),
	}
}

func TestEngine_Analyze_NotFoundPropagates(t *testing.T) {
	engine, _ := newEngine(t, nil, []tracker.Team{{Name: "TeamA", AreaPath: `Proj\TeamA`}}, DefaultConfig())
	_, err := engine.Analyze(newRC(t), 999, tracker.StrategyBalanced)
	require.Error(t, err)
}

func TestEngine_Analyze_RanksRelatedCandidatesAboveThreshold(t *testing.T) {
	seed := workItem(1, "Fix login button accessibility for keyboard users", `Proj\TeamA`)
	sibling := workItem(2, "Fix login button accessibility for keyboard navigation", `Proj\TeamA`)
	unrelated := workItem(3, "Rewrite the billing export job", `Proj\TeamA`)

	cfg := DefaultConfig()
	cfg.K = 5
	cfg.Project = "Proj"
	engine, _ := newEngine(t, []*tracker.WorkItem{seed, sibling, unrelated}, []tracker.Team{{Name: "TeamA", AreaPath: `Proj\TeamA`}}, cfg)

	result, err := engine.Analyze(newRC(t), seed.ID, tracker.StrategyBalanced)
	require.NoError(t, err)
	require.NotNil(t, result)

	for _, r := range result.Ranked {
		assert.NotEqual(t, seed.ID, r.WorkItemID)
	}
}

func TestEngine_Analyze_NoTeamsDegradesToSeedOnlyEmptyResult(t *testing.T) {
	seed := workItem(1, "Solo item with no resolvable team", "")
	cfg := DefaultConfig()
	engine, _ := newEngine(t, []*tracker.WorkItem{seed}, nil, cfg)

	rc := newRC(t)
	result, err := engine.Analyze(rc, seed.ID, tracker.StrategyBalanced)
	require.NoError(t, err)
	assert.Empty(t, result.Ranked)
	assert.NotEmpty(t, rc.Diagnostics.Notes())
}

func TestEngine_Analyze_EmbeddingFallbackWhenProviderFails(t *testing.T) {
	seed := workItem(1, "Fix login button accessibility for keyboard users", `Proj\TeamA`)
	sibling := workItem(2, "Fix login button accessibility for keyboard navigation", `Proj\TeamA`)

	cfg := DefaultConfig()
	cfg.HashFallbackEnabled = true
	engine, _ := newEngine(t, []*tracker.WorkItem{seed, sibling}, []tracker.Team{{Name: "TeamA", AreaPath: `Proj\TeamA`}}, cfg)

	fakeEmbedder := &embedclient.Fake{Err: assertErr("embedding provider unavailable")}
	engine.embedder = fakeEmbedder

	rc := newRC(t)
	result, err := engine.Analyze(rc, seed.ID, tracker.StrategyBalanced)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, rc.Diagnostics.Partial())
	assert.NotEmpty(t, rc.Diagnostics.EmbeddingFallbackIDs())
}

func TestEngine_Analyze_EmbeddingUnavailableWhenFallbackDisabled(t *testing.T) {
	seed := workItem(1, "Fix login button accessibility for keyboard users", `Proj\TeamA`)
	sibling := workItem(2, "Fix login button accessibility for keyboard navigation", `Proj\TeamA`)

	cfg := DefaultConfig()
	cfg.HashFallbackEnabled = false
	engine, _ := newEngine(t, []*tracker.WorkItem{seed, sibling}, []tracker.Team{{Name: "TeamA", AreaPath: `Proj\TeamA`}}, cfg)
	engine.embedder = &embedclient.Fake{Err: assertErr("embedding provider unavailable")}

	rc := newRC(t)
	result, err := engine.Analyze(rc, seed.ID, tracker.StrategyBalanced)
	// Every embedding batch failed and the hash fallback is disabled, so
	// the pipeline fails with EmbeddingUnavailable instead of returning a
	// result.
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, coreerrors.KindEmbeddingUnavailable, coreerrors.GetKind(err))
}

func TestEngine_FindSimilarToExistingID_ExactTitleMatchRankedFirst(t *testing.T) {
	seed := workItem(1, "Fix login button accessibility for keyboard users", `Proj\TeamA`)
	exact := workItem(2, "Fix login button accessibility for keyboard users", `Proj\TeamA`)
	other := workItem(3, "Rewrite the billing export job entirely", `Proj\TeamA`)

	cfg := DefaultConfig()
	cfg.K = 5
	engine, _ := newEngine(t, []*tracker.WorkItem{seed, exact, other}, []tracker.Team{{Name: "TeamA", AreaPath: `Proj\TeamA`}}, cfg)

	result, err := engine.FindSimilarToExistingID(newRC(t), seed.ID, tracker.StrategyBalanced)
	require.NoError(t, err)
	require.NotEmpty(t, result.Ranked)
	assert.Equal(t, exact.ID, result.Ranked[0].WorkItemID)
	assert.Equal(t, 1.0, result.Ranked[0].Score)
	assert.Equal(t, 1, result.Ranked[0].Rank)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

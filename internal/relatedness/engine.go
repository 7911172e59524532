package relatedness

import (
	"sort"
	"time"

	"github.com/Aman-CERP/relatedness-core/internal/candidate"
	"github.com/Aman-CERP/relatedness-core/internal/embedclient"
	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
	"github.com/Aman-CERP/relatedness-core/internal/normalize"
	"github.com/Aman-CERP/relatedness-core/internal/reqcontext"
	"github.com/Aman-CERP/relatedness-core/internal/tracker"
	"github.com/Aman-CERP/relatedness-core/internal/vectorindex"
)

// Config controls the engine's pipeline-wide knobs (spec section 4.5 and
// the embedding-batch policy of section 9).
type Config struct {
	Project             string
	AllowedTypes        []string
	EmbedBatchSize      int
	EmbedBatchDeadline  time.Duration
	TopKMultiplier      int
	K                   int
	Threshold           ThresholdConfig
	HashFallbackEnabled bool
}

// DefaultConfig matches spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		EmbedBatchSize:      embedclient.MaxBatchSize,
		EmbedBatchDeadline:  45 * time.Second,
		TopKMultiplier:      2,
		K:                   20,
		Threshold:           DefaultThresholdConfig(),
		HashFallbackEnabled: true,
	}
}

// Engine drives spec section 4.5's analyze pipeline end to end. It
// exclusively owns the lifecycle of the Embedding Index for the duration
// of one Analyze call (spec section 3's ownership note).
type Engine struct {
	tracker    tracker.Client
	fetcher    *candidate.Fetcher
	normalizer *normalize.Normalizer
	embedder   embedclient.Embedder
	fallback   embedclient.Embedder
	index      *vectorindex.Index
	cfg        Config
}

// New wires an Engine from its collaborators.
func New(
	trackerClient tracker.Client,
	fetcher *candidate.Fetcher,
	normalizer *normalize.Normalizer,
	embedder embedclient.Embedder,
	fallback embedclient.Embedder,
	index *vectorindex.Index,
	cfg Config,
) *Engine {
	return &Engine{
		tracker:    trackerClient,
		fetcher:    fetcher,
		normalizer: normalizer,
		embedder:   embedder,
		fallback:   fallback,
		index:      index,
		cfg:        cfg,
	}
}

// Analyze implements spec section 4.5's public contract.
func (e *Engine) Analyze(rc *reqcontext.Context, seedID int, strategy tracker.Strategy) (*AnalyzeResult, error) {
	seed, err := e.tracker.GetWorkItem(rc.Ctx, seedID)
	if err != nil {
		return nil, err
	}

	teams, err := e.tracker.GetTeams(rc.Ctx, e.cfg.Project)
	if err != nil {
		rc.Diagnostics.MarkPartial()
		rc.Diagnostics.AddNote("team resolution failed: " + err.Error())
		teams = nil
	}

	candidates, err := e.fetcher.Fetch(rc, seed, teams, e.cfg.AllowedTypes, strategy)
	if err != nil {
		return nil, err
	}

	if err := e.ingest(rc, candidates); err != nil {
		return nil, err
	}

	seedRecord, ok := e.index.Get(seed.ID)
	if !ok {
		rc.Diagnostics.MarkPartial()
		rc.Diagnostics.AddNote("seed produced no embedding; returning empty result")
		return &AnalyzeResult{}, nil
	}

	k := e.cfg.K
	if k <= 0 {
		k = 20
	}
	topKMultiplier := e.cfg.TopKMultiplier
	if topKMultiplier <= 0 {
		topKMultiplier = 2
	}

	neighbors, err := e.index.Search(seedRecord.Embedding, k*topKMultiplier+1)
	if err != nil {
		return nil, err
	}
	neighbors = excludeSeed(neighbors, seed.ID)

	ranked := e.rescoreAndRank(rc, seedRecord, neighbors, k)
	return &AnalyzeResult{Ranked: ranked}, nil
}

// FindSimilarToExistingID implements spec section 4.5's exact-match fast
// path variant: any neighbor in the top (k*2) whose title-similarity to
// seedID exceeds 0.90 is emitted with adjusted=1.0 at the front of the
// list, ahead of the generally rescored results.
func (e *Engine) FindSimilarToExistingID(rc *reqcontext.Context, seedID int, strategy tracker.Strategy) (*AnalyzeResult, error) {
	result, err := e.Analyze(rc, seedID, strategy)
	if err != nil {
		return nil, err
	}

	seedRecord, ok := e.index.Get(seedID)
	if !ok {
		return result, nil
	}

	k := e.cfg.K
	if k <= 0 {
		k = 20
	}
	topKMultiplier := e.cfg.TopKMultiplier
	if topKMultiplier <= 0 {
		topKMultiplier = 2
	}
	neighbors, err := e.index.Search(seedRecord.Embedding, k*topKMultiplier+1)
	if err != nil {
		return nil, err
	}
	neighbors = excludeSeed(neighbors, seedID)

	var exact []SimilarityResult
	exactIDs := make(map[int]struct{})
	for _, n := range neighbors {
		if titleSimilarity(seedRecord.WorkItem.Title, n.Record.WorkItem.Title) > 0.90 {
			exactIDs[n.WorkItemID] = struct{}{}
			exact = append(exact, SimilarityResult{
				WorkItemID:       n.WorkItemID,
				Score:            1.0,
				MatchedSnapshot:  n.Record.WorkItem,
				ExplanationHints: []string{"exact title match"},
			})
		}
	}

	combined := exact
	for _, r := range result.Ranked {
		if _, moved := exactIDs[r.WorkItemID]; !moved {
			combined = append(combined, r)
		}
	}
	for i := range combined {
		combined[i].Rank = i + 1
	}
	return &AnalyzeResult{Ranked: combined}, nil
}

func excludeSeed(neighbors []vectorindex.SearchResult, seedID int) []vectorindex.SearchResult {
	out := neighbors[:0:0]
	for _, n := range neighbors {
		if n.WorkItemID != seedID {
			out = append(out, n)
		}
	}
	return out
}

// ingest runs spec section 4.5 steps 3-4: clear the index, normalize
// every candidate, embed in batches with hash-fallback degrade, and
// upsert successes.
func (e *Engine) ingest(rc *reqcontext.Context, items []*tracker.WorkItem) error {
	e.index.Clear()

	var snapshots []vectorindex.WorkItemSnapshot
	var texts []string
	var ids []int
	for _, item := range items {
		canonical := e.normalizer.Normalize(item)
		if canonical.Skip {
			continue
		}
		snapshots = append(snapshots, toSnapshot(item))
		texts = append(texts, canonical.Text)
		ids = append(ids, item.ID)
	}

	if len(snapshots) == 0 {
		return nil
	}

	results := e.embedBatches(rc, texts, ids)
	if !e.cfg.HashFallbackEnabled {
		embedded := false
		for _, r := range results {
			embedded = embedded || r.OK
		}
		if !embedded {
			return coreerrors.EmbeddingUnavailable("every embedding batch failed and the hash fallback is disabled", nil)
		}
	}

	inputs := make([]vectorindex.UpsertInput, len(snapshots))
	for i, snap := range snapshots {
		r := results[i]
		inputs[i] = vectorindex.UpsertInput{
			WorkItem:  snap,
			Embedding: r.Vector,
			Source:    vectorindex.EmbeddingSourceInfo{Model: r.Model, Tokens: r.Tokens, Fallback: r.fallback},
			Success:   r.OK,
		}
	}

	skipped, err := e.index.Upsert(inputs)
	if err != nil {
		return coreerrors.Internal("index upsert failed", err)
	}
	if len(skipped) > 0 {
		rc.Diagnostics.MarkPartial()
		rc.Diagnostics.AddNote("some candidates were skipped during upsert")
	}
	return nil
}

type embedOutcome struct {
	embedclient.Result
	fallback bool
}

// embedBatches implements spec section 4.5 step 3 and section 9's batch
// policy: batches of <= EmbedBatchSize texts, each with its own deadline;
// a batch that errors or times out is served by the hash fallback so the
// pipeline still returns results, and affected ids are flagged in
// diagnostics.
func (e *Engine) embedBatches(rc *reqcontext.Context, texts []string, ids []int) []embedOutcome {
	batchSize := e.cfg.EmbedBatchSize
	if batchSize <= 0 || batchSize > embedclient.MaxBatchSize {
		batchSize = embedclient.MaxBatchSize
	}
	deadline := e.cfg.EmbedBatchDeadline
	if deadline <= 0 {
		deadline = 45 * time.Second
	}

	out := make([]embedOutcome, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		results, err := e.embedder.Embed(rc.Ctx, batch, time.Now().Add(deadline))
		if err != nil || anyFailed(results) {
			rc.Diagnostics.MarkPartial()
			results = e.fallbackEmbed(rc, batch, ids[start:end])
		}
		for i, r := range results {
			out[start+i] = embedOutcome{Result: r, fallback: r.Model == e.fallback.ModelName()}
		}
	}
	return out
}

func anyFailed(results []embedclient.Result) bool {
	for _, r := range results {
		if !r.OK {
			return true
		}
	}
	return false
}

func (e *Engine) fallbackEmbed(rc *reqcontext.Context, texts []string, ids []int) []embedclient.Result {
	if !e.cfg.HashFallbackEnabled {
		for i := range texts {
			rc.Diagnostics.AddEmbeddingFallbackID(ids[i])
		}
		return make([]embedclient.Result, len(texts))
	}

	results, _ := e.fallback.Embed(rc.Ctx, texts, time.Now().Add(time.Second))
	for i := range texts {
		rc.Diagnostics.AddEmbeddingFallbackID(ids[i])
	}
	return results
}

func toSnapshot(item *tracker.WorkItem) vectorindex.WorkItemSnapshot {
	return vectorindex.WorkItemSnapshot{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		WorkItemType: item.WorkItemType,
		State:        item.State,
		AreaPath:     item.AreaPath,
		Tags:         item.Tags,
		Priority:     item.Priority,
		CreatedDate:  item.CreatedDate,
	}
}

// rescoreAndRank implements spec section 4.5 steps 7-9.
func (e *Engine) rescoreAndRank(rc *reqcontext.Context, seed vectorindex.Record, neighbors []vectorindex.SearchResult, k int) []SimilarityResult {
	if len(neighbors) == 0 {
		return nil
	}

	baseScores := make([]float64, len(neighbors))
	for i, n := range neighbors {
		baseScores[i] = float64(n.InnerProduct)
	}
	threshold, relaxed := adaptiveThreshold(baseScores, e.cfg.Threshold)

	type scored struct {
		SimilarityResult
		adjusted float64
	}
	var candidates []scored
	for _, n := range neighbors {
		adjusted, hints := rescore(seed.WorkItem, n.Record.WorkItem, float64(n.InnerProduct))
		if adjusted < threshold {
			continue
		}
		candidates = append(candidates, scored{
			SimilarityResult: SimilarityResult{
				WorkItemID:       n.WorkItemID,
				Score:            adjusted,
				MatchedSnapshot:  n.Record.WorkItem,
				ExplanationHints: hints,
			},
			adjusted: adjusted,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].adjusted > candidates[j].adjusted
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]SimilarityResult, len(candidates))
	for i, c := range candidates {
		c.SimilarityResult.Rank = i + 1
		out[i] = c.SimilarityResult
	}
	if relaxed {
		rc.Diagnostics.AddNote("adaptive threshold relaxed to avoid an empty result")
	}
	return out
}

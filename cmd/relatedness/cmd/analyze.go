package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/relatedness-core/internal/candidate"
	"github.com/Aman-CERP/relatedness-core/internal/config"
	"github.com/Aman-CERP/relatedness-core/internal/embedclient"
	"github.com/Aman-CERP/relatedness-core/internal/normalize"
	"github.com/Aman-CERP/relatedness-core/internal/relatedness"
	"github.com/Aman-CERP/relatedness-core/internal/reqcontext"
	"github.com/Aman-CERP/relatedness-core/internal/tracker"
	"github.com/Aman-CERP/relatedness-core/internal/vectorindex"
)

type analyzeOptions struct {
	strategy string
	similar  bool
	k        int
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <seed-id>",
		Short: "Find work items related to a seed work item",
		Long: `Loads the two-tier configuration, wires the tracker, embedding,
and persisted-index collaborators, and runs the Relatedness Engine's
analyze pipeline for one seed work item, printing the ranked result as
JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seedID int
			if _, err := fmt.Sscanf(args[0], "%d", &seedID); err != nil {
				return fmt.Errorf("invalid seed id %q: %w", args[0], err)
			}
			return runAnalyze(cmd, seedID, opts)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "balanced", "Candidate retrieval strategy: balanced or laser")
	cmd.Flags().BoolVar(&opts.similar, "similar", false, "After the normal analysis, run the exact-title fast path (FindSimilarToExistingID): neighbors whose titles nearly match the seed's are listed first with score 1.0")
	cmd.Flags().IntVar(&opts.k, "k", 0, "Override the number of ranked neighbors returned (0 keeps the config default)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, seedID int, opts analyzeOptions) error {
	dir := configPath
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if vectorDBPath != "" {
		cfg.Index.Path = vectorDBPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	strategy := tracker.StrategyBalanced
	if opts.strategy == string(tracker.StrategyLaser) {
		strategy = tracker.StrategyLaser
	}

	trackerClient := tracker.NewHTTPClient(tracker.HTTPClientConfig{
		BaseURL:                 cfg.Tracker.BaseURL,
		Project:                 cfg.Tracker.Project,
		MaxRetries:              cfg.Tracker.MaxRetries,
		BreakerFailureThreshold: cfg.Tracker.BreakerFailureThreshold,
	}, nil)

	fetcher := candidate.New(trackerClient, candidate.Config{
		BalancedResultCap: cfg.Retrieval.BalancedResultCap,
		InterSliceDelay:   cfg.Retrieval.InterSliceDelay,
	})

	normalizer := normalize.New(normalize.Config{
		MinLen:         cfg.Normalization.MinLen,
		MaxLen:         cfg.Normalization.MaxLen,
		RemoveHTML:     cfg.Normalization.RemoveHTML,
		RemoveMarkdown: cfg.Normalization.RemoveMarkdown,
	})

	var embedder embedclient.Embedder = embedclient.NewHTTPClient(embedclient.HTTPClientConfig{
		BaseURL:                 cfg.Embedding.BaseURL,
		Model:                   cfg.Embedding.Model,
		Dimension:               cfg.Embedding.Dimension,
		MaxRetries:              cfg.Embedding.MaxRetries,
		BreakerFailureThreshold: cfg.Embedding.BreakerFailureThreshold,
	}, nil)
	embedder = embedclient.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	var fallback embedclient.Embedder
	if cfg.Embedding.AllowHashFallback {
		fallback = embedclient.NewHashFallback(cfg.Embedding.Dimension)
	}

	store := vectorindex.NewStore(cfg.Index.Path)
	index, err := store.Load()
	if err != nil {
		return fmt.Errorf("load persisted index: %w", err)
	}

	engine := relatedness.New(trackerClient, fetcher, normalizer, embedder, fallback, index, relatedness.Config{
		Project:             cfg.Tracker.Project,
		EmbedBatchSize:      cfg.Embedding.BatchSize,
		EmbedBatchDeadline:  time.Duration(cfg.Embedding.BatchDeadlineSeconds) * time.Second,
		TopKMultiplier:      relatedness.DefaultConfig().TopKMultiplier,
		K:                   defaultedK(opts.k),
		Threshold: relatedness.ThresholdConfig{
			Default:      cfg.Threshold.Default,
			MinThreshold: cfg.Threshold.MinThreshold,
			MaxThreshold: cfg.Threshold.MaxThreshold,
		},
		HashFallbackEnabled: cfg.Embedding.AllowHashFallback,
	})

	rc := reqcontext.New(cmd.Context(), nil)

	var result *relatedness.AnalyzeResult
	if opts.similar {
		result, err = engine.FindSimilarToExistingID(rc, seedID, strategy)
	} else {
		result, err = engine.Analyze(rc, seedID, strategy)
	}
	if err != nil {
		if saveErr := store.Save(index); saveErr != nil {
			rc.Logger.Warn("index_save_failed", "error", saveErr)
		}
		return fmt.Errorf("analyze: %w", err)
	}

	if err := store.Save(index); err != nil {
		return fmt.Errorf("save persisted index: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func defaultedK(k int) int {
	if k > 0 {
		return k
	}
	return relatedness.DefaultConfig().K
}

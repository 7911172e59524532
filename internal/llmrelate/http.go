package llmrelate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

// MaxConcurrentInferences bounds the fan-out of per-pair inference
// requests (spec.md's LLM relationship collaborator is optional and
// out-of-band; each pair lookup is independent, unlike the candidate
// fetcher's sequential time-slice loop).
const MaxConcurrentInferences = 4

// HTTPClientConfig configures the HTTP-backed relationship inferrer.
type HTTPClientConfig struct {
	BaseURL                 string
	Model                   string
	MaxRetries              uint64
	BreakerFailureThreshold uint32
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig(baseURL, model string) HTTPClientConfig {
	return HTTPClientConfig{BaseURL: baseURL, Model: model, MaxRetries: 2, BreakerFailureThreshold: 5}
}

// HTTPClient is a thin Inferrer implementation over an LLM inference
// endpoint, wrapped with the same retry/circuit-breaker shape as the
// tracker and embedding clients.
type HTTPClient struct {
	cfg        HTTPClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a relationship inferrer backed by cfg.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "llmrelate",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	return &HTTPClient{cfg: cfg, httpClient: httpClient, breaker: breaker}
}

type inferRequest struct {
	Model      string `json:"model"`
	SeedID     int    `json:"seed_id"`
	SeedText   string `json:"seed_text"`
	OtherID    int    `json:"other_id"`
	OtherText  string `json:"other_text"`
}

type inferResponse struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Infer implements Inferrer. Each pair is looked up independently and the
// calls fan out with bounded concurrency via errgroup (spec section 9's
// carve-out for legitimately parallel sub-phases); a failure on one pair
// yields an OK=false edge for that pair rather than failing the batch.
func (c *HTTPClient) Infer(ctx context.Context, pairs []Pair, deadline time.Time) ([]RelationshipEdge, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	edges := make([]RelationshipEdge, len(pairs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentInferences)

	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			edge, err := c.inferOne(gctx, pair)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				edges[i] = RelationshipEdge{SeedID: pair.SeedID, OtherID: pair.OtherID, Type: RelationshipUnknown, OK: false}
				return nil
			}
			edges[i] = edge
			return nil
		})
	}
	_ = g.Wait()
	return edges, nil
}

func (c *HTTPClient) inferOne(ctx context.Context, pair Pair) (RelationshipEdge, error) {
	var resp inferResponse
	op := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.doOnce(ctx, pair, &resp)
		})
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return RelationshipEdge{}, coreerrors.Internal("relationship inference failed", err)
	}
	return RelationshipEdge{
		SeedID:     pair.SeedID,
		OtherID:    pair.OtherID,
		Type:       RelationshipType(resp.Type),
		Confidence: resp.Confidence,
		OK:         true,
	}, nil
}

func (c *HTTPClient) doOnce(ctx context.Context, pair Pair, out *inferResponse) error {
	body, err := json.Marshal(inferRequest{
		Model:     c.cfg.Model,
		SeedID:    pair.SeedID,
		SeedText:  pair.SeedText,
		OtherID:   pair.OtherID,
		OtherText: pair.OtherText,
	})
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/infer", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("llm relate returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("llm relate returned %d", resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

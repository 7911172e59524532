package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

// HTTPClientConfig configures the HTTP-backed embedding provider.
type HTTPClientConfig struct {
	BaseURL   string
	Model     string
	Dimension int

	MaxRetries              uint64
	BreakerFailureThreshold uint32
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig(baseURL, model string) HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:                 baseURL,
		Model:                   model,
		Dimension:               DefaultDimension,
		MaxRetries:              3,
		BreakerFailureThreshold: 5,
	}
}

// HTTPClient is an Embedder backed by a REST embedding provider, wrapped
// with cenkalti/backoff retry and a sony/gobreaker circuit breaker so a
// down provider surfaces as EmbeddingUnavailable rather than a raw
// transport error (spec section 7), mirroring the tracker client's shape.
type HTTPClient struct {
	cfg        HTTPClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates an embedding client backed by cfg.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "embedding-provider",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	return &HTTPClient{cfg: cfg, httpClient: httpClient, breaker: breaker}
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponseItem struct {
	Vector []float32 `json:"vector"`
	Tokens int       `json:"tokens"`
	OK     bool      `json:"ok"`
}

// Embed implements Embedder. deadline bounds the whole batch call
// (spec section 4.4 step 3 / section 9's per-batch deadline).
func (c *HTTPClient) Embed(ctx context.Context, texts []string, deadline time.Time) ([]Result, error) {
	if len(texts) > MaxBatchSize {
		return nil, coreerrors.Internal(fmt.Sprintf("batch of %d exceeds max %d", len(texts), MaxBatchSize), nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var items []embedResponseItem
	op := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.doOnce(ctx, texts, &items)
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			return nil, coreerrors.Timeout("embedding batch deadline exceeded", ctx.Err())
		}
		return nil, coreerrors.EmbeddingUnavailable("embedding provider request failed", err)
	}

	results := make([]Result, len(items))
	for i, it := range items {
		vec := it.Vector
		if it.OK && len(vec) > 0 {
			vec = normalizeVector(vec)
		}
		results[i] = Result{Vector: vec, Tokens: it.Tokens, Model: c.cfg.Model, OK: it.OK}
	}
	return results, nil
}

func (c *HTTPClient) doOnce(ctx context.Context, texts []string, out *[]embedResponseItem) error {
	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Texts: texts})
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err // retryable transport error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("embedding provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("embedding provider returned %d", resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Dimensions implements Embedder.
func (c *HTTPClient) Dimensions() int { return c.cfg.Dimension }

// ModelName implements Embedder.
func (c *HTTPClient) ModelName() string { return c.cfg.Model }

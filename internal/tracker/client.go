package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

// MaxBatchSize is the tracker's hydration batch ceiling (spec section
// 4.2, step 6, and section 6's GetWorkItemsBatch contract).
const MaxBatchSize = 200

// Client is the abstract tracker collaborator (spec section 6).
// Implementations must treat every method as a suspension point honoring
// ctx's deadline.
type Client interface {
	// GetWorkItem fetches one work item by id. Implementations return a
	// *coreerrors.CoreError with Kind NotFound when the id is absent.
	GetWorkItem(ctx context.Context, id int) (*WorkItem, error)

	// GetWorkItemsBatch fetches up to MaxBatchSize work items by id in one
	// round trip.
	GetWorkItemsBatch(ctx context.Context, ids []int) ([]*WorkItem, error)

	// QueryByStructuredQuery runs one structured query and returns
	// matching ids in the tracker's native order (newest-first when the
	// query requests it).
	QueryByStructuredQuery(ctx context.Context, query StructuredQuery) ([]QueryResultRef, error)

	// GetTeams returns the teams known for a project, each with its
	// resolved area path (teams without a verified area path are the
	// caller's concern to skip, per spec section 4.2 step 1).
	GetTeams(ctx context.Context, project string) ([]Team, error)
}

// HTTPClientConfig configures the HTTP-backed tracker client.
type HTTPClientConfig struct {
	BaseURL string
	Project string

	// MaxRetries bounds cenkalti/backoff's exponential retry of a single
	// request (transport errors and 5xx responses; 4xx responses never
	// retry).
	MaxRetries uint64

	// BreakerFailureThreshold trips the circuit breaker after this many
	// consecutive request failures, surfacing TrackerUnavailable
	// immediately for subsequent calls until it half-opens.
	BreakerFailureThreshold uint32
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig(baseURL, project string) HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:                 baseURL,
		Project:                 project,
		MaxRetries:              3,
		BreakerFailureThreshold: 5,
	}
}

// HTTPClient is a thin Client implementation over the tracker's REST API,
// wrapped with a retry policy and a circuit breaker so that connectivity
// failures surface as TrackerUnavailable rather than propagating raw
// transport errors (spec section 7).
type HTTPClient struct {
	cfg        HTTPClientConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a tracker client backed by cfg.
func NewHTTPClient(cfg HTTPClientConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "tracker",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	return &HTTPClient{cfg: cfg, httpClient: httpClient, breaker: breaker}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	op := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.doOnce(ctx, method, path, body, out)
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ce, ok := err.(*coreerrors.CoreError); ok && ce.Kind == coreerrors.KindNotFound {
			return ce
		}
		if ctx.Err() != nil {
			return coreerrors.Timeout("tracker request deadline exceeded", ctx.Err())
		}
		return coreerrors.TrackerUnavailable(fmt.Sprintf("tracker request failed: %s %s", method, path), err)
	}
	return nil
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var reqBody []byte
	var err error
	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			return backoff.Permanent(err)
		}
	}

	req, err := newJSONRequest(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err // retryable transport error
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return backoff.Permanent(coreerrors.NotFound("work item not found", nil))
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("tracker returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("tracker returned %d", resp.StatusCode))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// GetWorkItem implements Client.
func (c *HTTPClient) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	var item WorkItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/workitems/%d", id), nil, &item); err != nil {
		if ce, ok := err.(*coreerrors.CoreError); ok && ce.Kind == coreerrors.KindNotFound {
			return nil, ce
		}
		return nil, err
	}
	return &item, nil
}

// GetWorkItemsBatch implements Client.
func (c *HTTPClient) GetWorkItemsBatch(ctx context.Context, ids []int) ([]*WorkItem, error) {
	if len(ids) > MaxBatchSize {
		return nil, coreerrors.Internal(fmt.Sprintf("batch of %d exceeds max %d", len(ids), MaxBatchSize), nil)
	}
	var items []*WorkItem
	if err := c.do(ctx, http.MethodPost, "/workitems/batch", map[string]any{"ids": ids}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// QueryByStructuredQuery implements Client.
func (c *HTTPClient) QueryByStructuredQuery(ctx context.Context, query StructuredQuery) ([]QueryResultRef, error) {
	var refs []QueryResultRef
	if err := c.do(ctx, http.MethodPost, "/wiql", query, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// GetTeams implements Client.
func (c *HTTPClient) GetTeams(ctx context.Context, project string) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%s/teams", project), nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

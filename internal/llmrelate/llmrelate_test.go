package llmrelate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_ReturnsConfiguredEdge(t *testing.T) {
	fake := NewFake()
	fake.Edges["1:2"] = RelationshipEdge{SeedID: 1, OtherID: 2, Type: RelationshipDuplicate, Confidence: 0.9, OK: true}

	edges, err := fake.Infer(context.Background(), []Pair{{SeedID: 1, OtherID: 2}}, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, RelationshipDuplicate, edges[0].Type)
	assert.True(t, edges[0].OK)
}

func TestFake_UnknownPairYieldsNotOK(t *testing.T) {
	fake := NewFake()
	edges, err := fake.Infer(context.Background(), []Pair{{SeedID: 1, OtherID: 99}}, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].OK)
	assert.Equal(t, RelationshipUnknown, edges[0].Type)
}

func TestFake_ErrPropagates(t *testing.T) {
	fake := NewFake()
	fake.Err = assertErr("inference backend down")
	_, err := fake.Infer(context.Background(), []Pair{{SeedID: 1, OtherID: 2}}, time.Now().Add(time.Second))
	assert.Error(t, err)
}

func TestHTTPClient_InfersEachPairIndependently(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req inferRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := inferResponse{Type: string(RelationshipRelatesTo), Confidence: 0.5}
		if req.OtherID == 2 {
			resp = inferResponse{Type: string(RelationshipDuplicate), Confidence: 0.95}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(DefaultHTTPClientConfig(server.URL, "test-model"), nil)
	pairs := []Pair{
		{SeedID: 1, OtherID: 2, SeedText: "a", OtherText: "b"},
		{SeedID: 1, OtherID: 3, SeedText: "a", OtherText: "c"},
	}
	edges, err := client.Infer(context.Background(), pairs, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, RelationshipDuplicate, edges[0].Type)
	assert.Equal(t, RelationshipRelatesTo, edges[1].Type)
	assert.True(t, edges[0].OK)
	assert.True(t, edges[1].OK)
}

func TestHTTPClient_ServerErrorYieldsNotOKEdgeNotBatchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultHTTPClientConfig(server.URL, "test-model")
	cfg.MaxRetries = 0
	client := NewHTTPClient(cfg, nil)

	edges, err := client.Infer(context.Background(), []Pair{{SeedID: 1, OtherID: 2}}, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].OK)
}

func TestHTTPClient_EmptyPairsReturnsNil(t *testing.T) {
	client := NewHTTPClient(DefaultHTTPClientConfig("http://example.invalid", "m"), nil)
	edges, err := client.Infer(context.Background(), nil, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, edges)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

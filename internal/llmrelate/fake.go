package llmrelate

import (
	"context"
	"strconv"
	"time"
)

// Fake is a deterministic in-memory Inferrer for tests. Edges, keyed by
// "seedID:otherID", are returned verbatim; pairs with no matching entry
// yield an OK=false edge.
type Fake struct {
	Edges map[string]RelationshipEdge
	Err   error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{Edges: make(map[string]RelationshipEdge)}
}

func pairKey(seedID, otherID int) string {
	return strconv.Itoa(seedID) + ":" + strconv.Itoa(otherID)
}

// Infer implements Inferrer.
func (f *Fake) Infer(_ context.Context, pairs []Pair, _ time.Time) ([]RelationshipEdge, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]RelationshipEdge, len(pairs))
	for i, p := range pairs {
		if edge, ok := f.Edges[pairKey(p.SeedID, p.OtherID)]; ok {
			out[i] = edge
			continue
		}
		out[i] = RelationshipEdge{SeedID: p.SeedID, OtherID: p.OtherID, Type: RelationshipUnknown, OK: false}
	}
	return out, nil
}

var _ Inferrer = (*Fake)(nil)
var _ Inferrer = (*HTTPClient)(nil)

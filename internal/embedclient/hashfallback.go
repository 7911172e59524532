package embedclient

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// HashFallback is a deterministic, hash-based embedder used when the real
// provider is unavailable or a batch times out (spec section 4.4 step 3
// and section 9's Open Question: the pipeline always returns *something*,
// never pretending the fallback is semantically meaningful). Two equal
// texts always produce equal vectors, which is what lets the exact-match
// fast path in the Relatedness Engine work even when every embedding came
// from this fallback (spec section 8 scenario A).
type HashFallback struct {
	dimension int
}

// NewHashFallback creates a fallback embedder of the given dimension.
func NewHashFallback(dimension int) *HashFallback {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashFallback{dimension: dimension}
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Embed implements Embedder. Every result is OK=true: the fallback never
// fails.
func (h *HashFallback) Embed(_ context.Context, texts []string, _ time.Time) ([]Result, error) {
	results := make([]Result, len(texts))
	for i, text := range texts {
		results[i] = Result{
			Vector: normalizeVector(h.vectorFor(text)),
			Tokens: len(tokenRegex.FindAllString(text, -1)),
			Model:  h.ModelName(),
			OK:     true,
		}
	}
	return results, nil
}

func (h *HashFallback) vectorFor(text string) []float32 {
	vector := make([]float32, h.dimension)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector
	}

	for _, token := range tokenize(trimmed) {
		idx := hashToIndex(token, h.dimension)
		vector[idx] += tokenWeight
	}

	normalized := normalizeForNgrams(trimmed)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		idx := hashToIndex(ngram, h.dimension)
		vector[idx] += ngramWeight
	}
	return vector
}

// Dimensions implements Embedder.
func (h *HashFallback) Dimensions() int { return h.dimension }

// ModelName implements Embedder.
func (h *HashFallback) ModelName() string { return "content-hash-fallback" }

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCamelAndSnake(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCamelAndSnake(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamelCase(part)...)
			}
		}
		return out
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

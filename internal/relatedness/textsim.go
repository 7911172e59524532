package relatedness

import (
	"strings"

	"github.com/Aman-CERP/relatedness-core/internal/phrase"
)

// meaningfulTitleTokens lowercases title, splits on non-alphanumeric runs,
// drops stop words and tokens of length <= 2 (spec section 4.5's "title
// similarity is Jaccard over meaningful tokens (length > 2, stop-words
// dropped)").
func meaningfulTitleTokens(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	}) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := phrase.DefaultStopWords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// titleSimilarity computes the Jaccard title-similarity rule from spec
// section 4.5: an exact normalized match is 1.0; otherwise Jaccard over
// meaningful tokens, boosted 1.2x (clipped to 1.0) when >= 5 tokens are
// shared.
func titleSimilarity(a, b string) float64 {
	normA := strings.TrimSpace(strings.ToLower(a))
	normB := strings.TrimSpace(strings.ToLower(b))
	if normA != "" && normA == normB {
		return 1.0
	}

	tokensA := meaningfulTitleTokens(a)
	tokensB := meaningfulTitleTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	shared := 0
	for t := range tokensA {
		if _, ok := tokensB[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}

	union := len(tokensA) + len(tokensB) - shared
	sim := float64(shared) / float64(union)
	if shared >= 5 {
		sim *= 1.2
	}
	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}

// stem applies spec section 4.5's fixed crude suffix stripper: words > 3
// chars ending "ing" drop 3 chars, ending "ed" drop 2, ending "s" (when
// the word is > 4 chars) drop 1; everything else is unchanged. This is a
// deliberate, deterministic substitute for a real stemmer so scoring
// matches the spec's worked examples exactly.
func stem(word string) string {
	if len(word) > 3 && strings.HasSuffix(word, "ing") {
		return word[:len(word)-3]
	}
	if len(word) > 3 && strings.HasSuffix(word, "ed") {
		return word[:len(word)-2]
	}
	if len(word) > 4 && strings.HasSuffix(word, "s") {
		return word[:len(word)-1]
	}
	return word
}

// stemmedWordOverlap tokenizes a and b into meaningful words, stems each,
// and returns the count of stems shared between the two sets (spec
// section 4.5's description/title stemmed-overlap rules).
func stemmedWordOverlap(a, b string) int {
	setA := stemmedSet(a)
	setB := stemmedSet(b)
	count := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			count++
		}
	}
	return count
}

func stemmedSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for tok := range meaningfulTitleTokens(text) {
		out[stem(tok)] = struct{}{}
	}
	return out
}

// jaccardAreaPath computes Jaccard similarity over two sets of backslash-split
// area-path segments (spec section 4.5's "area-path Jaccard
// (backslash-split)" rule).
func jaccardAreaPath(a, b string) float64 {
	setA := splitAreaPath(a)
	setB := splitAreaPath(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func splitAreaPath(path string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, seg := range strings.Split(path, `\`) {
		if seg != "" {
			out[seg] = struct{}{}
		}
	}
	return out
}

// tagOverlapCount counts shared tags between two semicolon-separated tag
// multisets (spec section 4.5's "tag overlap count" rule), treating tags
// case-insensitively and ignoring duplicates.
func tagOverlapCount(a, b string) int {
	setA := splitTags(a)
	setB := splitTags(b)
	count := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			count++
		}
	}
	return count
}

func splitTags(tags string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Split(tags, ";") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// Package phrase implements the Phrase Extractor (C1): turning a work item
// title into an ordered, de-duplicated sequence of multi-word phrases used
// to drive keyword retrieval in the Candidate Fetcher.
package phrase

import (
	"regexp"
	"strings"
)

// MaxPhrases caps the number of phrases Extract returns.
const MaxPhrases = 12

// MinTitleLength is the shortest title Extract will consider; titles at or
// below this length produce no phrases.
const MinTitleLength = 4

var tokenRegex = regexp.MustCompile(`[A-Za-z0-9_]+`)

// DefaultStopWords is the fixed English stop-word set named in spec
// section 4.1. Implementers may extend it; the set below is the floor.
var DefaultStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "must": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
	"me": {}, "him": {}, "her": {}, "us": {}, "them": {},
	"my": {}, "your": {}, "his": {}, "its": {}, "our": {}, "their": {},
}

// Extractor turns titles into phrases. The zero value uses
// DefaultStopWords; construct via New to extend the stop-word set.
type Extractor struct {
	stopWords map[string]struct{}
}

// New creates an Extractor with DefaultStopWords plus any extra words
// supplied by the caller.
func New(extra ...string) *Extractor {
	words := make(map[string]struct{}, len(DefaultStopWords)+len(extra))
	for w := range DefaultStopWords {
		words[w] = struct{}{}
	}
	for _, w := range extra {
		words[strings.ToLower(w)] = struct{}{}
	}
	return &Extractor{stopWords: words}
}

// Extract returns ordered, de-duplicated phrases of n meaningful words
// from title, falling back to n-1 (down to 2) when no phrase of length n
// exists, per spec section 4.1. Empty or very short titles yield nil.
func (e *Extractor) Extract(title string, n int) []string {
	if e == nil || e.stopWords == nil {
		e = New()
	}
	if len(strings.TrimSpace(title)) <= MinTitleLength {
		return nil
	}
	if n < 2 {
		n = 2
	}

	tokens := e.meaningfulTokens(title)

	for length := n; length >= 2; length-- {
		phrases := windows(tokens, length)
		if len(phrases) > 0 {
			return cap12(phrases)
		}
	}
	return nil
}

// Extract is a package-level convenience using DefaultStopWords.
func Extract(title string, n int) []string {
	return New().Extract(title, n)
}

func (e *Extractor) meaningfulTokens(title string) []string {
	raw := tokenRegex.FindAllString(strings.ToLower(title), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) <= 2 {
			continue
		}
		if _, stop := e.stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// windows forms every consecutive window of length n over tokens,
// discards windows containing a duplicate token, and returns the
// de-duplicated phrase strings in first-occurrence order.
func windows(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string

	for i := 0; i+n <= len(tokens); i++ {
		window := tokens[i : i+n]
		if hasDuplicate(window) {
			continue
		}
		phrase := strings.Join(window, " ")
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

func hasDuplicate(window []string) bool {
	seen := make(map[string]struct{}, len(window))
	for _, w := range window {
		if _, ok := seen[w]; ok {
			return true
		}
		seen[w] = struct{}{}
	}
	return false
}

func cap12(phrases []string) []string {
	if len(phrases) > MaxPhrases {
		return phrases[:MaxPhrases]
	}
	return phrases
}

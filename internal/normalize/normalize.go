// Package normalize implements the Text Normalizer (C3): it collapses one
// WorkItem's structured fields into a single canonical text suitable for
// embedding, stripping markup, code, URLs, and boilerplate along the way
// (spec section 4.3).
package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/relatedness-core/internal/tracker"
)

// Config controls the normalizer's pipeline knobs (spec section 4.3,
// step numbers noted inline).
type Config struct {
	MinLen        int  // step 2 and 11
	MaxLen        int  // step 10
	RemoveHTML    bool // step 3
	RemoveMarkdown bool // step 4
}

// DefaultConfig matches spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinLen:         10,
		MaxLen:         8000,
		RemoveHTML:     true,
		RemoveMarkdown: true,
	}
}

// CanonicalText is the normalizer's output for one work item: Skip is true
// when the item produced no usable text at any gating step.
type CanonicalText struct {
	Text string
	Skip bool
}

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	inlineBacktick  = regexp.MustCompile("`[^`]*`")
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	emailPattern    = regexp.MustCompile(`[[:alnum:]._%+\-]+@[[:alnum:].\-]+\.[[:alpha:]]{2,}`)
	whitespaceRun   = regexp.MustCompile(`\s+`)

	// boilerplatePatterns strips the fixed set of user-story/section-label
	// phrases named in spec section 4.3 step 8. Matching is case
	// insensitive and anchored to the start of a line so body prose
	// containing these words incidentally is left alone.
	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*as an?\s+.+?,\s*i want\s+.+?(,\s*so that\s+.+)?$`),
		regexp.MustCompile(`(?im)^\s*given\s+.+$`),
		regexp.MustCompile(`(?im)^\s*when\s+.+$`),
		regexp.MustCompile(`(?im)^\s*then\s+.+$`),
		regexp.MustCompile(`(?im)^\s*acceptance criteria\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*definition of done\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*user story\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*bug\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*epic\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*feature\s*:?\s*$`),
		regexp.MustCompile(`(?im)^\s*task\s*:?\s*$`),
	}
)

// Normalizer implements C3's pipeline end to end.
type Normalizer struct {
	cfg Config
}

// New builds a Normalizer from cfg.
func New(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize runs the full pipeline on one work item (spec section 4.3).
func (n *Normalizer) Normalize(item *tracker.WorkItem) CanonicalText {
	assembled := assembleFields(item)
	if len(assembled) < n.cfg.MinLen {
		return CanonicalText{Skip: true}
	}

	text := assembled
	if n.cfg.RemoveHTML {
		text = stripHTML(text)
	}
	if n.cfg.RemoveMarkdown {
		text = renderMarkdownToText(text)
	}

	text = fencedCodeBlock.ReplaceAllString(text, " ")
	text = inlineBacktick.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = stripBoilerplate(text)

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = norm.NFKC.String(text)
	text = strings.TrimSpace(text)

	if len(text) > n.cfg.MaxLen {
		text = truncateRunes(text, n.cfg.MaxLen)
	}

	if len(text) < n.cfg.MinLen {
		return CanonicalText{Skip: true}
	}
	return CanonicalText{Text: text}
}

// assembleFields concatenates the non-empty fields in priority order,
// separated by blank lines (spec section 4.3 step 1).
func assembleFields(item *tracker.WorkItem) string {
	fields := []string{
		item.Title,
		item.Description,
		item.AcceptanceCriteria,
		item.ReproSteps,
		item.BusinessValue,
		item.WorkItemType,
		item.AreaPath,
		item.Tags,
		item.IterationPath,
		item.State,
	}
	var parts []string
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "\n\n")
}

// stripHTML parses text as HTML and returns its extracted, entity-decoded
// text content (spec section 4.3 step 3), grounded on the teacher pack's
// goquery usage for HTML text extraction.
func stripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// renderMarkdownToText renders markdown to HTML and then extracts its text
// content (spec section 4.3 step 4).
func renderMarkdownToText(text string) string {
	extensions := parser.CommonExtensions
	mdParser := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.ToHTML([]byte(text), mdParser, renderer)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(rendered)))
	if err != nil {
		return text
	}
	return doc.Text()
}

func stripBoilerplate(text string) string {
	for _, p := range boilerplatePatterns {
		text = p.ReplaceAllString(text, " ")
	}
	return text
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Package chunker splits extracted document text into overlapping
// retrievable units under a selectable strategy. Chunking is fully
// deterministic: the same text, strategy and parameters always produce
// the same chunk boundaries.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/logger"
)

// Strategy selects the chunking algorithm.
type Strategy string

const (
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyFixedSize Strategy = "fixed_size"
	StrategySection   Strategy = "section"

	// StrategySemantic is declared for API compatibility but falls back
	// to paragraph behaviour. This is a documented simplification, not a
	// missing feature.
	StrategySemantic Strategy = "semantic"
)

// ParseStrategy maps a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategySentence, StrategyParagraph, StrategyFixedSize, StrategySection, StrategySemantic:
		return Strategy(name), nil
	case "":
		return StrategyParagraph, nil
	}
	return "", fmt.Errorf("%w: unknown chunking strategy %q", domain.ErrValidation, name)
}

// Default parameters per strategy.
const (
	// DefaultChunkSize is the character budget for paragraph and
	// fixed_size chunks.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the character overlap for paragraph and
	// fixed_size chunks.
	DefaultChunkOverlap = 200

	// DefaultSentencesPerChunk is the sentence group size for the
	// sentence strategy.
	DefaultSentencesPerChunk = 3

	// DefaultSentenceOverlap is the sentence overlap between consecutive
	// chunks for the sentence strategy.
	DefaultSentenceOverlap = 1
)

// Chunker splits text according to one strategy and fixed parameters.
type Chunker struct {
	strategy Strategy
	size     int
	overlap  int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSize sets the chunk size. Characters for paragraph and fixed_size,
// sentences per chunk for sentence.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks. Characters for
// paragraph and fixed_size, sentences for sentence.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker for the given strategy.
func New(strategy Strategy, opts ...Option) *Chunker {
	c := &Chunker{strategy: strategy}

	switch strategy {
	case StrategySentence:
		c.size = DefaultSentencesPerChunk
		c.overlap = DefaultSentenceOverlap
	default:
		c.size = DefaultChunkSize
		c.overlap = DefaultChunkOverlap
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must stay below the window size.
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Strategy returns the configured strategy.
func (c *Chunker) Strategy() Strategy {
	return c.strategy
}

// span is a half-open rune range [start, end) within the source text.
type span struct {
	start int
	end   int
}

// Chunk splits text into chunks owned by documentID.
// Input that is empty after trimming yields zero chunks and no error;
// the caller decides whether that is a problem.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)

	var spans []span
	switch c.strategy {
	case StrategySentence:
		spans = c.sentenceSpans(runes)
	case StrategyFixedSize:
		spans = c.fixedSpans(runes)
	case StrategySection:
		spans = sectionSpans(runes)
	case StrategySemantic:
		logger.Warn("Semantic chunking not implemented, falling back to paragraph strategy")
		spans = c.paragraphSpans(runes)
	default:
		spans = c.paragraphSpans(runes)
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, sp := range spans {
		content := string(runes[sp.start:sp.end])
		if strings.TrimSpace(content) == "" {
			continue
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Content:    content,
			Position:   len(chunks),
			Start:      sp.start,
			End:        sp.end,
			Type:       detectChunkType(content),
			Signals:    detectSignals(content),
		})
	}

	logger.Debug("Chunked %d runes into %d chunks (strategy=%s, size=%d, overlap=%d)",
		len(runes), len(chunks), c.strategy, c.size, c.overlap)

	return chunks
}

// sentenceSpans groups sentences N at a time with M sentences of overlap.
func (c *Chunker) sentenceSpans(runes []rune) []span {
	sentences := sentenceBoundaries(runes)
	if len(sentences) == 0 {
		return nil
	}

	n := c.size
	m := c.overlap
	step := n - m
	if step <= 0 {
		step = 1
	}

	var spans []span
	for start := 0; start < len(sentences); start += step {
		end := start + n
		if end > len(sentences) {
			end = len(sentences)
		}
		spans = append(spans, span{
			start: sentences[start].start,
			end:   sentences[end-1].end,
		})
		if end == len(sentences) {
			break
		}
	}
	return spans
}

// sentenceBoundaries locates sentence spans. A sentence ends at '.', '!'
// or '?' followed by whitespace or end of text, or at a newline.
func sentenceBoundaries(runes []rune) []span {
	var spans []span
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		terminal := r == '\n' ||
			((r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])))
		if !terminal && i+1 < len(runes) {
			continue
		}

		end := i + 1
		if hasText(runes[start:end]) {
			spans = append(spans, span{start: start, end: end})
		}
		start = end
	}
	return spans
}

// paragraphSpans accumulates blank-line-separated paragraphs into chunks
// of at most size runes, seeding each chunk after the first with the
// trailing overlap runes of its predecessor.
func (c *Chunker) paragraphSpans(runes []rune) []span {
	paragraphs := paragraphBoundaries(runes)
	if len(paragraphs) == 0 {
		return nil
	}

	var spans []span
	cur := span{start: paragraphs[0].start, end: paragraphs[0].end}

	for _, p := range paragraphs[1:] {
		// Would adding this paragraph push the chunk past the budget?
		if p.end-cur.start > c.size && cur.end > cur.start {
			spans = append(spans, cur)
			start := p.start
			if c.overlap > 0 {
				seeded := cur.end - c.overlap
				if seeded > cur.start && seeded < start {
					start = seeded
				}
			}
			cur = span{start: start, end: p.end}
			continue
		}
		cur.end = p.end
	}
	spans = append(spans, cur)
	return spans
}

// paragraphBoundaries locates spans separated by blank lines.
func paragraphBoundaries(runes []rune) []span {
	text := string(runes)
	var spans []span
	offset := 0

	for _, part := range strings.Split(text, "\n\n") {
		partRunes := len([]rune(part))
		if hasText([]rune(part)) {
			spans = append(spans, span{start: offset, end: offset + partRunes})
		}
		offset += partRunes + 2 // account for the separator
	}
	return spans
}

// fixedSpans slides a fixed rune window across the text with a stride of
// size minus overlap. The final partial window is included if non-empty.
func (c *Chunker) fixedSpans(runes []rune) []span {
	step := c.size - c.overlap
	if step <= 0 {
		step = c.size
	}

	var spans []span
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, span{start: start, end: end})
		if end == len(runes) {
			break
		}
	}
	return spans
}

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)
)

// sectionSpans splits on heading-like markers: markdown headings,
// numbered headings and short all-caps label lines. The heading line
// opens its section.
func sectionSpans(runes []rune) []span {
	lines := strings.Split(string(runes), "\n")

	var spans []span
	offset := 0
	sectionStart := 0
	seen := false

	for _, line := range lines {
		lineRunes := len([]rune(line))
		if isHeadingLine(line) && seen {
			spans = append(spans, span{start: sectionStart, end: offset})
			sectionStart = offset
		}
		if hasText([]rune(line)) {
			seen = true
		}
		offset += lineRunes + 1
	}

	end := len(runes)
	if sectionStart < end {
		spans = append(spans, span{start: sectionStart, end: end})
	}
	return spans
}

// isHeadingLine reports whether a line looks like a section heading.
func isHeadingLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if markdownHeading.MatchString(trimmed) || numberedHeading.MatchString(trimmed) {
		return true
	}
	return isAllCapsLabel(trimmed)
}

// isAllCapsLabel matches short lines consisting entirely of upper-case
// letters, digits and punctuation, e.g. "PRICING OVERVIEW".
func isAllCapsLabel(s string) bool {
	if len([]rune(s)) > 60 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// hasText reports whether the runes contain any non-space character.
func hasText(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

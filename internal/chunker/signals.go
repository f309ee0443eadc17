package chunker

import (
	"regexp"
	"strings"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// Relevance weights for the domain signal score. The score is a weighted
// sum of the boolean signals plus a per-term bonus, capped at 1.0.
const (
	pricingWeight    = 0.4
	productWeight    = 0.3
	competitorWeight = 0.2
	salesTermWeight  = 0.1
)

// pricingPattern matches currency amounts and pricing vocabulary.
var pricingPattern = regexp.MustCompile(
	`(?i)([$€£]\s?\d)|(\d[\d.,]*\s?(usd|eur|gbp))|(\bprice\b|\bpricing\b|\bcost\b|\bdiscount\b|\bper (month|year|seat|user)\b|/mo\b|/yr\b)`,
)

// productKeywords marks chunks describing the product itself.
var productKeywords = []string{
	"product", "plan", "tier", "feature", "license", "subscription",
	"package", "edition", "sku", "bundle",
}

// competitorKeywords marks chunks comparing against competitors.
var competitorKeywords = []string{
	"competitor", "alternative", "versus", "vs.", "compared to",
	"switch from", "migration from",
}

// salesTerms each add a small bonus to the relevance score.
var salesTerms = []string{
	"deal", "quote", "proposal", "contract", "renewal", "upsell",
	"objection", "demo", "trial", "onboarding", "negotiation", "close",
}

// detectSignals runs the independent keyword and pattern passes over a
// chunk's content and combines them into ChunkSignals.
func detectSignals(content string) domain.ChunkSignals {
	lower := strings.ToLower(content)

	s := domain.ChunkSignals{
		HasPricing:    pricingPattern.MatchString(content),
		HasProduct:    containsAny(lower, productKeywords),
		HasCompetitor: containsAny(lower, competitorKeywords),
	}

	score := 0.0
	if s.HasPricing {
		score += pricingWeight
	}
	if s.HasProduct {
		score += productWeight
	}
	if s.HasCompetitor {
		score += competitorWeight
	}
	for _, term := range salesTerms {
		if strings.Contains(lower, term) {
			score += salesTermWeight
		}
		if score >= 1.0 {
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	s.Relevance = score
	return s
}

// detectChunkType infers the structural type of a chunk from exact
// textual patterns: delimiters for tables, leading bullets or numerals
// for lists, a short all-caps line for headings, otherwise text.
func detectChunkType(content string) domain.ChunkType {
	trimmed := strings.TrimSpace(content)

	if looksLikeTable(trimmed) {
		return domain.ChunkTypeTable
	}
	if looksLikeList(trimmed) {
		return domain.ChunkTypeList
	}
	if isSingleLine(trimmed) && isAllCapsLabel(trimmed) {
		return domain.ChunkTypeHeading
	}
	return domain.ChunkTypeText
}

// looksLikeTable detects tab- or pipe-delimited rows.
func looksLikeTable(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.Count(line, "\t") >= 2 || strings.Count(line, "|") >= 2 {
			return true
		}
	}
	return false
}

var listMarker = regexp.MustCompile(`^(\s*)([-*•]|\d+[.)])\s+`)

// looksLikeList detects a leading bullet or numeral on the first line.
func looksLikeList(s string) bool {
	line, _, _ := strings.Cut(s, "\n")
	return listMarker.MatchString(line)
}

func isSingleLine(s string) bool {
	return !strings.ContainsRune(s, '\n')
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

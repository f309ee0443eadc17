// Package html extracts readable text from HTML documents.
package html

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor strips markup from HTML and XHTML content.
type Extractor struct{}

// New creates an HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supports reports whether the extractor handles the content type.
func (e *Extractor) Supports(contentType string) bool {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(strings.ToLower(base)) {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// Extract returns the readable text of an HTML document with markup
// removed and block structure preserved as line breaks.
func (e *Extractor) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	if !e.Supports(contentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtractionFailed, contentType)
	}

	text := stripHTML(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: no readable text in document", domain.ErrExtractionFailed)
	}
	return text, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	// Remove non-content elements entirely.
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	// Turn block boundaries into newlines so paragraph chunking works.
	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	// Strip all remaining tags and decode entities.
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	// Collapse multiple spaces (but preserve newlines).
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	// Trim each line and remove empty lines.
	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

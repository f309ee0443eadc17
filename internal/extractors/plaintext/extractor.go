// Package plaintext extracts text from plain-text and markdown files.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// supportedTypes maps the content types this extractor accepts.
var supportedTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
	"":              true, // unspecified defaults to plain text
}

// Extractor handles text-native formats: the bytes are the text. It
// rejects binary content rather than producing garbage chunks.
type Extractor struct{}

// New creates a plaintext extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the decoded text of data.
func (e *Extractor) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	if !e.Supports(contentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtractionFailed, contentType)
	}

	// Strip a UTF-8 BOM if present.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrExtractionFailed)
	}
	if bytes.ContainsRune(data, 0) {
		return "", fmt.Errorf("%w: content appears to be binary", domain.ErrExtractionFailed)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no usable text", domain.ErrExtractionFailed)
	}
	return text, nil
}

// Supports reports whether the extractor handles the content type.
func (e *Extractor) Supports(contentType string) bool {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	return supportedTypes[strings.TrimSpace(strings.ToLower(base))]
}

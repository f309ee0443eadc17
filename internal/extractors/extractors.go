// Package extractors combines format-specific text extractors behind a
// single dispatching implementation.
package extractors

import (
	"context"
	"fmt"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Ensure Multi implements the interface.
var _ driven.TextExtractor = (*Multi)(nil)

// Multi dispatches extraction to the first extractor that supports the
// content type. Registration order is the tie-breaker.
type Multi struct {
	extractors []driven.TextExtractor
}

// NewMulti combines extractors into one dispatcher.
func NewMulti(extractors ...driven.TextExtractor) *Multi {
	return &Multi{extractors: extractors}
}

// Supports reports whether any registered extractor handles the type.
func (m *Multi) Supports(contentType string) bool {
	for _, e := range m.extractors {
		if e.Supports(contentType) {
			return true
		}
	}
	return false
}

// Extract runs the first extractor that supports the content type.
func (m *Multi) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	for _, e := range m.extractors {
		if e.Supports(contentType) {
			return e.Extract(ctx, data, contentType)
		}
	}
	return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtractionFailed, contentType)
}

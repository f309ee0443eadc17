package driven

import "context"

// TextExtractor turns raw bytes into plain text for chunking.
// Format support (PDF, Word, HTML, ...) is an extractor concern; the
// pipeline only consumes the output.
type TextExtractor interface {
	// Extract returns the plain text of data. It fails with
	// domain.ErrExtractionFailed when no usable text can be produced.
	Extract(ctx context.Context, data []byte, contentType string) (string, error)

	// Supports reports whether the extractor handles the content type.
	Supports(contentType string) bool
}

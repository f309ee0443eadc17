// Package docx extracts text from Word (DOCX) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

const docxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extractor reads the main document part of a DOCX archive. DOCX files
// are ZIP archives carrying the text in word/document.xml.
type Extractor struct{}

// New creates a DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supports reports whether the extractor handles the content type.
func (e *Extractor) Supports(contentType string) bool {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSpace(strings.ToLower(base)) == docxMIMEType
}

// Extract returns the paragraph text of a DOCX document.
func (e *Extractor) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	if !e.Supports(contentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtractionFailed, contentType)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a valid DOCX archive", domain.ErrExtractionFailed)
	}

	text, err := extractDocumentText(reader)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document contains no text", domain.ErrExtractionFailed)
	}
	return text, nil
}

// extractDocumentText extracts text from word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrExtractionFailed)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrExtractionFailed)
		}

		return parseDocumentXML(content), nil
	}
	return "", fmt.Errorf("%w: archive has no word/document.xml", domain.ErrExtractionFailed)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts paragraph text from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

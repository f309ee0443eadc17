package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driving"
)

var (
	ingestTitle    string
	ingestType     string
	ingestCategory string
	ingestStrategy string
	ingestSize     int
	ingestOverlap  int
	ingestProducts []string
)

// Chunking defaults applied when the ingest flags are not given.
// Wired from configuration by SetChunkDefaults.
var (
	defaultStrategy string
	defaultSize     int
	defaultOverlap  int
)

// SetChunkDefaults sets the chunking behaviour used when the
// corresponding ingest flags are absent.
func SetChunkDefaults(strategy string, size, overlap int) {
	defaultStrategy = strategy
	defaultSize = size
	defaultOverlap = overlap
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document into the index",
	Long: `Reads a file, splits it into chunks, embeds them and makes them
searchable under the current tenant.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (defaults to file name)")
	ingestCmd.Flags().StringVar(&ingestType, "type", "other", "document type (knowledge_base, faq, script, catalog, other)")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "free-form category tag")
	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "", "chunking strategy (sentence, paragraph, fixed_size, section, semantic)")
	ingestCmd.Flags().IntVar(&ingestSize, "chunk-size", 0, "chunk size in characters (0 = default)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 = default)")
	ingestCmd.Flags().StringSliceVar(&ingestProducts, "products", nil, "product ids this document covers")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline not configured")
	}

	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	title := ingestTitle
	if title == "" {
		title = filepath.Base(path)
	}

	strategy := ingestStrategy
	if strategy == "" {
		strategy = defaultStrategy
	}
	size := ingestSize
	if size == 0 {
		size = defaultSize
	}
	overlap := ingestOverlap
	if overlap == 0 {
		overlap = defaultOverlap
	}

	doc, err := pipelineService.Ingest(cmd.Context(), driving.IngestRequest{
		TenantID:     flagTenant,
		Title:        title,
		Raw:          raw,
		ContentType:  contentTypeFor(path),
		Type:         domain.DocumentType(ingestType),
		Category:     ingestCategory,
		Provenance:   domain.ProvenanceUpload,
		Sales:        domain.SalesMetadata{ProductIDs: ingestProducts},
		Strategy:     strategy,
		ChunkSize:    size,
		ChunkOverlap: overlap,
	})
	if err != nil {
		return describeFailure("ingestion", err)
	}

	cmd.Println(successStyle.Render(fmt.Sprintf("Ingested %q as %s", title, doc.ID)))
	return nil
}

// contentTypeFor derives a content type from the file extension,
// defaulting to plain text.
func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case "", ".txt", ".text":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "text/plain"
	}
}

// describeFailure prefixes an error with the failed pipeline stage when
// one is recorded, so the user knows what to retry.
func describeFailure(op string, err error) error {
	if stage, ok := domain.FailedStage(err); ok {
		return fmt.Errorf("%s failed at the %s stage: %w", op, stage, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

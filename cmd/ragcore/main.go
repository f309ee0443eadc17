package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/salesmind/ragcore/internal/adapters/driven/blob/fsblob"
	configfile "github.com/salesmind/ragcore/internal/adapters/driven/config/file"
	ollamaembed "github.com/salesmind/ragcore/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/salesmind/ragcore/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/salesmind/ragcore/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/salesmind/ragcore/internal/adapters/driven/llm/ollama"
	openaillm "github.com/salesmind/ragcore/internal/adapters/driven/llm/openai"
	"github.com/salesmind/ragcore/internal/adapters/driven/storage/sqlite"
	"github.com/salesmind/ragcore/internal/adapters/driven/vector/hnsw"
	"github.com/salesmind/ragcore/internal/adapters/driving/cli"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/core/services"
	"github.com/salesmind/ragcore/internal/extractors"
	"github.com/salesmind/ragcore/internal/extractors/docx"
	htmlextract "github.com/salesmind/ragcore/internal/extractors/html"
	"github.com/salesmind/ragcore/internal/extractors/plaintext"
	"github.com/salesmind/ragcore/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for API keys; absence is not an error.
	_ = godotenv.Load()

	cfg, err := configfile.Load(os.Getenv("RAGCORE_CONFIG_DIR"))
	if err != nil {
		return err
	}

	embedProvider, err := buildEmbeddingProvider(cfg.Embedding)
	if err != nil {
		return err
	}
	defer embedProvider.Close()

	llmProvider, err := buildLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}

	index, err := hnsw.New(hnsw.Config{
		Dimension:           embedProvider.Dimensions(),
		M:                   cfg.Index.M,
		EFConstruction:      cfg.Index.EFConstruction,
		EFSearch:            cfg.Index.EFSearch,
		BruteForceThreshold: cfg.Index.BruteForceThreshold,
	})
	if err != nil {
		return err
	}
	defer index.Close()

	docStore, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer docStore.Close()

	blobs, err := fsblob.NewStore(blobDir(cfg.DataDir))
	if err != nil {
		return err
	}

	embedder := services.NewBatchEmbedder(embedProvider,
		services.WithBatchSize(cfg.Embedding.BatchSize))
	retriever := services.NewRetriever(embedder, index, docStore)
	if cfg.Index.ScoreThreshold > 0 {
		retriever.SetThreshold(cfg.Index.ScoreThreshold)
	}
	generator := services.NewGenerator(llmProvider)

	pipeline := services.NewPipeline(embedder, retriever, generator, index, docStore,
		services.WithBlobStore(blobs),
		services.WithExtractor(extractors.NewMulti(
			plaintext.New(),
			htmlextract.New(),
			docx.New(),
		)),
	)

	if err := rebuildIndex(context.Background(), docStore, index); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	cli.Setup(pipeline)
	cli.SetChunkDefaults(cfg.Chunking.Strategy, cfg.Chunking.Size, cfg.Chunking.Overlap)
	return cli.Execute()
}

func buildEmbeddingProvider(cfg configfile.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func buildLLMProvider(cfg configfile.LLMConfig) (driven.LLMService, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  os.Getenv(cfg.APIKeyEnv),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "anthropic":
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  os.Getenv(cfg.APIKeyEnv),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "ollama":
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// rebuildIndex loads every indexed document's chunks back into the
// in-memory vector index. Documents whose ingestion never reached the
// index stage are skipped; re-ingesting them repairs the gap.
func rebuildIndex(ctx context.Context, store *sqlite.Store, index driven.VectorIndex) error {
	tenants, err := store.ListTenants(ctx)
	if err != nil {
		return err
	}

	for _, tenant := range tenants {
		docs, err := store.ListDocuments(ctx, tenant)
		if err != nil {
			return err
		}
		for i := range docs {
			doc := &docs[i]
			if !doc.Indexed {
				continue
			}
			chunks, err := store.GetChunks(ctx, tenant, doc.ID)
			if err != nil {
				return err
			}
			if err := index.Index(ctx, tenant, doc, chunks); err != nil {
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
		}
		logger.Debug("Rebuilt index for tenant %s (%d documents)", tenant, len(docs))
	}
	return nil
}

func blobDir(dataDir string) string {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "blobs"
		}
		return filepath.Join(home, ".ragcore", "data", "blobs")
	}
	return filepath.Join(dataDir, "blobs")
}

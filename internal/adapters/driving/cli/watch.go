package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driving"
	"github.com/salesmind/ragcore/internal/logger"
)

var (
	watchType     string
	watchCategory string
	watchSettle   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and ingest files as they appear",
	Long: `Watches a directory and ingests every file that is created or
modified in it. Writes are debounced so partially written files are
picked up once they settle. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchType, "type", "other", "document type for ingested files")
	watchCmd.Flags().StringVar(&watchCategory, "category", "", "category tag for ingested files")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline not configured")
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("watch target must be a directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	cmd.Printf("Watching %s (tenant %s), press Ctrl-C to stop\n", dir, flagTenant)
	return watchLoop(cmd.Context(), watcher)
}

// watchLoop ingests files after their events go quiet for the settle
// period. A single timer map keyed by path coalesces rapid writes.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher) error {
	pending := make(map[string]*time.Timer)
	ready := make(chan string)

	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Reset(watchSettle)
				continue
			}
			pending[path] = time.AfterFunc(watchSettle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			ingestWatched(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error: %v", err)
		}
	}
}

func ingestWatched(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read %s: %v", path, err)
		return
	}

	doc, err := pipelineService.Ingest(ctx, driving.IngestRequest{
		TenantID:    flagTenant,
		Title:       filepath.Base(path),
		Raw:         raw,
		ContentType: contentTypeFor(path),
		Type:        domain.DocumentType(watchType),
		Category:    watchCategory,
		Provenance:  domain.ProvenanceUpload,
	})
	if err != nil {
		if errors.Is(err, domain.ErrIngestInProgress) {
			logger.Debug("skipping %s: ingest already in progress", path)
			return
		}
		logger.Error("failed to ingest %s: %v", path, err)
		return
	}

	logger.Info("ingested %s as %s", path, doc.ID)
}

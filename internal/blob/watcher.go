package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
)

const defaultDebounce = 5 * time.Second

// Watcher monitors the blob root and triggers a process-new-only sweep for a
// site shortly after files land in its folder. Bursts of writes collapse into
// one sweep per debounce window.
type Watcher struct {
	root     string
	ingester domain.IngestionManager
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

func NewWatcher(root string, ingester domain.IngestionManager) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     root,
		ingester: ingester,
		watcher:  w,
		debounce: defaultDebounce,
	}, nil
}

// Start registers the root and every existing site folder, then consumes
// events until the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.watcher.Add(filepath.Join(w.root, entry.Name())); err != nil {
				log.Warn().Err(err).Str("dir", entry.Name()).Msg("Failed to watch site folder")
			}
		}
	}

	go w.loop(ctx)

	return nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	pending := make(map[string]struct{})
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// A new site folder appeared; watch it too.
					if err := w.watcher.Add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch site folder")
					}
					continue
				}
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			siteID := w.siteForPath(event.Name)
			if siteID == "" || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			pending[siteID] = struct{}{}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

		case <-ticker.C:
			for siteID := range pending {
				delete(pending, siteID)

				result, err := w.ingester.ProcessNewOnly(ctx, siteID)
				if err != nil {
					log.Error().Err(err).Str("site_id", siteID).Msg("Watched folder sweep failed")
					continue
				}

				if result.TotalFiles > 0 {
					log.Info().
						Str("site_id", siteID).
						Int("total", result.TotalFiles).
						Int("successful", result.Successful).
						Int("skipped", result.Skipped).
						Int("failed", result.Failed).
						Msg("Watched folder sweep completed")
				}
			}
		}
	}
}

// siteForPath maps an event path to the site folder directly under the root.
func (w *Watcher) siteForPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return ""
	}

	return parts[0]
}

package catalog

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"flomentum/domain/biomarker"
)

// debounce absorbs editor write bursts before reloading
const debounce = 500 * time.Millisecond

// Watcher hot-reloads the catalog when its directory changes. A failed
// reload keeps the previous snapshot; normalisation never observes a
// half-written catalog.
type Watcher struct {
	dir     string
	catalog *biomarker.Catalog
	log     zerolog.Logger
}

// NewWatcher creates a watcher for an already-loaded catalog
func NewWatcher(dir string, catalog *biomarker.Catalog, log zerolog.Logger) *Watcher {
	return &Watcher{dir: dir, catalog: catalog, log: log}
}

// Run watches until the context is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.dir).Msg("catalog watcher started")

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("catalog watcher error")
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	snap, err := Load(w.dir)
	if err != nil {
		w.log.Error().Err(err).Msg("catalog reload failed, keeping previous snapshot")
		return
	}
	if snap.Version() == w.catalog.Snapshot().Version() {
		return
	}
	w.catalog.Swap(snap)
	w.log.Info().
		Str("version", snap.Version().String()).
		Int("biomarkers", snap.Len()).
		Msg("catalog reloaded")
}

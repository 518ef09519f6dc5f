// Package watcher reapplies a file-backed input when the file changes.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	log      zerolog.Logger
}

// New creates a new file watcher
func New(path string, onChange func(), log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      log,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch the directory so replaced files (editor renames) are seen
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}

	w.log.Info().Str("path", w.path).Msg("Watching file for changes")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		w.log.Info().Str("path", w.path).Msg("File changed")
		w.onChange()
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("path", w.path).Msg("Watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

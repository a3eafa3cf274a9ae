package brokerd

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/logger"
)

// StalenessWatcher watches the policy and secret files. Rules are loaded
// once and never hot-reloaded; a change only flags the running service as
// stale so operators know a restart is due. The flag is surfaced in logs
// and in the audit meta table, where `pfortner status` reads it.
type StalenessWatcher struct {
	watcher *fsnotify.Watcher
	store   *audit.Store
	watched map[string]struct{}
	stale   atomic.Bool
	done    chan struct{}
}

// MetaKeyPolicyStale is the audit meta key carrying the staleness marker.
const MetaKeyPolicyStale = "policy_stale_since"

// NewStalenessWatcher watches the given files (empty paths are skipped).
func NewStalenessWatcher(store *audit.Store, paths ...string) (*StalenessWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("brokerd: create watcher: %w", err)
	}

	w := &StalenessWatcher{
		watcher: fw,
		store:   store,
		watched: make(map[string]struct{}),
		done:    make(chan struct{}),
	}

	// A fresh start runs with freshly loaded rules; clear any marker left by
	// the previous instance.
	if store != nil {
		if err := store.SetMeta(MetaKeyPolicyStale, ""); err != nil {
			logger.Warn("cannot clear staleness marker: %v", err)
		}
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		w.watched[abs] = struct{}{}
		// Watch the parent directory so replace-by-rename (the usual way
		// editors and provisioning write files) is still seen.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			logger.Warn("cannot watch %s: %v", abs, err)
		}
	}

	go w.loop()
	return w, nil
}

// Stale reports whether a watched file changed since startup.
func (w *StalenessWatcher) Stale() bool {
	return w.stale.Load()
}

func (w *StalenessWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.watched[abs]; !watched {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.markStale(abs)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("staleness watcher error: %v", err)
		}
	}
}

func (w *StalenessWatcher) markStale(path string) {
	if w.stale.Swap(true) {
		return
	}
	logger.Warn("%s changed on disk; running rules are stale until the service restarts", path)
	if w.store != nil {
		if err := w.store.SetMeta(MetaKeyPolicyStale, time.Now().UTC().Format(time.RFC3339)); err != nil {
			logger.Warn("cannot record staleness marker: %v", err)
		}
	}
}

// Close stops watching.
func (w *StalenessWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

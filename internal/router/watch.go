package router

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates router cache entries when a repository's marker
// directories appear or disappear, so a repo that switches trackers is
// re-detected without a manual clear-cache.
type Watcher struct {
	router  *Router
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a marker watcher bound to the router.
func NewWatcher(r *Router) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{router: r, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// WatchRepo starts watching a repository root for marker changes.
func (w *Watcher) WatchRepo(repoPath string) error {
	return w.watcher.Add(repoPath)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	markerSet := make(map[string]bool)
	for _, d := range MarkerDirs() {
		markerSet[d] = true
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !markerSet[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.router.ClearRepoCache(filepath.Dir(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("router: marker watcher error: %v", err)
		}
	}
}

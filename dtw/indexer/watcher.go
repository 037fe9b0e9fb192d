package indexer

import (
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// watchHub keeps installed indexes current while their roots change on disk.
// One fsnotify watcher serves every root; events are resolved back to their
// root via the indexer's longest-prefix lookup and applied incrementally.
type watchHub struct {
	ix  *Indexer
	fsw *fsnotify.Watcher

	mu       sync.Mutex
	rootDirs map[string][]string // root -> watched directories

	done chan struct{}
}

func newWatchHub(ix *Indexer) (*watchHub, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	hub := &watchHub{
		ix:       ix,
		fsw:      fsw,
		rootDirs: make(map[string][]string),
		done:     make(chan struct{}),
	}
	go hub.loop()
	return hub, nil
}

func (h *watchHub) addRoot(root string, dirs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Re-adding after a rebuild replaces the watched set.
	for _, dir := range h.rootDirs[root] {
		h.fsw.Remove(dir)
	}

	watched := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if err := h.fsw.Add(dir); err != nil {
			slog.Debug("Failed to watch directory", "dir", dir, "error", err)
			continue
		}
		watched = append(watched, dir)
	}
	h.rootDirs[root] = watched
}

func (h *watchHub) removeRoot(root string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, dir := range h.rootDirs[root] {
		h.fsw.Remove(dir)
	}
	delete(h.rootDirs, root)
}

func (h *watchHub) close() error {
	close(h.done)
	return h.fsw.Close()
}

func (h *watchHub) loop() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			h.handle(event)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			slog.Debug("Index watcher error", "error", err)
		}
	}
}

func (h *watchHub) handle(event fsnotify.Event) {
	root, ok := h.ix.ContainingRoot(event.Name)
	if !ok {
		return
	}
	idx := h.ix.index(root)
	if idx == nil {
		return
	}

	path := normalizePath(event.Name)

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		idx.removeFile(path)

	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			h.mu.Lock()
			if err := h.fsw.Add(path); err == nil {
				h.rootDirs[root] = append(h.rootDirs[root], path)
			}
			h.mu.Unlock()
			return
		}
		idx.addFile(path, h.ix.readIndexable(path))

	case event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		idx.reindexFile(path, h.ix.readIndexable(path))
	}
}

// Package bridge implements the DevTools workspace file-system bridge: the
// owning delegate that tracks developer-added directories, runs indexing and
// search against them, and persists save/append targets for the front end.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ZanzyTHEbar/devtools-workspace/dtw/config"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/indexer"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/isolation"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/ports"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/prefs"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/sourcegraph/conc/pool"
)

// Bridge is instantiated once per inspected target. All mutable tracker
// state (saved files, active indexing jobs) hangs off this struct; nothing
// is package-global.
type Bridge struct {
	cfg      config.BridgeConfig
	registry *Registry
	store    *prefs.Store
	index    *indexer.Indexer
	picker   ports.Picker
	notifier ports.Notifier
	assert   *assert.AssertHandler

	mu           sync.Mutex
	savedFiles   map[string]string    // logical URL -> local path
	indexingJobs map[int]*indexer.Job // request id -> active job

	// Disk writes run here, one at a time, off the caller's goroutine.
	fileTasks *pool.Pool
}

// New wires a bridge from configuration and its two outward ports. The
// preference store, isolation service, and indexer are owned by the bridge.
func New(cfg *config.Config, notifier ports.Notifier, picker ports.Picker) (*Bridge, error) {
	store, err := prefs.Open(cfg.Bridge.PrefsDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	iso := isolation.NewService()

	return &Bridge{
		cfg:          cfg.Bridge,
		registry:     NewRegistry(store, iso, cfg.Bridge.Origin, cfg.Bridge.RendererID),
		store:        store,
		index:        indexer.New(cfg.Indexer),
		picker:       picker,
		notifier:     notifier,
		assert:       assert.NewAssertHandler(),
		savedFiles:   make(map[string]string),
		indexingJobs: make(map[int]*indexer.Job),
		fileTasks:    pool.New().WithMaxGoroutines(1),
	}, nil
}

// Registry exposes the path registry for direct queries.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// RequestFileSystems re-registers every persisted workspace directory and
// reports them to the front end in a single fileSystemsLoaded notification.
func (b *Bridge) RequestFileSystems() {
	entries, err := b.registry.LoadAll()
	if err != nil {
		slog.Error("Failed to load file system paths", "error", err)
		entries = nil
	}
	if entries == nil {
		entries = []Entry{}
	}
	b.notifier.Notify(ports.EventFileSystemsLoaded, entries)
}

// AddFileSystem registers path under the given type tag. An empty path
// routes through the folder picker; cancellation there is a silent no-op.
func (b *Bridge) AddFileSystem(path, typ string) {
	if path == "" {
		b.picker.Pick(ports.PickFolder, "",
			func(paths []string) {
				if len(paths) == 0 {
					return
				}
				b.addFileSystem(paths[0], typ)
			},
			func() {})
		return
	}
	b.addFileSystem(path, typ)
}

func (b *Bridge) addFileSystem(path, typ string) {
	entry, added, err := b.registry.Add(path, typ)
	if err != nil {
		slog.Error("Failed to add file system", "path", path, "error", err)
		return
	}
	if !added {
		return
	}
	b.notifier.Notify(ports.EventFileSystemAdded, entry)
}

// RemoveFileSystem revokes path, deletes the persisted row, drops any index
// built for it, and notifies the front end.
func (b *Bridge) RemoveFileSystem(path string) {
	if err := b.registry.Remove(path); err != nil {
		slog.Error("Failed to remove file system", "path", path, "error", err)
		return
	}
	b.index.RemoveRoot(path)
	b.notifier.Notify(ports.EventFileSystemRemoved, path)
}

// IndexPath starts indexing a registered workspace directory. Requests for
// unregistered paths complete immediately; a request id with a running job
// is a no-op.
func (b *Bridge) IndexPath(requestID int, path string) {
	if !b.registry.Contains(path) {
		b.notifier.Notify(ports.EventIndexingDone, requestID, path)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, running := b.indexingJobs[requestID]; running {
		return
	}
	b.indexingJobs[requestID] = b.index.IndexPath(context.Background(), path, indexer.Callbacks{
		OnTotal: func(total int) {
			b.notifier.Notify(ports.EventIndexingTotalWorkCalculated, requestID, path, total)
		},
		OnWorked: func(worked int) {
			b.notifier.Notify(ports.EventIndexingWorked, requestID, path, worked)
		},
		OnDone: func() {
			b.onIndexingDone(requestID, path)
		},
	})
}

// onIndexingDone removes the tracker entry before notifying, so at most one
// live entry per request id exists at any observable point.
func (b *Bridge) onIndexingDone(requestID int, path string) {
	b.mu.Lock()
	delete(b.indexingJobs, requestID)
	b.mu.Unlock()
	b.notifier.Notify(ports.EventIndexingDone, requestID, path)
}

// StopIndexing cancels the job for requestID. Once it returns, no further
// notification bearing requestID is delivered; cancellation of the
// underlying work is best-effort.
func (b *Bridge) StopIndexing(requestID int) {
	b.mu.Lock()
	job, running := b.indexingJobs[requestID]
	if running {
		delete(b.indexingJobs, requestID)
	}
	b.mu.Unlock()

	if !running {
		return
	}
	job.Stop()
}

// SearchInPath searches a registered directory's index. Unregistered paths
// complete immediately with an empty result.
func (b *Bridge) SearchInPath(requestID int, path, query string) {
	if !b.registry.Contains(path) {
		b.notifier.Notify(ports.EventSearchCompleted, requestID, path, []string{})
		return
	}
	b.index.Search(path, query, func(paths []string) {
		if paths == nil {
			paths = []string{}
		}
		b.notifier.Notify(ports.EventSearchCompleted, requestID, path, paths)
	})
}

// Close drains pending file writes and releases the owned collaborators.
func (b *Bridge) Close() error {
	b.fileTasks.Wait()
	if err := b.index.Close(); err != nil {
		slog.Debug("Index watcher close", "error", err)
	}
	return b.store.Close()
}

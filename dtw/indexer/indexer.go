// Package indexer provides the content indexer behind the DevTools workspace
// search operations: trigram posting lists built per registered root,
// cancellable background indexing jobs, and substring search over the
// indexed candidates.
package indexer

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/devtools-workspace/dtw/config"

	radix "github.com/armon/go-radix"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
)

const binarySniffLen = 8000

// Indexer builds and owns one searchable index per registered root.
// Roots are kept in a patricia tree so that arbitrary file paths can be
// resolved to their containing root with a longest-prefix lookup.
type Indexer struct {
	cfg config.IndexerConfig

	mu    sync.RWMutex
	roots *radix.Tree // normalized root path -> *rootIndex

	watch *watchHub
}

// New creates an indexer. When cfg.Watch is set, indexed roots are watched
// with fsnotify and the index is updated incrementally on file changes.
func New(cfg config.IndexerConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	ix := &Indexer{
		cfg:   cfg,
		roots: radix.New(),
	}
	if cfg.Watch {
		hub, err := newWatchHub(ix)
		if err != nil {
			slog.Error("Failed to start index watcher, continuing unwatched", "error", err)
		} else {
			ix.watch = hub
		}
	}
	return ix
}

// IndexPath starts a background indexing job for root and returns its
// cancellation handle. Callbacks fire from the job's goroutines: total work
// once the file enumeration finishes, one worked unit per file, done when
// the built index has been installed.
func (ix *Indexer) IndexPath(ctx context.Context, root string, cb Callbacks) *Job {
	job := newJob(ctx, cb)
	go ix.run(job, normalizePath(root))
	return job
}

func (ix *Indexer) run(job *Job, root string) {
	defer close(job.done)

	files, dirs, err := ix.enumerate(job.ctx, root)
	if err != nil {
		if job.ctx.Err() == nil {
			slog.Error("Index enumeration failed", "root", root, "error", err)
			job.notifyDone()
		}
		return
	}

	job.notifyTotal(len(files))

	build := newRootIndex(root)
	p := pool.New().WithContext(job.ctx).WithMaxGoroutines(ix.cfg.Workers)
	for _, path := range files {
		path := path
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			build.addFile(path, ix.readIndexable(path))
			job.notifyWorked(1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		// Cancelled via Stop; leave the previous index in place.
		return
	}

	ix.mu.Lock()
	ix.roots.Insert(root, build)
	ix.mu.Unlock()

	if ix.watch != nil {
		ix.watch.addRoot(root, dirs)
	}

	slog.Debug("Index build complete", "root", root, "files", build.fileCount())
	job.notifyDone()
}

// enumerate walks root and returns the indexable files and the directories
// beneath it. Ignore rules from the configured ignore file apply; .git is
// always skipped.
func (ix *Indexer) enumerate(ctx context.Context, root string) (files, dirs []string, err error) {
	var matcher *ignore.GitIgnore
	if ix.cfg.IgnoreFile != "" {
		if m, err := ignore.CompileIgnoreFile(filepath.Join(root, ix.cfg.IgnoreFile)); err == nil {
			matcher = m
		}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Debug("Skipping unreadable entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matcher != nil && rel != "." && matcher.MatchesPath(rel) {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return files, dirs, nil
}

// readIndexable returns file content for trigram extraction, or nil when the
// file should be indexed by name only (unreadable, oversized, or binary).
func (ix *Indexer) readIndexable(path string) []byte {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if ix.cfg.MaxFileSize > 0 && info.Size() > ix.cfg.MaxFileSize {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if isBinary(content) {
		return nil
	}
	return content
}

// Search runs query against the index for root and delivers the matching
// file paths through onDone, exactly once, from a separate goroutine. An
// unindexed root yields an empty result.
func (ix *Indexer) Search(root, query string, onDone func(paths []string)) {
	go func() {
		idx := ix.index(normalizePath(root))
		if idx == nil {
			onDone(nil)
			return
		}

		needle := strings.ToLower(query)
		var matches []string
		for _, path := range idx.candidates(query) {
			content, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if bytes.Contains(bytes.ToLower(content), []byte(needle)) {
				matches = append(matches, path)
			}
		}
		sort.Strings(matches)
		onDone(matches)
	}()
}

// RemoveRoot drops the index for root, if any, and stops watching it.
func (ix *Indexer) RemoveRoot(root string) {
	root = normalizePath(root)

	ix.mu.Lock()
	ix.roots.Delete(root)
	ix.mu.Unlock()

	if ix.watch != nil {
		ix.watch.removeRoot(root)
	}
}

// HasRoot reports whether root currently has an installed index.
func (ix *Indexer) HasRoot(root string) bool {
	return ix.index(normalizePath(root)) != nil
}

// ContainingRoot resolves an arbitrary path to the indexed root it falls
// under, honoring path boundaries so /a/bc never matches root /a/b.
func (ix *Indexer) ContainingRoot(path string) (string, bool) {
	path = normalizePath(path)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	prefix, _, ok := ix.roots.LongestPrefix(path)
	if !ok {
		return "", false
	}
	if len(path) > len(prefix) && path[len(prefix)] != filepath.Separator {
		return "", false
	}
	return prefix, true
}

// Close stops the watcher. Indexes stay queryable.
func (ix *Indexer) Close() error {
	if ix.watch != nil {
		return ix.watch.close()
	}
	return nil
}

func (ix *Indexer) index(root string) *rootIndex {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	v, ok := ix.roots.Get(root)
	if !ok {
		return nil
	}
	return v.(*rootIndex)
}

func normalizePath(path string) string {
	return filepath.Clean(path)
}

func isBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

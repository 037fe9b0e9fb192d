package indexer

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	roaring "github.com/RoaringBitmap/roaring"
)

const trigramLen = 3

// rootIndex is the searchable content index for one registered root.
// Trigram posting lists are roaring bitmaps over small contiguous file ids,
// which keeps intersections cheap for multi-trigram queries.
type rootIndex struct {
	root string

	mu       sync.RWMutex
	files    map[uint32]string // file id -> absolute path
	ids      map[string]uint32 // absolute path -> file id
	nextID   uint32
	postings map[string]*roaring.Bitmap // trigram -> file ids
}

func newRootIndex(root string) *rootIndex {
	return &rootIndex{
		root:     root,
		files:    make(map[uint32]string),
		ids:      make(map[string]uint32),
		postings: make(map[string]*roaring.Bitmap),
	}
}

// addFile records path with the trigrams of its content. Content may be nil
// for files indexed by name only (binary or oversized); they remain
// reachable through the all-files scan path.
func (ri *rootIndex) addFile(path string, content []byte) {
	trigrams := extractTrigrams(content)

	ri.mu.Lock()
	defer ri.mu.Unlock()

	id, ok := ri.ids[path]
	if !ok {
		id = ri.nextID
		ri.nextID++
		ri.ids[path] = id
		ri.files[id] = path
	}

	for tri := range trigrams {
		bm, ok := ri.postings[tri]
		if !ok {
			bm = roaring.New()
			ri.postings[tri] = bm
		}
		bm.Add(id)
	}
}

// removeFile drops path from the file table and every posting list.
func (ri *rootIndex) removeFile(path string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	id, ok := ri.ids[path]
	if !ok {
		return
	}
	delete(ri.ids, path)
	delete(ri.files, id)

	for tri, bm := range ri.postings {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(ri.postings, tri)
		}
	}
}

// reindexFile replaces the postings for path with those of content.
func (ri *rootIndex) reindexFile(path string, content []byte) {
	ri.removeFile(path)
	ri.addFile(path, content)
}

// candidates returns the paths whose posting lists cover every trigram of
// query. Queries too short to carry a trigram match every known file.
func (ri *rootIndex) candidates(query string) []string {
	trigrams := extractTrigrams([]byte(strings.ToLower(query)))

	ri.mu.RLock()
	defer ri.mu.RUnlock()

	if len(trigrams) == 0 {
		paths := make([]string, 0, len(ri.files))
		for _, p := range ri.files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		return paths
	}

	var result *roaring.Bitmap
	for tri := range trigrams {
		bm, ok := ri.postings[tri]
		if !ok {
			return nil
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			return nil
		}
	}

	paths := make([]string, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		paths = append(paths, ri.files[it.Next()])
	}
	sort.Strings(paths)
	return paths
}

// fileCount reports the number of indexed files.
func (ri *rootIndex) fileCount() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return len(ri.files)
}

// extractTrigrams returns the set of 3-byte windows of content, lowercased,
// excluding windows that cross a line break.
func extractTrigrams(content []byte) map[string]struct{} {
	trigrams := make(map[string]struct{})
	if len(content) < trigramLen {
		return trigrams
	}
	lowered := bytes.ToLower(content)
	for i := 0; i+trigramLen <= len(lowered); i++ {
		window := lowered[i : i+trigramLen]
		if bytes.IndexByte(window, '\n') >= 0 {
			continue
		}
		trigrams[string(window)] = struct{}{}
	}
	return trigrams
}

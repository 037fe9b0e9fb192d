// Package isolation tracks scoped file-system capabilities handed out to
// renderer processes. It is the in-process equivalent of the host engine's
// isolated-context bookkeeping: every registered local path gets an opaque
// file-system identifier, and per-renderer grants are checked against it.
package isolation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Capability is a single operation a renderer may be granted on an isolated
// file system.
type Capability int

const (
	CapRead Capability = iota
	CapWrite
	CapCreate
	CapDelete
)

const rootName = "<root>"

// Service mints file-system identifiers for registered paths and records
// which renderer processes may act on them. Safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	ids    map[string]string                      // local path -> file-system id
	paths  map[string]string                      // file-system id -> local path
	grants map[int]map[string]map[Capability]bool // renderer id -> fsid -> caps
}

// NewService returns an empty isolation service.
func NewService() *Service {
	return &Service{
		ids:    make(map[string]string),
		paths:  make(map[string]string),
		grants: make(map[int]map[string]map[Capability]bool),
	}
}

// RegisterPath mints a fresh file-system identifier for path. Registering an
// already-registered path replaces the previous identifier; grants against
// the old identifier are dropped with it.
func (s *Service) RegisterPath(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.ids[path]; ok {
		delete(s.paths, old)
		s.dropGrantsLocked(old)
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	s.ids[path] = id
	s.paths[id] = path
	return id
}

// RevokePath forgets the identifier for path and every grant against it.
// Revoking an unregistered path is a no-op.
func (s *Service) RevokePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids[path]
	if !ok {
		return
	}
	delete(s.ids, path)
	delete(s.paths, id)
	s.dropGrantsLocked(id)
}

// Grant records a single capability for rendererID on the given identifier.
func (s *Service) Grant(rendererID int, fsid string, c Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFS, ok := s.grants[rendererID]
	if !ok {
		byFS = make(map[string]map[Capability]bool)
		s.grants[rendererID] = byFS
	}
	caps, ok := byFS[fsid]
	if !ok {
		caps = make(map[Capability]bool)
		byFS[fsid] = caps
	}
	caps[c] = true
}

// GrantAll grants read, write, create, and delete in one call, matching what
// the bridge hands a renderer for a developer-added directory.
func (s *Service) GrantAll(rendererID int, fsid string) {
	for _, c := range []Capability{CapRead, CapWrite, CapCreate, CapDelete} {
		s.Grant(rendererID, fsid, c)
	}
}

// CanAccess reports whether rendererID holds c on fsid.
func (s *Service) CanAccess(rendererID int, fsid string, c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFS, ok := s.grants[rendererID]
	if !ok {
		return false
	}
	caps, ok := byFS[fsid]
	if !ok {
		return false
	}
	return caps[c]
}

// PathForID returns the registered local path behind a file-system id.
func (s *Service) PathForID(fsid string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.paths[fsid]
	return path, ok
}

// IsRegistered reports whether path currently holds an identifier.
func (s *Service) IsRegistered(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[path]
	return ok
}

func (s *Service) dropGrantsLocked(fsid string) {
	for _, byFS := range s.grants {
		delete(byFS, fsid)
	}
}

// RootURL builds the isolated file-system root URL handed to the front end.
func RootURL(origin, fsid string) string {
	return fmt.Sprintf("filesystem:%s/isolated/%s/%s", origin, fsid, rootName)
}

// FileSystemName builds the display name for an isolated file system.
func FileSystemName(origin, fsid string) string {
	return fmt.Sprintf("%s:Isolated_%s", origin, fsid)
}

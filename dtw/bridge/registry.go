package bridge

import (
	"fmt"
	"sort"

	internal "github.com/ZanzyTHEbar/devtools-workspace/dtw"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/isolation"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/prefs"
)

// Entry describes a developer-added workspace directory as handed to the
// front end. Entries are value objects; they are rebuilt from the persisted
// registry on every load.
type Entry struct {
	Type           string `json:"type"`
	FileSystemName string `json:"fileSystemName"`
	RootURL        string `json:"rootURL"`
	FileSystemPath string `json:"fileSystemPath"`
}

// PathType is one persisted registry row: a local path and its type tag.
type PathType struct {
	Path string
	Type string
}

// Registry is the persisted path registry. Membership lives in the
// preference store; isolated file-system identifiers and renderer grants are
// re-minted on demand through the isolation service.
type Registry struct {
	store      *prefs.Store
	isolation  *isolation.Service
	origin     string
	rendererID int
}

// NewRegistry wires the registry over its two collaborators.
func NewRegistry(store *prefs.Store, iso *isolation.Service, origin string, rendererID int) *Registry {
	return &Registry{
		store:      store,
		isolation:  iso,
		origin:     origin,
		rendererID: rendererID,
	}
}

// register mints a file-system id for path and grants the owning renderer
// full access. Called for fresh adds and for re-registration on load.
func (r *Registry) register(path string) string {
	fsid := r.isolation.RegisterPath(path)
	r.isolation.GrantAll(r.rendererID, fsid)
	return fsid
}

func (r *Registry) entryFor(path, typ, fsid string) Entry {
	return Entry{
		Type:           typ,
		FileSystemName: isolation.FileSystemName(r.origin, fsid),
		RootURL:        isolation.RootURL(r.origin, fsid),
		FileSystemPath: path,
	}
}

// Add registers path and persists its type tag. A path that is already
// persisted is re-granted but not re-added; added reports whether the
// registry changed.
func (r *Registry) Add(path, typ string) (Entry, bool, error) {
	fsid := r.register(path)

	if r.Contains(path) {
		return Entry{}, false, nil
	}

	entry := r.entryFor(path, typ, fsid)
	err := r.store.Update(internal.FileSystemPathsKey, func(dict map[string]string) {
		dict[path] = typ
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to persist file system path: %w", err)
	}
	return entry, true, nil
}

// Remove revokes path's isolated file system and deletes the persisted row.
func (r *Registry) Remove(path string) error {
	r.isolation.RevokePath(path)
	err := r.store.Update(internal.FileSystemPathsKey, func(dict map[string]string) {
		delete(dict, path)
	})
	if err != nil {
		return fmt.Errorf("failed to remove file system path: %w", err)
	}
	return nil
}

// Contains reports persisted membership. Store errors degrade to false.
func (r *Registry) Contains(path string) bool {
	dict, err := r.store.GetDict(internal.FileSystemPathsKey)
	if err != nil {
		return false
	}
	_, ok := dict[path]
	return ok
}

// ListAll returns the persisted rows sorted by path. An uninitialized
// registry yields an empty slice.
func (r *Registry) ListAll() ([]PathType, error) {
	dict, err := r.store.GetDict(internal.FileSystemPathsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read file system paths: %w", err)
	}

	rows := make([]PathType, 0, len(dict))
	for path, typ := range dict {
		rows = append(rows, PathType{Path: path, Type: typ})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

// LoadAll re-registers every persisted path and returns the rebuilt entries,
// sorted by path. Used to rebuild front-end state on load.
func (r *Registry) LoadAll() ([]Entry, error) {
	rows, err := r.ListAll()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		fsid := r.register(row.Path)
		entries = append(entries, r.entryFor(row.Path, row.Type, fsid))
	}
	return entries, nil
}

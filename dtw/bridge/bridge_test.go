package bridge

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/devtools-workspace/dtw/config"
	"github.com/ZanzyTHEbar/devtools-workspace/dtw/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	Event string
	Args  []any
}

// fakeNotifier records every front-end notification for inspection.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *fakeNotifier) Notify(event string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{Event: event, Args: args})
}

func (n *fakeNotifier) named(event string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *fakeNotifier) waitFor(t *testing.T, event string) notification {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := n.named(event); len(got) > 0 {
			return got[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s notification", event)
	return notification{}
}

type pickCall struct {
	Mode        ports.PickerMode
	DefaultPath string
}

// fakePicker resolves synchronously: selects the scripted paths, or cancels
// when none are scripted.
type fakePicker struct {
	mu      sync.Mutex
	selects []string
	calls   []pickCall
}

func (p *fakePicker) Pick(mode ports.PickerMode, defaultPath string, onSelected func([]string), onCancelled func()) {
	p.mu.Lock()
	p.calls = append(p.calls, pickCall{Mode: mode, DefaultPath: defaultPath})
	selects := p.selects
	p.mu.Unlock()

	if len(selects) == 0 {
		onCancelled()
		return
	}
	onSelected(selects)
}

func (p *fakePicker) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestBridge(t *testing.T) (*Bridge, *fakeNotifier, *fakePicker) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Bridge: config.BridgeConfig{
			PrefsDBPath:    filepath.Join(dir, "prefs.db"),
			DefaultSaveDir: filepath.Join(dir, "downloads"),
			Origin:         "devtools://devtools",
			RendererID:     1,
		},
		Indexer: config.IndexerConfig{
			Workers:     2,
			MaxFileSize: 1 << 20,
			IgnoreFile:  ".gitignore",
		},
	}

	notifier := &fakeNotifier{}
	picker := &fakePicker{}
	b, err := New(cfg, notifier, picker)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, notifier, picker
}

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func (b *Bridge) activeJobs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.indexingJobs)
}

func TestBridge(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"AddRemoveContains", testBridgeAddRemoveContains},
		{"RequestFileSystems", testBridgeRequestFileSystems},
		{"AddViaFolderPicker", testBridgeAddViaFolderPicker},
		{"IndexUnregisteredPath", testBridgeIndexUnregisteredPath},
		{"IndexAndSearch", testBridgeIndexAndSearch},
		{"DuplicateIndexRequest", testBridgeDuplicateIndexRequest},
		{"StopIndexing", testBridgeStopIndexing},
		{"SearchUnregisteredPath", testBridgeSearchUnregisteredPath},
		{"SaveAppendScenario", testBridgeSaveAppendScenario},
		{"SaveReusesTrackedPath", testBridgeSaveReusesTrackedPath},
		{"SaveCancelled", testBridgeSaveCancelled},
		{"AppendWithoutSave", testBridgeAppendWithoutSave},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testBridgeAddRemoveContains(t *testing.T) {
	b, notifier, _ := newTestBridge(t)
	root := writeWorkspace(t, map[string]string{"a.txt": "x"})

	assert.False(t, b.Registry().Contains(root))

	b.AddFileSystem(root, "automatic")
	assert.True(t, b.Registry().Contains(root))

	added := notifier.named(ports.EventFileSystemAdded)
	require.Len(t, added, 1)
	entry := added[0].Args[0].(Entry)
	assert.Equal(t, "automatic", entry.Type)
	assert.Equal(t, root, entry.FileSystemPath)
	assert.NotEmpty(t, entry.RootURL)
	assert.NotEmpty(t, entry.FileSystemName)

	rows, err := b.Registry().ListAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, PathType{Path: root, Type: "automatic"}, rows[0])

	// Re-adding is a silent re-grant, not a second notification
	b.AddFileSystem(root, "automatic")
	assert.Len(t, notifier.named(ports.EventFileSystemAdded), 1)

	b.RemoveFileSystem(root)
	assert.False(t, b.Registry().Contains(root))
	removed := notifier.named(ports.EventFileSystemRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, root, removed[0].Args[0])
}

func testBridgeRequestFileSystems(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	b.RequestFileSystems()
	loaded := notifier.named(ports.EventFileSystemsLoaded)
	require.Len(t, loaded, 1)
	assert.Empty(t, loaded[0].Args[0].([]Entry))

	rootA := writeWorkspace(t, map[string]string{"a": "1"})
	rootB := writeWorkspace(t, map[string]string{"b": "2"})
	b.AddFileSystem(rootA, "")
	b.AddFileSystem(rootB, "automatic")

	b.RequestFileSystems()
	loaded = notifier.named(ports.EventFileSystemsLoaded)
	require.Len(t, loaded, 2)
	entries := loaded[1].Args[0].([]Entry)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.RootURL)
	}
}

func testBridgeAddViaFolderPicker(t *testing.T) {
	b, notifier, picker := newTestBridge(t)
	root := writeWorkspace(t, map[string]string{"a": "1"})

	// Cancelled folder selection adds nothing, silently
	b.AddFileSystem("", "")
	assert.Equal(t, 1, picker.callCount())
	assert.Empty(t, notifier.named(ports.EventFileSystemAdded))

	picker.selects = []string{root}
	b.AddFileSystem("", "manual")
	assert.True(t, b.Registry().Contains(root))

	added := notifier.named(ports.EventFileSystemAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "manual", added[0].Args[0].(Entry).Type)
}

func testBridgeIndexUnregisteredPath(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	b.IndexPath(42, "/not/registered")

	done := notifier.named(ports.EventIndexingDone)
	require.Len(t, done, 1)
	assert.Equal(t, []any{42, "/not/registered"}, done[0].Args)
	assert.Equal(t, 0, b.activeJobs())

	// No progress events, even after background work could have run
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, notifier.named(ports.EventIndexingWorked))
	assert.Empty(t, notifier.named(ports.EventIndexingTotalWorkCalculated))
}

func testBridgeIndexAndSearch(t *testing.T) {
	b, notifier, _ := newTestBridge(t)
	root := writeWorkspace(t, map[string]string{
		"main.go": "package main // needle\n",
		"b.txt":   "nothing here\n",
	})
	b.AddFileSystem(root, "")

	b.IndexPath(7, root)
	notifier.waitFor(t, ports.EventIndexingDone)

	total := notifier.named(ports.EventIndexingTotalWorkCalculated)
	require.Len(t, total, 1)
	assert.Equal(t, []any{7, root, 2}, total[0].Args)
	assert.NotEmpty(t, notifier.named(ports.EventIndexingWorked))
	assert.Equal(t, 0, b.activeJobs())

	b.SearchInPath(8, root, "needle")
	completed := notifier.waitFor(t, ports.EventSearchCompleted)
	assert.Equal(t, 8, completed.Args[0])
	assert.Equal(t, root, completed.Args[1])
	assert.Equal(t, []string{filepath.Join(root, "main.go")}, completed.Args[2])
}

func testBridgeDuplicateIndexRequest(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	files := make(map[string]string, 100)
	for i := 0; i < 100; i++ {
		files[filepath.Join("src", "f"+string(rune('a'+i%26))+string(rune('0'+i%10))+".txt")] = "content\n"
	}
	root := writeWorkspace(t, files)
	b.AddFileSystem(root, "")

	b.IndexPath(1, root)
	b.IndexPath(1, root)
	assert.LessOrEqual(t, b.activeJobs(), 1)

	notifier.waitFor(t, ports.EventIndexingDone)
	assert.Equal(t, 0, b.activeJobs())
	assert.Len(t, notifier.named(ports.EventIndexingDone), 1)
}

func testBridgeStopIndexing(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	files := make(map[string]string, 300)
	for i := 0; i < 300; i++ {
		files[filepath.Join("src", "d"+string(rune('a'+i%26)), "f"+string(rune('0'+i%10))+string(rune('a'+i/30))+".txt")] = "content\n"
	}
	root := writeWorkspace(t, files)
	b.AddFileSystem(root, "")

	b.IndexPath(5, root)
	b.StopIndexing(5)
	assert.Equal(t, 0, b.activeJobs())

	// Nothing bearing request id 5 may arrive after StopIndexing returned
	seen := len(notifier.named(ports.EventIndexingDone)) +
		len(notifier.named(ports.EventIndexingWorked)) +
		len(notifier.named(ports.EventIndexingTotalWorkCalculated))
	time.Sleep(200 * time.Millisecond)
	after := len(notifier.named(ports.EventIndexingDone)) +
		len(notifier.named(ports.EventIndexingWorked)) +
		len(notifier.named(ports.EventIndexingTotalWorkCalculated))
	assert.Equal(t, seen, after)

	// Stopping an unknown id is a no-op
	b.StopIndexing(999)
}

func testBridgeSearchUnregisteredPath(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	b.SearchInPath(3, "/not/registered", "query")

	completed := notifier.named(ports.EventSearchCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, []any{3, "/not/registered", []string{}}, completed[0].Args)
}

func testBridgeSaveAppendScenario(t *testing.T) {
	b, notifier, picker := newTestBridge(t)
	target := filepath.Join(t.TempDir(), "a.txt")
	picker.selects = []string{target}

	b.SaveToFile("a.txt", "hello", false)
	saved := notifier.waitFor(t, ports.EventSavedURL)
	assert.Equal(t, []any{"a.txt"}, saved.Args)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.Len(t, picker.calls, 1)
	assert.Equal(t, ports.PickSaveAs, picker.calls[0].Mode)
	assert.Equal(t, "a.txt", filepath.Base(picker.calls[0].DefaultPath))

	b.AppendToFile("a.txt", " world")
	appended := notifier.waitFor(t, ports.EventAppendedToURL)
	assert.Equal(t, []any{"a.txt"}, appended.Args)

	content, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func testBridgeSaveReusesTrackedPath(t *testing.T) {
	b, notifier, picker := newTestBridge(t)
	target := filepath.Join(t.TempDir(), "a.txt")
	picker.selects = []string{target}

	b.SaveToFile("a.txt", "one", false)
	notifier.waitFor(t, ports.EventSavedURL)
	require.Equal(t, 1, picker.callCount())

	// Second save without saveAs goes straight to the tracked path
	b.SaveToFile("a.txt", "two", false)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(notifier.named(ports.EventSavedURL)) < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	require.Len(t, notifier.named(ports.EventSavedURL), 2)
	assert.Equal(t, 1, picker.callCount())

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))

	// saveAs forces the picker again
	other := filepath.Join(t.TempDir(), "b.txt")
	picker.selects = []string{other}
	b.SaveToFile("a.txt", "three", true)
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(notifier.named(ports.EventSavedURL)) < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 2, picker.callCount())

	content, err = os.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, "three", string(content))
}

func testBridgeSaveCancelled(t *testing.T) {
	b, notifier, picker := newTestBridge(t)
	picker.selects = nil // cancel

	b.SaveToFile("a.txt", "hello", false)

	cancelled := notifier.named(ports.EventCanceledSaveURL)
	require.Len(t, cancelled, 1)
	assert.Equal(t, []any{"a.txt"}, cancelled[0].Args)
	assert.Empty(t, notifier.named(ports.EventSavedURL))

	b.mu.Lock()
	_, tracked := b.savedFiles["a.txt"]
	b.mu.Unlock()
	assert.False(t, tracked, "cancelled selection must not mutate tracker state")
}

func testBridgeAppendWithoutSave(t *testing.T) {
	b, notifier, _ := newTestBridge(t)

	b.AppendToFile("never-saved.txt", "content")
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, notifier.named(ports.EventAppendedToURL))
}

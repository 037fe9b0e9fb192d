package bridge

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/devtools-workspace/dtw/ports"
)

// SaveToFile writes content for a logical URL. Without saveAs, a previously
// chosen path is reused; otherwise the save-file picker runs with the URL's
// base name under the configured save directory. The URL-to-path mapping is
// recorded on selection, before the background write completes.
func (b *Bridge) SaveToFile(url, content string, saveAs bool) {
	b.mu.Lock()
	path, tracked := b.savedFiles[url]
	b.mu.Unlock()

	if tracked && !saveAs {
		b.writeAndNotify(url, path, content)
		return
	}

	defaultPath := filepath.Join(b.cfg.DefaultSaveDir, filepath.Base(url))
	b.picker.Pick(ports.PickSaveAs, defaultPath,
		func(paths []string) {
			if len(paths) == 0 {
				b.notifier.Notify(ports.EventCanceledSaveURL, url)
				return
			}
			b.mu.Lock()
			b.savedFiles[url] = paths[0]
			b.mu.Unlock()
			b.writeAndNotify(url, paths[0], content)
		},
		func() {
			b.notifier.Notify(ports.EventCanceledSaveURL, url)
		})
}

// AppendToFile appends content to the file previously saved for url. A URL
// with no tracked path is a silent no-op; callers must save first.
func (b *Bridge) AppendToFile(url, content string) {
	b.mu.Lock()
	path, tracked := b.savedFiles[url]
	b.mu.Unlock()

	if !tracked {
		return
	}

	b.fileTasks.Go(func() {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			slog.Error("Failed to open file for append", "url", url, "path", path, "error", err)
			return
		}
		_, err = f.WriteString(content)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			slog.Error("Failed to append to file", "url", url, "path", path, "error", err)
			return
		}
		b.notifier.Notify(ports.EventAppendedToURL, url)
	})
}

// writeAndNotify performs the disk write on the sequenced file-task pool and
// reports savedURL on success. Write failures are logged and otherwise
// silent; see DESIGN.md.
func (b *Bridge) writeAndNotify(url, path, content string) {
	b.fileTasks.Go(func() {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			slog.Error("Failed to write file", "url", url, "path", path, "error", err)
			return
		}
		b.notifier.Notify(ports.EventSavedURL, url)
	})
}

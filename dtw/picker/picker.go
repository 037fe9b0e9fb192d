// Package picker provides the non-interactive file picker used when the
// bridge runs without a UI shell. Embedders with a real dialog layer supply
// their own ports.Picker instead.
package picker

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/devtools-workspace/dtw/ports"
)

// Headless resolves picker requests without prompting. Save-as requests
// accept the suggested default path after ensuring its directory exists;
// folder requests are cancelled, since there is nothing sensible to choose
// unattended.
type Headless struct{}

var _ ports.Picker = Headless{}

func (Headless) Pick(mode ports.PickerMode, defaultPath string, onSelected func(paths []string), onCancelled func()) {
	if mode != ports.PickSaveAs || defaultPath == "" {
		onCancelled()
		return
	}
	if err := os.MkdirAll(filepath.Dir(defaultPath), 0o755); err != nil {
		onCancelled()
		return
	}
	onSelected([]string{defaultPath})
}

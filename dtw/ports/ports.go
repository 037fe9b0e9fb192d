package ports

// Front-end event names. Each is a one-way notification with fixed
// positional arguments; see Notifier.
const (
	EventFileSystemsLoaded           = "fileSystemsLoaded"
	EventFileSystemAdded             = "fileSystemAdded"
	EventFileSystemRemoved           = "fileSystemRemoved"
	EventSavedURL                    = "savedURL"
	EventCanceledSaveURL             = "canceledSaveURL"
	EventAppendedToURL               = "appendedToURL"
	EventIndexingTotalWorkCalculated = "indexingTotalWorkCalculated"
	EventIndexingWorked              = "indexingWorked"
	EventIndexingDone                = "indexingDone"
	EventSearchCompleted             = "searchCompleted"
)

// Notifier delivers fire-and-forget notifications to the front end.
// No acknowledgment; at most three positional arguments per event.
type Notifier interface {
	Notify(event string, args ...any)
}

// PickerMode selects the dialog flavor for a Picker request.
type PickerMode int

const (
	// PickSaveAs asks for a file path to save to, possibly not yet existing.
	PickSaveAs PickerMode = iota
	// PickFolder asks for an existing directory.
	PickFolder
)

// Picker prompts the user for a path. The implementation is asynchronous:
// exactly one of onSelected or onCancelled is invoked, possibly after Pick
// returns, never both.
type Picker interface {
	Pick(mode PickerMode, defaultPath string, onSelected func(paths []string), onCancelled func())
}

package core

import "fmt"

// User-facing strings. The presentation layer renders them as-is.
const (
	TitleFileChanged = "File Changed"
	TitleFileRemoved = "File has been removed"
	TitleFileError   = "File Error"

	msgUnsavedChanged = "The unsaved file %s has changed outside. Do you want to reload it and discard your changes?"
	msgChanged        = "The file %s has changed outside. Do you want to reload it?"
	msgUnsavedRemoved = "The file %s has been removed outside. Do you want to save it under a different name, or close the editor?"
	msgRemoved        = "The file %s was removed. Do you want to save it under a different name, or close the editor?"

	msgCannotSave      = "Cannot save %s"
	msgErrorSaving     = "Error while saving %s: %s"
	msgCannotReload    = "Cannot reload %s"
	msgErrorReloading  = "Error while reloading %s: %s"
	msgOpenedInEditor  = "%s has been opened in the editor!"
	msgElevatedAccount = "You're trying to start %s as the %s, which is extremely dangerous and therefore strongly not recommended."

	LabelReload        = "Reload"
	LabelReloadDiscard = "Reload and discard changes"
	LabelIgnore        = "Ignore"
	LabelKeepCurrent   = "Keep current"
	LabelSaveAs        = "Save as..."
	LabelClose         = "Close"
	LabelCloseAll      = "Close All"

	LabelAllFiles = "All Files"

	TitleOpenFile      = "Open File"
	TitleOpenFiles     = "Open Files"
	TitleOpenDirectory = "Open Directory"
	TitleSaveFile      = "Save File"
	TitleSaveAsFile    = "Save As File"

	ReasonCoreMissing  = "Could not find Core plugin!"
	ReasonCoreDisabled = "Core plugin is disabled."
	msgCoreLoadFailure = "Failed to load core: %s"

	PhaseSearching = "Searching plugins..."
	PhaseLoading   = "Loading plugins..."
)

// ConflictMessage returns the prompt title and text for a conflict case.
func ConflictMessage(kind ConflictKind, dirty bool, path string) (title, text string) {
	switch kind {
	case ConflictRemoved:
		if dirty {
			return TitleFileRemoved, fmt.Sprintf(msgUnsavedRemoved, path)
		}
		return TitleFileRemoved, fmt.Sprintf(msgRemoved, path)
	default:
		if dirty {
			return TitleFileChanged, fmt.Sprintf(msgUnsavedChanged, path)
		}
		return TitleFileChanged, fmt.Sprintf(msgChanged, path)
	}
}

// SaveError builds the report for a failed save.
func SaveError(path string, err error) FileError {
	return FileError{
		Title:   TitleFileError,
		Summary: fmt.Sprintf(msgCannotSave, path),
		Detail:  fmt.Sprintf(msgErrorSaving, path, causeOf(err)),
		Path:    path,
		Err:     err,
	}
}

// ReloadError builds the report for a failed reload.
func ReloadError(path string, err error) FileError {
	return FileError{
		Title:   TitleFileError,
		Summary: fmt.Sprintf(msgCannotReload, path),
		Detail:  fmt.Sprintf(msgErrorReloading, path, causeOf(err)),
		Path:    path,
		Err:     err,
	}
}

// AlreadyOpenError builds the report for a save-as onto a path held by
// another open document.
func AlreadyOpenError(path string) FileError {
	return FileError{
		Title:   TitleFileError,
		Summary: fmt.Sprintf(msgCannotSave, path),
		Detail:  fmt.Sprintf(msgOpenedInEditor, path),
		Path:    path,
		Err:     ErrAlreadyOpen,
	}
}

// ElevatedWarning is the text shown when running under an elevated account.
func ElevatedWarning(app, account string) string {
	return fmt.Sprintf(msgElevatedAccount, app, account)
}

// causeOf strips the IoError envelope so the detail line shows the
// underlying cause only.
func causeOf(err error) string {
	if ioe, ok := err.(*IoError); ok && ioe.Err != nil {
		return ioe.Err.Error()
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

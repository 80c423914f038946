package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrReadOnly      = errors.New("document is read-only")
	ErrDuplicatePath = errors.New("path is already registered")
	ErrAlreadyOpen   = errors.New("path is already open in another document")
	ErrUntitled      = errors.New("document has no path")
	ErrNotFound      = errors.New("document not found")
	ErrClosed        = errors.New("document system is closed")
)

// IoError is a read, write or reload failure on a document's file.
type IoError struct {
	Op   string // "open", "save", "reload"
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// FatalBootstrapError stops the process before the document system exists.
type FatalBootstrapError struct {
	Reason string
}

func (e *FatalBootstrapError) Error() string {
	return fmt.Sprintf(msgCoreLoadFailure, e.Reason)
}

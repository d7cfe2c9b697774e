package report

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentBuildFailed is the class of every report build or render failure.
	ErrDocumentBuildFailed = errors.New("document build failed")
	// ErrUnknownFormat is returned for unsupported output formats.
	ErrUnknownFormat = errors.New("unknown report format")
)

// RenderError wraps a failure to assemble or encode a report document.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDocumentBuildFailed, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrDocumentBuildFailed, e.Err}
}

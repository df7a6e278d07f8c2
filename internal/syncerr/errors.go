// Package syncerr defines the error shared by the feed client and the
// sync orchestrator when an install attempt fails.
package syncerr

import (
	"errors"
	"fmt"
)

// Phase names the install step that failed.
type Phase string

const (
	// PhaseDownload covers fetching release metadata and the package blob.
	PhaseDownload Phase = "download"

	// PhaseExtraction covers opening and validating the package.
	PhaseExtraction Phase = "extraction"

	// PhaseInstall covers persisting records, assets and metadata.
	PhaseInstall Phase = "install"
)

// DataSyncError reports a failed sync attempt and the phase it failed in.
type DataSyncError struct {
	Phase   Phase
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DataSyncError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("sync %s: %s: %v", e.Phase, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("sync %s: %v", e.Phase, e.Err)
	default:
		return fmt.Sprintf("sync %s: %s", e.Phase, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *DataSyncError) Unwrap() error {
	return e.Err
}

// New returns a DataSyncError for phase wrapping err.
func New(phase Phase, message string, err error) *DataSyncError {
	return &DataSyncError{Phase: phase, Message: message, Err: err}
}

// IsDataSyncError reports whether err wraps a DataSyncError.
func IsDataSyncError(err error) bool {
	var de *DataSyncError
	return errors.As(err, &de)
}

// PhaseOf returns the phase of the outermost DataSyncError in err's
// chain, or "" if there is none.
func PhaseOf(err error) Phase {
	var de *DataSyncError
	if errors.As(err, &de) {
		return de.Phase
	}
	return ""
}

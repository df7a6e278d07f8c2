package bundle

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure.
type Kind string

const (
	// KindStructure means the archive layout is wrong: a required entry
	// is missing, the archive cannot be opened, or counts disagree.
	KindStructure Kind = "structure"

	// KindSchema means an entry exists but its content is invalid.
	KindSchema Kind = "schema"
)

// ValidationError reports why a package was rejected.
type ValidationError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid package (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid package (%s): %s", e.Kind, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func structureError(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindStructure, Message: fmt.Sprintf(format, args...), Err: err}
}

func schemaError(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindSchema, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStructureError reports whether err is a structure validation failure.
func IsStructureError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == KindStructure
}

// IsSchemaError reports whether err is a schema validation failure.
func IsSchemaError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == KindSchema
}

package store

import (
	"errors"
	"fmt"
)

// Kind names the storage domain that failed.
type Kind string

const (
	KindRecordStore Kind = "record-store"
	KindAssetCache  Kind = "asset-cache"
	KindQuota       Kind = "quota"
)

// ErrNotInitialized is returned by operations called before Init.
var ErrNotInitialized = errors.New("store not initialized")

// ErrInsufficientSpace is wrapped in a quota StorageError when a write
// would not fit.
var ErrInsufficientSpace = errors.New("insufficient storage space")

// StorageError is the only error type returned by Store operations.
type StorageError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func recordErr(op string, err error) error {
	return &StorageError{Kind: KindRecordStore, Op: op, Err: err}
}

func assetErr(op string, err error) error {
	return &StorageError{Kind: KindAssetCache, Op: op, Err: err}
}

func quotaErr(op string, err error) error {
	return &StorageError{Kind: KindQuota, Op: op, Err: err}
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// KindOf returns the kind of the StorageError in err's chain, or "".
func KindOf(err error) Kind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

//go:build !unix

package store

import "errors"

// freeBytes is unavailable off unix; configure QuotaBytes instead.
func freeBytes(string) (int64, error) {
	return 0, errors.New("free space detection unsupported on this platform; set a quota")
}

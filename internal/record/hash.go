package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentHash computes the manifest content hash of a record set: the
// lowercase hex SHA-256 of the canonical JSON array.
func ContentHash(records []Record) (string, error) {
	canonical, err := MarshalCanonical(records)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(records []Record) string {
	h, err := ContentHash(records)
	if err != nil {
		panic(err)
	}
	return h
}

// HashesEqual compares two hex digests case-insensitively.
func HashesEqual(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

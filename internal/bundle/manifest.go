package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/shelf/internal/version"
)

// SupportedSchemaVersion is the only manifest schema this client reads.
const SupportedSchemaVersion = 1

// Manifest describes a package. RecordCount defaults to 0 when absent,
// which fails the count check for any non-empty package.
type Manifest struct {
	Version       string         `json:"version"`
	ReleaseDate   string         `json:"releaseDate,omitempty"`
	ContentHash   string         `json:"contentHash"`
	SchemaVersion int            `json:"schemaVersion"`
	RecordCount   int            `json:"recordCount"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// MinClientVersion returns metadata.minClientVersion, or "".
func (m Manifest) MinClientVersion() string {
	if s, ok := m.Metadata["minClientVersion"].(string); ok {
		return s
	}
	return ""
}

// parseManifest decodes and validates manifest.json. Every failure is a
// schema error.
func parseManifest(s *schema, data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, schemaError(err, "manifest.json is not valid JSON")
	}
	if err := s.validateManifest(data); err != nil {
		return Manifest{}, schemaError(err, "manifest.json does not match schema")
	}
	if _, err := version.Parse(m.Version); err != nil {
		return Manifest{}, schemaError(err, "manifest version %q", m.Version)
	}
	if m.SchemaVersion != SupportedSchemaVersion {
		return Manifest{}, schemaError(nil, "unsupported schema version %d (want %d)", m.SchemaVersion, SupportedSchemaVersion)
	}
	if err := version.CheckClientCompatibility(m.MinClientVersion()); err != nil {
		return Manifest{}, schemaError(err, "package requires a newer client")
	}
	return m, nil
}

func (m Manifest) String() string {
	return fmt.Sprintf("%s (%d records)", m.Version, m.RecordCount)
}

// Package bundle opens and validates content packages.
//
// A package is a zip or tar.zst archive with this layout:
//
//	manifest.json   version, content hash, schema version, record count
//	records.json    JSON array of records
//	assets/         binary assets, one file per asset, keyed by file stem
//
// A single top-level directory wrapping the whole layout is tolerated.
// Validation fails fast on the first problem with a *ValidationError
// whose Kind is KindStructure (something missing or inconsistent in the
// layout) or KindSchema (a file is present but its content is invalid).
// The manifest and every record are checked against the CUE definitions
// in schema.cue.
//
// Content-hash verification is deliberately separate from Extract and
// never fails: callers decide what a mismatch means.
package bundle

// Package version parses and orders release feed version tags.
//
// Tags have the fixed form v<year>.<month>.<day>-r<revision>, for example
// "v2025.3.14-r2". Ordering is lexicographic over the field tuple
// (year, month, day, revision); the raw string never takes part in
// comparison.
//
// All functions in this package are pure. Sort helpers return new slices
// and never reorder their input.
//
// The package also carries the client's own build information, injected
// at build time via -ldflags -X, and a semantic-version compatibility
// check used when a content package declares a minimum client version.
package version

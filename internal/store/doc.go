// Package store persists the synced dataset on the device.
//
// Two domains are kept side by side:
//   - Records, metadata and settings live in a SQLite database (WAL mode,
//     embedded schema, user_version migrations).
//   - Binary assets live in a content cache on a go-billy filesystem, one
//     file per asset id.
//
// Each domain is atomic within itself: ReplaceRecords swaps the whole
// record set in one transaction and every asset file is written to a
// temporary name and renamed into place. There is no transaction
// spanning both domains; callers that need cross-domain consistency
// write a marker key (the synced version) last.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Every failure is reported as a *StorageError tagged with the domain
// that failed, so callers can tell storage problems from network or
// validation problems.
package store

// Package syncer implements the sync orchestrator: the state machine
// that keeps the local store in step with the release feed.
//
// A cycle starts in StateChecking. A check ends in StateSuccess (with
// or without an update available) or StateError. An install continues
// through StateDownloading and StateExtracting before settling in
// StateSuccess or StateError. Success and error are resting states; the
// next cycle starts from checking again.
//
// Concurrency model:
//   - Initialize and DownloadAndInstall are single-flight. Concurrent
//     callers join the running call and share its result.
//   - Installs never overlap. ClearCacheAndResync waits for a running
//     install before it clears the store.
//   - Listeners are called synchronously, each with its own copy of the
//     status. A panicking listener is logged and skipped.
//
// Cross-domain consistency: the store has no transaction spanning
// records and assets. An install writes the pendingVersion marker
// before touching either domain and writes the version key last, then
// removes the marker. Initialize treats a leftover marker as an
// interrupted install and reinstalls.
package syncer

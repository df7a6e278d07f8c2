package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/shelf/internal/bundle"
	"github.com/roach88/shelf/internal/clock"
	"github.com/roach88/shelf/internal/feed"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/syncerr"
	"github.com/roach88/shelf/internal/version"
)

// DefaultPollInterval is the periodic check interval when none is set.
const DefaultPollInterval = time.Hour

const (
	flightInitialize = "initialize"
	flightInstall    = "install"
)

// Config tunes an Orchestrator. The zero value is usable.
type Config struct {
	// PollInterval is the period of StartPeriodicChecks.
	PollInterval time.Duration

	// AutoInstall makes periodic checks install updates they find.
	AutoInstall bool

	Clock  clock.Clock
	Logger *slog.Logger

	// AttemptIDs tags the log lines of each install. Defaults to UUIDv7.
	AttemptIDs AttemptIDGenerator
}

// Orchestrator ties the feed client, the package validator and the
// local store together. Create it with New. It is safe for concurrent
// use.
type Orchestrator struct {
	deps        Deps
	poll        time.Duration
	autoInstall bool
	clock       clock.Clock
	logger      *slog.Logger
	ids         AttemptIDGenerator
	seq         *clock.Seq
	listeners   *listenerSet

	mu     sync.Mutex
	status Status

	initialized atomic.Bool
	flights     singleflight.Group

	// installMu is held for the whole of an install and while a reset
	// clears the store.
	installMu sync.Mutex
	// installing is set while install runs. Checks leave the status
	// alone until it clears.
	installing atomic.Bool

	pollMu   sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}

	// bgCtx scopes background work started by Initialize. Close cancels
	// it and waits for bg.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New builds an Orchestrator. All three dependencies are required.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Feed == nil || deps.Extractor == nil || deps.Store == nil {
		return nil, errors.New("syncer: Feed, Extractor and Store are required")
	}
	o := &Orchestrator{
		deps:        deps,
		poll:        cfg.PollInterval,
		autoInstall: cfg.AutoInstall,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		ids:         cfg.AttemptIDs,
		seq:         clock.NewSeq(),
		status:      Status{State: StateIdle, DataSource: SourceOffline},
	}
	if o.poll <= 0 {
		o.poll = DefaultPollInterval
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ids == nil {
		o.ids = UUIDv7Generator{}
	}
	o.listeners = newListenerSet(o.logger)
	o.bgCtx, o.bgCancel = context.WithCancel(context.Background())
	return o, nil
}

// Status returns a copy of the current status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.clone()
}

// Initialized reports whether Initialize has completed successfully.
func (o *Orchestrator) Initialized() bool {
	return o.initialized.Load()
}

// AddEventListener registers fn and returns an id for removal.
func (o *Orchestrator) AddEventListener(fn Listener) ListenerID {
	return o.listeners.add(fn)
}

// RemoveEventListener unregisters a listener. It reports whether the
// id was registered.
func (o *Orchestrator) RemoveEventListener(id ListenerID) bool {
	return o.listeners.remove(id)
}

// update mutates the status under the lock and returns a copy.
func (o *Orchestrator) update(fn func(*Status)) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.status)
	return o.status.clone()
}

func (o *Orchestrator) emit(typ EventType, st Status, err error) {
	o.listeners.dispatch(Event{Type: typ, Seq: o.seq.Next(), Status: st, Err: err})
}

// setState moves to state, clearing the error and progress of the
// previous step, and emits a state-change event.
func (o *Orchestrator) setState(state State, message string) {
	st := o.update(func(s *Status) {
		s.State = state
		s.Err = nil
		s.Message = message
		s.Progress = nil
	})
	o.emit(EventStateChange, st, nil)
}

// Initialize opens the store and adopts the cached dataset, or installs
// the latest release when nothing is cached. Concurrent calls share one
// run; once it succeeds later calls return immediately.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.initialized.Load() {
		return nil
	}
	_, err, _ := o.flights.Do(flightInitialize, func() (any, error) {
		if o.initialized.Load() {
			return nil, nil
		}
		return nil, o.initialize(ctx)
	})
	return err
}

func (o *Orchestrator) initialize(ctx context.Context) error {
	if err := o.deps.Store.Init(ctx); err != nil {
		st := o.update(func(s *Status) {
			s.State = StateError
			s.Err = err
			s.Message = "local store unavailable"
		})
		o.emit(EventError, st, err)
		return err
	}

	current, hasCurrent, err := o.deps.Store.GetMetadata(ctx, store.MetaVersion)
	if err != nil {
		return err
	}
	pending, hasPending, err := o.deps.Store.GetMetadata(ctx, store.MetaPendingVersion)
	if err != nil {
		return err
	}
	if hasPending {
		o.logger.Warn("previous install was interrupted; reinstalling",
			"pending_version", pending,
			"cached_version", current)
		hasCurrent = false
	}

	if hasCurrent && current != "" {
		lastSync := o.cachedLastSync(ctx)
		st := o.update(func(s *Status) {
			s.DataSource = SourceCache
			s.CurrentVersion = current
			s.LastSync = lastSync
		})
		o.initialized.Store(true)
		o.logger.Info("serving cached dataset", "version", current)
		o.emit(EventInitialized, st, nil)

		o.bg.Add(1)
		go func() {
			defer o.bg.Done()
			if _, err := o.CheckForUpdates(o.bgCtx); err != nil {
				o.logger.Warn("background update check failed", "error", err)
			}
		}()
		return nil
	}

	o.logger.Info("no cached dataset; installing latest release")
	if err := o.DownloadAndInstall(ctx); err != nil {
		return err
	}
	o.initialized.Store(true)
	o.emit(EventInitialized, o.Status(), nil)
	return nil
}

func (o *Orchestrator) cachedLastSync(ctx context.Context) time.Time {
	raw, ok, err := o.deps.Store.GetMetadata(ctx, store.MetaLastSync)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		o.logger.Warn("ignoring unparseable lastSync metadata", "value", raw)
		return time.Time{}
	}
	return t
}

// CheckForUpdates asks the feed for its latest release and reports
// whether it is strictly newer than the installed version. A rate-limit
// refusal is not an error: the status records when checks may resume.
// A check that arrives during an install is skipped and reports false.
func (o *Orchestrator) CheckForUpdates(ctx context.Context) (bool, error) {
	if o.installing.Load() {
		o.logger.Debug("update check skipped; install in progress")
		return false, nil
	}
	o.setState(StateChecking, "checking for updates")

	release, err := o.deps.Feed.FetchLatestRelease(ctx, false)
	if err != nil {
		var rl *feed.RateLimitedError
		if errors.As(err, &rl) {
			st := o.update(func(s *Status) {
				s.State = StateSuccess
				s.RateLimitedUntil = rl.ResetAt
				s.Message = fmt.Sprintf("update checks paused by rate limit until %s", rl.ResetAt.Format(time.RFC3339))
			})
			o.logger.Info("update check rate limited", "reset_at", rl.ResetAt)
			o.emit(EventStateChange, st, nil)
			return false, nil
		}
		st := o.update(func(s *Status) {
			s.State = StateError
			s.Err = err
			s.Message = "update check failed"
		})
		o.emit(EventError, st, err)
		return false, err
	}

	if release == nil {
		o.finishCheck("up to date")
		return false, nil
	}

	remote, err := version.Parse(release.Tag)
	if err != nil {
		o.logger.Warn("ignoring release with unparseable tag", "tag", release.Tag, "error", err)
		o.finishCheck("latest release has an invalid tag")
		return false, nil
	}

	if !o.isNewer(remote) {
		o.finishCheck("up to date")
		return false, nil
	}

	st := o.update(func(s *Status) {
		s.State = StateSuccess
		s.AvailableVersion = release.Tag
		s.Message = "update available: " + release.Tag
		s.RateLimitedUntil = time.Time{}
	})
	o.logger.Info("update available", "current", st.CurrentVersion, "available", release.Tag)
	o.emit(EventUpdateAvailable, st, nil)
	return true, nil
}

// isNewer compares remote against the installed version. Anything is
// newer than nothing, and an unparseable installed tag is replaced.
func (o *Orchestrator) isNewer(remote version.Version) bool {
	current := o.Status().CurrentVersion
	if current == "" {
		return true
	}
	local, err := version.Parse(current)
	if err != nil {
		o.logger.Warn("installed version is unparseable", "version", current, "error", err)
		return true
	}
	return version.IsNewer(remote, local)
}

func (o *Orchestrator) finishCheck(message string) {
	st := o.update(func(s *Status) {
		s.State = StateSuccess
		s.Message = message
		s.RateLimitedUntil = time.Time{}
	})
	o.emit(EventStateChange, st, nil)
}

// DownloadAndInstall fetches, validates and persists the latest release.
// Concurrent calls join the running install.
func (o *Orchestrator) DownloadAndInstall(ctx context.Context) error {
	_, err, _ := o.flights.Do(flightInstall, func() (any, error) {
		o.installMu.Lock()
		defer o.installMu.Unlock()
		return nil, o.install(ctx)
	})
	return err
}

func (o *Orchestrator) install(ctx context.Context) error {
	o.installing.Store(true)
	defer o.installing.Store(false)

	logger := o.logger.With("attempt", o.ids.Generate())
	started := o.clock.Now()

	o.setState(StateChecking, "fetching latest release")
	release, err := o.deps.Feed.FetchLatestRelease(ctx, true)
	if err != nil {
		return o.fail(logger, syncerr.PhaseDownload, "fetch latest release", err)
	}
	if release == nil {
		return o.fail(logger, syncerr.PhaseDownload, "fetch latest release", errors.New("feed returned no release"))
	}

	asset := o.deps.Feed.FindAsset(release)
	if asset == nil {
		return o.fail(logger, syncerr.PhaseDownload, "locate package asset",
			fmt.Errorf("release %s has no package asset", release.Tag))
	}

	st := o.update(func(s *Status) {
		s.State = StateDownloading
		s.Err = nil
		s.Message = "downloading " + asset.Name
		s.Progress = &Progress{Total: asset.Size}
	})
	o.emit(EventStateChange, st, nil)
	logger.Info("downloading package", "tag", release.Tag, "asset", asset.Name, "size", asset.Size)

	blob, err := o.deps.Feed.DownloadAsset(ctx, *asset, o.reportProgress)
	if err != nil {
		return o.fail(logger, syncerr.PhaseDownload, "download package", err)
	}

	o.setState(StateExtracting, "validating package")
	pkg, err := o.deps.Extractor.Extract(blob)
	if err != nil {
		return o.fail(logger, syncerr.PhaseExtraction, "extract package", err)
	}

	if !o.deps.Extractor.VerifyContentHash(pkg) {
		logger.Warn("content hash mismatch; installing anyway",
			"version", pkg.Manifest.Version,
			"manifest_hash", pkg.Manifest.ContentHash)
		o.emit(EventHashMismatch, o.Status(), nil)
	}

	tag := pkg.Manifest.Version
	if tag != release.Tag {
		logger.Warn("manifest version differs from release tag", "manifest", tag, "release", release.Tag)
	}

	if err := o.checkSpace(ctx, logger, int64(len(blob))); err != nil {
		return o.fail(logger, syncerr.PhaseInstall, "check storage quota", err)
	}
	if err := o.persist(ctx, pkg, tag); err != nil {
		return o.fail(logger, syncerr.PhaseInstall, "persist package", err)
	}

	now := o.clock.Now()
	st = o.update(func(s *Status) {
		s.State = StateSuccess
		s.DataSource = SourceRemote
		s.CurrentVersion = tag
		s.AvailableVersion = ""
		s.LastSync = now
		s.Err = nil
		s.Progress = nil
		s.Message = fmt.Sprintf("installed %s (%d records)", tag, len(pkg.Records))
	})
	logger.Info("package installed",
		"version", tag,
		"records", len(pkg.Records),
		"assets", len(pkg.Assets),
		"duration", now.Sub(started))
	o.emit(EventStateChange, st, nil)
	o.emit(EventInstalled, st, nil)
	return nil
}

func (o *Orchestrator) reportProgress(n, total int64) {
	st := o.update(func(s *Status) {
		s.Progress = &Progress{Bytes: n, Total: total}
	})
	o.emit(EventDownloadProgress, st, nil)
}

// checkSpace fails when the quota is known and too small. An unknown
// quota does not block the install.
func (o *Orchestrator) checkSpace(ctx context.Context, logger *slog.Logger, required int64) error {
	ok, err := o.deps.Store.HasSpace(ctx, required)
	if err != nil {
		logger.Warn("could not determine free space; continuing", "error", err)
		return nil
	}
	if !ok {
		return &store.StorageError{Kind: store.KindQuota, Op: "install", Err: store.ErrInsufficientSpace}
	}
	return nil
}

// persist writes the package. The version key is written last and the
// pendingVersion marker brackets the whole sequence.
func (o *Orchestrator) persist(ctx context.Context, pkg *bundle.Package, tag string) error {
	s := o.deps.Store
	if err := s.SetMetadata(ctx, store.MetaPendingVersion, tag); err != nil {
		return err
	}
	if err := s.ReplaceRecords(ctx, pkg.Records, tag); err != nil {
		return err
	}
	if err := s.ClearAssetCache(); err != nil {
		return err
	}
	if err := s.CacheAssets(pkg.Assets); err != nil {
		return err
	}

	meta := []struct{ key, value string }{
		{store.MetaLastSync, o.clock.Now().UTC().Format(time.RFC3339Nano)},
		{store.MetaRecordCount, strconv.Itoa(len(pkg.Records))},
		{store.MetaContentHash, pkg.Manifest.ContentHash},
		{store.MetaVersion, tag},
	}
	for _, m := range meta {
		if err := s.SetMetadata(ctx, m.key, m.value); err != nil {
			return err
		}
	}
	return s.DeleteMetadata(ctx, store.MetaPendingVersion)
}

// fail records err in the status, emits an error event and returns the
// error, wrapped in a DataSyncError unless it already carries a typed
// error from one of the collaborators.
// fail records an install failure. The forced fetch may have stored the
// release's ETag, so the feed cache is dropped; otherwise the next check
// would get a 304 and never report the release again.
func (o *Orchestrator) fail(logger *slog.Logger, phase syncerr.Phase, message string, err error) error {
	o.deps.Feed.ClearCache()
	wrapped := wrapPhase(phase, message, err)
	st := o.update(func(s *Status) {
		s.State = StateError
		s.Err = wrapped
		s.Message = message + " failed"
		s.Progress = nil
	})
	logger.Error("install failed", "phase", phase, "error", wrapped)
	o.emit(EventError, st, wrapped)
	return wrapped
}

func wrapPhase(phase syncerr.Phase, message string, err error) error {
	var (
		dse *syncerr.DataSyncError
		ve  *bundle.ValidationError
		se  *store.StorageError
	)
	if errors.As(err, &dse) || errors.As(err, &ve) || errors.As(err, &se) {
		return err
	}
	return syncerr.New(phase, message, err)
}

// ClearCacheAndResync drops all local state and the feed's cache
// validator, then installs the latest release. A running install is
// allowed to finish first.
func (o *Orchestrator) ClearCacheAndResync(ctx context.Context) error {
	o.installMu.Lock()
	err := o.reset(ctx)
	o.installMu.Unlock()
	if err != nil {
		return err
	}
	return o.DownloadAndInstall(ctx)
}

func (o *Orchestrator) reset(ctx context.Context) error {
	if err := o.deps.Store.ClearAll(ctx); err != nil {
		st := o.update(func(s *Status) {
			s.State = StateError
			s.Err = err
			s.Message = "reset failed"
		})
		o.emit(EventError, st, err)
		return err
	}
	o.deps.Feed.ClearCache()

	st := o.update(func(s *Status) {
		*s = Status{State: StateIdle, DataSource: SourceOffline, Message: "local data cleared"}
	})
	o.logger.Info("local data cleared")
	o.emit(EventStateChange, st, nil)
	return nil
}

// StartPeriodicChecks runs CheckForUpdates every poll interval until
// StopPeriodicChecks or Close. Calling it twice is a no-op.
func (o *Orchestrator) StartPeriodicChecks() {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	if o.pollStop != nil {
		return
	}

	ticker := o.clock.NewTicker(o.poll)
	stop := make(chan struct{})
	done := make(chan struct{})
	o.pollStop, o.pollDone = stop, done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				o.periodicCheck()
			}
		}
	}()
	o.logger.Debug("periodic checks started", "interval", o.poll)
}

// StopPeriodicChecks stops the ticker and waits for a check in progress.
func (o *Orchestrator) StopPeriodicChecks() {
	o.pollMu.Lock()
	stop, done := o.pollStop, o.pollDone
	o.pollStop, o.pollDone = nil, nil
	o.pollMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// PeriodicChecksRunning reports whether the poll loop is active.
func (o *Orchestrator) PeriodicChecksRunning() bool {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.pollStop != nil
}

func (o *Orchestrator) periodicCheck() {
	if until := o.Status().RateLimitedUntil; o.clock.Now().Before(until) {
		o.logger.Debug("skipping periodic check while rate limited", "until", until)
		return
	}
	found, err := o.CheckForUpdates(o.bgCtx)
	if err != nil {
		o.logger.Warn("periodic update check failed", "error", err)
		return
	}
	if !found || !o.autoInstall {
		return
	}
	if err := o.DownloadAndInstall(o.bgCtx); err != nil {
		o.logger.Warn("automatic install failed", "error", err)
	}
}

// Close stops periodic checks and waits for background work.
func (o *Orchestrator) Close() {
	o.bgCancel()
	o.StopPeriodicChecks()
	o.bg.Wait()
}

// Wait blocks until the background update check started by
// Initialize has finished.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// Records returns every record without storage stamps, ordered by id.
func (o *Orchestrator) Records(ctx context.Context) ([]record.Record, error) {
	stored, err := o.deps.Store.GetAllRecords(ctx)
	if err != nil {
		return nil, err
	}
	return record.StripAll(stored), nil
}

// Record returns one record without storage stamps, or nil when absent.
func (o *Orchestrator) Record(ctx context.Context, id string) (*record.Record, error) {
	stored, err := o.deps.Store.GetRecord(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}
	rec := stored.Strip()
	return &rec, nil
}

// SearchRecords returns records whose name or id contains query,
// ignoring case, without storage stamps.
func (o *Orchestrator) SearchRecords(ctx context.Context, query string) ([]record.Record, error) {
	stored, err := o.deps.Store.SearchRecords(ctx, query)
	if err != nil {
		return nil, err
	}
	return record.StripAll(stored), nil
}

// Asset returns the cached asset for id, or nil when absent.
func (o *Orchestrator) Asset(id string) ([]byte, error) {
	return o.deps.Store.GetAsset(id)
}

package syncer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/bundle"
	"github.com/roach88/shelf/internal/clock"
	"github.com/roach88/shelf/internal/feed"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/testutil"
)

const (
	tagR1 = "v2024.01.01-r1"
	tagR2 = "v2024.02.01-r1"
)

var testStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	t      *testing.T
	feed   *testutil.FakeFeed
	client *feed.Client
	store  *store.Store
	clock  *clock.FakeClock
	orch   *Orchestrator
	events *recorder
}

type harnessOptions struct {
	assetPattern string
	quotaBytes   int64
	autoInstall  bool
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()
	o := harnessOptions{assetPattern: testutil.PackageAssetName, quotaBytes: 1 << 30}
	for _, fn := range opts {
		fn(&o)
	}

	h := &harness{t: t, feed: testutil.NewFakeFeed(t), clock: clock.Fake(testStart)}

	var err error
	h.client, err = feed.NewClient(feed.Config{
		FeedURL:      h.feed.URL(),
		AssetPattern: o.assetPattern,
		MaxRetries:   -1,
		Clock:        h.clock,
		Logger:       quietLogger(),
	})
	require.NoError(t, err)

	h.store = store.New(store.Config{
		Dir:        t.TempDir(),
		AssetFS:    memfs.New(),
		QuotaBytes: o.quotaBytes,
		Logger:     quietLogger(),
		Now:        h.clock.Now,
	})
	t.Cleanup(func() { h.store.Close() })

	h.orch, err = New(Deps{
		Feed:      h.client,
		Extractor: bundle.NewValidator(quietLogger()),
		Store:     h.store,
	}, Config{
		PollInterval: time.Hour,
		AutoInstall:  o.autoInstall,
		Clock:        h.clock,
		Logger:       quietLogger(),
		AttemptIDs:   NewFixedGenerator("attempt-1", "attempt-2", "attempt-3"),
	})
	require.NoError(t, err)
	t.Cleanup(h.orch.Close)

	h.events = &recorder{}
	h.orch.AddEventListener(h.events.listen)
	return h
}

func withAssetPattern(p string) func(*harnessOptions) {
	return func(o *harnessOptions) { o.assetPattern = p }
}

func withQuota(n int64) func(*harnessOptions) {
	return func(o *harnessOptions) { o.quotaBytes = n }
}

func withAutoInstall() func(*harnessOptions) {
	return func(o *harnessOptions) { o.autoInstall = true }
}

// publish builds a valid package of n sample records and publishes it
// under tag.
func (h *harness) publish(tag string, n int) []record.Record {
	h.t.Helper()
	recs := testutil.SampleRecords(n)
	pkg := testutil.NewPackage(h.t, tag, recs, testutil.SampleAssets(recs))
	h.feed.Publish(tag, pkg.Zip(h.t))
	return recs
}

// initStore opens the store without going through the orchestrator.
func (h *harness) initStore() {
	h.t.Helper()
	require.NoError(h.t, h.store.Init(context.Background()))
}

func (h *harness) metadata(key string) (string, bool) {
	h.t.Helper()
	v, ok, err := h.store.GetMetadata(context.Background(), key)
	require.NoError(h.t, err)
	return v, ok
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) types() []EventType {
	var out []EventType
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// states returns the distinct states of consecutive state-change events.
func (r *recorder) states() []State {
	var out []State
	for _, ev := range r.all() {
		if ev.Type != EventStateChange {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != ev.Status.State {
			out = append(out, ev.Status.State)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

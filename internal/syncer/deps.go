package syncer

import (
	"context"

	"github.com/roach88/shelf/internal/bundle"
	"github.com/roach88/shelf/internal/feed"
	"github.com/roach88/shelf/internal/record"
)

// FeedClient is the subset of *feed.Client the orchestrator uses.
type FeedClient interface {
	FetchLatestRelease(ctx context.Context, forceRefresh bool) (*feed.Release, error)
	FindAsset(release *feed.Release) *feed.ReleaseAsset
	DownloadAsset(ctx context.Context, asset feed.ReleaseAsset, onProgress feed.ProgressFunc) ([]byte, error)
	ClearCache()
}

// Extractor is the subset of *bundle.Validator the orchestrator uses.
type Extractor interface {
	Extract(blob []byte) (*bundle.Package, error)
	VerifyContentHash(pkg *bundle.Package) bool
}

// Store is the subset of *store.Store the orchestrator uses.
type Store interface {
	Init(ctx context.Context) error

	ReplaceRecords(ctx context.Context, recs []record.Record, version string) error
	GetAllRecords(ctx context.Context) ([]record.Stored, error)
	GetRecord(ctx context.Context, id string) (*record.Stored, error)
	SearchRecords(ctx context.Context, query string) ([]record.Stored, error)

	CacheAssets(assets map[string][]byte) error
	GetAsset(id string) ([]byte, error)
	ClearAssetCache() error

	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, bool, error)
	DeleteMetadata(ctx context.Context, key string) error

	HasSpace(ctx context.Context, n int64) (bool, error)
	ClearAll(ctx context.Context) error
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Feed      FeedClient
	Extractor Extractor
	Store     Store
}

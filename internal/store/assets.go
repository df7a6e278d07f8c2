package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/zeebo/blake3"
)

const (
	assetExt       = ".asset"
	tempFilePrefix = ".tmp-"
)

// assetEnvelope is the on-disk form of one cached asset. Integer keys
// keep the encoding compact; the field numbers are persisted.
type assetEnvelope struct {
	ID          string         `cbor:"1,keyasint"`
	Tag         CompressionTag `cbor:"2,keyasint"`
	Size        int            `cbor:"3,keyasint"`
	Digest      []byte         `cbor:"4,keyasint"`
	ContentType string         `cbor:"5,keyasint,omitempty"`
	Data        []byte         `cbor:"6,keyasint"`
}

// Core Deterministic Encoding: the same asset always yields the same
// file bytes.
var envelopeEncMode cbor.EncMode

func init() {
	var err error
	envelopeEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
}

// AssetCache stores asset blobs keyed by id on a billy filesystem.
// Each asset is written to a temp file and renamed into place, so a
// reader sees either the old blob or the new one.
type AssetCache struct {
	fs     billy.Filesystem
	logger *slog.Logger

	// mu serializes Clear against writers; per-asset writes are
	// already atomic through rename.
	mu sync.RWMutex
}

// NewAssetCache returns a cache rooted at fs.
func NewAssetCache(fs billy.Filesystem, logger *slog.Logger) *AssetCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetCache{fs: fs, logger: logger}
}

// assetPath maps an id to <hh>/<sha256(id)>.asset. Hashing keeps
// arbitrary ids filesystem-safe; the two-character shard bounds
// directory size.
func assetPath(id string) string {
	sum := sha256.Sum256([]byte(id))
	name := hex.EncodeToString(sum[:])
	return path.Join(name[:2], name+assetExt)
}

// Put stores blob under id, replacing any previous blob.
func (c *AssetCache) Put(id string, blob []byte) error {
	if id == "" {
		return fmt.Errorf("asset id must not be empty")
	}

	contentType := detectContentType(blob)
	data, tag, err := compress(blob, selectCompression(blob, contentType))
	if err != nil {
		return fmt.Errorf("compress %q: %w", id, err)
	}
	digest := blake3.Sum256(blob)

	encoded, err := envelopeEncMode.Marshal(assetEnvelope{
		ID:          id,
		Tag:         tag,
		Size:        len(blob),
		Digest:      digest[:],
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("encode %q: %w", id, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writeAtomic(assetPath(id), encoded)
}

func (c *AssetCache) writeAtomic(name string, data []byte) error {
	dir := path.Dir(name)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := c.fs.TempFile(dir, tempFilePrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		c.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := c.fs.Rename(tmpName, name); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Get returns the blob cached under id, or nil, nil when absent.
func (c *AssetCache) Get(id string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := util.ReadFile(c.fs, assetPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", id, err)
	}

	var env assetEnvelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %q: %w", id, err)
	}
	if env.ID != id {
		return nil, fmt.Errorf("asset file for %q holds %q", id, env.ID)
	}

	blob, err := decompress(env.Data, env.Tag, env.Size)
	if err != nil {
		return nil, fmt.Errorf("asset %q: %w", id, err)
	}
	digest := blake3.Sum256(blob)
	if !bytes.Equal(digest[:], env.Digest) {
		return nil, fmt.Errorf("asset %q: digest mismatch", id)
	}
	return blob, nil
}

// Delete removes the blob cached under id. Deleting an absent id is
// not an error.
func (c *AssetCache) Delete(id string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	err := c.fs.Remove(assetPath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// Clear removes every cached asset.
func (c *AssetCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.fs.ReadDir("/")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}
	for _, entry := range entries {
		if err := util.RemoveAll(c.fs, entry.Name()); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	c.logger.Debug("asset cache cleared", "entries", len(entries))
	return nil
}

// Count returns the number of cached assets.
func (c *AssetCache) Count() (int, error) {
	n := 0
	err := c.walk(func(os.FileInfo) { n++ })
	return n, err
}

// Bytes returns the total size of the cache files on disk.
func (c *AssetCache) Bytes() (int64, error) {
	var total int64
	err := c.walk(func(fi os.FileInfo) { total += fi.Size() })
	return total, err
}

// walk visits every asset file in the two-level shard layout.
func (c *AssetCache) walk(fn func(os.FileInfo)) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	shards, err := c.fs.ReadDir("/")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		files, err := c.fs.ReadDir(shard.Name())
		if err != nil {
			return fmt.Errorf("list %s: %w", shard.Name(), err)
		}
		for _, fi := range files {
			if fi.IsDir() || !strings.HasSuffix(fi.Name(), assetExt) {
				continue
			}
			fn(fi)
		}
	}
	return nil
}

// CacheAsset stores one asset blob.
func (s *Store) CacheAsset(id string, blob []byte) error {
	cache, err := s.assetCache("cache asset")
	if err != nil {
		return err
	}
	if err := cache.Put(id, blob); err != nil {
		return assetErr("cache asset", err)
	}
	return nil
}

// CacheAssets stores every blob in assets. Ids are written in sorted
// order; the first failure stops the batch.
func (s *Store) CacheAssets(assets map[string][]byte) error {
	cache, err := s.assetCache("cache assets")
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(assets))
	for id := range assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := cache.Put(id, assets[id]); err != nil {
			return assetErr("cache assets", err)
		}
	}
	s.logger.Debug("assets cached", "count", len(ids))
	return nil
}

// GetAsset returns the cached blob for id, or nil, nil when absent.
func (s *Store) GetAsset(id string) ([]byte, error) {
	cache, err := s.assetCache("get asset")
	if err != nil {
		return nil, err
	}
	blob, err := cache.Get(id)
	if err != nil {
		return nil, assetErr("get asset", err)
	}
	return blob, nil
}

// ClearAssetCache removes every cached asset.
func (s *Store) ClearAssetCache() error {
	cache, err := s.assetCache("clear assets")
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return assetErr("clear assets", err)
	}
	return nil
}

// AssetCount returns the number of cached assets.
func (s *Store) AssetCount() (int, error) {
	cache, err := s.assetCache("count assets")
	if err != nil {
		return 0, err
	}
	n, err := cache.Count()
	if err != nil {
		return 0, assetErr("count assets", err)
	}
	return n, nil
}

package testutil

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/record"
)

// PackageBuilder assembles package archives for tests. NewPackage fills
// in a manifest that is consistent with the records; tests then break
// whatever they need to.
type PackageBuilder struct {
	// Manifest is encoded as manifest.json. Nil omits the file.
	Manifest map[string]any

	// Records is encoded as records.json unless RecordsJSON is set.
	Records []record.Record

	// RecordsJSON, when non-nil, is written verbatim as records.json.
	RecordsJSON []byte

	// Assets maps file names inside assets/ to their content.
	Assets map[string][]byte

	// OmitRecords and OmitAssetsDir drop the records file and the
	// assets folder.
	OmitRecords   bool
	OmitAssetsDir bool

	// Prefix wraps every entry in a top-level directory.
	Prefix string
}

// NewPackage returns a builder for a valid package at version v.
func NewPackage(tb testing.TB, v string, records []record.Record, assets map[string][]byte) *PackageBuilder {
	tb.Helper()
	hash, err := record.ContentHash(records)
	require.NoError(tb, err)

	if assets == nil {
		assets = map[string][]byte{}
	}
	return &PackageBuilder{
		Manifest: map[string]any{
			"version":       v,
			"releaseDate":   "2024-01-01T00:00:00Z",
			"contentHash":   hash,
			"schemaVersion": 1,
			"recordCount":   len(records),
			"metadata":      map[string]any{"publisher": "testutil"},
		},
		Records: records,
		Assets:  assets,
	}
}

// Rehash recomputes contentHash and recordCount from Records.
func (p *PackageBuilder) Rehash(tb testing.TB) *PackageBuilder {
	tb.Helper()
	hash, err := record.ContentHash(p.Records)
	require.NoError(tb, err)
	p.Manifest["contentHash"] = hash
	p.Manifest["recordCount"] = len(p.Records)
	return p
}

type file struct {
	name string
	data []byte
	dir  bool
}

func (p *PackageBuilder) files(tb testing.TB) []file {
	tb.Helper()
	prefix := ""
	if p.Prefix != "" {
		prefix = p.Prefix + "/"
	}

	var out []file
	if p.Manifest != nil {
		data, err := json.Marshal(p.Manifest)
		require.NoError(tb, err)
		out = append(out, file{name: prefix + "manifest.json", data: data})
	}
	if !p.OmitRecords {
		data := p.RecordsJSON
		if data == nil {
			var err error
			data, err = record.MarshalCanonical(p.Records)
			require.NoError(tb, err)
		}
		out = append(out, file{name: prefix + "records.json", data: data})
	}
	if !p.OmitAssetsDir {
		out = append(out, file{name: prefix + "assets/", dir: true})
		names := make([]string, 0, len(p.Assets))
		for name := range p.Assets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, file{name: prefix + "assets/" + name, data: p.Assets[name]})
		}
	}
	return out
}

// Zip encodes the package as a zip archive.
func (p *PackageBuilder) Zip(tb testing.TB) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range p.files(tb) {
		if f.dir {
			_, err := zw.Create(f.name)
			require.NoError(tb, err)
			continue
		}
		w, err := zw.Create(f.name)
		require.NoError(tb, err)
		_, err = w.Write(f.data)
		require.NoError(tb, err)
	}
	require.NoError(tb, zw.Close())
	return buf.Bytes()
}

// TarZst encodes the package as a zstd-compressed tar archive.
func (p *PackageBuilder) TarZst(tb testing.TB) []byte {
	tb.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(tb, err)

	tw := tar.NewWriter(enc)
	for _, f := range p.files(tb) {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.data)), Typeflag: tar.TypeReg}
		if f.dir {
			hdr = &tar.Header{Name: f.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(tb, tw.WriteHeader(hdr))
		if !f.dir {
			_, err := tw.Write(f.data)
			require.NoError(tb, err)
		}
	}
	require.NoError(tb, tw.Close())
	require.NoError(tb, enc.Close())
	return buf.Bytes()
}

// SampleRecords returns n valid records with ids rec-001, rec-002, ...
func SampleRecords(n int) []record.Record {
	categories := record.Categories
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.New(record.Object{
			"id":       record.String(fmt.Sprintf("rec-%03d", i+1)),
			"name":     record.String(fmt.Sprintf("Sample %d", i+1)),
			"category": record.String(categories[i%len(categories)]),
			"width":    record.Int(int64(16 * (i + 1))),
			"tags":     record.Array{record.String("sample")},
		})
	}
	return out
}

// SampleAssets returns one small SVG asset per record id.
func SampleAssets(records []record.Record) map[string][]byte {
	out := make(map[string][]byte, len(records))
	for _, rec := range records {
		out[rec.ID()+".svg"] = []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" id=%q/>`, rec.ID()))
	}
	return out
}

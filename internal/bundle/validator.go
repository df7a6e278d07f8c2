package bundle

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/roach88/shelf/internal/record"
)

const (
	manifestFile = "manifest.json"
	recordsFile  = "records.json"
	assetsDir    = "assets"
)

// Package is the validated content of a package archive.
type Package struct {
	Manifest Manifest
	Records  []record.Record
	Assets   map[string][]byte
}

// Stats summarizes a package.
type Stats struct {
	RecordCount     int
	AssetCount      int
	Version         string
	TotalAssetBytes int64
}

// Validator opens and validates package archives. It holds no per-call
// state and is safe for concurrent use.
type Validator struct {
	logger *slog.Logger
}

// NewValidator returns a Validator logging to logger (slog.Default when nil).
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// ValidateStructure reports whether blob is a readable archive that
// contains a manifest, a records file and an assets folder. It never
// returns an error.
func (v *Validator) ValidateStructure(blob []byte) bool {
	a, err := openArchive(blob)
	if err != nil {
		return false
	}
	return a.find(manifestFile) != nil && a.find(recordsFile) != nil && a.hasDir(assetsDir)
}

// Extract validates blob and returns its contents. The first failure is
// returned as a *ValidationError.
func (v *Validator) Extract(blob []byte) (*Package, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}

	a, err := openArchive(blob)
	if err != nil {
		return nil, structureError(err, "cannot open archive")
	}

	manifest, err := v.extractManifest(s, a)
	if err != nil {
		return nil, err
	}

	records, err := v.extractRecords(s, a)
	if err != nil {
		return nil, err
	}

	assets, err := v.extractAssets(a)
	if err != nil {
		return nil, err
	}

	if len(records) != manifest.RecordCount {
		return nil, structureError(nil, "manifest declares %d records but records.json has %d",
			manifest.RecordCount, len(records))
	}

	v.logger.Debug("extracted package",
		"version", manifest.Version,
		"format", a.format,
		"records", len(records),
		"assets", len(assets),
	)
	return &Package{Manifest: manifest, Records: records, Assets: assets}, nil
}

func (v *Validator) extractManifest(s *schema, a *archive) (Manifest, error) {
	e := a.find(manifestFile)
	if e == nil {
		return Manifest{}, structureError(nil, "missing %s", manifestFile)
	}
	data, err := e.read()
	if err != nil {
		return Manifest{}, structureError(err, "read %s", manifestFile)
	}
	return parseManifest(s, data)
}

func (v *Validator) extractRecords(s *schema, a *archive) ([]record.Record, error) {
	e := a.find(recordsFile)
	if e == nil {
		return nil, structureError(nil, "missing %s", recordsFile)
	}
	data, err := e.read()
	if err != nil {
		return nil, structureError(err, "read %s", recordsFile)
	}

	decoded, err := record.DecodeValue(data)
	if err != nil {
		return nil, schemaError(err, "%s is not valid record JSON", recordsFile)
	}
	arr, ok := decoded.(record.Array)
	if !ok {
		return nil, schemaError(nil, "%s must contain a JSON array", recordsFile)
	}

	records := make([]record.Record, 0, len(arr))
	seen := make(map[string]int, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(record.Object)
		if !ok {
			return nil, schemaError(nil, "record %d is not an object", i)
		}
		canonical, err := record.MarshalCanonical(obj)
		if err != nil {
			return nil, schemaError(err, "record %d", i)
		}
		if err := s.validateRecord(canonical); err != nil {
			return nil, schemaError(err, "record %d", i)
		}

		rec := record.New(obj)
		if err := rec.Validate(); err != nil {
			return nil, schemaError(err, "record %d", i)
		}
		if prev, dup := seen[rec.ID()]; dup {
			return nil, schemaError(nil, "records %d and %d share id %q", prev, i, rec.ID())
		}
		seen[rec.ID()] = i
		records = append(records, rec)
	}
	return records, nil
}

// extractAssets reads every regular, non-hidden file with an extension
// directly inside the assets folder. Unreadable files are skipped.
func (v *Validator) extractAssets(a *archive) (map[string][]byte, error) {
	if !a.hasDir(assetsDir) {
		return nil, structureError(nil, "missing %s/ folder", assetsDir)
	}

	assets := make(map[string][]byte)
	for _, e := range a.filesIn(assetsDir) {
		base := path.Base(e.name)
		ext := path.Ext(base)
		if strings.HasPrefix(base, ".") || ext == "" {
			continue
		}
		id := strings.TrimSuffix(base, ext)

		if _, dup := assets[id]; dup {
			v.logger.Warn("duplicate asset id, keeping first", "id", id, "file", e.name)
			continue
		}
		data, err := e.read()
		if err != nil {
			v.logger.Warn("skipping unreadable asset", "file", e.name, "error", err)
			continue
		}
		assets[id] = data
	}
	return assets, nil
}

// VerifyContentHash recomputes the content hash of pkg's records and
// compares it with the manifest. It never fails; any error reads as a
// mismatch.
func (v *Validator) VerifyContentHash(pkg *Package) bool {
	if pkg == nil {
		return false
	}
	computed, err := ContentHash(pkg.Records)
	if err != nil {
		v.logger.Warn("content hash computation failed", "error", err)
		return false
	}
	return record.HashesEqual(computed, pkg.Manifest.ContentHash)
}

// ContentHash is the hash publishers put in the manifest.
func ContentHash(records []record.Record) (string, error) {
	return record.ContentHash(records)
}

// Stats summarizes pkg.
func (v *Validator) Stats(pkg *Package) Stats {
	if pkg == nil {
		return Stats{}
	}
	st := Stats{
		RecordCount: len(pkg.Records),
		AssetCount:  len(pkg.Assets),
		Version:     pkg.Manifest.Version,
	}
	for _, data := range pkg.Assets {
		st.TotalAssetBytes += int64(len(data))
	}
	return st
}

func (s Stats) String() string {
	return fmt.Sprintf("version %s: %d records, %d assets (%d bytes)",
		s.Version, s.RecordCount, s.AssetCount, s.TotalAssetBytes)
}

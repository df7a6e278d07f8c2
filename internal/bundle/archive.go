package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// maxEntryBytes bounds the uncompressed size of a single archive entry.
const maxEntryBytes = 256 << 20

// Format is a supported archive container.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarZst Format = "tar.zst"
	FormatTar    Format = "tar"
)

type entry struct {
	name string // slash-separated, relative to the package root
	dir  bool
	size int64
	read func() ([]byte, error)
}

// archive is the flattened listing of a package archive.
type archive struct {
	format  Format
	entries []entry
}

// DetectFormat sniffs the container format of blob.
func DetectFormat(blob []byte) (Format, error) {
	if len(blob) == 0 {
		return "", errors.New("empty archive")
	}
	for mt := mimetype.Detect(blob); mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/zip"):
			return FormatZip, nil
		case mt.Is("application/zstd"):
			return FormatTarZst, nil
		case mt.Is("application/x-tar"):
			return FormatTar, nil
		}
	}
	return "", fmt.Errorf("unsupported archive type %s", mimetype.Detect(blob).String())
}

func openArchive(blob []byte) (*archive, error) {
	format, err := DetectFormat(blob)
	if err != nil {
		return nil, err
	}

	var entries []entry
	switch format {
	case FormatZip:
		entries, err = readZip(blob)
	case FormatTarZst:
		entries, err = readTarZst(blob)
	case FormatTar:
		entries, err = readTar(bytes.NewReader(blob))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s archive: %w", format, err)
	}

	a := &archive{format: format, entries: entries}
	a.stripCommonPrefix()
	return a, nil
}

func readZip(blob []byte) ([]entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, f := range zr.File {
		name, ok := cleanEntryName(f.Name)
		if !ok {
			continue
		}
		info := f.FileInfo()
		if info.IsDir() {
			entries = append(entries, entry{name: name, dir: true})
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, entry{
			name: name,
			size: int64(f.UncompressedSize64),
			read: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return readLimited(rc, maxEntryBytes)
			},
		})
	}
	return entries, nil
}

func readTarZst(blob []byte) ([]entry, error) {
	dec, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return readTar(dec)
}

// readTar reads every regular file eagerly; a tar stream cannot be
// revisited.
func readTar(r io.Reader) ([]entry, error) {
	tr := tar.NewReader(r)

	var entries []entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}

		name, ok := cleanEntryName(hdr.Name)
		if !ok {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			entries = append(entries, entry{name: name, dir: true})
		case tar.TypeReg:
			data, err := readLimited(tr, maxEntryBytes)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", hdr.Name, err)
			}
			entries = append(entries, entry{
				name: name,
				size: int64(len(data)),
				read: func() ([]byte, error) { return data, nil },
			})
		}
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return data, nil
}

// cleanEntryName normalizes an archive path. Absolute paths and paths
// escaping the root are rejected.
func cleanEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// stripCommonPrefix removes a single top-level directory that wraps
// every entry, as produced by archiving a folder instead of its contents.
func (a *archive) stripCommonPrefix() {
	if len(a.entries) == 0 || a.find(manifestFile) != nil {
		return
	}

	var prefix string
	for _, e := range a.entries {
		first, _, found := strings.Cut(e.name, "/")
		if !found && !e.dir {
			return
		}
		if prefix == "" {
			prefix = first
		} else if first != prefix {
			return
		}
	}

	stripped := a.entries[:0]
	for _, e := range a.entries {
		rest := strings.TrimPrefix(strings.TrimPrefix(e.name, prefix), "/")
		if rest == "" {
			continue
		}
		e.name = rest
		stripped = append(stripped, e)
	}
	a.entries = stripped
}

func (a *archive) find(name string) *entry {
	for i := range a.entries {
		if !a.entries[i].dir && a.entries[i].name == name {
			return &a.entries[i]
		}
	}
	return nil
}

// hasDir reports whether dir exists, either as an explicit entry or as
// the parent of some file.
func (a *archive) hasDir(dir string) bool {
	for _, e := range a.entries {
		if e.dir && e.name == dir {
			return true
		}
		if strings.HasPrefix(e.name, dir+"/") {
			return true
		}
	}
	return false
}

// filesIn returns the regular files directly inside dir.
func (a *archive) filesIn(dir string) []entry {
	var out []entry
	for _, e := range a.entries {
		if e.dir {
			continue
		}
		parent, _ := path.Split(e.name)
		if parent == dir+"/" {
			out = append(out, e)
		}
	}
	return out
}

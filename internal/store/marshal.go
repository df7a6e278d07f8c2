package store

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/shelf/internal/record"
)

// recordRow is a record flattened into its column values.
type recordRow struct {
	id        string
	name      string
	category  string
	body      string
	searchKey string
}

func marshalRecord(rec record.Record) (recordRow, error) {
	if rec.ID() == "" {
		return recordRow{}, fmt.Errorf("record has no id")
	}
	body, err := record.MarshalCanonical(rec.Object)
	if err != nil {
		return recordRow{}, fmt.Errorf("marshal record %q: %w", rec.ID(), err)
	}
	return recordRow{
		id:        rec.ID(),
		name:      rec.Name(),
		category:  rec.Category(),
		body:      string(body),
		searchKey: foldSearchKey(rec.Name(), rec.ID()),
	}, nil
}

func unmarshalRecord(body string, storedAtMillis int64, version string) (record.Stored, error) {
	v, err := record.DecodeValue([]byte(body))
	if err != nil {
		return record.Stored{}, fmt.Errorf("unmarshal record: %w", err)
	}
	obj, ok := v.(record.Object)
	if !ok {
		return record.Stored{}, fmt.Errorf("unmarshal record: body is %T, not an object", v)
	}
	return record.Stored{
		Record:   record.New(obj),
		StoredAt: time.UnixMilli(storedAtMillis),
		Version:  version,
	}, nil
}

// searchKeySep separates fields in a search key. Occurrences inside a
// field or a query are replaced with U+FFFD, so a query can only match
// within one field.
const searchKeySep = "\x1f"

var unseparate = strings.NewReplacer(searchKeySep, "\uFFFD")

// foldSearchKey joins the searchable fields with searchKeySep, then
// case-folds them.
func foldSearchKey(fields ...string) string {
	clean := make([]string, len(fields))
	for i, f := range fields {
		clean[i] = unseparate.Replace(f)
	}
	return cases.Fold().String(strings.Join(clean, searchKeySep))
}

// likePattern builds a LIKE pattern matching q as a case-folded
// substring of a single field. Wildcards in q are escaped with '\'.
func likePattern(q string) string {
	folded := cases.Fold().String(unseparate.Replace(q))
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(folded) + "%"
}

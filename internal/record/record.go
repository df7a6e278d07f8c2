package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity field names every record must carry.
const (
	FieldID       = "id"
	FieldName     = "name"
	FieldCategory = "category"
)

// Categories is the fixed set of allowed category values.
var Categories = []string{"icon", "illustration", "shape", "pattern", "photo", "template"}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Record is one entry of the synced dataset. The wrapped Object holds
// every field, including the identity fields exposed by the accessors.
type Record struct {
	Object
}

// New wraps obj as a Record without validating it.
func New(obj Object) Record {
	return Record{Object: obj}
}

// Parse decodes a single JSON object into a Record and checks its
// identity fields.
func Parse(data []byte) (Record, error) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return Record{}, err
	}
	rec := Record{Object: obj}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ID returns the record id, or "" when absent or not a string.
func (r Record) ID() string { return r.stringField(FieldID) }

// Name returns the record name.
func (r Record) Name() string { return r.stringField(FieldName) }

// Category returns the record category.
func (r Record) Category() string { return r.stringField(FieldCategory) }

func (r Record) stringField(key string) string {
	if s, ok := r.Object[key].(String); ok {
		return string(s)
	}
	return ""
}

// Validate checks the identity fields and the category enum.
func (r Record) Validate() error {
	if r.Object == nil {
		return fmt.Errorf("record is empty")
	}
	for _, key := range []string{FieldID, FieldName, FieldCategory} {
		if _, ok := r.Object[key].(String); !ok {
			return fmt.Errorf("field %q must be a string", key)
		}
	}
	if r.ID() == "" {
		return fmt.Errorf("field %q must not be empty", FieldID)
	}
	if r.Name() == "" {
		return fmt.Errorf("field %q must not be empty", FieldName)
	}
	if !IsCategory(r.Category()) {
		return fmt.Errorf("category %q is not one of %v", r.Category(), Categories)
	}
	return nil
}

// MarshalJSON encodes the record in canonical form.
func (r Record) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r.Object)
}

// UnmarshalJSON decodes a record without validating it.
func (r *Record) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Object)
}

// Stored is a persisted copy of a record stamped by the local store.
type Stored struct {
	Record
	StoredAt time.Time
	Version  string
}

// Strip returns the record without its storage stamps.
func (s Stored) Strip() Record {
	return s.Record
}

// StripAll strips the storage stamps from every record in stored.
func StripAll(stored []Stored) []Record {
	out := make([]Record, len(stored))
	for i, s := range stored {
		out[i] = s.Record
	}
	return out
}

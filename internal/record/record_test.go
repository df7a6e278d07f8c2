package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	rec, err := Parse([]byte(`{"id":"a1","name":"Alpha","category":"shape","sides":3,"extra":{"k":[1,2]}}`))
	require.NoError(t, err)

	assert.Equal(t, "a1", rec.ID())
	assert.Equal(t, "Alpha", rec.Name())
	assert.Equal(t, "shape", rec.Category())
	assert.Equal(t, Int(3), rec.Object["sides"])
	assert.Equal(t, Object{"k": Array{Int(1), Int(2)}}, rec.Object["extra"])
}

func TestParseRecordInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an object", `[1,2]`},
		{"missing id", `{"name":"n","category":"icon"}`},
		{"empty id", `{"id":"","name":"n","category":"icon"}`},
		{"numeric name", `{"id":"x","name":5,"category":"icon"}`},
		{"unknown category", `{"id":"x","name":"n","category":"font"}`},
		{"number out of range", `{"id":"x","name":"n","category":"icon","w":1e400}`},
		{"trailing data", `{"id":"x","name":"n","category":"icon"} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseRecordNumbers(t *testing.T) {
	rec, err := Parse([]byte(`{"id":"a","name":"A","category":"icon","scale":1.5,"big":1e3,"whole":2.0,"n":-7}`))
	require.NoError(t, err)

	assert.Equal(t, Float(1.5), rec.Object["scale"])
	assert.Equal(t, Float(1000), rec.Object["big"])
	assert.Equal(t, Float(2), rec.Object["whole"])
	assert.Equal(t, Int(-7), rec.Object["n"])

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"big":1000,"category":"icon","id":"a","n":-7,"name":"A","scale":1.5,"whole":2}`, string(out))
}

func TestRecordAccessorsOnMissingFields(t *testing.T) {
	rec := New(Object{"id": Int(7)})
	assert.Equal(t, "", rec.ID())
	assert.Equal(t, "", rec.Name())
	assert.Equal(t, "", rec.Category())
	assert.Error(t, rec.Validate())
	assert.Error(t, Record{}.Validate())
}

func TestIsCategory(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, IsCategory(c), c)
	}
	assert.False(t, IsCategory("Icon"))
	assert.False(t, IsCategory(""))
}

func TestRecordJSONRoundTrip(t *testing.T) {
	input := `{"name":"N","id":"i","category":"photo","w":640}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(input), &rec))

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"category":"photo","id":"i","name":"N","w":640}`, string(out))
}

func TestDecodeRecordSlice(t *testing.T) {
	var recs []Record
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","name":"A","category":"icon"},{"id":"b","name":"B","category":"template"}]`), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].ID())
}

func TestStripAll(t *testing.T) {
	rec := New(Object{"id": String("a"), "name": String("A"), "category": String("icon")})
	stored := []Stored{{Record: rec, StoredAt: time.Now(), Version: "v2024.01.01-r1"}}

	stripped := StripAll(stored)
	require.Len(t, stripped, 1)
	assert.Equal(t, rec, stripped[0])
	assert.Equal(t, rec, stored[0].Strip())
}

func TestContentHash(t *testing.T) {
	records := []Record{
		New(Object{
			"id":       String("arrow-left"),
			"name":     String("Arrow Left"),
			"category": String("icon"),
			"size":     Int(24),
			"tags":     Array{String("nav"), String("ui")},
		}),
		New(Object{
			"id":       String("dots"),
			"name":     String("Dots & Stripes"),
			"category": String("pattern"),
			"meta": Object{
				"author":  String("studio"),
				"draft":   Bool(false),
				"license": Null{},
			},
		}),
	}

	h, err := ContentHash(records)
	require.NoError(t, err)
	assert.Equal(t, "461f99f9d90c4d147572053924c733d18986769f53dee89e27b4ac46baeec902", h)
	assert.Len(t, h, 64)

	empty := MustContentHash([]Record{})
	assert.Equal(t, "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945", empty)
}

func TestContentHashOrderSensitive(t *testing.T) {
	a := New(Object{"id": String("a"), "name": String("A"), "category": String("icon")})
	b := New(Object{"id": String("b"), "name": String("B"), "category": String("icon")})

	h1 := MustContentHash([]Record{a, b})
	h2 := MustContentHash([]Record{b, a})
	assert.NotEqual(t, h1, h2)
}

func TestHashesEqual(t *testing.T) {
	assert.True(t, HashesEqual("ABCDEF", "abcdef"))
	assert.False(t, HashesEqual("", ""))
	assert.False(t, HashesEqual("abc", "abd"))
}

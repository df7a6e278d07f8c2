package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/record"
)

func ids(stored []record.Stored) []string {
	out := make([]string, len(stored))
	for i, s := range stored {
		out[i] = s.ID()
	}
	return out
}

func TestStoreRecord_Basic(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := record.New(record.Object{
		"id":       record.String("arrow"),
		"name":     record.String("Arrow"),
		"category": record.String("icon"),
		"size":     record.Int(24),
		"tags":     record.Array{record.String("nav")},
	})
	require.NoError(t, s.StoreRecord(ctx, rec, "v2024.01.01"))

	got, err := s.GetRecord(ctx, "arrow")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, got.Strip())
	assert.Equal(t, "v2024.01.01", got.Version)
	assert.True(t, got.StoredAt.Equal(testNow), "StoredAt = %v", got.StoredAt)
}

func TestStoreRecord_Upsert(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecord(ctx, createTestRecord("a", "First", "icon"), "v1.0.0"))
	require.NoError(t, s.StoreRecord(ctx, createTestRecord("a", "Second", "shape"), "v1.1.0"))

	got, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Second", got.Name())
	assert.Equal(t, "shape", got.Category())
	assert.Equal(t, "v1.1.0", got.Version)

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreRecords_RejectsMissingID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	recs := []record.Record{
		createTestRecord("ok", "OK", "icon"),
		record.New(record.Object{"name": record.String("no id")}),
	}
	err := s.StoreRecords(ctx, recs, "v1.0.0")
	require.Error(t, err)
	assert.Equal(t, KindRecordStore, KindOf(err))

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no record should be written when one is invalid")
}

func TestReplaceRecords(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, createTestRecords(5), "v1.0.0"))
	replacement := []record.Record{
		createTestRecord("rec-002", "Kept", "icon"),
		createTestRecord("new", "New", "photo"),
	}
	require.NoError(t, s.ReplaceRecords(ctx, replacement, "v2.0.0"))

	all, err := s.GetAllRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "rec-002"}, ids(all))
	for _, r := range all {
		assert.Equal(t, "v2.0.0", r.Version)
	}
}

func TestReplaceRecords_Empty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, createTestRecords(2), "v1.0.0"))
	require.NoError(t, s.ReplaceRecords(ctx, nil, "v2.0.0"))

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetRecord_NotFound(t *testing.T) {
	s := createTestStore(t)
	got, err := s.GetRecord(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAllRecords_OrderedByID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, []record.Record{
		createTestRecord("c", "C", "icon"),
		createTestRecord("a", "A", "icon"),
		createTestRecord("B", "B", "icon"),
	}, "v1.0.0"))

	all, err := s.GetAllRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a", "c"}, ids(all))
}

func TestGetAllRecords_Empty(t *testing.T) {
	all, err := createTestStore(t).GetAllRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSearchRecords(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, []record.Record{
		createTestRecord("arrow-left", "Arrow Left", "icon"),
		createTestRecord("arrow-right", "Arrow Right", "icon"),
		createTestRecord("dots", "Polka Dots", "pattern"),
		createTestRecord("pct", "100% Off", "template"),
		createTestRecord("snake_case", "Under Score", "shape"),
	}, "v1.0.0"))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by name case-insensitive", "ARROW", []string{"arrow-left", "arrow-right"}},
		{"by id", "dots", []string{"dots"}},
		{"ordered by name", "o", []string{"pct", "arrow-left", "arrow-right", "dots", "snake_case"}},
		{"percent is literal", "%", []string{"pct"}},
		{"underscore is literal", "_", []string{"snake_case"}},
		{"no match", "zebra", nil},
		{"empty query returns all", "", []string{"arrow-left", "arrow-right", "dots", "pct", "snake_case"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchRecords(ctx, tt.query)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSearchRecords_UnicodeFolding(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecord(ctx, createTestRecord("strasse", "Große Straße", "photo"), "v1.0.0"))

	got, err := s.SearchRecords(ctx, "GROSSE")
	require.NoError(t, err)
	assert.Equal(t, []string{"strasse"}, ids(got))
}

func TestSearchRecords_SeparatorDoesNotSpanFields(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, []record.Record{
		createTestRecord("b-id", "name-a", "icon"),
		createTestRecord("odd", "x\x1fy", "icon"),
	}, "v1.0.0"))

	got, err := s.SearchRecords(ctx, "a\x1fb")
	require.NoError(t, err)
	assert.Empty(t, got, "query must not match across the name/id boundary")

	got, err = s.SearchRecords(ctx, "\x1f")
	require.NoError(t, err)
	assert.Equal(t, []string{"odd"}, ids(got))

	got, err = s.SearchRecords(ctx, "X\x1fY")
	require.NoError(t, err)
	assert.Equal(t, []string{"odd"}, ids(got))
}

func TestStoreRecord_FractionalNumbers(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	rec := record.New(record.Object{
		"id":       record.String("dial"),
		"name":     record.String("Dial"),
		"category": record.String("icon"),
		"scale":    record.Float(1.5),
		"tiny":     record.Float(1e-7),
	})
	require.NoError(t, s.StoreRecord(ctx, rec, "v1.0.0"))

	got, err := s.GetRecord(ctx, "dial")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, got.Strip())
}

func TestGetRecordsByCategory(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, []record.Record{
		createTestRecord("b", "B", "shape"),
		createTestRecord("a", "A", "shape"),
		createTestRecord("c", "C", "icon"),
	}, "v1.0.0"))

	got, err := s.GetRecordsByCategory(ctx, "shape")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestClearRecords(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.StoreRecords(ctx, createTestRecords(4), "v1.0.0"))
	require.NoError(t, s.ClearRecords(ctx))

	n, err := s.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoredAtUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	s := createTestStoreWithConfig(t, Config{Now: func() time.Time { return at }})

	require.NoError(t, s.StoreRecord(ctx, createTestRecord("a", "A", "icon"), "v1.0.0"))
	got, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, at.UnixMilli(), got.StoredAt.UnixMilli())
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%abc%", likePattern("ABC"))
	assert.Equal(t, `%a\%b\_c\\%`, likePattern(`a%b_c\`))
	assert.Equal(t, "%a\uFFFDb%", likePattern("A\x1fB"))
}

package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/record"
)

func TestSchemaCategoriesMatchRecordModel(t *testing.T) {
	s, err := loadSchema()
	require.NoError(t, err)

	for _, c := range record.Categories {
		data := []byte(`{"id":"x","name":"X","category":"` + c + `"}`)
		assert.NoError(t, s.validateRecord(data), c)
	}
	assert.Error(t, s.validateRecord([]byte(`{"id":"x","name":"X","category":"other"}`)))
}

func TestSchemaManifest(t *testing.T) {
	s, err := loadSchema()
	require.NoError(t, err)

	hash := "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945"
	assert.NoError(t, s.validateManifest([]byte(`{"version":"v2024.01.01-r1","contentHash":"`+hash+`","schemaVersion":1}`)))
	assert.Error(t, s.validateManifest([]byte(`{"version":"v2024.01.01-r1","contentHash":"nothex","schemaVersion":1}`)))
	assert.Error(t, s.validateManifest([]byte(`{"version":"v2024.01.01-r1","contentHash":"`+hash+`","schemaVersion":1,"recordCount":-1}`)))
	assert.Error(t, s.validateManifest([]byte(`{"version":"v2024.01.01-r1","contentHash":"`+hash+`","schemaVersion":"1"}`)))
}

func TestCleanEntryName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"manifest.json", "manifest.json", true},
		{"./assets/a.svg", "assets/a.svg", true},
		{"assets/", "assets", true},
		{`assets\b.svg`, "assets/b.svg", true},
		{"/etc/passwd", "", false},
		{"../escape", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := cleanEntryName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, ok, err := s.GetMetadata(ctx, MetaVersion)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMetadata(ctx, MetaVersion, "v1.0.0"))
	require.NoError(t, s.SetMetadata(ctx, MetaVersion, "v1.1.0"))

	v, ok, err := s.GetMetadata(ctx, MetaVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1.1.0", v)

	require.NoError(t, s.DeleteMetadata(ctx, MetaVersion))
	require.NoError(t, s.DeleteMetadata(ctx, MetaVersion))
	_, ok, err = s.GetMetadata(ctx, MetaVersion)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetadata_EmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SetMetadata(ctx, MetaContentHash, ""))
	v, ok, err := s.GetMetadata(ctx, MetaContentHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestSettingsAreSeparateFromMetadata(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SetSetting(ctx, "version", "user-choice"))
	require.NoError(t, s.SetMetadata(ctx, "version", "v1.0.0"))

	setting, ok, err := s.GetSetting(ctx, "version")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-choice", setting)

	require.NoError(t, s.ClearMetadata(ctx))
	_, ok, err = s.GetSetting(ctx, "version")
	require.NoError(t, err)
	assert.True(t, ok, "ClearMetadata must not touch settings")

	require.NoError(t, s.ClearSettings(ctx))
	_, ok, err = s.GetSetting(ctx, "version")
	require.NoError(t, err)
	assert.False(t, ok)
}

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp := newCheckpoint()
	cp.add("alice@src.com")
	cp.add("bob@src.com")
	cp.MergedToDestination = 1
	cp.Skipped = 1
	require.NoError(t, cp.save(path))

	loaded, err := loadCheckpoint(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.Processed, loaded.Processed)
	assert.Equal(t, 1, loaded.MergedToDestination)
	assert.Equal(t, 1, loaded.Skipped)
	assert.True(t, loaded.has("alice@src.com"))
	assert.True(t, loaded.has("bob@src.com"))
	assert.False(t, loaded.has("carol@src.com"))
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	cp, err := loadCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointAddIsIdempotent(t *testing.T) {
	cp := newCheckpoint()
	cp.add("alice@src.com")
	cp.add("alice@src.com")
	assert.Len(t, cp.Processed, 1, "replaying the same input must not duplicate entries")
}

func TestClearCheckpointMissingFile(t *testing.T) {
	assert.NoError(t, clearCheckpoint(filepath.Join(t.TempDir(), "absent.json")))
}

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := setupSnapshotDB(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	srcUsers := []UserRecord{
		makeUser("s1", "alice@src.com", map[string]any{
			"department":     "Sales",
			"businessPhones": []string{"1", "2"},
		}),
		makeUser("s2", "bob@src.com", map[string]any{"department": "Ops"}),
	}
	dstUsers := []UserRecord{
		makeUser("d1", "alice@dst.com", map[string]any{"department": "Marketing"}),
	}

	require.NoError(t, saveSnapshot(ctx, db, roleSource, srcUsers))
	require.NoError(t, saveSnapshot(ctx, db, roleDestination, dstUsers))

	srcReader := &cachedDirectory{db: db, role: roleSource}
	loaded, err := srcReader.listUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "s1", loaded[0].ID)
	assert.Equal(t, "alice@src.com", loaded[0].UPN)
	assert.Equal(t, "Sales", loaded[0].Attributes["department"])
	assert.Equal(t, []string{"1", "2"}, loaded[0].Attributes["businessPhones"],
		"multi-valued attributes survive the JSON round-trip in order")

	dstReader := &cachedDirectory{db: db, role: roleDestination}
	loadedDst, err := dstReader.listUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, loadedDst, 1)
	assert.Equal(t, "Marketing", loadedDst[0].Attributes["department"])
}

func TestSaveSnapshotReplacesPreviousSet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := setupSnapshotDB(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	first := []UserRecord{makeUser("s1", "alice@src.com", nil)}
	second := []UserRecord{makeUser("s2", "bob@src.com", nil)}
	require.NoError(t, saveSnapshot(ctx, db, roleSource, first))
	require.NoError(t, saveSnapshot(ctx, db, roleSource, second))

	reader := &cachedDirectory{db: db, role: roleSource}
	loaded, err := reader.listUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "bob@src.com", loaded[0].UPN)
}

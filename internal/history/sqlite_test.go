package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := Record{
		BuildID:        "b-1",
		StartedAt:      start,
		FinishedAt:     start.Add(3 * time.Minute),
		Outcome:        "SUCCEEDED",
		ParserExitCode: 0,
		Selection:      "scheme: MyApp",
		SDK:            "iphoneos",
		Configuration:  "Release",
		Version:        "40",
		ShortVersion:   "2.1",
		Commit:         "abc123",
		Branch:         "main",
		Artifacts:      []string{"/out/MyApp-2.1-40.ipa"},
	}
	require.NoError(t, store.Record(ctx, rec))

	got, err := store.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, rec.BuildID, got.BuildID)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 3*time.Minute, got.Duration())
	assert.Equal(t, rec.Artifacts, got.Artifacts)
	assert.Equal(t, "2.1", got.ShortVersion)

	rec.Outcome = "FAILED"
	require.NoError(t, store.Record(ctx, rec), "re-recording replaces")
	got, err = store.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", got.Outcome)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Recent(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Record(ctx, Record{BuildID: id, StartedAt: at, FinishedAt: at, Outcome: "SUCCEEDED"}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].BuildID)
	assert.Equal(t, "b", recent[1].BuildID)
	assert.Nil(t, recent[0].Artifacts)
}

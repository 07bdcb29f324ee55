package track

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertAndList(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "nested", "tracks.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	empty, err := repo.ListTracks(ctx)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id1, err := repo.InsertTrack(ctx, Track{Title: "First", Duration: "3:25", CreatedAt: created})
	require.NoError(t, err)
	id2, err := repo.InsertTrack(ctx, Track{Title: "Second", Duration: "1:02:03", CreatedAt: created.Add(time.Minute)})
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	tracks, err := repo.ListTracks(ctx)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	require.Equal(t, "First", tracks[0].Title)
	require.Equal(t, "3:25", tracks[0].Duration)
	require.NotNil(t, tracks[0].TrackID)
	require.Equal(t, id1, *tracks[0].TrackID)
	require.True(t, created.Equal(tracks[0].CreatedAt), "created_at=%s", tracks[0].CreatedAt)
	require.Equal(t, "Second", tracks[1].Title)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.db")
	repo, err := Open(path)
	require.NoError(t, err)
	_, err = repo.InsertTrack(context.Background(), Track{Title: "Kept", Duration: "0:10", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	tracks, err := again.ListTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	require.Equal(t, "Kept", tracks[0].Title)
}

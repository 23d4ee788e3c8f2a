// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/imaging"
	"github.com/inkframe/inkframe/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := NewManager(s, imaging.NewPool(1), time.UTC)
	seq := 0
	m.genID = func() string {
		seq++
		return fmt.Sprintf("img-%03d", seq)
	}
	return m
}

func testImage(title string) NewImage {
	return NewImage{
		Title:  title,
		Source: "upload",
		Params: imaging.DefaultParams(),
		Result: &imaging.Result{
			Pixels:       []byte{0, 0, 0, 255, 255, 255},
			Width:        1200,
			Height:       1600,
			ThumbnailPNG: []byte("png:" + title),
		},
	}
}

func TestIngestMakesCurrent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.Ingest(ctx, testImage("Water Lilies"))
	require.NoError(t, err)
	assert.Equal(t, "img-001", id)

	cur, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, cur.ImageID)
	assert.Equal(t, "Water Lilies", cur.Title)
	assert.Equal(t, DefaultSleepDuration, cur.SleepDuration)

	pixels, err := m.Pixels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 255, 255, 255}, pixels)

	hist, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, id, hist[0].ImageID)
	assert.Equal(t, "/api/thumbnail/img-001.png", hist[0].Thumbnail)
}

func TestCurrentWithoutImage(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Current(context.Background())
	require.ErrorIs(t, err, ErrNoImage)

	_, err = m.Pixels(context.Background())
	require.ErrorIs(t, err, ErrNoImage)
}

func TestArchiveWithoutSwap(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Ingest(ctx, testImage("first"))
	require.NoError(t, err)

	// Upload semantics: archived but not shown until applied.
	second, err := m.Archive(ctx, testImage("second"))
	require.NoError(t, err)

	cur, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cur.ImageID)

	require.NoError(t, m.SetCurrent(ctx, second))
	cur, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, cur.ImageID)
}

func TestSetCurrentUnknownImage(t *testing.T) {
	m := newTestManager(t)
	err := m.SetCurrent(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownImage)
}

func TestArchiveEvictionKeepsHistoryInLockstep(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < maxArchive+3; i++ {
		_, err := m.Archive(ctx, testImage(fmt.Sprintf("img %d", i)))
		require.NoError(t, err)
	}

	idx, err := store.Get[archiveIndex](ctx, m.store, entityImages)
	require.NoError(t, err)
	assert.Len(t, idx.Entries, maxArchive)
	assert.Equal(t, "img-004", idx.Entries[0].ImageID, "oldest three evicted")

	hist, err := m.History(ctx)
	require.NoError(t, err)
	assert.Len(t, hist, maxArchive)
	for _, e := range hist {
		_, ok := idx.find(e.ImageID)
		assert.True(t, ok, "history entry %s must have an archive row", e.ImageID)
	}

	// Evicted blobs are gone, surviving ones remain.
	_, err = m.store.ReadBlob(ctx, pixelBlob("img-001"))
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.store.ReadBlob(ctx, pixelBlob("img-004"))
	require.NoError(t, err)
}

func TestHistoryNewestFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := m.Archive(ctx, testImage(title))
		require.NoError(t, err)
	}

	hist, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "c", hist[0].Title)
	assert.Equal(t, "a", hist[2].Title)
}

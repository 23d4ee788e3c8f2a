// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/store"
)

// Playlist rotation modes.
const (
	ModeSequential = "sequential"
	ModeRandom     = "random"
)

// MinPlaylistInterval is the smallest allowed rotation interval, in
// microseconds (5 minutes).
const MinPlaylistInterval int64 = 300_000_000

// ErrBadPlaylist marks an invalid playlist submitted by a client.
var ErrBadPlaylist = errors.New("frame: invalid playlist")

// Playlist rotates the current image through archived images. Interval is in
// microseconds; advancement is lazy, triggered by device polls (see
// Manager.Current).
type Playlist struct {
	Active       bool      `json:"active"`
	Mode         string    `json:"mode"`
	Interval     int64     `json:"interval"`
	Images       []string  `json:"images"`
	CurrentIndex int       `json:"currentIndex"`
	LastUpdate   time.Time `json:"lastUpdate"`
}

// Playlist returns the stored playlist, or an inactive default.
func (m *Manager) Playlist(ctx context.Context) (Playlist, error) {
	pl, err := store.Get[Playlist](ctx, m.store, entityPlaylist)
	if errors.Is(err, store.ErrNotFound) {
		return Playlist{Mode: ModeSequential, Interval: DefaultSleepDuration}, nil
	}
	return pl, err
}

// SavePlaylist validates and stores a playlist. Unknown imageIds are dropped
// and remaining images deduplicated by artwork fingerprint, first kept.
func (m *Manager) SavePlaylist(ctx context.Context, pl Playlist) (Playlist, error) {
	if pl.Mode == "" {
		pl.Mode = ModeSequential
	}
	if pl.Mode != ModeSequential && pl.Mode != ModeRandom {
		return Playlist{}, fmt.Errorf("%w: mode %q", ErrBadPlaylist, pl.Mode)
	}
	if pl.Interval < MinPlaylistInterval {
		return Playlist{}, fmt.Errorf("%w: interval %dµs below 5 minute minimum", ErrBadPlaylist, pl.Interval)
	}

	idx, err := store.Get[archiveIndex](ctx, m.store, entityImages)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Playlist{}, err
	}
	pl.Images = dedupeImages(pl.Images, idx)

	if pl.CurrentIndex < 0 || pl.CurrentIndex >= len(pl.Images) {
		pl.CurrentIndex = 0
	}
	if pl.LastUpdate.IsZero() {
		pl.LastUpdate = m.now()
	}

	if err := store.Put(ctx, m.store, entityPlaylist, pl); err != nil {
		return Playlist{}, err
	}
	return pl, nil
}

// DeletePlaylist deactivates and empties the playlist.
func (m *Manager) DeletePlaylist(ctx context.Context) error {
	return store.Put(ctx, m.store, entityPlaylist, Playlist{
		Mode:       ModeSequential,
		Interval:   DefaultSleepDuration,
		LastUpdate: m.now(),
	})
}

// dedupeImages keeps archive-backed ids only, collapsing re-imports of the
// same artwork (same source/title/artist) to the first occurrence.
func dedupeImages(ids []string, idx archiveIndex) []string {
	seenID := make(map[string]struct{}, len(ids))
	seenFP := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seenID[id]; dup {
			continue
		}
		seenID[id] = struct{}{}
		entry, ok := idx.find(id)
		if !ok {
			continue
		}
		fp := entry.Fingerprint()
		if _, dup := seenFP[fp]; dup {
			continue
		}
		seenFP[fp] = struct{}{}
		out = append(out, id)
	}
	return out
}

// advanceIfDue performs the lazy playlist advance. Caller holds m.mu.
//
// The elapsed check compares wall milliseconds against interval/1000, so a
// playlist at interval=3_600_000_000µs advances once an hour.
func (m *Manager) advanceIfDue(ctx context.Context) error {
	pl, err := store.Get[Playlist](ctx, m.store, entityPlaylist)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !pl.Active || len(pl.Images) == 0 {
		return nil
	}

	now := m.now()
	if now.Sub(pl.LastUpdate).Milliseconds() < pl.Interval/1000 {
		return nil
	}

	switch pl.Mode {
	case ModeRandom:
		pl.CurrentIndex = m.pick(len(pl.Images))
	default:
		pl.CurrentIndex = (pl.CurrentIndex + 1) % len(pl.Images)
	}
	next := pl.Images[pl.CurrentIndex]

	if err := m.setCurrentLocked(ctx, next, pl.Interval); err != nil {
		if errors.Is(err, ErrUnknownImage) {
			// The image was evicted since the playlist was saved; drop it
			// so the next poll tries a remaining one.
			pl.Images = remove(pl.Images, next)
			if pl.CurrentIndex >= len(pl.Images) {
				pl.CurrentIndex = 0
			}
			if putErr := store.Put(ctx, m.store, entityPlaylist, pl); putErr != nil {
				return putErr
			}
		}
		return err
	}

	pl.LastUpdate = now
	if err := store.Put(ctx, m.store, entityPlaylist, pl); err != nil {
		return err
	}

	metrics.RecordPlaylistAdvance()
	logger := log.WithComponentFromContext(ctx, "frame")
	logger.Info().
		Str("image_id", next).
		Int("index", pl.CurrentIndex).
		Str("mode", pl.Mode).
		Msg("playlist advanced")
	return nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

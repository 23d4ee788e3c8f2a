// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkframe/inkframe/internal/imaging"
	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/store"
)

// Manager is the single writer of the current-image state. All writers
// (upload, import, generation, history load, playlist advance) serialize on
// one mutex; the playlist advance check runs inside it so two concurrent
// device polls at an interval boundary cannot both advance.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	pipeline *imaging.Pool
	loc      *time.Location

	// overridable in tests
	now   func() time.Time
	pick  func(n int) int
	genID func() string
}

func NewManager(s store.Store, pipeline *imaging.Pool, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.Local
	}
	return &Manager{
		store:    s,
		pipeline: pipeline,
		loc:      loc,
		now:      time.Now,
		pick:     rand.Intn,
		genID:    func() string { return uuid.NewString() },
	}
}

// NewImage describes a processed image about to enter the archive.
type NewImage struct {
	Title       string
	Artist      string
	Source      string
	AIGenerated bool
	Original    []byte // source bytes, kept for re-quantization; may be nil
	Params      imaging.Params
	Result      *imaging.Result
}

// Archive stores a processed image in the archive and history without
// touching the current image. Returns the assigned imageId.
func (m *Manager) Archive(ctx context.Context, img NewImage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.archiveLocked(ctx, img)
}

// Ingest archives a processed image and immediately makes it current.
func (m *Manager) Ingest(ctx context.Context, img NewImage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.archiveLocked(ctx, img)
	if err != nil {
		return "", err
	}
	if err := m.setCurrentLocked(ctx, id, 0); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) archiveLocked(ctx context.Context, img NewImage) (string, error) {
	id := m.genID()
	ts := m.now()

	if err := m.store.WriteBlob(ctx, pixelBlob(id), img.Result.Pixels); err != nil {
		return "", err
	}
	if err := m.store.WriteBlob(ctx, thumbBlob(id), img.Result.ThumbnailPNG); err != nil {
		return "", err
	}
	hasOriginal := len(img.Original) > 0
	if hasOriginal {
		if err := m.store.WriteBlob(ctx, originalBlob(id), img.Original); err != nil {
			return "", err
		}
	}

	meta := Metadata{
		ImageID:     id,
		Title:       img.Title,
		Artist:      img.Artist,
		Source:      img.Source,
		Rotation:    img.Params.Rotation,
		Width:       img.Result.Width,
		Height:      img.Result.Height,
		AIGenerated: img.AIGenerated,
		Timestamp:   ts,
	}

	var evicted []string
	err := store.Mutate(ctx, m.store, entityImages, func(idx *archiveIndex) error {
		idx.Entries = append(idx.Entries, archiveEntry{
			Metadata:    meta,
			HasOriginal: hasOriginal,
			Params:      img.Params,
		})
		for len(idx.Entries) > maxArchive {
			evicted = append(evicted, idx.Entries[0].ImageID)
			idx.Entries = idx.Entries[1:]
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = store.Mutate(ctx, m.store, entityHistory, func(h *historyLog) error {
		h.Entries = append(h.Entries, HistoryEntry{
			ImageID:     id,
			Title:       meta.Title,
			Artist:      meta.Artist,
			Source:      meta.Source,
			AIGenerated: meta.AIGenerated,
			Timestamp:   ts,
			Thumbnail:   thumbnailPath(id),
		})
		// History evicts in lockstep with the archive.
		for _, old := range evicted {
			for i, e := range h.Entries {
				if e.ImageID == old {
					h.Entries = append(h.Entries[:i], h.Entries[i+1:]...)
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for _, old := range evicted {
		m.dropBlobs(ctx, old)
	}
	return id, nil
}

func (m *Manager) dropBlobs(ctx context.Context, imageID string) {
	logger := log.WithComponentFromContext(ctx, "frame")
	for _, name := range []string{pixelBlob(imageID), originalBlob(imageID), thumbBlob(imageID)} {
		if err := m.store.DeleteBlob(ctx, name); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Warn().Str("blob", name).Err(err).Msg("evicted blob cleanup failed")
		}
	}
}

// SetCurrent promotes an archived image to the current image.
func (m *Manager) SetCurrent(ctx context.Context, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCurrentLocked(ctx, imageID, 0)
}

// setCurrentLocked writes the current entity from an archive entry.
// sleepOverride, in microseconds, replaces the settings default when > 0
// (playlist advances pass their interval).
func (m *Manager) setCurrentLocked(ctx context.Context, imageID string, sleepOverride int64) error {
	idx, err := store.Get[archiveIndex](ctx, m.store, entityImages)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	entry, ok := idx.find(imageID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, imageID)
	}

	pixels, err := m.store.ReadBlob(ctx, pixelBlob(imageID))
	if err != nil {
		return err
	}

	sleep := sleepOverride
	if sleep <= 0 {
		sleep = m.defaultSleep(ctx)
	}

	meta := entry.Metadata
	meta.Timestamp = m.now()
	meta.SleepDuration = sleep

	// Pixels land under the fixed current blob first so the metadata write
	// is the commit point.
	if err := m.store.WriteBlob(ctx, currentPixelBlob, pixels); err != nil {
		return err
	}
	return store.Put(ctx, m.store, entityCurrent, meta)
}

func (m *Manager) defaultSleep(ctx context.Context) int64 {
	s, err := m.Settings(ctx)
	if err != nil {
		return DefaultSleepDuration
	}
	return s.DefaultSleepDuration
}

// Current returns the current-image metadata. If the playlist is active and
// its interval has elapsed, the playlist advances first, so the caller sees
// the post-advance image. SleepDuration reflects the night-sleep window.
func (m *Manager) Current(ctx context.Context) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.advanceIfDue(ctx); err != nil {
		// An advance failure must not break the device poll.
		logger := log.WithComponentFromContext(ctx, "frame")
		logger.Warn().Err(err).Msg("playlist advance failed")
	}

	meta, err := store.Get[Metadata](ctx, m.store, entityCurrent)
	if errors.Is(err, store.ErrNotFound) {
		return Metadata{}, ErrNoImage
	}
	if err != nil {
		return Metadata{}, err
	}

	if meta.SleepDuration <= 0 {
		meta.SleepDuration = m.defaultSleep(ctx)
	}
	if s, err := m.Settings(ctx); err == nil {
		meta.SleepDuration = effectiveSleep(s, meta.SleepDuration, m.now().In(m.loc))
	}
	return meta, nil
}

// Pixels returns the raw device buffer for the current image.
func (m *Manager) Pixels(ctx context.Context) ([]byte, error) {
	buf, err := m.store.ReadBlob(ctx, currentPixelBlob)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoImage
	}
	return buf, err
}

// Thumbnail returns the archived PNG thumbnail for an image.
func (m *Manager) Thumbnail(ctx context.Context, imageID string) ([]byte, error) {
	buf, err := m.store.ReadBlob(ctx, thumbBlob(imageID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImage, imageID)
	}
	return buf, err
}

// History returns the history log, newest first.
func (m *Manager) History(ctx context.Context) ([]HistoryEntry, error) {
	h, err := store.Get[historyLog](ctx, m.store, entityHistory)
	if errors.Is(err, store.ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(h.Entries))
	for i, e := range h.Entries {
		out[len(h.Entries)-1-i] = e
	}
	return out, nil
}

// Reprocess re-quantizes an archived original with new parameters, replacing
// the stored pixels and thumbnail under the same imageId, then makes the
// image current.
func (m *Manager) Reprocess(ctx context.Context, imageID string, params imaging.Params) error {
	original, err := m.store.ReadBlob(ctx, originalBlob(imageID))
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no original kept for %s", ErrUnknownImage, imageID)
	}
	if err != nil {
		return err
	}

	// Quantization runs outside the state lock; only the writes below
	// serialize with other writers.
	res, err := m.pipeline.Process(ctx, original, params)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.WriteBlob(ctx, pixelBlob(imageID), res.Pixels); err != nil {
		return err
	}
	if err := m.store.WriteBlob(ctx, thumbBlob(imageID), res.ThumbnailPNG); err != nil {
		return err
	}
	err = store.Mutate(ctx, m.store, entityImages, func(idx *archiveIndex) error {
		for i := range idx.Entries {
			if idx.Entries[i].ImageID == imageID {
				idx.Entries[i].Params = params
				idx.Entries[i].Rotation = params.Rotation
				idx.Entries[i].Width = res.Width
				idx.Entries[i].Height = res.Height
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownImage, imageID)
	})
	if err != nil {
		return err
	}
	return m.setCurrentLocked(ctx, imageID, 0)
}

// ArchiveEntryParams returns the stored processing parameters for an image,
// used to pre-fill re-quantization requests.
func (m *Manager) ArchiveEntryParams(ctx context.Context, imageID string) (imaging.Params, error) {
	idx, err := store.Get[archiveIndex](ctx, m.store, entityImages)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return imaging.Params{}, err
	}
	entry, ok := idx.find(imageID)
	if !ok {
		return imaging.Params{}, fmt.Errorf("%w: %s", ErrUnknownImage, imageID)
	}
	return entry.Params, nil
}

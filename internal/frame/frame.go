// SPDX-License-Identifier: MIT

// Package frame owns the "now showing" state of the display: the current
// image, the bounded archive/history pair, the playlist scheduler, and the
// frame settings (sleep windows, orientation).
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/imaging"
)

// Logical entity names under the store.
const (
	entityCurrent  = "current"
	entityImages   = "images"
	entityHistory  = "history"
	entityPlaylist = "playlist"
	entitySettings = "settings"
)

// maxArchive bounds the archive and history together. Eviction removes the
// oldest archive row, its blobs, and its history entry in the same update.
const maxArchive = 100

// ErrNoImage is returned when no current image has been set yet.
var ErrNoImage = errors.New("frame: no current image")

// ErrUnknownImage is returned for an imageId absent from the archive.
var ErrUnknownImage = errors.New("frame: unknown image")

// Metadata describes one processed image. Pixels and the thumbnail live in
// blobs keyed by ImageID; SleepDuration is in microseconds.
type Metadata struct {
	ImageID       string    `json:"imageId"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist,omitempty"`
	Source        string    `json:"source,omitempty"`
	Rotation      int       `json:"rotation"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	AIGenerated   bool      `json:"aiGenerated,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SleepDuration int64     `json:"sleepDuration"`
}

// Fingerprint collapses re-imports of the same artwork when deduplicating
// playlist entries.
func (m Metadata) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s", m.Source, m.Title, m.Artist)
}

// archiveEntry is one archive index row. HasOriginal records whether the
// source bytes were kept for later re-quantization.
type archiveEntry struct {
	Metadata
	HasOriginal bool           `json:"hasOriginal"`
	Params      imaging.Params `json:"params"`
}

type archiveIndex struct {
	Entries []archiveEntry `json:"entries"`
}

func (a *archiveIndex) find(imageID string) (archiveEntry, bool) {
	for _, e := range a.Entries {
		if e.ImageID == imageID {
			return e, true
		}
	}
	return archiveEntry{}, false
}

// HistoryEntry is the listing row for one archived image.
type HistoryEntry struct {
	ImageID     string    `json:"imageId"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Source      string    `json:"source,omitempty"`
	AIGenerated bool      `json:"aiGenerated,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Thumbnail   string    `json:"thumbnail"`
}

type historyLog struct {
	Entries []HistoryEntry `json:"entries"`
}

// Blob names. The current pixel buffer is duplicated under a fixed name so
// archive eviction can never invalidate the device's next poll.
func pixelBlob(imageID string) string    { return "image-" + imageID + ".rgb" }
func originalBlob(imageID string) string { return "image-" + imageID + ".orig" }
func thumbBlob(imageID string) string    { return "thumb-" + imageID + ".png" }

const currentPixelBlob = "current.rgb"

func thumbnailPath(imageID string) string {
	return "/api/thumbnail/" + imageID + ".png"
}

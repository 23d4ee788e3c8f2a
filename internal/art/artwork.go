// SPDX-License-Identifier: MIT

// Package art normalizes artworks from museum open-access APIs and federates
// searches across them.
package art

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Artwork is the normalized, external-facing artwork shape shared by all
// source adapters.
type Artwork struct {
	ID           string  `json:"id"` // "<source>-<upstreamId>"
	Title        string  `json:"title"`
	Artist       string  `json:"artist,omitempty"`
	Date         string  `json:"date,omitempty"`
	ImageURL     string  `json:"imageUrl"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Source       string  `json:"source"`
	Department   string  `json:"department,omitempty"`
	Score        float64 `json:"score,omitempty"`
}

var folder = cases.Lower(language.Und)

// normalize lowercases with full Unicode case folding so "Édouard" and
// "édouard" collapse to the same key.
func normalize(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// Fingerprint is the dedup key: the normalized image URL when present,
// otherwise normalized title|artist.
func (a Artwork) Fingerprint() string {
	if a.ImageURL != "" {
		return normalize(a.ImageURL)
	}
	return normalize(a.Title) + "|" + normalize(a.Artist)
}

var yearRe = regexp.MustCompile(`\b(\d{4})\b`)

// yearOf extracts the first four-digit year from a free-form date string.
// Returns 0 when no year is present.
func yearOf(date string) int {
	m := yearRe.FindStringSubmatch(date)
	if m == nil {
		return 0
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return y
}

// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"math/rand"
	"strings"
)

// CuratedAdapter serves a static in-process collection. It backs the curated
// endpoint and doubles as an always-available source when every remote API is
// down.
type CuratedAdapter struct {
	works []Artwork
}

// NewCuratedAdapter builds the static collection. The default set is a small
// list of public-domain staples with stable upstream image URLs.
func NewCuratedAdapter(works []Artwork) *CuratedAdapter {
	if works == nil {
		works = defaultCurated
	}
	return &CuratedAdapter{works: works}
}

func (c *CuratedAdapter) Name() string { return "curated" }

func (c *CuratedAdapter) Search(_ context.Context, query string, limit, offset int) ([]Artwork, error) {
	q := normalize(query)
	var matched []Artwork
	for _, w := range c.works {
		if q == "" ||
			strings.Contains(normalize(w.Title), q) ||
			strings.Contains(normalize(w.Artist), q) {
			matched = append(matched, w)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (c *CuratedAdapter) Random(_ context.Context) (Artwork, error) {
	if len(c.works) == 0 {
		return Artwork{}, ErrNoSource
	}
	return c.works[rand.Intn(len(c.works))], nil
}

// All returns the whole collection, for the curated listing endpoint.
func (c *CuratedAdapter) All() []Artwork {
	out := make([]Artwork, len(c.works))
	copy(out, c.works)
	return out
}

var defaultCurated = []Artwork{
	{
		ID:       "curated-starry-night",
		Title:    "The Starry Night",
		Artist:   "Vincent van Gogh",
		Date:     "1889",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/e/ea/Van_Gogh_-_Starry_Night_-_Google_Art_Project.jpg",
		Source:   "curated",
	},
	{
		ID:       "curated-great-wave",
		Title:    "The Great Wave off Kanagawa",
		Artist:   "Katsushika Hokusai",
		Date:     "1831",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/a/a5/Tsunami_by_hokusai_19th_century.jpg",
		Source:   "curated",
	},
	{
		ID:       "curated-girl-pearl",
		Title:    "Girl with a Pearl Earring",
		Artist:   "Johannes Vermeer",
		Date:     "1665",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/d/d7/Meisje_met_de_parel.jpg",
		Source:   "curated",
	},
	{
		ID:       "curated-wanderer",
		Title:    "Wanderer above the Sea of Fog",
		Artist:   "Caspar David Friedrich",
		Date:     "1818",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/b/b9/Caspar_David_Friedrich_-_Wanderer_above_the_sea_of_fog.jpg",
		Source:   "curated",
	},
	{
		ID:       "curated-water-lilies",
		Title:    "Water Lilies",
		Artist:   "Claude Monet",
		Date:     "1906",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/a/aa/Claude_Monet_-_Water_Lilies_-_1906%2C_Ryerson.jpg",
		Source:   "curated",
	},
	{
		ID:       "curated-composition-viii",
		Title:    "Composition VIII",
		Artist:   "Wassily Kandinsky",
		Date:     "1923",
		ImageURL: "https://upload.wikimedia.org/wikipedia/commons/7/75/Vassily_Kandinsky%2C_1923_-_Composition_8.jpg",
		Source:   "curated",
	},
}

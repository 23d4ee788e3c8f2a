// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// HarvardAdapter queries the Harvard Art Museums API. Requires an API key.
type HarvardAdapter struct {
	base    string
	key     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHarvardAdapter(base, key string) *HarvardAdapter {
	if base == "" {
		base = "https://api.harvardartmuseums.org"
	}
	return &HarvardAdapter{
		base:    base,
		key:     key,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(5), 3),
	}
}

func (h *HarvardAdapter) Name() string { return "harvard" }

type harvardResponse struct {
	Records []struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		Dated  string `json:"dated"`
		People []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"people"`
		PrimaryImageURL string `json:"primaryimageurl"`
		Division        string `json:"division"`
	} `json:"records"`
}

func (h *HarvardAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	page := offset/max(limit, 1) + 1
	searchURL := fmt.Sprintf("%s/object?apikey=%s&q=%s&size=%d&page=%d&hasimage=1&classification=Paintings",
		h.base, url.QueryEscape(h.key), url.QueryEscape(query), limit+offset, page)

	var sr harvardResponse
	if err := getJSON(ctx, h.client, h.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.Records))
	for _, d := range sr.Records {
		if d.PrimaryImageURL == "" {
			continue
		}
		artist := ""
		for _, p := range d.People {
			if p.Role == "Artist" || artist == "" {
				artist = p.Name
			}
		}
		results = append(results, Artwork{
			ID:           fmt.Sprintf("harvard-%d", d.ID),
			Title:        d.Title,
			Artist:       artist,
			Date:         d.Dated,
			ImageURL:     d.PrimaryImageURL,
			ThumbnailURL: d.PrimaryImageURL + "?width=400",
			Source:       "harvard",
			Department:   d.Division,
		})
	}
	return results, nil
}

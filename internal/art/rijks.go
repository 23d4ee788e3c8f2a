// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// RijksAdapter queries the Rijksmuseum API. It requires an API key; without
// one the adapter is not registered.
type RijksAdapter struct {
	base    string
	key     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewRijksAdapter(base, key string) *RijksAdapter {
	if base == "" {
		base = "https://www.rijksmuseum.nl/api/en"
	}
	return &RijksAdapter{
		base:    base,
		key:     key,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(5), 3),
	}
}

func (r *RijksAdapter) Name() string { return "rijks" }

type rijksResponse struct {
	ArtObjects []struct {
		ObjectNumber          string `json:"objectNumber"`
		Title                 string `json:"title"`
		PrincipalOrFirstMaker string `json:"principalOrFirstMaker"`
		LongTitle             string `json:"longTitle"`
		WebImage              struct {
			URL string `json:"url"`
		} `json:"webImage"`
		HeaderImage struct {
			URL string `json:"url"`
		} `json:"headerImage"`
	} `json:"artObjects"`
}

func (r *RijksAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	page := offset/max(limit, 1) + 1
	searchURL := fmt.Sprintf("%s/collection?key=%s&q=%s&ps=%d&p=%d&imgonly=True&type=painting",
		r.base, url.QueryEscape(r.key), url.QueryEscape(query), limit+offset, page)

	var sr rijksResponse
	if err := getJSON(ctx, r.client, r.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.ArtObjects))
	for _, d := range sr.ArtObjects {
		if d.WebImage.URL == "" {
			continue
		}
		results = append(results, Artwork{
			ID:           "rijks-" + d.ObjectNumber,
			Title:        d.Title,
			Artist:       d.PrincipalOrFirstMaker,
			Date:         dateFromLongTitle(d.LongTitle),
			ImageURL:     d.WebImage.URL,
			ThumbnailURL: d.HeaderImage.URL,
			Source:       "rijks",
			Department:   "Paintings",
		})
	}
	return results, nil
}

// dateFromLongTitle extracts the trailing date the Rijksmuseum embeds in
// "Title, Artist, 1642" long titles.
func dateFromLongTitle(longTitle string) string {
	if y := yearOf(longTitle); y > 0 {
		return fmt.Sprintf("%d", y)
	}
	return ""
}

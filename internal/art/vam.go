// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// VAMAdapter queries the Victoria and Albert Museum API. Images are served
// from their IIIF endpoint keyed by the primary image id.
type VAMAdapter struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewVAMAdapter(base string) *VAMAdapter {
	if base == "" {
		base = "https://api.vam.ac.uk/v2"
	}
	return &VAMAdapter{
		base:    base,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(5), 3),
	}
}

func (v *VAMAdapter) Name() string { return "vam" }

type vamResponse struct {
	Records []struct {
		SystemNumber string `json:"systemNumber"`
		Title        string `json:"_primaryTitle"`
		Maker        struct {
			Name string `json:"name"`
		} `json:"_primaryMaker"`
		Date    string `json:"_primaryDate"`
		ImageID string `json:"_primaryImageId"`
	} `json:"records"`
}

func (v *VAMAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	page := offset/max(limit, 1) + 1
	searchURL := fmt.Sprintf("%s/objects/search?q=%s&page_size=%d&page=%d&images_exist=1&kw_object_type=painting",
		v.base, url.QueryEscape(query), limit+offset, page)

	var sr vamResponse
	if err := getJSON(ctx, v.client, v.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.Records))
	for _, d := range sr.Records {
		if d.ImageID == "" {
			continue
		}
		results = append(results, Artwork{
			ID:           "vam-" + d.SystemNumber,
			Title:        d.Title,
			Artist:       d.Maker.Name,
			Date:         d.Date,
			ImageURL:     fmt.Sprintf("https://framemark.vam.ac.uk/collections/%s/full/1400,/0/default.jpg", d.ImageID),
			ThumbnailURL: fmt.Sprintf("https://framemark.vam.ac.uk/collections/%s/full/400,/0/default.jpg", d.ImageID),
			Source:       "vam",
			Department:   "Paintings",
		})
	}
	return results, nil
}

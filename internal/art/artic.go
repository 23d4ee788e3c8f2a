// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// ArticAdapter queries the Art Institute of Chicago API. Images come from
// their IIIF server keyed by image_id.
type ArticAdapter struct {
	base    string
	iiif    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewArticAdapter(base string) *ArticAdapter {
	iiif := "https://www.artic.edu/iiif/2"
	if base == "" {
		base = "https://api.artic.edu/api/v1"
	} else {
		iiif = base + "/iiif/2"
	}
	return &ArticAdapter{
		base:    base,
		iiif:    iiif,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

func (a *ArticAdapter) Name() string { return "artic" }

type articSearchResponse struct {
	Data []struct {
		ID              int    `json:"id"`
		Title           string `json:"title"`
		ArtistDisplay   string `json:"artist_display"`
		DateDisplay     string `json:"date_display"`
		ImageID         string `json:"image_id"`
		DepartmentTitle string `json:"department_title"`
		IsPublicDomain  bool   `json:"is_public_domain"`
	} `json:"data"`
}

func (a *ArticAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	page := offset/max(limit, 1) + 1
	searchURL := fmt.Sprintf(
		"%s/artworks/search?q=%s&limit=%d&page=%d&fields=id,title,artist_display,date_display,image_id,department_title,is_public_domain",
		a.base, url.QueryEscape(query), limit+offset, page)

	var sr articSearchResponse
	if err := getJSON(ctx, a.client, a.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.Data))
	for _, d := range sr.Data {
		if d.ImageID == "" || !d.IsPublicDomain {
			continue
		}
		results = append(results, Artwork{
			ID:           fmt.Sprintf("artic-%d", d.ID),
			Title:        d.Title,
			Artist:       d.ArtistDisplay,
			Date:         d.DateDisplay,
			ImageURL:     fmt.Sprintf("%s/%s/full/1686,/0/default.jpg", a.iiif, d.ImageID),
			ThumbnailURL: fmt.Sprintf("%s/%s/full/400,/0/default.jpg", a.iiif, d.ImageID),
			Source:       "artic",
			Department:   d.DepartmentTitle,
		})
	}
	return results, nil
}

// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// ClevelandAdapter queries the Cleveland Museum of Art open-access API.
type ClevelandAdapter struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClevelandAdapter(base string) *ClevelandAdapter {
	if base == "" {
		base = "https://openaccess-api.clevelandart.org/api"
	}
	return &ClevelandAdapter{
		base:    base,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

func (c *ClevelandAdapter) Name() string { return "cleveland" }

type clevelandResponse struct {
	Data []clevelandArtwork `json:"data"`
}

type clevelandArtwork struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Creators []struct {
		Description string `json:"description"`
	} `json:"creators"`
	CreationDate string `json:"creation_date"`
	Type         string `json:"type"`
	Department   string `json:"department"`
	ShareLicense string `json:"share_license_status"`
	Images       struct {
		Web struct {
			URL string `json:"url"`
		} `json:"web"`
		Print struct {
			URL string `json:"url"`
		} `json:"print"`
	} `json:"images"`
}

func (c *ClevelandAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	searchURL := fmt.Sprintf("%s/artworks/?q=%s&limit=%d&skip=%d&has_image=1&cc0=1",
		c.base, url.QueryEscape(query), limit+offset, 0)

	var sr clevelandResponse
	if err := getJSON(ctx, c.client, c.limiter, searchURL, &sr); err != nil {
		return nil, err
	}
	return c.convert(sr.Data), nil
}

func (c *ClevelandAdapter) convert(data []clevelandArtwork) []Artwork {
	results := make([]Artwork, 0, len(data))
	for _, d := range data {
		if d.Images.Web.URL == "" {
			continue
		}
		if d.ShareLicense != "" && d.ShareLicense != "CC0" {
			continue
		}
		if d.Type != "" && d.Type != "Painting" {
			continue
		}
		artist := ""
		if len(d.Creators) > 0 {
			artist = d.Creators[0].Description
			// Upstream appends life dates: "Claude Monet (French, 1840-1926)".
			if i := strings.Index(artist, " ("); i > 0 {
				artist = artist[:i]
			}
		}
		imageURL := d.Images.Print.URL
		if imageURL == "" {
			imageURL = d.Images.Web.URL
		}
		results = append(results, Artwork{
			ID:           fmt.Sprintf("cleveland-%d", d.ID),
			Title:        d.Title,
			Artist:       artist,
			Date:         d.CreationDate,
			ImageURL:     imageURL,
			ThumbnailURL: d.Images.Web.URL,
			Source:       "cleveland",
			Department:   d.Department,
		})
	}
	return results
}

// Random uses the API's built-in random highlight selection.
func (c *ClevelandAdapter) Random(ctx context.Context) (Artwork, error) {
	searchURL := fmt.Sprintf("%s/artworks/?has_image=1&cc0=1&highlight=1&limit=50&skip=%d",
		c.base, rand.Intn(20))

	var sr clevelandResponse
	if err := getJSON(ctx, c.client, c.limiter, searchURL, &sr); err != nil {
		return Artwork{}, err
	}
	arts := c.convert(sr.Data)
	if len(arts) == 0 {
		return Artwork{}, ErrNoSource
	}
	return arts[rand.Intn(len(arts))], nil
}

// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// WikimediaAdapter searches Wikimedia Commons for freely licensed paintings.
type WikimediaAdapter struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewWikimediaAdapter(base string) *WikimediaAdapter {
	if base == "" {
		base = "https://commons.wikimedia.org/w/api.php"
	}
	return &WikimediaAdapter{
		base:    base,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

func (w *WikimediaAdapter) Name() string { return "wikimedia" }

type wikimediaResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID    int    `json:"pageid"`
			Title     string `json:"title"`
			ImageInfo []struct {
				URL         string `json:"url"`
				ThumbURL    string `json:"thumburl"`
				ExtMetadata struct {
					Artist struct {
						Value string `json:"value"`
					} `json:"Artist"`
					DateTimeOriginal struct {
						Value string `json:"value"`
					} `json:"DateTimeOriginal"`
					LicenseShortName struct {
						Value string `json:"value"`
					} `json:"LicenseShortName"`
				} `json:"extmetadata"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *WikimediaAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	searchURL := fmt.Sprintf(
		"%s?action=query&format=json&generator=search&gsrsearch=%s&gsrnamespace=6&gsrlimit=%d&gsroffset=%d&prop=imageinfo&iiprop=url|extmetadata&iiurlwidth=400",
		w.base, url.QueryEscape(query+" painting"), limit, offset)

	var sr wikimediaResponse
	if err := getJSON(ctx, w.client, w.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.Query.Pages))
	for _, p := range sr.Query.Pages {
		if len(p.ImageInfo) == 0 || p.ImageInfo[0].URL == "" {
			continue
		}
		info := p.ImageInfo[0]
		if !freeLicense(info.ExtMetadata.LicenseShortName.Value) {
			continue
		}
		results = append(results, Artwork{
			ID:           fmt.Sprintf("wikimedia-%d", p.PageID),
			Title:        strings.TrimPrefix(p.Title, "File:"),
			Artist:       stripMarkup(info.ExtMetadata.Artist.Value),
			Date:         stripMarkup(info.ExtMetadata.DateTimeOriginal.Value),
			ImageURL:     info.URL,
			ThumbnailURL: info.ThumbURL,
			Source:       "wikimedia",
		})
	}
	return results, nil
}

func freeLicense(name string) bool {
	l := strings.ToLower(name)
	return strings.Contains(l, "public domain") ||
		strings.Contains(l, "cc0") ||
		strings.Contains(l, "cc by")
}

// stripMarkup removes the HTML fragments Commons embeds in metadata values.
func stripMarkup(s string) string {
	for {
		start := strings.Index(s, "<")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], ">")
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+1:]
	}
	return strings.TrimSpace(s)
}

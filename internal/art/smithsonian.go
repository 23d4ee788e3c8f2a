// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// SmithsonianAdapter queries the Smithsonian Open Access API. Requires an
// api.data.gov key.
type SmithsonianAdapter struct {
	base    string
	key     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewSmithsonianAdapter(base, key string) *SmithsonianAdapter {
	if base == "" {
		base = "https://api.si.edu/openaccess/api/v1.0"
	}
	return &SmithsonianAdapter{
		base:    base,
		key:     key,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Limit(5), 3),
	}
}

func (s *SmithsonianAdapter) Name() string { return "smithsonian" }

type smithsonianResponse struct {
	Response struct {
		Rows []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Content struct {
				FreeText struct {
					Name []struct {
						Content string `json:"content"`
					} `json:"name"`
					Date []struct {
						Content string `json:"content"`
					} `json:"date"`
				} `json:"freetext"`
				DescriptiveNonRepeating struct {
					OnlineMedia struct {
						Media []struct {
							Content   string `json:"content"`
							Thumbnail string `json:"thumbnail"`
							Usage     struct {
								Access string `json:"access"`
							} `json:"usage"`
						} `json:"media"`
					} `json:"online_media"`
				} `json:"descriptiveNonRepeating"`
				IndexedStructured struct {
					ObjectType []string `json:"object_type"`
				} `json:"indexedStructured"`
			} `json:"content"`
		} `json:"rows"`
	} `json:"response"`
}

func (s *SmithsonianAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	searchURL := fmt.Sprintf("%s/search?api_key=%s&q=%s+AND+online_media_type:%%22Images%%22&rows=%d&start=%d",
		s.base, url.QueryEscape(s.key), url.QueryEscape(query), limit+offset, 0)

	var sr smithsonianResponse
	if err := getJSON(ctx, s.client, s.limiter, searchURL, &sr); err != nil {
		return nil, err
	}

	results := make([]Artwork, 0, len(sr.Response.Rows))
	for _, row := range sr.Response.Rows {
		media := row.Content.DescriptiveNonRepeating.OnlineMedia.Media
		if len(media) == 0 || media[0].Content == "" {
			continue
		}
		if media[0].Usage.Access != "" && media[0].Usage.Access != "CC0" {
			continue
		}
		if !isPaintingType(row.Content.IndexedStructured.ObjectType) {
			continue
		}
		artist, date := "", ""
		if names := row.Content.FreeText.Name; len(names) > 0 {
			artist = names[0].Content
		}
		if dates := row.Content.FreeText.Date; len(dates) > 0 {
			date = dates[0].Content
		}
		results = append(results, Artwork{
			ID:           "smithsonian-" + row.ID,
			Title:        row.Title,
			Artist:       artist,
			Date:         date,
			ImageURL:     media[0].Content,
			ThumbnailURL: media[0].Thumbnail,
			Source:       "smithsonian",
		})
	}
	return results, nil
}

func isPaintingType(types []string) bool {
	if len(types) == 0 {
		return true // schema does not expose a type; keep the item
	}
	for _, t := range types {
		if t == "Paintings" || t == "Painting" {
			return true
		}
	}
	return false
}

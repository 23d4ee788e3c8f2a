// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MetAdapter queries the Metropolitan Museum of Art open-access API.
// The search endpoint returns object ids only, so each hit costs a detail
// request; those run with bounded concurrency.
type MetAdapter struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// NewMetAdapter uses the public Met API. base overrides are for tests.
func NewMetAdapter(base string) *MetAdapter {
	if base == "" {
		base = "https://collectionapi.metmuseum.org/public/collection/v1"
	}
	return &MetAdapter{
		base:   base,
		client: newHTTPClient(),
		// The Met asks for < 80 req/s; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(20), 10),
	}
}

func (m *MetAdapter) Name() string { return "met" }

type metSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	ObjectDate        string `json:"objectDate"`
	PrimaryImage      string `json:"primaryImage"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
	Department        string `json:"department"`
	Classification    string `json:"classification"`
	IsPublicDomain    bool   `json:"isPublicDomain"`
}

func (m *MetAdapter) Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error) {
	searchURL := fmt.Sprintf("%s/search?hasImages=true&isPublicDomain=true&q=%s",
		m.base, url.QueryEscape(query))

	var sr metSearchResponse
	if err := getJSON(ctx, m.client, m.limiter, searchURL, &sr); err != nil {
		return nil, err
	}
	if len(sr.ObjectIDs) == 0 {
		return nil, nil
	}

	// Over-fetch a little: some objects turn out to have no usable image or
	// the wrong classification and get filtered below.
	want := limit + offset
	scan := want * 2
	if scan > len(sr.ObjectIDs) {
		scan = len(sr.ObjectIDs)
	}
	ids := sr.ObjectIDs[:scan]

	var mu sync.Mutex
	var results []Artwork

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for _, id := range ids {
		g.Go(func() error {
			art, err := m.fetchObject(gctx, id)
			if err != nil || art == nil {
				return nil // a missing detail never fails the search
			}
			mu.Lock()
			results = append(results, *art)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Detail fetches complete in arbitrary order; restore the upstream
	// relevance order before handing results to the federator.
	order := make(map[int]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sortByUpstreamOrder(results, order)
	return results, nil
}

func (m *MetAdapter) fetchObject(ctx context.Context, id int) (*Artwork, error) {
	var obj metObject
	if err := getJSON(ctx, m.client, m.limiter, fmt.Sprintf("%s/objects/%d", m.base, id), &obj); err != nil {
		return nil, err
	}
	if obj.PrimaryImage == "" || !obj.IsPublicDomain {
		return nil, nil
	}
	if obj.Classification != "" && obj.Classification != "Paintings" {
		return nil, nil
	}
	return &Artwork{
		ID:           fmt.Sprintf("met-%d", obj.ObjectID),
		Title:        obj.Title,
		Artist:       obj.ArtistDisplayName,
		Date:         obj.ObjectDate,
		ImageURL:     obj.PrimaryImage,
		ThumbnailURL: obj.PrimaryImageSmall,
		Source:       "met",
		Department:   obj.Department,
	}, nil
}

// Random picks a random object from the European Paintings highlights.
func (m *MetAdapter) Random(ctx context.Context) (Artwork, error) {
	searchURL := m.base + "/search?departmentId=11&hasImages=true&isPublicDomain=true&q=*"

	var sr metSearchResponse
	if err := getJSON(ctx, m.client, m.limiter, searchURL, &sr); err != nil {
		return Artwork{}, err
	}
	if len(sr.ObjectIDs) == 0 {
		return Artwork{}, ErrNoSource
	}

	// A random object may lack an image; a few retries keep this cheap.
	for attempt := 0; attempt < 5; attempt++ {
		id := sr.ObjectIDs[rand.Intn(len(sr.ObjectIDs))]
		art, err := m.fetchObject(ctx, id)
		if err != nil {
			return Artwork{}, err
		}
		if art != nil {
			return *art, nil
		}
	}
	return Artwork{}, ErrNoSource
}

// sortByUpstreamOrder stable-sorts artworks by the upstream id order map.
func sortByUpstreamOrder(arts []Artwork, order map[int]int) {
	idOf := func(a Artwork) int {
		var id int
		_, _ = fmt.Sscanf(a.ID, "met-%d", &id)
		return order[id]
	}
	for i := 1; i < len(arts); i++ {
		for j := i; j > 0 && idOf(arts[j]) < idOf(arts[j-1]); j-- {
			arts[j], arts[j-1] = arts[j-1], arts[j]
		}
	}
}

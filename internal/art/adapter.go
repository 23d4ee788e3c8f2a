// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited marks an upstream 429.
	ErrRateLimited = errors.New("art: upstream rate limited")
	// ErrUpstream marks any other upstream failure.
	ErrUpstream = errors.New("art: upstream failure")
	// ErrNoSource is returned when every adapter fails.
	ErrNoSource = errors.New("art: no source available")
)

// Source is one museum open-access API. Implementations must honor ctx
// cancellation, return only items with a retrievable public-domain image URL,
// and prefix upstream ids with their source name.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit, offset int) ([]Artwork, error)
}

// RandomSource is implemented by adapters that can serve a random artwork.
// Adapters without it are skipped in the random fan-out.
type RandomSource interface {
	Random(ctx context.Context) (Artwork, error)
}

// getJSON performs a rate-limited GET and decodes the JSON body into out.
// A nil limiter skips throttling.
func getJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, out any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned %s", ErrUpstream, url, res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/inkframe/inkframe/internal/cache"
	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
)

const (
	searchCacheTTL  = time.Hour
	adapterDeadline = 5 * time.Second
	overallDeadline = 7 * time.Second
	randomDeadline  = 3 * time.Second
)

// SourceStatus reports one adapter's outcome within a federated search.
type SourceStatus struct {
	Status string `json:"status"` // ok | rate_limited | error
	Count  int    `json:"count"`
}

// SearchResult is the fused response of one federated search.
type SearchResult struct {
	Results []Artwork               `json:"results"`
	Sources map[string]SourceStatus `json:"sources"`
	HasMore bool                    `json:"hasMore"`
}

// Federator fans a search out across all configured sources, fuses the
// results, and caches fused pages for an hour by default.
type Federator struct {
	sources []Source
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
}

func NewFederator(sources []Source, c cache.Cache) *Federator {
	return &Federator{sources: sources, cache: c, ttl: searchCacheTTL}
}

// SetCacheTTL overrides the fused-page cache lifetime. Zero or negative
// values are ignored.
func (f *Federator) SetCacheTTL(d time.Duration) {
	if d > 0 {
		f.ttl = d
	}
}

func searchKey(query string, limit, offset int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d",
		strings.ToLower(strings.TrimSpace(query)), limit, offset))
	return fmt.Sprintf("search:%x", sum)
}

// Search queries every source in parallel and returns the deduped, ranked
// slice [offset, offset+limit). An individual adapter failure is reported in
// the sources map without failing the request; only a total failure errors.
func (f *Federator) Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	key := searchKey(query, limit, offset)
	if raw, ok := f.cache.Get(key); ok {
		if buf, ok := raw.([]byte); ok {
			var cached SearchResult
			if err := json.Unmarshal(buf, &cached); err == nil {
				metrics.RecordSearch(true)
				return &cached, nil
			}
		}
	}
	metrics.RecordSearch(false)

	v, err, _ := f.group.Do(key, func() (any, error) {
		res, err := f.fanOut(ctx, query, limit, offset)
		if err != nil {
			return nil, err
		}
		if buf, mErr := json.Marshal(res); mErr == nil {
			f.cache.Set(key, buf, f.ttl)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SearchResult), nil
}

type adapterOutcome struct {
	name  string
	works []Artwork
	err   error
}

func (f *Federator) fanOut(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	logger := log.WithComponentFromContext(ctx, "federator")

	ctx, cancel := context.WithTimeout(ctx, overallDeadline)
	defer cancel()

	// Each adapter fetches enough rows to cover the requested page even
	// after cross-source dedup trims overlaps.
	perSource := limit + offset

	sem := semaphore.NewWeighted(int64(len(f.sources)))
	outcomes := make(chan adapterOutcome, len(f.sources))
	var wg sync.WaitGroup

	for _, src := range f.sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes <- adapterOutcome{name: src.Name(), err: err}
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			defer sem.Release(1)

			callCtx, callCancel := context.WithTimeout(ctx, adapterDeadline)
			defer callCancel()

			start := time.Now()
			works, err := src.Search(callCtx, query, perSource, 0)
			metrics.RecordAdapterCall(src.Name(), outcomeLabel(err), time.Since(start))
			outcomes <- adapterOutcome{name: src.Name(), works: works, err: err}
		}(src)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	sources := make(map[string]SourceStatus, len(f.sources))
	byName := make(map[string][]Artwork, len(f.sources))
	succeeded := 0
	for out := range outcomes {
		switch {
		case out.err == nil:
			sources[out.name] = SourceStatus{Status: "ok", Count: len(out.works)}
			byName[out.name] = out.works
			succeeded++
		case isRateLimited(out.err):
			sources[out.name] = SourceStatus{Status: "rate_limited"}
			logger.Warn().Str("source", out.name).Msg("adapter rate limited")
		default:
			sources[out.name] = SourceStatus{Status: "error"}
			logger.Warn().Str("source", out.name).Err(out.err).Msg("adapter failed")
		}
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d adapters failed for %q", ErrNoSource, len(f.sources), query)
	}

	// Merge in configured source order so ranking ties break deterministically.
	var merged []Artwork
	for _, src := range f.sources {
		merged = append(merged, byName[src.Name()]...)
	}

	ranked := rank(dedupe(merged), query)

	result := &SearchResult{
		Sources: sources,
		HasMore: len(ranked) > offset+limit,
		Results: page(ranked, limit, offset),
	}
	return result, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isRateLimited(err):
		return "rate_limited"
	default:
		return "error"
	}
}

func isRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// dedupe collapses artworks sharing a fingerprint, keeping the first
// occurrence in merge order.
func dedupe(works []Artwork) []Artwork {
	seen := make(map[string]struct{}, len(works))
	out := works[:0:0]
	for _, w := range works {
		fp := w.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, w)
	}
	return out
}

// rank scores each artwork against the query and stable-sorts descending, so
// equal scores keep merge order (source order, then upstream order).
func rank(works []Artwork, query string) []Artwork {
	q := normalize(query)
	for i := range works {
		works[i].Score = scoreArtwork(works[i], q)
	}
	sort.SliceStable(works, func(i, j int) bool {
		return works[i].Score > works[j].Score
	})
	return works
}

func scoreArtwork(w Artwork, q string) float64 {
	var s float64
	if normalize(w.Artist) == q {
		s += 10
	}
	if strings.Contains(normalize(w.Title), q) {
		s += 5
	}
	if strings.Contains(normalize(w.Department), "paint") {
		s += 5
	}
	if y := yearOf(w.Date); y > 0 && y < 1900 {
		s += 3
	}
	if hiResThumb(w.ThumbnailURL) {
		s += 2
	}
	return s
}

// hiResThumb recognizes the width-parameterized thumbnail shapes the adapters
// emit and rewards anything 400px or wider.
func hiResThumb(u string) bool {
	return strings.Contains(u, "1686") ||
		strings.Contains(u, "width=400") ||
		strings.Contains(u, "/400,") ||
		strings.Contains(u, "400px")
}

func page(works []Artwork, limit, offset int) []Artwork {
	if offset >= len(works) {
		return []Artwork{}
	}
	end := offset + limit
	if end > len(works) {
		end = len(works)
	}
	return works[offset:end]
}

// Random shuffles the adapter order and returns the first artwork any source
// produces within its 3 s deadline.
func (f *Federator) Random(ctx context.Context) (Artwork, error) {
	logger := log.WithComponentFromContext(ctx, "federator")

	order := make([]Source, len(f.sources))
	copy(order, f.sources)
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, src := range order {
		rs, ok := src.(RandomSource)
		if !ok {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, randomDeadline)
		w, err := rs.Random(callCtx)
		cancel()
		if err == nil {
			return w, nil
		}
		logger.Debug().Str("source", src.Name()).Err(err).Msg("random attempt failed")
	}
	return Artwork{}, ErrNoSource
}

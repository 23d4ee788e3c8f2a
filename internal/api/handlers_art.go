// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/inkframe/inkframe/internal/frame"
	"github.com/inkframe/inkframe/internal/imaging"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *Server) handleArtSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(ctx, w, fmt.Errorf("%w: missing q parameter", errBadRequest))
		return
	}
	limit := queryInt(r, "limit", defaultSearchLimit)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > maxSearchLimit || offset < 0 {
		writeError(ctx, w, fmt.Errorf("%w: limit must be 1..%d and offset >= 0", errBadRequest, maxSearchLimit))
		return
	}

	res, err := s.federator.Search(ctx, query, limit, offset)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, res)
}

func (s *Server) handleArtRandom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	work, err := s.federator.Random(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, work)
}

func (s *Server) handleArtCurated(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"results": s.curated.All()})
}

// importRequest fetches a remote image, runs the pipeline, and makes the
// result current.
type importRequest struct {
	ImageURL string          `json:"imageUrl"`
	Title    string          `json:"title,omitempty"`
	Artist   string          `json:"artist,omitempty"`
	Source   string          `json:"source,omitempty"`
	Params   *pipelineParams `json:"params,omitempty"`
}

// pipelineParams is the wire shape of imaging.Params. Crop anchors are
// pointers so a partial body keeps the centered default instead of
// collapsing to the top-left corner.
type pipelineParams struct {
	Rotation           int      `json:"rotation"`
	CropX              *float64 `json:"cropX"`
	CropY              *float64 `json:"cropY"`
	ZoomLevel          float64  `json:"zoomLevel"`
	Dither             string   `json:"dither,omitempty"`
	EnhanceContrast    bool     `json:"enhanceContrast,omitempty"`
	Sharpen            bool     `json:"sharpen,omitempty"`
	AutoCropWhitespace bool     `json:"autoCropWhitespace,omitempty"`
}

func (p *pipelineParams) toImaging() imaging.Params {
	out := imaging.DefaultParams()
	if p == nil {
		return out
	}
	out.Rotation = p.Rotation
	if p.CropX != nil {
		out.CropX = *p.CropX
	}
	if p.CropY != nil {
		out.CropY = *p.CropY
	}
	out.EnhanceContrast = p.EnhanceContrast
	out.Sharpen = p.Sharpen
	out.AutoCropWhitespace = p.AutoCropWhitespace
	if p.ZoomLevel != 0 {
		out.ZoomLevel = p.ZoomLevel
	}
	if p.Dither != "" {
		out.Dither = imaging.DitherAlgorithm(p.Dither)
	}
	return out
}

func (s *Server) handleArtImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if _, err := url.ParseRequestURI(req.ImageURL); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid imageUrl", errBadRequest))
		return
	}

	src, err := s.fetchImage(r, req.ImageURL)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	params := req.Params.toImaging()
	res, err := s.pipeline.Process(ctx, src, params)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	id, err := s.frames.Ingest(ctx, frame.NewImage{
		Title:    req.Title,
		Artist:   req.Artist,
		Source:   req.Source,
		Original: src,
		Params:   params,
		Result:   res,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"imageId": id})
}

// fetchImage downloads the import source with the 15 s import budget.
func (s *Server) fetchImage(r *http.Request, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build image request", errBadRequest)
	}

	res, err := s.importer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", imageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: upstream returned %s", imageURL, res.Status)
	}

	// 50 MB covers the largest museum originals.
	body, err := io.ReadAll(io.LimitReader(res.Body, 50<<20))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", imageURL, err)
	}
	return body, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

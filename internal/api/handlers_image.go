// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/frame"
)

// maxUploadBytes caps the multipart upload size.
const maxUploadBytes = 50 << 20

// handleUpload accepts a multipart file plus optional metadata and pipeline
// params, archives the processed result, and leaves the current image alone
// until /api/apply/{imageID}.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: parse multipart form: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: missing image file", errBadRequest))
		return
	}
	defer file.Close()

	src, err := io.ReadAll(file)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("read upload: %w", err))
		return
	}

	var wireParams *pipelineParams
	if raw := r.FormValue("params"); raw != "" {
		wireParams = &pipelineParams{}
		if err := json.Unmarshal([]byte(raw), wireParams); err != nil {
			writeError(ctx, w, fmt.Errorf("%w: parse params: %v", errBadRequest, err))
			return
		}
	}
	params := wireParams.toImaging()

	res, err := s.pipeline.Process(ctx, src, params)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	id, err := s.frames.Archive(ctx, frame.NewImage{
		Title:    title,
		Artist:   r.FormValue("artist"),
		Source:   "upload",
		Original: src,
		Params:   params,
		Result:   res,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"imageId": id, "applied": false})
}

// handleApply promotes an archived image to the current image.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "imageID")

	if err := s.frames.SetCurrent(ctx, imageID); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"imageId": imageID, "applied": true})
}

type generateRequest struct {
	Prompt string          `json:"prompt"`
	Params *pipelineParams `json:"params,omitempty"`
}

// handleGenerateArt produces an image from a text prompt via the configured
// generation backend, runs it through the pipeline, and makes it current.
func (s *Server) handleGenerateArt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.generator.enabled() {
		writeJSON(ctx, w, http.StatusServiceUnavailable,
			errorResponse{Error: "art generation is not configured"})
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if req.Prompt == "" {
		writeError(ctx, w, fmt.Errorf("%w: missing prompt", errBadRequest))
		return
	}

	src, err := s.generator.generate(ctx, req.Prompt)
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
		Title:       req.Prompt,
		Source:      "ai",
		AIGenerated: true,
		Original:    src,
		Params:      params,
		Result:      res,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"imageId": id})
}

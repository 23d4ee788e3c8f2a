// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/frame"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hist, err := s.frames.History(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"history": hist})
}

// handleHistoryLoad re-quantizes an archived original with new parameters
// and makes it current. Without a params body the stored parameters are
// reused, which amounts to a plain reload.
func (s *Server) handleHistoryLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := chi.URLParam(r, "imageID")

	params, err := s.frames.ArchiveEntryParams(ctx, imageID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if r.ContentLength > 0 {
		var wire pipelineParams
		if err := decodeJSON(r, &wire); err != nil {
			writeError(ctx, w, err)
			return
		}
		params = wire.toImaging()
	}

	if err := s.frames.Reprocess(ctx, imageID, params); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"imageId": imageID, "applied": true})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imageID := strings.TrimSuffix(chi.URLParam(r, "imageID"), ".png")

	png, err := s.frames.Thumbnail(ctx, imageID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pl, err := s.frames.Playlist(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, pl)
}

func (s *Server) handleSavePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var pl frame.Playlist
	if err := decodeJSON(r, &pl); err != nil {
		writeError(ctx, w, err)
		return
	}

	saved, err := s.frames.SavePlaylist(ctx, pl)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, saved)
}

// playlistPatch carries partial playlist updates; nil fields stay unchanged.
type playlistPatch struct {
	Active   *bool     `json:"active,omitempty"`
	Mode     *string   `json:"mode,omitempty"`
	Interval *int64    `json:"interval,omitempty"`
	Images   *[]string `json:"images,omitempty"`
}

func (s *Server) handlePatchPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var patch playlistPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(ctx, w, err)
		return
	}

	pl, err := s.frames.Playlist(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if patch.Active != nil {
		pl.Active = *patch.Active
	}
	if patch.Mode != nil {
		pl.Mode = *patch.Mode
	}
	if patch.Interval != nil {
		pl.Interval = *patch.Interval
	}
	if patch.Images != nil {
		pl.Images = *patch.Images
	}

	saved, err := s.frames.SavePlaylist(ctx, pl)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, saved)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.frames.DeletePlaylist(ctx); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := s.frames.Settings(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var settings frame.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := s.frames.SaveSettings(ctx, settings); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, settings)
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz verifies the store answers before reporting ready.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.frames.Settings(ctx); err != nil {
		writeError(ctx, w, fmt.Errorf("store not ready: %w", err))
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ready"})
}

// SPDX-License-Identifier: MIT

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/inkframe/inkframe/internal/log"
)

func (s *Server) handleFirmwareVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := s.ota.Manifest(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(ctx, w, http.StatusOK, m)
}

func (s *Server) handleFirmwareDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rc, size, err := s.ota.Open(r.URL.Query().Get("deviceId"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Devices drop the connection on brownout mid-download.
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Warn().Err(err).Msg("firmware download interrupted")
	}
}

type forceRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleFirmwareForce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := s.ota.SetForce(ctx, req.Enabled); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"forceUpdate": req.Enabled})
}

// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/device"
	"github.com/inkframe/inkframe/internal/frame"
	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
)

// currentResponse is the device metadata poll body. SleepDuration is in
// microseconds.
type currentResponse struct {
	HasImage      bool   `json:"hasImage"`
	ImageID       string `json:"imageId,omitempty"`
	Title         string `json:"title,omitempty"`
	Artist        string `json:"artist,omitempty"`
	Source        string `json:"source,omitempty"`
	Rotation      int    `json:"rotation"`
	Timestamp     int64  `json:"timestamp,omitempty"`
	SleepDuration int64  `json:"sleepDuration"`
	DevServerHost string `json:"devServerHost,omitempty"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrics.RecordDevicePoll("current")

	settings, _ := s.frames.Settings(ctx)

	cur, err := s.frames.Current(ctx)
	if errors.Is(err, frame.ErrNoImage) {
		resp := currentResponse{
			HasImage:      false,
			SleepDuration: settings.DefaultSleepDuration,
		}
		if settings.DevMode {
			resp.DevServerHost = settings.DevServerHost
		}
		writeJSON(ctx, w, http.StatusOK, resp)
		return
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := currentResponse{
		HasImage:      true,
		ImageID:       cur.ImageID,
		Title:         cur.Title,
		Artist:        cur.Artist,
		Source:        cur.Source,
		Rotation:      cur.Rotation,
		Timestamp:     cur.Timestamp.UnixMilli(),
		SleepDuration: cur.SleepDuration,
	}
	if settings.DevMode {
		resp.DevServerHost = settings.DevServerHost
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) handleImageBin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrics.RecordDevicePoll("image")

	pixels, err := s.frames.Pixels(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixels)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixels)
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var post device.StatusPost
	if err := decodeJSON(r, &post); err != nil {
		writeError(ctx, w, err)
		return
	}
	if post.DeviceID == "" {
		post.DeviceID = s.cfg.DefaultDeviceID
	}

	d, err := s.devices.Ingest(ctx, post)
	switch {
	case errors.Is(err, device.ErrBadStatus):
		writeError(ctx, w, err)
		return
	case err != nil:
		// A failed write must not keep the device awake; it retries on the
		// next wake cycle anyway.
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Warn().Err(err).Str("deviceId", post.DeviceID).Msg("status ingest degraded")
		writeJSON(ctx, w, http.StatusOK, map[string]any{"success": false})
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"deviceId":       d.DeviceID,
		"percent":        d.Percent,
		"isCharging":     d.IsCharging,
		"chargingSource": d.ChargingSource,
		"receivedAt":     time.Now().UnixMilli(),
	})
}

func (s *Server) handleDrainCommands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metrics.RecordDevicePoll("commands")

	cmds, err := s.commands.Drain(ctx, chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"commands": cmds})
}

type enqueueRequest struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func (s *Server) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	cmd, err := s.commands.Enqueue(ctx, chi.URLParam(r, "deviceID"), req.Command, req.DurationMS)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, cmd)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	devices, err := s.devices.List(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.devices.Get(ctx, chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, d)
}

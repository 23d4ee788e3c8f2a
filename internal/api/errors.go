// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkframe/inkframe/internal/art"
	"github.com/inkframe/inkframe/internal/device"
	"github.com/inkframe/inkframe/internal/frame"
	"github.com/inkframe/inkframe/internal/imaging"
	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/ota"
	"github.com/inkframe/inkframe/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with status. Encoding failures are logged; the status
// line has already been sent at that point.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("encode response")
	}
}

// writeError maps a domain error onto an HTTP status. 5xx responses hide the
// underlying message; 4xx surface it so clients can fix the request.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := log.WithComponentFromContext(ctx, "api")

	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, device.ErrBadStatus),
		errors.Is(err, frame.ErrBadPlaylist),
		errors.Is(err, frame.ErrBadSettings),
		errors.Is(err, imaging.ErrInvalidParam),
		errors.Is(err, imaging.ErrDegenerate),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, frame.ErrNoImage),
		errors.Is(err, frame.ErrUnknownImage),
		errors.Is(err, device.ErrUnknownDevice),
		errors.Is(err, ota.ErrNoFirmware),
		errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, art.ErrNoSource),
		errors.Is(err, art.ErrUpstream),
		errors.Is(err, art.ErrRateLimited):
		status = http.StatusBadGateway
		msg = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		msg = "upstream timeout"
	}

	if status >= 500 {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}

// errBadRequest wraps handler-boundary validation failures.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a JSON request body into v with a size cap.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

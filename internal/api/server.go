// SPDX-License-Identifier: MIT

// Package api wires the HTTP surface: device protocol endpoints, content
// ingestion, federated art search, playlist and settings CRUD, and OTA.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkframe/inkframe/internal/art"
	"github.com/inkframe/inkframe/internal/config"
	"github.com/inkframe/inkframe/internal/device"
	"github.com/inkframe/inkframe/internal/frame"
	"github.com/inkframe/inkframe/internal/imaging"
	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/ota"
)

// Server bundles the daemon's components behind one router.
type Server struct {
	cfg       config.AppConfig
	frames    *frame.Manager
	federator *art.Federator
	curated   *art.CuratedAdapter
	devices   *device.Registry
	commands  *device.CommandQueue
	ota       *ota.Service
	pipeline  *imaging.Pool
	importer  *http.Client
	generator *artGenerator
}

// Deps are the constructor inputs for Server.
type Deps struct {
	Config    config.AppConfig
	Frames    *frame.Manager
	Federator *art.Federator
	Curated   *art.CuratedAdapter
	Devices   *device.Registry
	Commands  *device.CommandQueue
	OTA       *ota.Service
	Pipeline  *imaging.Pool
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		frames:    d.Frames,
		federator: d.Federator,
		curated:   d.Curated,
		devices:   d.Devices,
		commands:  d.Commands,
		ota:       d.OTA,
		pipeline:  d.Pipeline,
		importer:  &http.Client{Timeout: importTimeout},
		generator: newArtGenerator(d.Config.OpenAIKey),
	}
}

// importTimeout bounds the fetch of a remote image during /api/art/import.
const importTimeout = 15 * time.Second

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware())
	r.Use(log.Middleware())
	if s.cfg.RateLimitEnabled {
		r.Use(httprate.Limit(
			s.cfg.RateLimitRPM,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
	}

	// Device protocol: unauthenticated, must stay fast.
	r.Get("/api/current.json", s.handleCurrent)
	r.Get("/api/image.bin", s.handleImageBin)
	r.Post("/api/device-status", s.handleDeviceStatus)
	r.Get("/api/commands/{deviceID}", s.handleDrainCommands)

	// Read-only content endpoints.
	r.Get("/api/art/search", s.handleArtSearch)
	r.Get("/api/art/random", s.handleArtRandom)
	r.Get("/api/art/curated", s.handleArtCurated)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/thumbnail/{imageID}", s.handleThumbnail)
	r.Get("/api/playlist", s.handleGetPlaylist)
	r.Get("/api/settings", s.handleGetSettings)
	r.Get("/api/devices", s.handleListDevices)
	r.Get("/api/devices/{deviceID}", s.handleGetDevice)

	// OTA.
	r.Get("/firmware/version", s.handleFirmwareVersion)
	r.Get("/firmware/download", s.handleFirmwareDownload)

	// Mutating endpoints require the API key.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/api/device-command/{deviceID}", s.handleEnqueueCommand)
		r.Post("/api/art/import", s.handleArtImport)
		r.Post("/api/upload", s.handleUpload)
		r.Post("/api/apply/{imageID}", s.handleApply)
		r.Post("/api/generate-art", s.handleGenerateArt)
		r.Post("/api/history/{imageID}/load", s.handleHistoryLoad)
		r.Post("/api/playlist", s.handleSavePlaylist)
		r.Patch("/api/playlist", s.handlePatchPlaylist)
		r.Delete("/api/playlist", s.handleDeletePlaylist)
		r.Put("/api/settings", s.handlePutSettings)
		r.Post("/firmware/force", s.handleFirmwareForce)
	})

	// Operational endpoints.
	r.Get("/api/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	return r
}

// SPDX-License-Identifier: MIT

// Package ota serves the firmware binary and its version manifest. The
// update decision itself is made on-device from the manifest fields; the
// server only has to report them truthfully.
package ota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/store"
)

const (
	entityForce = "force-ota"
	entityInfo  = "firmware-info"
)

// minBatteryPercent is the manifest's advisory floor for starting an update
// when not charging.
const minBatteryPercent = 30.0

// Firmware size sanity bounds, bytes. The device enforces them; the server
// logs a warning when a deployed binary falls outside.
const (
	minFirmwareSize = 100 << 10
	maxFirmwareSize = 8 << 20
)

// ErrNoFirmware is returned when no binary is deployed.
var ErrNoFirmware = errors.New("ota: no firmware deployed")

// Manifest is the /firmware/version response.
type Manifest struct {
	Version     string    `json:"version"`
	BuildDate   string    `json:"buildDate"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	MinBattery  float64   `json:"minBattery"`
	ForceUpdate bool      `json:"forceUpdate"`
	DeployedAt  time.Time `json:"deployedAt"`
}

// firmwareInfo is the sidecar entity that overrides the injected version and
// build date, written when a binary is deployed out of band.
type firmwareInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
}

type forceFlag struct {
	Enabled bool `json:"enabled"`
}

// Service computes and caches the firmware digest, keyed by file mtime, and
// invalidates it when the binary is replaced on disk.
type Service struct {
	path    string
	store   store.Store
	version string
	build   string

	mu          sync.Mutex
	cachedSHA   string
	cachedSize  int64
	cachedMtime time.Time

	watcher *fsnotify.Watcher
}

// NewService uses version and buildDate injected at startup; a
// firmware-info sidecar entity, when present, takes precedence.
func NewService(s store.Store, path, version, buildDate string) *Service {
	return &Service{
		path:    path,
		store:   s,
		version: version,
		build:   buildDate,
	}
}

// Watch invalidates the digest cache when the binary changes on disk. The
// watcher runs until ctx is canceled. Missing directories are tolerated; the
// mtime check in Manifest stays correct without the watcher.
func (s *Service) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ota: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("ota: watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w

	logger := log.WithComponent("ota")
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.invalidate()
					logger.Info().Str("path", s.path).Msg("firmware binary changed, digest cache invalidated")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("firmware watcher error")
			}
		}
	}()
	return nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedMtime = time.Time{}
}

// Manifest builds the version manifest, recomputing the SHA256 only when the
// binary's mtime changed since the last computation.
func (s *Service) Manifest(ctx context.Context) (Manifest, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrNoFirmware
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("ota: stat firmware: %w", err)
	}

	sha, size, err := s.digest(fi.ModTime(), fi.Size())
	if err != nil {
		return Manifest{}, err
	}

	if size < minFirmwareSize || size > maxFirmwareSize {
		logger := log.WithComponent("ota")
		logger.Warn().
			Int64("size", size).
			Msg("deployed firmware outside device size bounds")
	}

	m := Manifest{
		Version:    s.version,
		BuildDate:  s.build,
		Size:       size,
		SHA256:     sha,
		MinBattery: minBatteryPercent,
		DeployedAt: fi.ModTime(),
	}

	if info, err := store.Get[firmwareInfo](ctx, s.store, entityInfo); err == nil {
		if info.Version != "" {
			m.Version = info.Version
		}
		if info.BuildDate != "" {
			m.BuildDate = info.BuildDate
		}
	}
	if force, err := store.Get[forceFlag](ctx, s.store, entityForce); err == nil {
		m.ForceUpdate = force.Enabled
	}
	return m, nil
}

func (s *Service) digest(mtime time.Time, size int64) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mtime.Equal(s.cachedMtime) && size == s.cachedSize {
		return s.cachedSHA, s.cachedSize, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return "", 0, fmt.Errorf("ota: open firmware: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("ota: hash firmware: %w", err)
	}

	s.cachedSHA = hex.EncodeToString(h.Sum(nil))
	s.cachedSize = n
	s.cachedMtime = mtime
	return s.cachedSHA, s.cachedSize, nil
}

// Open returns a reader over the binary plus its size, for streaming the
// download response.
func (s *Service) Open(deviceID string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrNoFirmware
	}
	if err != nil {
		return nil, 0, fmt.Errorf("ota: open firmware: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("ota: stat firmware: %w", err)
	}

	metrics.RecordFirmwareDownload()
	logger := log.WithComponent("ota")
	logger.Info().
		Str("device_id", deviceID).
		Int64("size", fi.Size()).
		Msg("firmware download started")
	return f, fi.Size(), nil
}

// SetForce toggles the force-update flag in its sidecar entity.
func (s *Service) SetForce(ctx context.Context, enabled bool) error {
	return store.Put(ctx, s.store, entityForce, forceFlag{Enabled: enabled})
}

// SetInfo records the deployed version and build date sidecar.
func (s *Service) SetInfo(ctx context.Context, version, buildDate string) error {
	return store.Put(ctx, s.store, entityInfo, firmwareInfo{Version: version, BuildDate: buildDate})
}

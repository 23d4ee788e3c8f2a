// SPDX-License-Identifier: MIT

package frame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/store"
)

// DefaultSleepDuration is the fallback device sleep interval in microseconds
// (1 hour).
const DefaultSleepDuration int64 = 3_600_000_000

// Display orientations.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// ErrBadSettings marks invalid settings submitted by a client.
var ErrBadSettings = errors.New("frame: invalid settings")

// Settings holds frame-wide operator preferences. Durations are in
// microseconds, matching the device protocol.
type Settings struct {
	DefaultSleepDuration int64  `json:"defaultSleepDuration"`
	DevMode              bool   `json:"devMode"`
	DevServerHost        string `json:"devServerHost,omitempty"`
	DefaultOrientation   string `json:"defaultOrientation"`
	NightSleepEnabled    bool   `json:"nightSleepEnabled"`
	NightSleepStartHour  int    `json:"nightSleepStartHour"`
	NightSleepEndHour    int    `json:"nightSleepEndHour"`
}

func defaultSettings() Settings {
	return Settings{
		DefaultSleepDuration: DefaultSleepDuration,
		DefaultOrientation:   OrientationPortrait,
		NightSleepStartHour:  23,
		NightSleepEndHour:    7,
	}
}

func (s Settings) validate() error {
	if s.DefaultSleepDuration <= 0 {
		return fmt.Errorf("%w: defaultSleepDuration must be positive", ErrBadSettings)
	}
	if s.DefaultOrientation != OrientationPortrait && s.DefaultOrientation != OrientationLandscape {
		return fmt.Errorf("%w: orientation %q", ErrBadSettings, s.DefaultOrientation)
	}
	for _, h := range []int{s.NightSleepStartHour, s.NightSleepEndHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: hour %d out of range", ErrBadSettings, h)
		}
	}
	return nil
}

// Settings returns the stored settings, falling back to defaults.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	s, err := store.Get[Settings](ctx, m.store, entitySettings)
	if errors.Is(err, store.ErrNotFound) {
		return defaultSettings(), nil
	}
	return s, err
}

// SaveSettings validates and stores settings.
func (m *Manager) SaveSettings(ctx context.Context, s Settings) error {
	if s.DefaultOrientation == "" {
		s.DefaultOrientation = OrientationPortrait
	}
	if err := s.validate(); err != nil {
		return err
	}
	return store.Put(ctx, m.store, entitySettings, s)
}

// effectiveSleep applies the night-sleep window: inside the window the
// device is told to sleep until the window ends instead of its normal
// interval. base and the result are microseconds.
func effectiveSleep(s Settings, base int64, now time.Time) int64 {
	if !s.NightSleepEnabled {
		return base
	}
	if !inNightWindow(now.Hour(), s.NightSleepStartHour, s.NightSleepEndHour) {
		return base
	}

	end := time.Date(now.Year(), now.Month(), now.Day(), s.NightSleepEndHour, 0, 0, 0, now.Location())
	if !end.After(now) {
		end = end.Add(24 * time.Hour)
	}
	return end.Sub(now).Microseconds()
}

// inNightWindow reports whether hour falls in [start, end), wrapping past
// midnight when start > end. start == end means an empty window.
func inNightWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// SPDX-License-Identifier: MIT

// Package device ingests frame telemetry: battery state and sessions,
// operation profiling, brownout and OTA events, and the per-device command
// queue the frame drains on each wake.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/store"
)

const entityDevices = "devices"

// History caps. All histories are rings: the oldest entry is evicted first.
const (
	maxBatteryHistory   = 100
	maxOperationSamples = 200
	maxBrownoutHistory  = 50
	maxOTAHistory       = 10
	maxSignalHistory    = 100
	maxBatterySessions  = 20
)

// Low-battery notification thresholds, percent, checked on downward crossing.
var lowBatteryThresholds = []float64{30, 15}

// ErrUnknownDevice is returned when a deviceId has never posted status.
var ErrUnknownDevice = errors.New("device: unknown device")

// ErrBadStatus marks a status post rejected at the boundary.
var ErrBadStatus = errors.New("device: invalid status post")

// BatterySample is one battery history point.
type BatterySample struct {
	Timestamp       time.Time `json:"t"`
	Voltage         float64   `json:"v"`
	Charging        bool      `json:"charging"`
	IsDisplayUpdate bool      `json:"isDisplayUpdate"`
}

// BatterySession covers one discharge period, from charger disconnect to the
// next charge.
type BatterySession struct {
	Start          time.Time  `json:"start"`
	End            *time.Time `json:"end,omitempty"`
	StartVoltage   float64    `json:"startVoltage"`
	EndVoltage     float64    `json:"endVoltage,omitempty"`
	StartPercent   float64    `json:"startPercent"`
	EndPercent     float64    `json:"endPercent,omitempty"`
	Wakes          int        `json:"wakes"`
	DisplayUpdates int        `json:"displayUpdates"`
}

// OperationSample profiles the voltage cost of one device operation.
type OperationSample struct {
	Timestamp     time.Time `json:"t"`
	Type          string    `json:"type"` // wake | display | ota
	VoltageBefore float64   `json:"vBefore"`
	VoltageAfter  float64   `json:"vAfter"`
	Drop          float64   `json:"drop"`
	Firmware      string    `json:"fw,omitempty"`
	RSSI          int       `json:"rssi,omitempty"`
}

// BrownoutEvent records a detected brownout with its operation context.
type BrownoutEvent struct {
	Timestamp               time.Time `json:"t"`
	Count                   int       `json:"count"`
	DisplayUpdatesInSession int       `json:"displayUpdatesInSession"`
	WakesInSession          int       `json:"wakesInSession"`
}

// OTAEvent records one observed firmware transition.
type OTAEvent struct {
	Timestamp   time.Time `json:"t"`
	FromVersion string    `json:"fromVer"`
	ToVersion   string    `json:"toVer,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// SignalSample is one Wi-Fi RSSI history point.
type SignalSample struct {
	Timestamp time.Time `json:"t"`
	RSSI      int       `json:"rssi"`
}

// UsageStats accumulates lifetime counters per device.
type UsageStats struct {
	Wakes            int                `json:"wakes"`
	DisplayUpdates   int                `json:"displayUpdates"`
	OTAUpdates       int                `json:"otaUpdates"`
	VoltageDropTotal map[string]float64 `json:"voltageDropTotal,omitempty"` // keyed by operation type
}

// Device is the full per-device record.
type Device struct {
	DeviceID            string            `json:"deviceId"`
	FirmwareVersion     string            `json:"firmwareVersion,omitempty"`
	LastSeen            time.Time         `json:"lastSeen"`
	LastStatus          string            `json:"lastStatus,omitempty"`
	Voltage             float64           `json:"voltage"`
	Percent             float64           `json:"percent"`
	IsCharging          bool              `json:"isCharging"`
	ChargingSource      string            `json:"chargingSource"`
	LastChargeTimestamp *time.Time        `json:"lastChargeTimestamp,omitempty"`
	BatteryHistory      []BatterySample   `json:"batteryHistory,omitempty"`
	CurrentSession      *BatterySession   `json:"currentSession,omitempty"`
	BatterySessions     []BatterySession  `json:"batterySessions,omitempty"`
	OperationSamples    []OperationSample `json:"operationSamples,omitempty"`
	BrownoutCount       int               `json:"brownoutCount"`
	BrownoutHistory     []BrownoutEvent   `json:"brownoutHistory,omitempty"`
	OTAHistory          []OTAEvent        `json:"otaHistory,omitempty"`
	SignalStrength      int               `json:"signalStrength,omitempty"`
	SignalHistory       []SignalSample    `json:"signalHistory,omitempty"`
	UsageStats          UsageStats        `json:"usageStats"`
}

// StatusPost is the device-status request body.
type StatusPost struct {
	DeviceID string `json:"deviceId"`
	Status   Status `json:"status"`
}

// Status is the telemetry payload of one wake cycle. Pointer fields
// distinguish "absent" from zero. Firmware reports the cell voltage as
// batteryVoltage; voltage is kept as an alias for older tooling.
type Status struct {
	Voltage         float64  `json:"voltage,omitempty"`
	BatteryVoltage  *float64 `json:"batteryVoltage,omitempty"`
	BatteryPercent  *float64 `json:"batteryPercent,omitempty"`
	IsCharging      *bool    `json:"isCharging,omitempty"`
	Status          string   `json:"status,omitempty"` // wake reason, e.g. "display_update", "ota_failed"
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
	SignalStrength  *int     `json:"signalStrength,omitempty"`
	BrownoutCount   int      `json:"brownoutCount,omitempty"`
}

// Registry owns the device records. Status posts for the same device
// serialize through the store's per-entity update lock.
type Registry struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

func NewRegistry(s store.Store, n Notifier) *Registry {
	if n == nil {
		n = NopNotifier{}
	}
	return &Registry{store: s, notifier: n, now: time.Now}
}

type deviceMap map[string]*Device

// Ingest applies one status post as a single logical update of the device
// record and returns the post-update snapshot.
func (r *Registry) Ingest(ctx context.Context, post StatusPost) (*Device, error) {
	if post.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing deviceId", ErrBadStatus)
	}
	if post.Status.BatteryVoltage != nil {
		post.Status.Voltage = *post.Status.BatteryVoltage
	}
	if post.Status.Voltage < 0 || post.Status.Voltage > 6 {
		return nil, fmt.Errorf("%w: voltage %.2f out of range", ErrBadStatus, post.Status.Voltage)
	}

	var snapshot Device
	var notify *lowBatteryEvent

	err := store.Mutate(ctx, r.store, entityDevices, func(devices *deviceMap) error {
		if *devices == nil {
			*devices = make(deviceMap)
		}
		prev := (*devices)[post.DeviceID]
		next, ev := r.apply(ctx, prev, post)
		(*devices)[post.DeviceID] = next
		snapshot = *next
		notify = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDeviceStatus(post.DeviceID, snapshot.Percent)

	if notify != nil {
		// Fire-and-forget: the device must get its response within 2 s
		// regardless of webhook latency.
		go r.notifier.NotifyLowBattery(*notify)
	}
	return &snapshot, nil
}

// apply computes the next device record. prev may be nil for a first post.
func (r *Registry) apply(ctx context.Context, prev *Device, post StatusPost) (*Device, *lowBatteryEvent) {
	logger := log.WithComponentFromContext(ctx, "device").With().
		Str("device_id", post.DeviceID).Logger()

	st := post.Status
	now := r.now()

	next := &Device{}
	if prev != nil {
		*next = *prev
	}
	next.DeviceID = post.DeviceID
	next.LastSeen = now

	// Battery percent: trust the device when it reports one.
	percent := percentFromVoltage(st.Voltage)
	if st.BatteryPercent != nil {
		percent = *st.BatteryPercent
	}

	charging, source := deriveCharging(prev, st.IsCharging, st.Voltage)
	if source == SourceTrendOverride {
		logger.Info().Float64("voltage", st.Voltage).Msg("charging claim overridden by flat voltage trend")
	}

	prevCharging := prev != nil && prev.IsCharging

	// Edges. Discharge→charge stamps lastChargeTimestamp and closes the open
	// session; charge→discharge opens a fresh session.
	if !prevCharging && charging {
		ts := now
		next.LastChargeTimestamp = &ts
		logger.Info().Float64("voltage", st.Voltage).Str("source", source).Msg("charging started")
		if next.CurrentSession != nil {
			closed := *next.CurrentSession
			closed.End = &ts
			closed.EndVoltage = st.Voltage
			closed.EndPercent = percent
			next.BatterySessions = appendBounded(next.BatterySessions, closed, maxBatterySessions)
			next.CurrentSession = nil
		}
	}
	if prevCharging && !charging {
		next.CurrentSession = &BatterySession{
			Start:        now,
			StartVoltage: st.Voltage,
			StartPercent: percent,
		}
	}

	isDisplay := strings.HasPrefix(st.Status, "display")

	// Firmware transition implies a completed OTA.
	if prev != nil && prev.FirmwareVersion != "" && st.FirmwareVersion != "" &&
		prev.FirmwareVersion != st.FirmwareVersion {
		next.OTAHistory = appendBounded(next.OTAHistory, OTAEvent{
			Timestamp:   now,
			FromVersion: prev.FirmwareVersion,
			ToVersion:   st.FirmwareVersion,
			Success:     true,
		}, maxOTAHistory)
		next.UsageStats.OTAUpdates++
		logger.Info().Str("from", prev.FirmwareVersion).Str("to", st.FirmwareVersion).Msg("firmware updated")
	}
	if st.Status == "ota_failed" && (prev == nil || prev.LastStatus != "ota_failed") {
		next.OTAHistory = appendBounded(next.OTAHistory, OTAEvent{
			Timestamp:   now,
			FromVersion: st.FirmwareVersion,
			Success:     false,
			Error:       "ota_failed",
		}, maxOTAHistory)
	}

	// Brownouts are counted on-device; the server logs the increase with the
	// session context that likely caused it.
	if prev != nil && st.BrownoutCount > prev.BrownoutCount {
		ev := BrownoutEvent{Timestamp: now, Count: st.BrownoutCount}
		if next.CurrentSession != nil {
			ev.DisplayUpdatesInSession = next.CurrentSession.DisplayUpdates
			ev.WakesInSession = next.CurrentSession.Wakes
		}
		next.BrownoutHistory = appendBounded(next.BrownoutHistory, ev, maxBrownoutHistory)
		logger.Warn().Int("count", st.BrownoutCount).Msg("brownout detected")
	}
	if st.BrownoutCount > next.BrownoutCount {
		next.BrownoutCount = st.BrownoutCount
	}

	// Operation profiling: only discharging drops are attributable to the
	// operation that just ran.
	if !charging && prev != nil && prev.Voltage > 0 && st.Voltage < prev.Voltage {
		opType := operationType(st.Status)
		drop := prev.Voltage - st.Voltage
		sample := OperationSample{
			Timestamp:     now,
			Type:          opType,
			VoltageBefore: prev.Voltage,
			VoltageAfter:  st.Voltage,
			Drop:          drop,
			Firmware:      st.FirmwareVersion,
		}
		if st.SignalStrength != nil {
			sample.RSSI = *st.SignalStrength
		}
		next.OperationSamples = appendBounded(next.OperationSamples, sample, maxOperationSamples)
		if next.UsageStats.VoltageDropTotal == nil {
			next.UsageStats.VoltageDropTotal = make(map[string]float64)
		}
		next.UsageStats.VoltageDropTotal[opType] += drop
	}

	next.UsageStats.Wakes++
	if isDisplay {
		next.UsageStats.DisplayUpdates++
	}
	if next.CurrentSession != nil {
		next.CurrentSession.Wakes++
		if isDisplay {
			next.CurrentSession.DisplayUpdates++
		}
	}

	next.BatteryHistory = appendBounded(next.BatteryHistory, BatterySample{
		Timestamp:       now,
		Voltage:         st.Voltage,
		Charging:        charging,
		IsDisplayUpdate: isDisplay,
	}, maxBatteryHistory)

	if st.SignalStrength != nil {
		next.SignalStrength = *st.SignalStrength
		next.SignalHistory = appendBounded(next.SignalHistory, SignalSample{
			Timestamp: now,
			RSSI:      *st.SignalStrength,
		}, maxSignalHistory)
	}

	var notify *lowBatteryEvent
	if !charging && prev != nil {
		for _, threshold := range lowBatteryThresholds {
			if prev.Percent > threshold && percent <= threshold {
				notify = &lowBatteryEvent{
					DeviceID:  post.DeviceID,
					Percent:   percent,
					Voltage:   st.Voltage,
					Threshold: threshold,
					Timestamp: now,
				}
				break
			}
		}
	}

	next.Voltage = st.Voltage
	next.Percent = percent
	next.IsCharging = charging
	next.ChargingSource = source
	next.LastStatus = st.Status
	if st.FirmwareVersion != "" {
		next.FirmwareVersion = st.FirmwareVersion
	}
	return next, notify
}

func operationType(status string) string {
	switch {
	case strings.HasPrefix(status, "display"):
		return "display"
	case strings.HasPrefix(status, "ota"):
		return "ota"
	default:
		return "wake"
	}
}

// Get returns one device record.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Device, error) {
	devices, err := store.Get[deviceMap](ctx, r.store, entityDevices)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if err != nil {
		return nil, err
	}
	d, ok := devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return d, nil
}

// List returns all known devices.
func (r *Registry) List(ctx context.Context) ([]*Device, error) {
	devices, err := store.Get[deviceMap](ctx, r.store, entityDevices)
	if errors.Is(err, store.ErrNotFound) {
		return []*Device{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	return out, nil
}

// appendBounded appends and evicts from the front past the cap.
func appendBounded[T any](ring []T, v T, limit int) []T {
	ring = append(ring, v)
	if len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	return ring
}

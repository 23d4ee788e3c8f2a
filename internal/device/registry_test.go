// SPDX-License-Identifier: MIT

package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/store"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []lowBatteryEvent
}

func (c *captureNotifier) NotifyLowBattery(ev lowBatteryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureNotifier) all() []lowBatteryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]lowBatteryEvent(nil), c.events...)
}

func newTestRegistry(t *testing.T) (*Registry, *captureNotifier) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	n := &captureNotifier{}
	return NewRegistry(s, n), n
}

func boolp(b bool) *bool          { return &b }
func float64p(f float64) *float64 { return &f }
func intp(i int) *int             { return &i }

func post(voltage float64, mod ...func(*StatusPost)) StatusPost {
	p := StatusPost{
		DeviceID: "frame-1",
		Status:   Status{Voltage: voltage, FirmwareVersion: "1.0.0"},
	}
	for _, m := range mod {
		m(&p)
	}
	return p
}

func TestPercentFromVoltage(t *testing.T) {
	cases := map[float64]float64{
		4.3: 100,
		4.2: 100,
		4.0: 80,
		3.7: 50,
		3.5: 30,
		3.3: 10,
		3.0: 0,
		2.8: 0,
	}
	for v, want := range cases {
		assert.InDelta(t, want, percentFromVoltage(v), 0.001, "voltage %.2f", v)
	}
	// Interpolated points.
	assert.InDelta(t, 90, percentFromVoltage(4.1), 0.001)
	assert.InDelta(t, 65, percentFromVoltage(3.85), 0.001)
	assert.InDelta(t, 20, percentFromVoltage(3.4), 0.001)
}

func TestIngestFirstPost(t *testing.T) {
	r, _ := newTestRegistry(t)

	d, err := r.Ingest(context.Background(), post(3.7))
	require.NoError(t, err)

	assert.Equal(t, "frame-1", d.DeviceID)
	assert.InDelta(t, 50, d.Percent, 0.001)
	assert.False(t, d.IsCharging)
	assert.Equal(t, SourceNone, d.ChargingSource)
	assert.Equal(t, 1, d.UsageStats.Wakes)
	require.Len(t, d.BatteryHistory, 1)
}

func TestIngestAcceptsFirmwareBatteryVoltageField(t *testing.T) {
	r, _ := newTestRegistry(t)

	// The literal body the firmware posts on a wake cycle.
	body := []byte(`{"deviceId":"d1","status":{"batteryVoltage":4.0,"isCharging":false,"signalStrength":-45,"firmwareVersion":"v2"}}`)
	var p StatusPost
	require.NoError(t, json.Unmarshal(body, &p))

	d, err := r.Ingest(context.Background(), p)
	require.NoError(t, err)

	assert.InDelta(t, 4.0, d.Voltage, 0.001)
	assert.InDelta(t, 80, d.Percent, 0.001)
	assert.False(t, d.IsCharging)
	assert.Equal(t, "v2", d.FirmwareVersion)
	assert.Equal(t, -45, d.SignalStrength)
}

func TestIngestBatteryVoltagePreferredOverAlias(t *testing.T) {
	r, _ := newTestRegistry(t)

	d, err := r.Ingest(context.Background(), post(3.3, func(p *StatusPost) {
		p.Status.BatteryVoltage = float64p(4.0)
	}))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, d.Voltage, 0.001)
	assert.InDelta(t, 80, d.Percent, 0.001)
}

func TestIngestDevicePercentPreferred(t *testing.T) {
	r, _ := newTestRegistry(t)

	d, err := r.Ingest(context.Background(), post(3.7, func(p *StatusPost) {
		p.Status.BatteryPercent = float64p(42)
	}))
	require.NoError(t, err)
	assert.InDelta(t, 42, d.Percent, 0.001)
}

func TestIngestRejectsBadInput(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, StatusPost{Status: Status{Voltage: 3.7}})
	require.ErrorIs(t, err, ErrBadStatus)

	_, err = r.Ingest(ctx, post(9.9))
	require.ErrorIs(t, err, ErrBadStatus)
}

func TestChargingFromESP32Pin(t *testing.T) {
	r, _ := newTestRegistry(t)

	d, err := r.Ingest(context.Background(), post(3.9, func(p *StatusPost) {
		p.Status.IsCharging = boolp(true)
	}))
	require.NoError(t, err)
	assert.True(t, d.IsCharging)
	assert.Equal(t, SourceESP32, d.ChargingSource)
	require.NotNil(t, d.LastChargeTimestamp)
}

func TestChargingFromVoltageRise(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, post(3.6))
	require.NoError(t, err)

	// +0.2 V without a charging pin reading: derived as charging.
	d, err := r.Ingest(ctx, post(3.8))
	require.NoError(t, err)
	assert.True(t, d.IsCharging)
	assert.Equal(t, SourceVoltageRise, d.ChargingSource)
	require.NotNil(t, d.LastChargeTimestamp)

	// +0.1 V is below the rise threshold.
	d, err = r.Ingest(ctx, post(3.9))
	require.NoError(t, err)
	assert.False(t, d.IsCharging)
}

func TestChargingTrendOverride(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	// Six posts claiming charging with a flat voltage trend. Once five
	// history samples exist, the claim is overridden.
	voltages := []float64{3.85, 3.84, 3.84, 3.85, 3.84, 3.84}
	var d *Device
	var err error
	for _, v := range voltages {
		d, err = r.Ingest(ctx, post(v, func(p *StatusPost) {
			p.Status.IsCharging = boolp(true)
		}))
		require.NoError(t, err)
	}

	assert.False(t, d.IsCharging)
	assert.Equal(t, SourceTrendOverride, d.ChargingSource)

	// The first post stamped lastChargeTimestamp on the false→true edge;
	// the override must not refresh it.
	first := d.BatteryHistory[0].Timestamp
	require.NotNil(t, d.LastChargeTimestamp)
	assert.WithinDuration(t, first, *d.LastChargeTimestamp, time.Second)
}

func TestBatterySessionLifecycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	// Charging, then unplugged: a session opens.
	_, err := r.Ingest(ctx, post(4.1, func(p *StatusPost) { p.Status.IsCharging = boolp(true) }))
	require.NoError(t, err)

	d, err := r.Ingest(ctx, post(4.05, func(p *StatusPost) { p.Status.IsCharging = boolp(false) }))
	require.NoError(t, err)
	require.NotNil(t, d.CurrentSession)
	assert.InDelta(t, 4.05, d.CurrentSession.StartVoltage, 0.001)
	assert.Equal(t, 1, d.CurrentSession.Wakes)

	// Two discharging wakes, one a display update.
	_, err = r.Ingest(ctx, post(4.0, func(p *StatusPost) {
		p.Status.IsCharging = boolp(false)
		p.Status.Status = "display_update"
	}))
	require.NoError(t, err)
	d, err = r.Ingest(ctx, post(3.95, func(p *StatusPost) { p.Status.IsCharging = boolp(false) }))
	require.NoError(t, err)
	assert.Equal(t, 3, d.CurrentSession.Wakes)
	assert.Equal(t, 1, d.CurrentSession.DisplayUpdates)

	// Plugged back in: the session closes with end voltage and percent.
	d, err = r.Ingest(ctx, post(3.96, func(p *StatusPost) { p.Status.IsCharging = boolp(true) }))
	require.NoError(t, err)
	assert.Nil(t, d.CurrentSession)
	require.Len(t, d.BatterySessions, 1)
	closed := d.BatterySessions[0]
	require.NotNil(t, closed.End)
	assert.InDelta(t, 3.96, closed.EndVoltage, 0.001)
	assert.Equal(t, 3, closed.Wakes)
}

func TestOperationSamplesAndUsageStats(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, post(3.9))
	require.NoError(t, err)

	d, err := r.Ingest(ctx, post(3.87, func(p *StatusPost) {
		p.Status.Status = "display_update"
		p.Status.SignalStrength = intp(-62)
	}))
	require.NoError(t, err)

	require.Len(t, d.OperationSamples, 1)
	sample := d.OperationSamples[0]
	assert.Equal(t, "display", sample.Type)
	assert.InDelta(t, 0.03, sample.Drop, 0.0001)
	assert.InDelta(t, 3.9, sample.VoltageBefore, 0.001)
	assert.Equal(t, -62, sample.RSSI)

	assert.InDelta(t, 0.03, d.UsageStats.VoltageDropTotal["display"], 0.0001)
	assert.Equal(t, 2, d.UsageStats.Wakes)
	assert.Equal(t, 1, d.UsageStats.DisplayUpdates)
	assert.Equal(t, -62, d.SignalStrength)
	require.Len(t, d.SignalHistory, 1)
}

func TestFirmwareChangeRecordsOTA(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, post(3.9))
	require.NoError(t, err)

	d, err := r.Ingest(ctx, post(3.89, func(p *StatusPost) {
		p.Status.FirmwareVersion = "1.1.0"
	}))
	require.NoError(t, err)

	require.Len(t, d.OTAHistory, 1)
	ev := d.OTAHistory[0]
	assert.True(t, ev.Success)
	assert.Equal(t, "1.0.0", ev.FromVersion)
	assert.Equal(t, "1.1.0", ev.ToVersion)
	assert.Equal(t, "1.1.0", d.FirmwareVersion)
	assert.Equal(t, 1, d.UsageStats.OTAUpdates)
}

func TestOTAFailureRecordedOnce(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, post(3.9))
	require.NoError(t, err)

	d, err := r.Ingest(ctx, post(3.89, func(p *StatusPost) { p.Status.Status = "ota_failed" }))
	require.NoError(t, err)
	require.Len(t, d.OTAHistory, 1)
	assert.False(t, d.OTAHistory[0].Success)

	// A repeated ota_failed status does not duplicate the event.
	d, err = r.Ingest(ctx, post(3.88, func(p *StatusPost) { p.Status.Status = "ota_failed" }))
	require.NoError(t, err)
	assert.Len(t, d.OTAHistory, 1)
}

func TestBrownoutDetection(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Ingest(ctx, post(3.9))
	require.NoError(t, err)

	d, err := r.Ingest(ctx, post(3.85, func(p *StatusPost) { p.Status.BrownoutCount = 2 }))
	require.NoError(t, err)
	assert.Equal(t, 2, d.BrownoutCount)
	require.Len(t, d.BrownoutHistory, 1)
	assert.Equal(t, 2, d.BrownoutHistory[0].Count)

	// Same count: no new event.
	d, err = r.Ingest(ctx, post(3.84, func(p *StatusPost) { p.Status.BrownoutCount = 2 }))
	require.NoError(t, err)
	assert.Len(t, d.BrownoutHistory, 1)
}

func TestBatteryHistoryBounded(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	var d *Device
	var err error
	for i := 0; i < maxBatteryHistory+20; i++ {
		d, err = r.Ingest(ctx, post(3.9))
		require.NoError(t, err)
	}
	assert.Len(t, d.BatteryHistory, maxBatteryHistory)
	assert.Equal(t, maxBatteryHistory+20, d.UsageStats.Wakes)
}

func TestLowBatteryNotification(t *testing.T) {
	r, n := newTestRegistry(t)
	ctx := context.Background()

	// 3.6 V ≈ 40%, then 3.45 V ≈ 25%: crosses the 30% threshold downward.
	_, err := r.Ingest(ctx, post(3.6))
	require.NoError(t, err)
	_, err = r.Ingest(ctx, post(3.45))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(n.all()) == 1 }, time.Second, 10*time.Millisecond)
	ev := n.all()[0]
	assert.Equal(t, "frame-1", ev.DeviceID)
	assert.InDelta(t, 30, ev.Threshold, 0.001)

	// Staying below the threshold does not re-notify.
	_, err = r.Ingest(ctx, post(3.44))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, n.all(), 1)
}

func TestGetAndList(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "frame-1")
	require.ErrorIs(t, err, ErrUnknownDevice)

	for i := 0; i < 3; i++ {
		p := post(3.8)
		p.DeviceID = fmt.Sprintf("frame-%d", i)
		_, err := r.Ingest(ctx, p)
		require.NoError(t, err)
	}

	d, err := r.Get(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, "frame-1", d.DeviceID)

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// SPDX-License-Identifier: MIT

package device

// Charging determination sources, in descending trust order.
const (
	SourceESP32         = "esp32"
	SourceVoltageRise   = "voltage_rise"
	SourceTrendOverride = "trend_override"
	SourceNone          = "none"
)

// chargeRiseThreshold is the single-step voltage rise that implies a charger
// was connected, in volts.
const chargeRiseThreshold = 0.15

// trendWindow and trendFlatThreshold drive the trend override: when the
// device claims charging but the average delta across the last trendWindow
// samples is at or below the threshold, the claim is rejected.
const (
	trendWindow        = 5
	trendFlatThreshold = 0.01
)

// voltageCurve maps LiPo cell voltage to remaining percent, interpolated
// linearly between points. Points are descending by voltage.
var voltageCurve = []struct {
	v   float64
	pct float64
}{
	{4.2, 100},
	{4.0, 80},
	{3.7, 50},
	{3.5, 30},
	{3.3, 10},
	{3.0, 0},
}

// percentFromVoltage maps voltage to percent via the piecewise-linear curve.
func percentFromVoltage(v float64) float64 {
	if v >= voltageCurve[0].v {
		return 100
	}
	last := voltageCurve[len(voltageCurve)-1]
	if v <= last.v {
		return 0
	}
	for i := 1; i < len(voltageCurve); i++ {
		hi, lo := voltageCurve[i-1], voltageCurve[i]
		if v >= lo.v {
			frac := (v - lo.v) / (hi.v - lo.v)
			return lo.pct + frac*(hi.pct-lo.pct)
		}
	}
	return 0
}

// deriveCharging resolves the charging state from the three sources:
// the device's own pin reading, a voltage rise against the previous post,
// and a flat-trend override of a stuck pin.
func deriveCharging(prev *Device, reported *bool, voltage float64) (bool, string) {
	if reported != nil {
		if *reported && trendSaysFlat(prev, voltage) {
			return false, SourceTrendOverride
		}
		if *reported {
			return true, SourceESP32
		}
		return false, SourceESP32
	}
	if prev != nil && prev.Voltage > 0 && voltage-prev.Voltage > chargeRiseThreshold {
		return true, SourceVoltageRise
	}
	return false, SourceNone
}

// trendSaysFlat reports whether the recent voltage trend contradicts a
// charging claim: a charging cell rises, so an average delta at or below
// trendFlatThreshold across the last trendWindow samples means the charging
// pin is lying (a common failure when USB is plugged into a dead charger).
func trendSaysFlat(prev *Device, voltage float64) bool {
	if prev == nil || len(prev.BatteryHistory) < trendWindow {
		return false
	}
	recent := prev.BatteryHistory[len(prev.BatteryHistory)-trendWindow:]
	var sum float64
	for i := 1; i < len(recent); i++ {
		sum += recent[i].Voltage - recent[i-1].Voltage
	}
	sum += voltage - recent[len(recent)-1].Voltage
	avg := sum / float64(trendWindow)
	return avg <= trendFlatThreshold
}

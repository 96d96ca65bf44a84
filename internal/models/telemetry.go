package models

import (
	"encoding/json"
	"time"
)

// Device status codes reported by the vendor cloud.
const (
	CodeCurrent = "cur_current"
	CodeVoltage = "cur_voltage"
	CodePower   = "cur_power"
	CodeSwitch  = "switch_1"
)

// StatusEntry is one (code, value) pair from the device status array. Value is a
// number for the electrical codes and a bool for switch codes, so it stays untyped
// until normalization.
type StatusEntry struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// TelemetrySample is one persisted poll result. Samples are append-only and
// immutable once written.
type TelemetrySample struct {
	ID         int64         `json:"id"`
	RecordedAt time.Time     `json:"recorded_at"`
	Status     []StatusEntry `json:"status"`
}

// NormalizedReading is the live payload pushed to subscribers. Voltage and power
// arrive from the device as fixed-point tenths; current is already in mA.
type NormalizedReading struct {
	Time    string  `json:"time"`
	Current float64 `json:"current"`
	Voltage float64 `json:"voltage"`
	Power   float64 `json:"power"`
}

// Value extracts a numeric status code, applying the device's fixed-point scaling:
// cur_voltage and cur_power are reported in tenths, cur_current is raw mA.
// Returns 0 when the status is absent or the code is missing or non-numeric.
func Value(status []StatusEntry, code string) float64 {
	for _, entry := range status {
		if entry.Code != code {
			continue
		}
		raw, ok := toFloat(entry.Value)
		if !ok {
			return 0
		}
		switch code {
		case CodeVoltage, CodePower:
			return raw / 10
		default:
			return raw
		}
	}
	return 0
}

// Switch reports the device's switch state. The second return is false when the
// code is missing from the status array.
func Switch(status []StatusEntry) (bool, bool) {
	for _, entry := range status {
		if entry.Code == CodeSwitch {
			state, ok := entry.Value.(bool)
			return state, ok
		}
	}
	return false, false
}

// Normalize derives the live reading for a sample captured at the given instant.
func Normalize(at time.Time, status []StatusEntry) NormalizedReading {
	return NormalizedReading{
		Time:    at.UTC().Format(time.RFC3339),
		Current: Value(status, CodeCurrent),
		Voltage: Value(status, CodeVoltage),
		Power:   Value(status, CodePower),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Package telemetry defines the core data types flowing through the
// analytics pipeline and the decoding of raw feed payloads into them.
//
// Two record kinds exist:
//   - Sample      — one observed telemetry reading from a device
//   - Prediction  — one model-produced forecast for a future target time
//
// Feed payloads arrive as JSON in several historical shapes (single object,
// array of objects, or a key→object map). The decoder in decode.go
// normalizes all of them, tolerating the field aliases used by older
// firmware revisions.
package telemetry

import "time"

// Sample is a single telemetry reading from one device.
// Samples are identified by Timestamp within a device: a later arrival
// with an equal timestamp replaces the earlier one.
type Sample struct {
	Timestamp   time.Time `json:"ts"`
	Voltage     float64   `json:"voltage"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	PanelAngle  float64   `json:"panel_angle"`
}

// Prediction is a model-produced forecast for a future target time.
// EmittedAt is when the model produced it; TargetAt is the instant the
// forecast is for. Voltage/Angle/Confidence are optional — a nil pointer
// means the model did not emit that field.
type Prediction struct {
	EmittedAt    time.Time `json:"emitted_at"`
	TargetAt     time.Time `json:"target_at"`
	Voltage      *float64  `json:"predicted_voltage,omitempty"`
	Angle        *float64  `json:"predicted_angle,omitempty"`
	Horizon      string    `json:"horizon,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
}

// HasVoltage reports whether the prediction carries a voltage forecast.
func (p Prediction) HasVoltage() bool { return p.Voltage != nil }

// Float64 returns a pointer to v. Convenience constructor for the optional
// prediction fields.
func Float64(v float64) *float64 { return &v }

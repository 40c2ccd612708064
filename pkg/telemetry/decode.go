package telemetry

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Field aliases accepted on the wire. Older firmware publishes "ts" and
// "temp"; newer revisions publish "timestamp" and "temperature".
var (
	timestampKeys   = []string{"ts", "timestamp"}
	temperatureKeys = []string{"temp", "temperature"}
)

// naive ISO-8601 layouts emitted by the upstream collector, which formats
// UTC instants without a zone designator.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp converts a JSON timestamp value into a UTC time.Time.
//
// Accepted representations:
//   - RFC3339 / RFC3339Nano strings
//   - zone-less ISO-8601 strings (interpreted as UTC)
//   - unix seconds (int or float)
//   - unix milliseconds (values >= 1e12)
func ParseTimestamp(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.String:
		s := v.String()
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), nil
		}
		for _, layout := range naiveLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)

	case gjson.Number:
		f := v.Float()
		if f >= 1e12 {
			return time.UnixMilli(int64(f)).UTC(), nil
		}
		return time.Unix(int64(f), 0).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("timestamp must be string or number, got %s", v.Type)
	}
}

// firstField returns the first present key from aliases.
func firstField(record gjson.Result, aliases []string) gjson.Result {
	for _, key := range aliases {
		if v := record.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// numericField extracts a required numeric field, failing on absence or a
// non-numeric value. Numeric strings ("13.2") are accepted since some
// firmware serializes readings as strings.
func numericField(record gjson.Result, aliases ...string) (float64, error) {
	v := firstField(record, aliases)
	if !v.Exists() {
		return 0, fmt.Errorf("missing field %q", aliases[0])
	}
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		var f float64
		if _, err := fmt.Sscanf(v.String(), "%g", &f); err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %q", aliases[0], v.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q is not numeric", aliases[0])
	}
}

// decodeSample converts one JSON record into a Sample.
func decodeSample(record gjson.Result) (Sample, error) {
	tsVal := firstField(record, timestampKeys)
	if !tsVal.Exists() {
		return Sample{}, fmt.Errorf("missing timestamp")
	}
	ts, err := ParseTimestamp(tsVal)
	if err != nil {
		return Sample{}, err
	}

	voltage, err := numericField(record, "voltage")
	if err != nil {
		return Sample{}, err
	}
	temperature, err := numericField(record, temperatureKeys...)
	if err != nil {
		return Sample{}, err
	}
	humidity, err := numericField(record, "humidity")
	if err != nil {
		return Sample{}, err
	}
	angle, err := numericField(record, "panel_angle")
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Timestamp:   ts,
		Voltage:     voltage,
		Temperature: temperature,
		Humidity:    humidity,
		PanelAngle:  angle,
	}, nil
}

// ParseSample decodes a single telemetry payload.
// Extra fields (ldr, current, device_id, ...) are ignored.
func ParseSample(payload []byte) (Sample, error) {
	record := gjson.ParseBytes(payload)
	if !record.IsObject() {
		return Sample{}, fmt.Errorf("sample payload must be a JSON object")
	}
	return decodeSample(record)
}

// ParseSampleBatch decodes a raw-history payload. The feed delivers batches
// either as a JSON array of records or as a key→record map (push-key
// indexed, as redelivered from the upstream store). Malformed entries are
// skipped; decoding fails only if the payload is not array- or map-shaped.
func ParseSampleBatch(payload []byte) ([]Sample, error) {
	root := gjson.ParseBytes(payload)

	var records []gjson.Result
	switch {
	case root.IsArray():
		records = root.Array()
	case root.IsObject():
		root.ForEach(func(_, value gjson.Result) bool {
			records = append(records, value)
			return true
		})
	default:
		return nil, fmt.Errorf("batch payload must be a JSON array or object")
	}

	samples := make([]Sample, 0, len(records))
	for _, record := range records {
		sample, err := decodeSample(record)
		if err != nil {
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// ParsePredictions decodes a prediction payload into one or more
// Predictions.
//
// Two shapes are accepted:
//
//   - flat: {"emitted_at": ..., "target_at": ..., "predicted_voltage": ...,
//     "horizon": ..., "model_version": ..., "confidence": ...}
//
//   - composite (legacy collector shape): {"ts": ..., "model": ...,
//     "short_term": {"predicted_voltage": ..., "recommended_angle": ...},
//     "daily_forecast": [{"date": ..., "voltage": ...}, ...]}
//
// The composite shape expands into one short-term prediction (target one
// hour past emission) plus one prediction per daily-forecast entry.
func ParsePredictions(payload []byte) ([]Prediction, error) {
	record := gjson.ParseBytes(payload)
	if !record.IsObject() {
		return nil, fmt.Errorf("prediction payload must be a JSON object")
	}

	emitted := time.Now().UTC()
	if tsVal := firstField(record, []string{"emitted_at", "ts", "timestamp"}); tsVal.Exists() {
		t, err := ParseTimestamp(tsVal)
		if err != nil {
			return nil, fmt.Errorf("emitted_at: %w", err)
		}
		emitted = t
	}

	model := record.Get("model_version").String()
	if model == "" {
		model = record.Get("model").String()
	}

	if target := record.Get("target_at"); target.Exists() {
		return parseFlatPrediction(record, emitted, model, target)
	}

	return parseCompositePrediction(record, emitted, model)
}

func parseFlatPrediction(record gjson.Result, emitted time.Time, model string, target gjson.Result) ([]Prediction, error) {
	targetAt, err := ParseTimestamp(target)
	if err != nil {
		return nil, fmt.Errorf("target_at: %w", err)
	}

	p := Prediction{
		EmittedAt:    emitted,
		TargetAt:     targetAt,
		Horizon:      record.Get("horizon").String(),
		ModelVersion: model,
	}
	if v := record.Get("predicted_voltage"); v.Exists() && v.Type == gjson.Number {
		p.Voltage = Float64(v.Float())
	}
	if v := record.Get("predicted_angle"); v.Exists() && v.Type == gjson.Number {
		p.Angle = Float64(v.Float())
	}
	if v := record.Get("confidence"); v.Exists() && v.Type == gjson.Number {
		p.Confidence = Float64(v.Float())
	}
	return []Prediction{p}, nil
}

func parseCompositePrediction(record gjson.Result, emitted time.Time, model string) ([]Prediction, error) {
	var preds []Prediction

	if short := record.Get("short_term"); short.IsObject() {
		p := Prediction{
			EmittedAt:    emitted,
			TargetAt:     emitted.Add(time.Hour),
			Horizon:      "short_term",
			ModelVersion: model,
		}
		if v := short.Get("predicted_voltage"); v.Exists() && v.Type == gjson.Number {
			p.Voltage = Float64(v.Float())
		}
		if v := short.Get("recommended_angle"); v.Exists() && v.Type == gjson.Number {
			p.Angle = Float64(v.Float())
		}
		if v := record.Get("confidence"); v.Exists() && v.Type == gjson.Number {
			p.Confidence = Float64(v.Float())
		}
		if p.Voltage != nil || p.Angle != nil {
			preds = append(preds, p)
		}
	}

	for i, entry := range record.Get("daily_forecast").Array() {
		dateVal := firstField(entry, []string{"date", "target_at"})
		if !dateVal.Exists() {
			continue
		}
		targetAt, err := ParseTimestamp(dateVal)
		if err != nil {
			continue
		}
		voltage := firstField(entry, []string{"voltage", "predicted_voltage"})
		if !voltage.Exists() || voltage.Type != gjson.Number {
			continue
		}
		preds = append(preds, Prediction{
			EmittedAt:    emitted,
			TargetAt:     targetAt,
			Voltage:      Float64(voltage.Float()),
			Horizon:      fmt.Sprintf("daily+%d", i+1),
			ModelVersion: model,
		})
	}

	if len(preds) == 0 {
		return nil, fmt.Errorf("prediction payload carries no usable forecast")
	}
	return preds, nil
}

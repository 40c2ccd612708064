// Package align relates predictions to the actual samples that later
// arrive for the same target time, producing a residual series
// (predicted − actual) and the nearest upcoming forecast.
//
// Matching is deliberately coarse: a prediction and a sample correspond
// when their instants fall into the same time bucket, which absorbs the
// small clock and ingestion jitter between the instant a prediction names
// and the instant the matching sample actually lands.
package align

import (
	"math"
	"time"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// Resolution is the bucket width used to match predictions to samples.
const Resolution = time.Minute

// residualPrecision is the display rounding applied to residuals.
const residualPrecision = 100 // 2 decimal places

// Bucket truncates an instant to the alignment resolution in UTC.
// Two instants with equal buckets are treated as the same point in time
// for prediction/actual matching.
func Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(Resolution)
}

// Residual pairs one prediction with the actual sample observed in its
// target bucket. Actual and Value are nil when no sample has (yet) landed
// in the bucket — "no data" is distinct from a residual of zero.
type Residual struct {
	Bucket     time.Time            `json:"bucket"`
	Prediction telemetry.Prediction `json:"prediction"`
	Actual     *float64             `json:"actual_voltage,omitempty"`
	Value      *float64             `json:"residual,omitempty"`
}

// Matched reports whether an actual sample was found for the prediction.
func (r Residual) Matched() bool { return r.Value != nil }

// Residuals aligns every voltage-carrying prediction against the sample
// history and returns the residual series in target-time order.
//
// When several samples share a bucket, the latest one in the history is
// the bucket's actual (the history is timestamp-sorted, so the last
// write wins). When several predictions share a bucket each is aligned
// independently.
func Residuals(predictions []telemetry.Prediction, samples []telemetry.Sample) []Residual {
	actuals := make(map[time.Time]float64, len(samples))
	for _, s := range samples {
		actuals[Bucket(s.Timestamp)] = s.Voltage
	}

	residuals := make([]Residual, 0, len(predictions))
	for _, p := range predictions {
		if !p.HasVoltage() {
			continue
		}
		r := Residual{
			Bucket:     Bucket(p.TargetAt),
			Prediction: p,
		}
		if actual, ok := actuals[r.Bucket]; ok {
			value := round2(*p.Voltage - actual)
			r.Actual = telemetry.Float64(actual)
			r.Value = telemetry.Float64(value)
		}
		residuals = append(residuals, r)
	}
	return residuals
}

// NextUpcoming returns the earliest prediction whose target is strictly
// after now. When several predictions target the earliest upcoming bucket,
// the most recently emitted one wins (equal emission times resolve to the
// latest-ingested). Returns false when nothing upcoming exists.
func NextUpcoming(predictions []telemetry.Prediction, now time.Time) (telemetry.Prediction, bool) {
	var (
		best  telemetry.Prediction
		found bool
	)
	for _, p := range predictions {
		if !p.TargetAt.After(now) {
			continue
		}
		switch {
		case !found:
			best, found = p, true
		case Bucket(p.TargetAt).Before(Bucket(best.TargetAt)):
			best = p
		case Bucket(p.TargetAt).Equal(Bucket(best.TargetAt)) && !p.EmittedAt.Before(best.EmittedAt):
			// Same target bucket: most recently emitted forecast wins.
			best = p
		}
	}
	return best, found
}

func round2(v float64) float64 {
	return math.Round(v*residualPrecision) / residualPrecision
}

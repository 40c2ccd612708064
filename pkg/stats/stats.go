// Package stats computes rolling statistics over a trailing window of
// telemetry samples: per-field aggregates, Pearson correlation,
// trend-change percent, and population variance.
//
// Every function is a pure, total function of its inputs. Degenerate
// inputs (empty windows, mismatched series lengths, zero denominators)
// resolve to a neutral zero value rather than an error or NaN — absence of
// signal is reported as absence of signal, not as a fault.
package stats

import (
	"math"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// WindowSize is the trailing sub-window statistics are computed over:
// the most recent min(WindowSize, buffered) samples.
const WindowSize = 40

// Field selects one numeric component of a telemetry sample.
type Field int

const (
	Voltage Field = iota
	Temperature
	Humidity
	PanelAngle
)

// Value extracts the field from a sample.
func (f Field) Value(s telemetry.Sample) float64 {
	switch f {
	case Voltage:
		return s.Voltage
	case Temperature:
		return s.Temperature
	case Humidity:
		return s.Humidity
	case PanelAngle:
		return s.PanelAngle
	default:
		return 0
	}
}

// Aggregate holds mean/min/max for one field over a window.
type Aggregate struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Aggregates holds per-field aggregates over a window.
type Aggregates struct {
	Voltage     Aggregate `json:"voltage"`
	Temperature Aggregate `json:"temperature"`
	Humidity    Aggregate `json:"humidity"`
	PanelAngle  Aggregate `json:"panel_angle"`
}

// Series extracts one field from a window as a float slice.
func Series(window []telemetry.Sample, field Field) []float64 {
	values := make([]float64, len(window))
	for i, s := range window {
		values[i] = field.Value(s)
	}
	return values
}

func aggregate(values []float64) Aggregate {
	if len(values) == 0 {
		return Aggregate{}
	}
	agg := Aggregate{Min: values[0], Max: values[0]}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < agg.Min {
			agg.Min = v
		}
		if v > agg.Max {
			agg.Max = v
		}
	}
	agg.Mean = sum / float64(len(values))
	return agg
}

// ComputeAggregates returns mean/min/max per field over the window.
// An empty window yields all-zero aggregates.
func ComputeAggregates(window []telemetry.Sample) Aggregates {
	return Aggregates{
		Voltage:     aggregate(Series(window, Voltage)),
		Temperature: aggregate(Series(window, Temperature)),
		Humidity:    aggregate(Series(window, Humidity)),
		PanelAngle:  aggregate(Series(window, PanelAngle)),
	}
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Correlation returns the Pearson correlation coefficient between two
// equal-length series.
//
// Empty series, mismatched lengths, and zero denominators (either series
// constant) all return 0: no signal is treated as no correlation, never as
// an error or NaN.
func Correlation(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	meanA := Mean(a)
	meanB := Mean(b)

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	denom := math.Sqrt(varA * varB)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

// TrendChangePercent splits the window's voltage series into halves
// (first ⌊len/2⌋ samples, remainder after) and returns the percent change
// of the later half's mean relative to the earlier half's:
//
//	(laterMean − earlierMean) / |earlierMean| × 100
//
// Windows too small to split, or whose earlier-half mean is zero, return 0
// so a near-empty or zero-baseline window never produces a spurious swing.
func TrendChangePercent(window []telemetry.Sample) float64 {
	if len(window) < 2 {
		return 0
	}

	voltages := Series(window, Voltage)
	half := len(voltages) / 2

	earlierMean := Mean(voltages[:half])
	laterMean := Mean(voltages[half:])

	if earlierMean == 0 {
		return 0
	}
	return (laterMean - earlierMean) / math.Abs(earlierMean) * 100
}

// Variance returns the population variance (Σ(x−mean)²/n) of a field over
// the window. Population rather than sample variance: the window is the
// entire observed population, not a draw from a larger one. An empty
// window returns 0.
func Variance(window []telemetry.Sample, field Field) float64 {
	values := Series(window, field)
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

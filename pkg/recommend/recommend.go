// Package recommend turns window statistics, the current reading, and the
// prediction set into a prioritized list of operational recommendations.
//
// The rule battery is fixed and ordered; thresholds are part of the
// contract, not tunables. Every rule is a pure, total function of its
// inputs — a rule facing missing data simply does not fire. The output is
// never empty: when nothing fires, a single nominal-status entry is
// emitted.
package recommend

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/HatiCode/solwatch/pkg/align"
	"github.com/HatiCode/solwatch/pkg/stats"
	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// Severity ranks a recommendation. Higher values sort first.
type Severity int

const (
	Info Severity = iota + 1
	Warning
	Danger
)

// String returns the lowercase severity label.
func (s Severity) String() string {
	switch s {
	case Danger:
		return "danger"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// MarshalJSON encodes the severity as its label.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a severity label.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err != nil {
		return err
	}
	switch label {
	case "danger":
		*s = Danger
	case "warning":
		*s = Warning
	case "info":
		*s = Info
	default:
		return fmt.Errorf("unknown severity %q", label)
	}
	return nil
}

// Recommendation is one human-readable operational finding.
type Recommendation struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Rule thresholds. Exact values are contractual.
const (
	lowVoltageFloor       = 12.0  // V, instantaneous
	lowVoltageAvgFloor    = 13.0  // V, window average
	criticalTemp          = 45.0  // °C, instantaneous
	elevatedAvgTemp       = 40.0  // °C, window average
	anticorrelationFloor  = -0.35 // humidity/voltage Pearson r
	trendDropDangerPct    = -8.0  // window trend change, percent
	trendDropWarningPct   = -4.0
	angleVarianceCeiling  = 12.0 // degrees²
	forecastDropThreshold = 8.0  // percent below current reading
)

// Evaluate runs the rule battery and returns the de-duplicated,
// severity-sorted recommendation list.
//
// window is the trailing statistics window (possibly empty), current is
// the most recent sample (hasCurrent false when the buffer is empty), and
// predictions is the full prediction set. now anchors the forecast rule.
func Evaluate(window []telemetry.Sample, current telemetry.Sample, hasCurrent bool, predictions []telemetry.Prediction, now time.Time) []Recommendation {
	var recs []Recommendation

	recs = appendVoltageRule(recs, window, current, hasCurrent)
	recs = appendThermalRule(recs, window, current, hasCurrent)
	recs = appendHumidityRule(recs, window)
	recs = appendTrendRule(recs, window)
	recs = appendAngleRule(recs, window)
	recs = appendForecastRule(recs, current, hasCurrent, predictions, now)

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Severity: Info,
			Message:  "All signals operating within expected ranges",
		})
	}

	recs = dedupe(recs)

	// Stable: equal severities keep rule-evaluation order.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Severity > recs[j].Severity
	})

	return recs
}

func appendVoltageRule(recs []Recommendation, window []telemetry.Sample, current telemetry.Sample, hasCurrent bool) []Recommendation {
	switch {
	case hasCurrent && current.Voltage < lowVoltageFloor:
		return append(recs, Recommendation{
			Severity: Warning,
			Message:  fmt.Sprintf("Low voltage detected: current output %.1fV is below the %.0fV operating floor", current.Voltage, lowVoltageFloor),
		})
	case len(window) > 0:
		if avg := stats.Mean(stats.Series(window, stats.Voltage)); avg < lowVoltageAvgFloor {
			return append(recs, Recommendation{
				Severity: Info,
				Message:  fmt.Sprintf("Average voltage %.1fV over the recent window is trending below %.0fV", avg, lowVoltageAvgFloor),
			})
		}
	}
	return recs
}

func appendThermalRule(recs []Recommendation, window []telemetry.Sample, current telemetry.Sample, hasCurrent bool) []Recommendation {
	switch {
	case hasCurrent && current.Temperature > criticalTemp:
		return append(recs, Recommendation{
			Severity: Danger,
			Message:  fmt.Sprintf("Panel temperature critical: %.1f°C exceeds the %.0f°C limit", current.Temperature, criticalTemp),
		})
	case len(window) > 0:
		if avg := stats.Mean(stats.Series(window, stats.Temperature)); avg > elevatedAvgTemp {
			return append(recs, Recommendation{
				Severity: Warning,
				Message:  fmt.Sprintf("Average panel temperature %.1f°C over the recent window exceeds %.0f°C", avg, elevatedAvgTemp),
			})
		}
	}
	return recs
}

func appendHumidityRule(recs []Recommendation, window []telemetry.Sample) []Recommendation {
	r := stats.Correlation(
		stats.Series(window, stats.Humidity),
		stats.Series(window, stats.Voltage),
	)
	if r < anticorrelationFloor {
		recs = append(recs, Recommendation{
			Severity: Warning,
			Message:  fmt.Sprintf("Humidity and voltage are anticorrelated (r=%.2f): possible condensation or shading on the panel", r),
		})
	}
	return recs
}

func appendTrendRule(recs []Recommendation, window []telemetry.Sample) []Recommendation {
	trend := stats.TrendChangePercent(window)
	switch {
	case trend < trendDropDangerPct:
		recs = append(recs, Recommendation{
			Severity: Danger,
			Message:  fmt.Sprintf("Voltage output dropped %.1f%% across the recent window", -trend),
		})
	case trend < trendDropWarningPct:
		recs = append(recs, Recommendation{
			Severity: Warning,
			Message:  fmt.Sprintf("Voltage output dropped %.1f%% across the recent window", -trend),
		})
	}
	return recs
}

func appendAngleRule(recs []Recommendation, window []telemetry.Sample) []Recommendation {
	if v := stats.Variance(window, stats.PanelAngle); v > angleVarianceCeiling {
		recs = append(recs, Recommendation{
			Severity: Info,
			Message:  fmt.Sprintf("Panel angle is unstable: variance %.1f°² over the recent window suggests tracker hunting", v),
		})
	}
	return recs
}

func appendForecastRule(recs []Recommendation, current telemetry.Sample, hasCurrent bool, predictions []telemetry.Prediction, now time.Time) []Recommendation {
	if !hasCurrent || current.Voltage <= 0 {
		return recs
	}

	next, ok := align.NextUpcoming(predictions, now)
	if !ok || !next.HasVoltage() {
		return recs
	}

	dropPct := (current.Voltage - *next.Voltage) / current.Voltage * 100
	if dropPct <= forecastDropThreshold {
		return recs
	}

	horizon := next.Horizon
	if horizon == "" {
		horizon = "unspecified"
	}
	recs = append(recs, Recommendation{
		Severity: Warning,
		Message: fmt.Sprintf("Forecast voltage drop: %.1fV predicted for %s (%s horizon), %.1f%% below the current reading",
			*next.Voltage, next.TargetAt.UTC().Format("15:04"), horizon, dropPct),
	})
	return recs
}

// dedupe removes recommendations with identical message text, keeping the
// first occurrence.
func dedupe(recs []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if _, dup := seen[r.Message]; dup {
			continue
		}
		seen[r.Message] = struct{}{}
		out = append(out, r)
	}
	return out
}

package storage

import (
	"context"
	"time"

	"github.com/HatiCode/solwatch/pkg/align"
	"github.com/HatiCode/solwatch/pkg/recommend"
	"github.com/HatiCode/solwatch/pkg/stats"
	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// Snapshot is the read-only derived view published for one device after
// every ingest: current values, rolling aggregates, the prioritized
// recommendation list, and the aligned residual series. It is a pure
// function of the buffers' contents at generation time.
type Snapshot struct {
	Device      string    `json:"device"`
	GeneratedAt time.Time `json:"generated_at"`

	SampleCount     int `json:"sample_count"`
	PredictionCount int `json:"prediction_count"`

	// Current is the most recent sample; nil when no samples have arrived.
	Current *telemetry.Sample `json:"current,omitempty"`

	Aggregates         stats.Aggregates `json:"aggregates"`
	Correlation        float64          `json:"humidity_voltage_correlation"`
	TrendChangePercent float64          `json:"trend_change_percent"`
	AngleVariance      float64          `json:"angle_variance"`

	Recommendations []recommend.Recommendation `json:"recommendations"`
	Residuals       []align.Residual           `json:"residuals"`

	// NextUpcoming is the nearest prediction past generation time, if any.
	NextUpcoming *telemetry.Prediction `json:"next_upcoming,omitempty"`
}

// Store holds the latest derived snapshot per device.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, device string) (Snapshot, bool, error)
}

// Package analyzer owns the per-device ingest pipeline: it receives raw
// feed payloads, maintains the sample and prediction buffers, and
// republishes a freshly derived analytics snapshot after every ingest.
//
// Derived state is recomputed from scratch from the current buffer
// contents on each publish — there is no incremental accumulator that
// could drift from the buffers, so a recompute at any point always
// reproduces the published snapshot.
package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HatiCode/solwatch/pkg/align"
	"github.com/HatiCode/solwatch/pkg/buffer"
	"github.com/HatiCode/solwatch/pkg/recommend"
	"github.com/HatiCode/solwatch/pkg/stats"
	"github.com/HatiCode/solwatch/pkg/storage"
	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// Feed identifies which upstream channel delivered a payload.
const (
	FeedLatest      = "latest"
	FeedRaw         = "raw"
	FeedPredictions = "predictions"
)

// Metrics receives pipeline instrumentation. Implementations must be safe
// for concurrent use. A nil Metrics disables instrumentation.
type Metrics interface {
	RecordIngest(feed string)
	RecordDrop(feed, reason string)
	RecordRecompute(seconds float64)
	SetBufferedSamples(device string, n int)
	RecordRecommendations(severity string, n int)
}

// Archiver receives accepted samples for long-term storage. Archiving is
// best-effort: failures are logged and never block ingest.
type Archiver interface {
	ArchiveSamples(ctx context.Context, device string, samples []telemetry.Sample) error
}

// Options configures a device analyzer.
type Options struct {
	// SampleCapacity bounds the sample buffer (default 300).
	SampleCapacity int
	// PredictionCapacity bounds the prediction buffer (default 500).
	PredictionCapacity int
	// Store receives the derived snapshot after every ingest; required.
	Store storage.Store
	// Archive optionally receives accepted samples.
	Archive Archiver
	Logger  *slog.Logger
	Metrics Metrics
	// Now overrides the clock; used by tests. Defaults to time.Now.
	Now func() time.Time
}

// Analyzer is the ingest coordinator for a single device. It exclusively
// owns the device's buffers; consumers only ever see read-only snapshots.
type Analyzer struct {
	device      string
	samples     *buffer.SampleBuffer
	predictions *buffer.PredictionBuffer
	store       storage.Store
	archive     Archiver
	logger      *slog.Logger
	metrics     Metrics
	now         func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates an analyzer for one device.
func New(device string, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Analyzer{
		device:      device,
		samples:     buffer.NewSampleBuffer(opts.SampleCapacity),
		predictions: buffer.NewPredictionBuffer(opts.PredictionCapacity),
		store:       opts.Store,
		archive:     opts.Archive,
		logger:      logger.With("device", device),
		metrics:     opts.Metrics,
		now:         now,
	}
}

// Device returns the device identifier this analyzer serves.
func (a *Analyzer) Device() string { return a.device }

// IngestLatest processes one payload from the latest-sample feed.
// Malformed payloads are dropped silently (logged and counted, never
// surfaced).
func (a *Analyzer) IngestLatest(ctx context.Context, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	sample, err := telemetry.ParseSample(payload)
	if err != nil {
		a.drop(FeedLatest, "malformed", err)
		return
	}

	a.samples.Upsert(sample)
	a.ingested(FeedLatest)
	a.archiveSamples(ctx, []telemetry.Sample{sample})
	a.publish(ctx)
}

// IngestRaw processes one payload from the raw-history feed. Batches may
// redeliver overlapping historical points; merging by timestamp key
// deduplicates them. Malformed entries within a batch are skipped.
func (a *Analyzer) IngestRaw(ctx context.Context, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	batch, err := telemetry.ParseSampleBatch(payload)
	if err != nil {
		a.drop(FeedRaw, "malformed", err)
		return
	}

	for _, sample := range batch {
		a.samples.Upsert(sample)
	}
	a.ingested(FeedRaw)
	a.archiveSamples(ctx, batch)
	a.publish(ctx)
}

// IngestPredictions processes one payload from the predictions feed.
func (a *Analyzer) IngestPredictions(ctx context.Context, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	preds, err := telemetry.ParsePredictions(payload)
	if err != nil {
		a.drop(FeedPredictions, "malformed", err)
		return
	}

	for _, p := range preds {
		a.predictions.Upsert(p)
	}
	a.ingested(FeedPredictions)
	a.publish(ctx)
}

// Snapshot derives the current analytics view from the buffers. It is a
// pure function of buffer contents and the supplied clock instant, and is
// safe to call concurrently with ingest.
func (a *Analyzer) Snapshot(now time.Time) storage.Snapshot {
	window := a.samples.Window(stats.WindowSize)
	history := a.samples.Snapshot()
	preds := a.predictions.All()
	current, hasCurrent := a.samples.Latest()

	snapshot := storage.Snapshot{
		Device:             a.device,
		GeneratedAt:        now,
		SampleCount:        len(history),
		PredictionCount:    len(preds),
		Aggregates:         stats.ComputeAggregates(window),
		Correlation:        stats.Correlation(stats.Series(window, stats.Humidity), stats.Series(window, stats.Voltage)),
		TrendChangePercent: stats.TrendChangePercent(window),
		AngleVariance:      stats.Variance(window, stats.PanelAngle),
		Recommendations:    recommend.Evaluate(window, current, hasCurrent, preds, now),
		Residuals:          align.Residuals(preds, history),
	}

	if hasCurrent {
		snapshot.Current = &current
	}
	if next, ok := align.NextUpcoming(preds, now); ok {
		snapshot.NextUpcoming = &next
	}

	return snapshot
}

// ExportSamples returns the full buffered history for tabular export.
func (a *Analyzer) ExportSamples() []telemetry.Sample {
	return a.samples.Snapshot()
}

// Close stops all further buffer mutation for the device. Ingest calls
// after Close are no-ops. Safe to call more than once.
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// publish recomputes the derived snapshot and stores it. Called with the
// analyzer lock held.
func (a *Analyzer) publish(ctx context.Context) {
	start := time.Now()
	snapshot := a.Snapshot(a.now().UTC())

	if a.metrics != nil {
		a.metrics.RecordRecompute(time.Since(start).Seconds())
		a.metrics.SetBufferedSamples(a.device, snapshot.SampleCount)
		for _, r := range snapshot.Recommendations {
			a.metrics.RecordRecommendations(r.Severity.String(), 1)
		}
	}

	if a.store == nil {
		return
	}
	if err := a.store.Put(ctx, snapshot); err != nil {
		a.logger.Error("failed to store snapshot", "error", err)
	}
}

func (a *Analyzer) archiveSamples(ctx context.Context, samples []telemetry.Sample) {
	if a.archive == nil || len(samples) == 0 {
		return
	}
	if err := a.archive.ArchiveSamples(ctx, a.device, samples); err != nil {
		a.logger.Warn("failed to archive samples", "count", len(samples), "error", err)
	}
}

func (a *Analyzer) ingested(feed string) {
	if a.metrics != nil {
		a.metrics.RecordIngest(feed)
	}
}

func (a *Analyzer) drop(feed, reason string, err error) {
	a.logger.Debug("dropped payload", "feed", feed, "reason", reason, "error", err)
	if a.metrics != nil {
		a.metrics.RecordDrop(feed, reason)
	}
}

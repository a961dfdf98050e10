package sqlite

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// meterHooks is the narrow slice of OpenTelemetry instruments the Storage
// Backend and Blocked Cache emit (spec's DOMAIN STACK section): transaction
// counts/duration and blocked-cache rebuild counts/duration. Defaults to a
// no-op implementation so the engine never requires a configured OTel SDK;
// callers that want metrics pass a real metric.Meter via WithMeter.
type meterHooks interface {
	RecordTxDuration(ctx context.Context, seconds float64, outcome string)
	RecordCacheRebuild(ctx context.Context, seconds float64, rowsWritten int64)
}

type noopMeter struct{}

func (noopMeter) RecordTxDuration(context.Context, float64, string) {}
func (noopMeter) RecordCacheRebuild(context.Context, float64, int64) {}

// otelMeter adapts a metric.Meter into meterHooks.
type otelMeter struct {
	txDuration     metric.Float64Histogram
	txCount        metric.Int64Counter
	rebuildCount   metric.Int64Counter
	rebuildRows    metric.Int64Histogram
	rebuildSeconds metric.Float64Histogram
}

// NewOTelMeter builds a meterHooks backed by real OpenTelemetry instruments
// registered against m. Use with WithMeter to instrument a SQLiteStorage.
func NewOTelMeter(m metric.Meter) (meterHooks, error) {
	txDuration, err := m.Float64Histogram("stoneforge.storage.tx.duration_seconds")
	if err != nil {
		return nil, err
	}
	txCount, err := m.Int64Counter("stoneforge.storage.tx.count")
	if err != nil {
		return nil, err
	}
	rebuildCount, err := m.Int64Counter("stoneforge.blocked_cache.rebuild.count")
	if err != nil {
		return nil, err
	}
	rebuildRows, err := m.Int64Histogram("stoneforge.blocked_cache.rebuild.rows")
	if err != nil {
		return nil, err
	}
	rebuildSeconds, err := m.Float64Histogram("stoneforge.blocked_cache.rebuild.duration_seconds")
	if err != nil {
		return nil, err
	}
	return &otelMeter{
		txDuration:     txDuration,
		txCount:        txCount,
		rebuildCount:   rebuildCount,
		rebuildRows:    rebuildRows,
		rebuildSeconds: rebuildSeconds,
	}, nil
}

func (o *otelMeter) RecordTxDuration(ctx context.Context, seconds float64, outcome string) {
	o.txDuration.Record(ctx, seconds, metric.WithAttributes())
	o.txCount.Add(ctx, 1, metric.WithAttributes())
	_ = outcome
}

func (o *otelMeter) RecordCacheRebuild(ctx context.Context, seconds float64, rowsWritten int64) {
	o.rebuildSeconds.Record(ctx, seconds)
	o.rebuildRows.Record(ctx, rowsWritten)
	o.rebuildCount.Add(ctx, 1)
}

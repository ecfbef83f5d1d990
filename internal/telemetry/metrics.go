package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/preactpack"
)

// Metrics holds the OpenTelemetry instruments recorded while building
type Metrics struct {
	// Build metrics
	BuildDuration       metric.Float64Histogram
	BuildErrorsTotal    metric.Int64Counter
	StagesExecutedTotal metric.Int64Counter

	// Dev server metrics
	ReloadsTotal  metric.Int64Counter
	ProxiedTotal  metric.Int64Counter
	ReloadClients metric.Int64UpDownCounter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Call it after InitTelemetry so the instruments bind to the exporting provider.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildDuration, _ = meter.Float64Histogram(
		"preactpack.build.duration",
		metric.WithDescription("Duration of a bundle and its emit stages"),
		metric.WithUnit("ms"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"preactpack.build.errors.total",
		metric.WithDescription("Total number of failed builds"),
		metric.WithUnit("{error}"),
	)

	m.StagesExecutedTotal, _ = meter.Int64Counter(
		"preactpack.stages.executed.total",
		metric.WithDescription("Total number of stage emit hooks run"),
		metric.WithUnit("{stage}"),
	)

	m.ReloadsTotal, _ = meter.Int64Counter(
		"preactpack.devserver.reloads.total",
		metric.WithDescription("Total number of reload notifications broadcast"),
		metric.WithUnit("{reload}"),
	)

	m.ProxiedTotal, _ = meter.Int64Counter(
		"preactpack.devserver.proxied.total",
		metric.WithDescription("Total number of requests forwarded to a proxy upstream"),
		metric.WithUnit("{request}"),
	)

	m.ReloadClients, _ = meter.Int64UpDownCounter(
		"preactpack.devserver.reload_clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	return m
}

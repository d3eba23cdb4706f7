package bootstrap

import (
	"log/slog"

	"github.com/target/gatehouse/config"
	"github.com/target/gatehouse/internal/observability/metrics"
	"github.com/target/gatehouse/internal/observability/statsd"
	"github.com/target/gatehouse/internal/observability/tracing"
)

// ObservabilityContainer groups shared observability dependencies. Its zero
// value disables metrics and tracing.
type ObservabilityContainer struct {
	Metrics *metrics.Recorder
	Tracer  *tracing.Tracer
	sink    *statsd.Client
}

// Close flushes the metrics sink.
func (o ObservabilityContainer) Close() error {
	if o.sink == nil {
		return nil
	}
	return o.sink.Close()
}

// BuildObservability configures metrics and tracing adapters.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var out ObservabilityContainer
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.sink = client
			out.Metrics = metrics.NewRecorder(client)
		}
	}
	if cfg.Tracing.Enabled {
		out.Tracer = tracing.NewTracer(cfg.Tracing.ServiceName)
	}
	return out
}

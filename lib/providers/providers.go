package providers

import (
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/gantrybuild/gantry/cmd/gantry/config"
	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/events"
)

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvideLogger provides a structured logger
func ProvideLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ProvideMeter provides the meter build metrics register on
func ProvideMeter() metric.Meter {
	return otel.Meter("gantry")
}

// ProvideEventSink provides the sink build progress events are published to
func ProvideEventSink(logger *slog.Logger) events.Sink {
	return events.SlogSink{Logger: logger}
}

// ProvideAssembler provides the image assembler
func ProvideAssembler(logger *slog.Logger, meter metric.Meter, sink events.Sink) (assemble.Assembler, error) {
	return assemble.New(logger, meter, sink)
}

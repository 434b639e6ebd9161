package otel

import (
	"go.opentelemetry.io/otel/metric"
)

// AssemblyMetrics holds metrics for the image assembler.
type AssemblyMetrics struct {
	AssembliesTotal  metric.Int64Counter
	AssemblyDuration metric.Float64Histogram
	LayersResolved   metric.Int64Counter
	LayerBytes       metric.Int64Counter
}

// NewAssemblyMetrics creates metrics for the image assembler.
func NewAssemblyMetrics(meter metric.Meter) (*AssemblyMetrics, error) {
	assembliesTotal, err := meter.Int64Counter(
		"gantry_assemblies_total",
		metric.WithDescription("Total number of image assemblies by outcome"),
	)
	if err != nil {
		return nil, err
	}

	assemblyDuration, err := meter.Float64Histogram(
		"gantry_assembly_duration_seconds",
		metric.WithDescription("Time to assemble an image"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	layersResolved, err := meter.Int64Counter(
		"gantry_layers_resolved_total",
		metric.WithDescription("Total number of resolved layers by kind"),
	)
	if err != nil {
		return nil, err
	}

	layerBytes, err := meter.Int64Counter(
		"gantry_layer_bytes_total",
		metric.WithDescription("Total compressed bytes of resolved layers"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &AssemblyMetrics{
		AssembliesTotal:  assembliesTotal,
		AssemblyDuration: assemblyDuration,
		LayersResolved:   layersResolved,
		LayerBytes:       layerBytes,
	}, nil
}

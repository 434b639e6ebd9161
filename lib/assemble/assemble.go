// Package assemble joins the independently resolving pieces of a container
// image build (base image metadata, cached base layers, freshly built
// application layers) into one immutable image. It is the fan-in point of
// the build: producers resolve concurrently and in any order, while the
// assembled layer sequence and history follow declaration order alone.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gantrybuild/gantry/lib/cache"
	"github.com/gantrybuild/gantry/lib/events"
	"github.com/gantrybuild/gantry/lib/image"
	otelx "github.com/gantrybuild/gantry/lib/otel"
)

// Assembler produces completed images from producer results.
type Assembler interface {
	// Assemble resolves all producers and returns the assembled image, or
	// the first upstream failure encountered. No partial image is ever
	// returned; on failure, in-flight sibling resolutions finish
	// cooperatively and their results are discarded.
	Assemble(ctx context.Context, cfg Config, req Request) (*image.Image, error)
}

// Request hands the assembler its producers. BaseImage and BaseLayers are
// required; AppLayers holds the already-flattened, build-ordered application
// layer handles and may be empty.
type Request struct {
	BaseImage  BaseImageProducer
	BaseLayers BaseLayersProducer
	AppLayers  []AppLayer
}

type assembler struct {
	logger  *slog.Logger
	metrics *otelx.AssemblyMetrics
	sink    events.Sink
}

// New creates an Assembler. logger may be nil to use slog.Default; meter and
// sink may be nil to disable metrics and events. Each Assemble call is
// independent and reentrant; the assembler holds no per-build state.
func New(logger *slog.Logger, meter metric.Meter, sink events.Sink) (Assembler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &assembler{logger: logger, sink: sink}
	if meter != nil {
		m, err := otelx.NewAssemblyMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		a.metrics = m
	}
	return a, nil
}

func (a *assembler) Assemble(ctx context.Context, cfg Config, req Request) (*image.Image, error) {
	if req.BaseImage == nil {
		return nil, fmt.Errorf("base image producer is required")
	}
	if req.BaseLayers == nil {
		return nil, fmt.Errorf("base layer producer is required")
	}

	start := time.Now()
	img, err := a.assemble(ctx, cfg, req)
	a.recordAssembly(ctx, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (a *assembler) assemble(ctx context.Context, cfg Config, req Request) (*image.Image, error) {
	// The base image resolves first. Its failure aborts the build before
	// any layer handle is touched.
	base, err := req.BaseImage.ResolveBaseImage(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve base image: %w", err)
	}
	baseImg := base.Image
	if baseImg == nil {
		return nil, fmt.Errorf("resolve base image: producer returned no image")
	}
	a.emit(events.TypeBaseImageResolved, "resolved base image", map[string]any{
		"history_entries": len(baseImg.History),
	})

	// Base and application layers fan in concurrently. Each entry lands in
	// its declared slot, so the assembled order never depends on which
	// handle happens to complete first. A single token pool bounds how many
	// resolutions run at once across base and application handles together.
	g, gctx := errgroup.WithContext(ctx)
	var workers *semaphore.Weighted
	if cfg.Workers > 0 {
		workers = semaphore.NewWeighted(int64(cfg.Workers))
	}
	resolve := func(ctx context.Context, h LayerHandle) (*cache.Entry, error) {
		if workers != nil {
			if err := workers.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer workers.Release(1)
		}
		return h.ResolveLayer(ctx)
	}

	var baseEntries []*cache.Entry
	g.Go(func() error {
		handles, err := req.BaseLayers.ResolveBaseLayers(gctx)
		if err != nil {
			return fmt.Errorf("resolve base layers: %w", err)
		}
		baseEntries = make([]*cache.Entry, len(handles))

		inner, ictx := errgroup.WithContext(gctx)
		for i, h := range handles {
			inner.Go(func() error {
				entry, err := resolve(ictx, h)
				if err != nil {
					return fmt.Errorf("resolve base layer %d: %w", i, err)
				}
				baseEntries[i] = entry
				a.layerResolved(ictx, "base", i, entry)
				return nil
			})
		}
		return inner.Wait()
	})

	appEntries := make([]*cache.Entry, len(req.AppLayers))
	for i, h := range req.AppLayers {
		g.Go(func() error {
			entry, err := resolve(gctx, h)
			if err != nil {
				return fmt.Errorf("resolve application layer %d: %w", i, err)
			}
			appEntries[i] = entry
			a.layerResolved(gctx, "app", i, entry)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Seed a builder from the base image configuration; the builder copies
	// everything, so the base image value stays untouched.
	builder := image.NewBuilder().
		SetPlatform(baseImg.Architecture, baseImg.OS).
		SetCreated(baseImg.Created).
		AddEnv(baseImg.Env).
		AddLabels(baseImg.Labels).
		SetWorkingDir(baseImg.WorkingDir).
		SetEntrypoint(baseImg.Entrypoint).
		SetArgs(baseImg.Args).
		SetPorts(baseImg.Ports).
		SetHistory(baseImg.History)

	for _, entry := range baseEntries {
		builder.AddLayer(entry.Layer())
	}
	for _, entry := range appEntries {
		builder.AddLayer(entry.Layer())
	}

	applyContainerConfig(builder, cfg.Container)

	created := effectiveCreated(cfg.Container, baseImg.Created)
	actions := lo.Map(req.AppLayers, func(l AppLayer, _ int) string {
		return cfg.createdBy(l.Action())
	})
	if n := nonEmptyHistoryCount(baseImg.History); len(baseEntries) < n {
		// Tolerated: the declared history counts more real layers than the
		// base actually resolved to. Nothing is truncated.
		a.logger.Debug("base history over-counts layers",
			"non_empty_history", n, "base_layers", len(baseEntries))
	} else if padded := len(baseEntries) - n; padded > 0 {
		a.emit(events.TypeHistoryPadded, "generated history for unaccounted base layers", map[string]any{
			"entries": padded,
		})
	}
	builder.SetHistory(ReconcileHistory(baseImg.History, len(baseEntries), actions, created, cfg.tool()))

	img := builder.Build()
	a.logger.Info("assembled image",
		"layers", len(img.Layers),
		"history_entries", len(img.History))
	a.emit(events.TypeImageAssembled, "assembled image", map[string]any{
		"layers":          len(img.Layers),
		"history_entries": len(img.History),
	})
	return img, nil
}

func (a *assembler) emit(t events.Type, message string, fields map[string]any) {
	if a.sink != nil {
		a.sink.Emit(events.New(t, message, fields))
	}
}

func (a *assembler) layerResolved(ctx context.Context, kind string, index int, entry *cache.Entry) {
	a.emit(events.TypeLayerResolved, "resolved layer", map[string]any{
		"kind":   kind,
		"index":  index,
		"digest": entry.LayerDigest().String(),
	})
	if a.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("kind", kind))
		a.metrics.LayersResolved.Add(ctx, 1, attrs)
		a.metrics.LayerBytes.Add(ctx, entry.LayerSize(), attrs)
	}
}

func (a *assembler) recordAssembly(ctx context.Context, elapsed time.Duration, err error) {
	if a.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	a.metrics.AssembliesTotal.Add(ctx, 1, attrs)
	a.metrics.AssemblyDuration.Record(ctx, elapsed.Seconds(), attrs)
}

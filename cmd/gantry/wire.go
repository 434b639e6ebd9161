//go:build wireinject

package main

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/gantrybuild/gantry/cmd/gantry/config"
	"github.com/gantrybuild/gantry/lib/assemble"
	"github.com/gantrybuild/gantry/lib/events"
	"github.com/gantrybuild/gantry/lib/providers"
)

// application struct to hold initialized components
type application struct {
	Logger    *slog.Logger
	Config    *config.Config
	Sink      events.Sink
	Assembler assemble.Assembler
}

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideConfig,
		providers.ProvideLogger,
		providers.ProvideMeter,
		providers.ProvideEventSink,
		providers.ProvideAssembler,
		wire.Struct(new(application), "*"),
	))
}

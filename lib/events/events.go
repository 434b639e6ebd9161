// Package events carries build progress notifications from the assembler to
// interested listeners. Delivery is strictly fire-and-forget: emitting never
// blocks assembly and a lost event never affects the build result.
package events

import (
	"log/slog"
	"time"

	"github.com/nrednav/cuid2"
)

// Type classifies build events.
type Type string

const (
	// TypeBaseImageResolved fires once the base image metadata is available.
	TypeBaseImageResolved Type = "base_image_resolved"
	// TypeLayerResolved fires for every resolved base or application layer.
	TypeLayerResolved Type = "layer_resolved"
	// TypeHistoryPadded fires when synthetic history entries were generated
	// to cover base layers the declared history did not account for.
	TypeHistoryPadded Type = "history_padded"
	// TypeImageAssembled fires when the final image is frozen.
	TypeImageAssembled Type = "image_assembled"
)

// Event is a single build notification.
type Event struct {
	ID      string
	Type    Type
	Time    time.Time
	Message string
	Fields  map[string]any
}

// New returns an Event stamped with a fresh id and the current time.
func New(t Type, message string, fields map[string]any) Event {
	return Event{
		ID:      cuid2.Generate(),
		Type:    t,
		Time:    time.Now(),
		Message: message,
		Fields:  fields,
	}
}

// Sink consumes events. Implementations must not block in Emit and must be
// safe for concurrent use; the assembler emits from multiple goroutines.
type Sink interface {
	Emit(Event)
}

// SlogSink logs every event through a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, 2*len(e.Fields)+4)
	args = append(args, "event", string(e.Type), "event_id", e.ID)
	for k, v := range e.Fields {
		args = append(args, k, v)
	}
	logger.Info(e.Message, args...)
}

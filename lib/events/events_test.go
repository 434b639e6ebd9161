package events

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEventStamps(t *testing.T) {
	a := New(TypeImageAssembled, "assembled image", nil)
	b := New(TypeImageAssembled, "assembled image", nil)

	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.Time.IsZero())
	require.Equal(t, TypeImageAssembled, a.Type)
}

func TestSlogSinkLogsTypeAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sink := SlogSink{Logger: logger}
	sink.Emit(New(TypeLayerResolved, "resolved layer", map[string]any{"index": 2, "kind": "base"}))

	out := buf.String()
	require.Contains(t, out, "resolved layer")
	require.Contains(t, out, "event=layer_resolved")
	require.Contains(t, out, "index=2")
	require.Contains(t, out, "kind=base")
}

func TestDispatcherBroadcast(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	first := d.Subscribe()
	second := d.Subscribe()

	d.Emit(New(TypeBaseImageResolved, "resolved base image", nil))

	e1 := <-first
	e2 := <-second
	require.Equal(t, TypeBaseImageResolved, e1.Type)
	require.Equal(t, e1.ID, e2.ID)
}

func TestDispatcherDropsWhenSubscriberFull(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Close()

	sub := d.Subscribe()

	// Second emit must not block even though the buffer is full.
	d.Emit(New(TypeLayerResolved, "first", nil))
	d.Emit(New(TypeLayerResolved, "second", nil))

	got := <-sub
	require.Equal(t, "first", got.Message)
	select {
	case e, ok := <-sub:
		require.Failf(t, "unexpected event", "got %+v (ok=%v)", e, ok)
	default:
	}
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(1)
	sub := d.Subscribe()

	d.Close()
	_, ok := <-sub
	require.False(t, ok)

	// Emit and double close after Close are no-ops.
	d.Emit(New(TypeImageAssembled, "late", nil))
	d.Close()

	// Subscribing after close yields a closed channel.
	late := d.Subscribe()
	_, ok = <-late
	require.False(t, ok)
}

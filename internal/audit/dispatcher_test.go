package audit

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(sink, 8, false)

	for _, name := range []string{"first", "second", "third"} {
		d.Emit(context.Background(), Event{EventType: name})
	}
	d.Close()

	for _, want := range []string{"first", "second", "third"} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("expected %q, got %q", want, got.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %q never delivered", want)
		}
	}
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(sink, 16, false)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "buffered"})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 10 {
				t.Fatalf("expected 10 events after Close, got %d", delivered)
			}
			return
		}
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(NewChannelSink(1), 1, true)
	d.Close()
	d.Close()

	// Emits after Close are discarded, not blocked.
	d.Emit(context.Background(), Event{EventType: "late"})
}

func TestDispatcherDropsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func(context.Context, Event) { <-block })
	d := NewDispatcher(sink, 1, true)

	// One event occupies the goroutine, one fills the buffer; the rest
	// must be shed without blocking.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "pressure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected shed events under back-pressure")
	}
	close(block)
	d.Close()
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{EventType: "ignored"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

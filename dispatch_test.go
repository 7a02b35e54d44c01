package eventstream

import (
	"errors"
	"strings"
	"testing"
)

func testDispatcher(opts ...Option) *dispatcher {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newDispatcher(cfg)
}

func TestDispatchToRegisteredHandler(t *testing.T) {
	d := testDispatcher()

	var got []Event
	d.on("update", func(ev Event) { got = append(got, ev) })

	d.dispatch(Event{Name: "update", Data: "x"})
	d.dispatch(Event{Name: "other", Data: "y"})

	if len(got) != 1 || got[0].Data != "x" {
		t.Errorf("got %+v, want one event with data x", got)
	}
}

func TestDispatchDefaultsEventName(t *testing.T) {
	d := testDispatcher()

	delivered := false
	d.on(DefaultEventName, func(Event) { delivered = true })

	d.dispatch(Event{Data: "unnamed"})
	if !delivered {
		t.Error("record without event name not delivered under default name")
	}
}

func TestOffRemovesHandler(t *testing.T) {
	d := testDispatcher()

	calls := 0
	sub := d.on("update", func(Event) { calls++ })
	if got := sub.EventName(); got != "update" {
		t.Fatalf("EventName() = %q, want %q", got, "update")
	}

	d.dispatch(Event{Name: "update"})
	d.off(sub)
	d.dispatch(Event{Name: "update"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIncludeFilter(t *testing.T) {
	d := testDispatcher(WithIncludeFilter("temperature"))

	var names []string
	d.on("temperature", func(ev Event) { names = append(names, ev.Name) })
	d.on("humidity", func(ev Event) { names = append(names, ev.Name) })

	d.dispatch(Event{Name: "temperature"})
	d.dispatch(Event{Name: "humidity"})

	if len(names) != 1 || names[0] != "temperature" {
		t.Errorf("delivered %v, want [temperature]", names)
	}
}

func TestExcludeFilter(t *testing.T) {
	d := testDispatcher(WithExcludeFilter("heartbeat"))

	var names []string
	for _, name := range []string{"heartbeat", "temperature", "humidity"} {
		name := name
		d.on(name, func(ev Event) { names = append(names, ev.Name) })
		d.dispatch(Event{Name: name})
	}

	if len(names) != 2 || names[0] != "temperature" || names[1] != "humidity" {
		t.Errorf("delivered %v, want [temperature humidity]", names)
	}
}

func TestIncludeTakesPrecedenceOverExclude(t *testing.T) {
	d := testDispatcher(
		WithIncludeFilter("temperature"),
		WithExcludeFilter("temperature"),
	)

	delivered := false
	d.on("temperature", func(Event) { delivered = true })
	d.dispatch(Event{Name: "temperature"})

	if !delivered {
		t.Error("include list should win over exclude list")
	}
}

func TestTransformerPipeline(t *testing.T) {
	upper := func(ev Event) (Event, error) {
		ev.Data = strings.ToUpper(ev.Data)
		return ev, nil
	}
	suffix := func(ev Event) (Event, error) {
		ev.Data += "!"
		return ev, nil
	}
	d := testDispatcher(WithTransformers(upper, suffix))

	var got string
	d.on(DefaultEventName, func(ev Event) { got = ev.Data })
	d.dispatch(Event{Data: "hello"})

	if got != "HELLO!" {
		t.Errorf("got %q, want %q", got, "HELLO!")
	}
}

func TestFailingTransformerSkipped(t *testing.T) {
	upper := func(ev Event) (Event, error) {
		ev.Data = strings.ToUpper(ev.Data)
		return ev, nil
	}
	failing := func(ev Event) (Event, error) {
		return Event{}, errors.New("boom")
	}
	suffix := func(ev Event) (Event, error) {
		ev.Data += "!"
		return ev, nil
	}
	d := testDispatcher(WithTransformers(upper, failing, suffix))

	var got string
	d.on(DefaultEventName, func(ev Event) { got = ev.Data })
	d.dispatch(Event{Data: "hello"})

	// The failing transformer is skipped; its predecessor's output
	// continues down the pipeline.
	if got != "HELLO!" {
		t.Errorf("got %q, want %q", got, "HELLO!")
	}
}

func TestPanickingTransformerSkipped(t *testing.T) {
	panicking := func(Event) (Event, error) { panic("boom") }
	d := testDispatcher(WithTransformers(panicking))

	var got string
	d.on(DefaultEventName, func(ev Event) { got = ev.Data })
	d.dispatch(Event{Data: "hello"})

	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestPanickingHandlerIsolated(t *testing.T) {
	d := testDispatcher()

	survived := false
	d.on(DefaultEventName, func(Event) { panic("boom") })
	d.on(DefaultEventName, func(Event) { survived = true })

	// Must not panic the caller, and the second handler still runs.
	d.dispatch(Event{Data: "x"})

	if !survived {
		t.Error("handler after panicking sibling was not invoked")
	}
}

func TestBatchDelivery(t *testing.T) {
	d := testDispatcher()

	var got [][]Event
	sub := d.onBatch(func(batch []Event) { got = append(got, batch) })

	d.dispatchBatch([]Event{{Data: "a"}, {Data: "b"}})
	d.dispatchBatch(nil)
	d.off(sub)
	d.dispatchBatch([]Event{{Data: "c"}})

	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("got %+v, want one batch of two", got)
	}
}

func TestBatchHandlersGetOwnCopies(t *testing.T) {
	d := testDispatcher()

	var first []Event
	d.onBatch(func(batch []Event) {
		first = batch
		batch[0].Data = "mutated"
	})
	var second []Event
	d.onBatch(func(batch []Event) { second = batch })

	d.dispatchBatch([]Event{{Data: "original"}})

	if len(second) != 1 || second[0].Data != "original" {
		t.Errorf("second handler saw %+v, want original", second)
	}
	if len(first) != 1 {
		t.Errorf("first handler saw %+v", first)
	}
}

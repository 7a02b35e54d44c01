package eventstream

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives a single delivered event.
type Handler func(Event)

// BatchHandler receives an aggregated batch of events.
type BatchHandler func([]Event)

// Transformer rewrites an event before delivery. Transformers run in
// registration order, each receiving the previous result.
type Transformer func(Event) (Event, error)

// Subscription identifies a registered handler for later removal.
// Go function values are not comparable, so removal works by token rather
// than by handler identity.
type Subscription struct {
	id   string
	name string
}

// EventName returns the event name the subscription was registered under.
func (s Subscription) EventName() string { return s.name }

// dispatcher owns the subscription registry and the filter/transform
// pipeline. Handlers are isolated: a panicking handler is recovered and
// logged, and never prevents delivery to the remaining handlers.
type dispatcher struct {
	mu            sync.Mutex
	handlers      map[string]map[string]Handler
	batchHandlers map[string]BatchHandler

	include      map[string]struct{}
	exclude      map[string]struct{}
	transformers []Transformer

	log *zap.Logger
}

func newDispatcher(cfg config) *dispatcher {
	d := &dispatcher{
		handlers:      make(map[string]map[string]Handler),
		batchHandlers: make(map[string]BatchHandler),
		transformers:  cfg.transformers,
		log:           cfg.logger,
	}
	if len(cfg.include) > 0 {
		d.include = make(map[string]struct{}, len(cfg.include))
		for _, n := range cfg.include {
			d.include[n] = struct{}{}
		}
	}
	if len(cfg.exclude) > 0 {
		d.exclude = make(map[string]struct{}, len(cfg.exclude))
		for _, n := range cfg.exclude {
			d.exclude[n] = struct{}{}
		}
	}
	return d
}

func (d *dispatcher) on(name string, h Handler) Subscription {
	sub := Subscription{id: uuid.NewString(), name: name}

	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.handlers[name]
	if !ok {
		set = make(map[string]Handler)
		d.handlers[name] = set
	}
	set[sub.id] = h
	return sub
}

func (d *dispatcher) onBatch(h BatchHandler) Subscription {
	sub := Subscription{id: uuid.NewString(), name: BatchEventName}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.batchHandlers[sub.id] = h
	return sub
}

func (d *dispatcher) off(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sub.name == BatchEventName {
		delete(d.batchHandlers, sub.id)
		return
	}
	if set, ok := d.handlers[sub.name]; ok {
		delete(set, sub.id)
		if len(set) == 0 {
			delete(d.handlers, sub.name)
		}
	}
}

// dispatch runs the filter and transformer pipeline, then delivers the
// event to every handler registered under its name.
func (d *dispatcher) dispatch(ev Event) {
	if ev.Name == "" {
		ev.Name = DefaultEventName
	}
	if !d.passes(ev.Name) {
		return
	}

	for _, t := range d.transformers {
		out, err := d.applyTransformer(t, ev)
		if err != nil {
			d.log.Debug("transformer failed, skipping",
				zap.String("event", ev.Name),
				zap.Error(err))
			continue
		}
		ev = out
	}

	for _, h := range d.handlersFor(ev.Name) {
		d.deliver(h, ev)
	}
}

// dispatchBatch delivers a batch to every registered batch handler.
// Each handler gets its own copy of the slice.
func (d *dispatcher) dispatchBatch(events []Event) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	hs := make([]BatchHandler, 0, len(d.batchHandlers))
	for _, h := range d.batchHandlers {
		hs = append(hs, h)
	}
	d.mu.Unlock()

	for _, h := range hs {
		batch := make([]Event, len(events))
		copy(batch, events)
		d.deliverBatch(h, batch)
	}
}

// passes evaluates the inclusion/exclusion filter. An include list takes
// precedence; otherwise an exclude list drops listed names; otherwise all
// names pass.
func (d *dispatcher) passes(name string) bool {
	if d.include != nil {
		_, ok := d.include[name]
		return ok
	}
	if d.exclude != nil {
		if _, dropped := d.exclude[name]; dropped {
			return false
		}
	}
	return true
}

func (d *dispatcher) handlersFor(name string) []Handler {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.handlers[name]
	hs := make([]Handler, 0, len(set))
	for _, h := range set {
		hs = append(hs, h)
	}
	return hs
}

func (d *dispatcher) applyTransformer(t Transformer, ev Event) (out Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ev, panicError(r)
		}
	}()
	return t(ev)
}

func (d *dispatcher) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("handler panicked",
				zap.String("event", ev.Name),
				zap.Any("panic", r))
		}
	}()
	h(ev)
}

func (d *dispatcher) deliverBatch(h BatchHandler, events []Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("batch handler panicked", zap.Any("panic", r))
		}
	}()
	h(events)
}

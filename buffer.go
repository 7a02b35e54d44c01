package eventstream

import "sync"

// history is the bounded FIFO buffer of recently decoded events.
// Capacity is fixed at construction; the oldest entry is evicted first.
type history struct {
	mu      sync.Mutex
	entries []BufferedEntry
	cap     int
}

func newHistory(capacity int) *history {
	return &history{cap: capacity}
}

func (h *history) append(e BufferedEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.entries = append(h.entries, e)
}

// snapshot returns a copy of the buffered entries, oldest first.
func (h *history) snapshot() []BufferedEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]BufferedEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// batcher accumulates events for group delivery. Batches are sliced off
// when the pending count reaches size; flush drains whatever remains.
type batcher struct {
	mu      sync.Mutex
	pending []Event
	size    int
}

func newBatcher(size int) *batcher {
	return &batcher{size: size}
}

// add appends an event and, if the pending count has reached the batch
// size, slices off and returns the full batch.
func (b *batcher) add(ev Event) ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, ev)
	if len(b.pending) >= b.size {
		return b.takeLocked(), true
	}
	return nil, false
}

// takeIfFull slices off the pending events when at least one full batch
// has accumulated. Used by the interval tick.
func (b *batcher) takeIfFull() ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) >= b.size {
		return b.takeLocked(), true
	}
	return nil, false
}

// flush drains and returns all pending events, even below batch size.
func (b *batcher) flush() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.takeLocked()
}

// snapshot returns a copy of the pending events in insertion order.
func (b *batcher) snapshot() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

func (b *batcher) takeLocked() []Event {
	batch := b.pending
	b.pending = nil
	return batch
}

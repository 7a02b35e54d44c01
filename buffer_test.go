package eventstream

import (
	"fmt"
	"testing"
)

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := newHistory(3)
	for i := 0; i < 4; i++ {
		h.append(BufferedEntry{Event: Event{Data: fmt.Sprintf("e%d", i)}})
	}

	got := h.snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if got[i].Event.Data != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Event.Data, want)
		}
	}
}

func TestHistoryNeverExceedsCapacity(t *testing.T) {
	h := newHistory(5)
	for i := 0; i < 50; i++ {
		h.append(BufferedEntry{Event: Event{Data: fmt.Sprintf("e%d", i)}})
		if n := len(h.snapshot()); n > 5 {
			t.Fatalf("after %d inserts: len = %d, want <= 5", i+1, n)
		}
	}
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	h := newHistory(3)
	h.append(BufferedEntry{Event: Event{Data: "original"}})

	snap := h.snapshot()
	snap[0].Event.Data = "mutated"

	if got := h.snapshot()[0].Event.Data; got != "original" {
		t.Errorf("internal entry = %q, want %q", got, "original")
	}
}

func TestHistoryClear(t *testing.T) {
	h := newHistory(3)
	h.append(BufferedEntry{})
	h.clear()
	if n := len(h.snapshot()); n != 0 {
		t.Errorf("len after clear = %d, want 0", n)
	}
}

func TestBatcherSliceOffAtSize(t *testing.T) {
	b := newBatcher(3)

	for i := 0; i < 2; i++ {
		if _, ready := b.add(Event{Data: fmt.Sprintf("e%d", i)}); ready {
			t.Fatalf("batch ready after %d events, want 3", i+1)
		}
	}

	batch, ready := b.add(Event{Data: "e2"})
	if !ready {
		t.Fatal("batch not ready at size")
	}
	if len(batch) != 3 {
		t.Fatalf("batch len = %d, want 3", len(batch))
	}
	for i, want := range []string{"e0", "e1", "e2"} {
		if batch[i].Data != want {
			t.Errorf("batch[%d] = %q, want %q", i, batch[i].Data, want)
		}
	}
	if n := len(b.snapshot()); n != 0 {
		t.Errorf("pending after slice-off = %d, want 0", n)
	}
}

func TestBatcherFlushBelowThreshold(t *testing.T) {
	b := newBatcher(10)
	b.add(Event{Data: "a"})
	b.add(Event{Data: "b"})

	if _, ok := b.takeIfFull(); ok {
		t.Fatal("takeIfFull returned a partial batch")
	}

	batch := b.flush()
	if len(batch) != 2 || batch[0].Data != "a" || batch[1].Data != "b" {
		t.Fatalf("flush = %+v, want [a b]", batch)
	}
	if n := len(b.snapshot()); n != 0 {
		t.Errorf("pending after flush = %d, want 0", n)
	}
}

func TestBatcherFlushEmpty(t *testing.T) {
	b := newBatcher(5)
	if batch := b.flush(); len(batch) != 0 {
		t.Errorf("flush on empty = %+v, want none", batch)
	}
}

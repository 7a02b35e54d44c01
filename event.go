package eventstream

import "time"

// Reserved event names.
const (
	// DefaultEventName is the name assigned to records that carry no
	// explicit `event:` field.
	DefaultEventName = "message"

	// BatchEventName is the name under which aggregated batches are
	// delivered.
	BatchEventName = "batch"
)

// Event is one decoded record from the stream.
type Event struct {
	// ID is the record's `id:` field, if present.
	ID string

	// Name is the record's `event:` field, or DefaultEventName if the
	// record carried none.
	Name string

	// Data is the record's payload. Repeated `data:` lines are joined
	// with "\n" in arrival order.
	Data string

	// Retry is the reconnect-delay hint carried by the record, zero if
	// none. The client applies the hint automatically; this field is
	// informational.
	Retry time.Duration
}

// EntryMeta is the metadata stored alongside each buffered event.
type EntryMeta struct {
	// Timestamp is when the event was decoded.
	Timestamp time.Time

	// EventID is the originating record's id, if present.
	EventID string

	// RetryCount is the reconnect attempt count at the time the event
	// arrived.
	RetryCount int
}

// BufferedEntry is one element of the bounded history buffer.
type BufferedEntry struct {
	Event Event
	Meta  EntryMeta
}

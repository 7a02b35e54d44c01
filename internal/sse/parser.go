// Package sse provides incremental parsing of event-stream framed text.
//
// The wire format is the standard Server-Sent Events framing: records are
// built from `field: value` lines, `data` lines accumulate newline-joined,
// and a blank line terminates the record. Frame boundaries may fall
// anywhere inside a network read, so the parser keeps a carry-over buffer
// and accepts arbitrarily split chunks.
package sse

import (
	"strconv"
	"strings"
	"time"
)

// Event is one decoded record from the stream.
type Event struct {
	// ID is the record's `id:` field, if any.
	ID string

	// Name is the record's `event:` field. Empty means the protocol
	// default ("message"), which the caller applies at dispatch time.
	Name string

	// Data is the record's payload: all `data:` lines joined with "\n",
	// in arrival order.
	Data string

	// Retry is the record's `retry:` field as a duration, zero if unset.
	Retry time.Duration
}

// Parser incrementally decodes chunks of event-stream text into Events.
// Feed may be called with chunks split at arbitrary byte boundaries; the
// resulting record sequence is the same as feeding the whole text at once.
//
// The zero value is ready to use.
type Parser struct {
	carry string

	cur struct {
		id        string
		name      string
		dataLines []string
		retry     time.Duration
		// hasField is true once id, event or data was set. A record
		// carrying only a retry hint is not emitted.
		hasField bool
	}

	lastID    string
	hasLastID bool

	retryHint    time.Duration
	hasRetryHint bool
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the carry-over buffer, consumes every complete
// line, and returns the records completed within this chunk in arrival
// order. The trailing (possibly incomplete) line is retained for the next
// call.
func (p *Parser) Feed(chunk string) []Event {
	buf := p.carry + chunk

	var events []Event
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(buf[:i], "\r")
		buf = buf[i+1:]

		if ev, ok := p.consumeLine(line); ok {
			events = append(events, ev)
		}
	}

	p.carry = buf
	return events
}

// LastEventID returns the most recently seen `id:` value and whether any
// id line has been seen. The side value updates as soon as the line is
// parsed, even if the surrounding record never completes.
func (p *Parser) LastEventID() (string, bool) {
	return p.lastID, p.hasLastID
}

// RetryHint returns the most recent valid `retry:` value and whether one
// has been seen.
func (p *Parser) RetryHint() (time.Duration, bool) {
	return p.retryHint, p.hasRetryHint
}

// Reset discards the carry-over buffer and any in-progress record.
// Side values (last id, retry hint) survive; they belong to the session,
// not the connection.
func (p *Parser) Reset() {
	p.carry = ""
	p.resetRecord()
}

// consumeLine folds one complete line into the in-progress record.
// A blank line finalizes the record; returns it if it should be emitted.
func (p *Parser) consumeLine(line string) (Event, bool) {
	if line == "" {
		return p.flushRecord()
	}

	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		// Lines without a colon carry no field.
		return Event{}, false
	}

	field := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])

	switch field {
	case "id":
		p.cur.id = value
		p.cur.hasField = true
		p.lastID = value
		p.hasLastID = true
	case "event":
		p.cur.name = value
		p.cur.hasField = true
	case "data":
		p.cur.dataLines = append(p.cur.dataLines, value)
		p.cur.hasField = true
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			p.cur.retry = time.Duration(ms) * time.Millisecond
			p.retryHint = p.cur.retry
			p.hasRetryHint = true
		}
	}
	// Unknown fields (and comment lines, whose field name is empty) are
	// ignored.

	return Event{}, false
}

// flushRecord emits the in-progress record if it has at least one
// deliverable field, and resets state. A record whose only field was
// `retry:` updates the reconnect hint but is not itself an event.
func (p *Parser) flushRecord() (Event, bool) {
	if !p.cur.hasField {
		p.resetRecord()
		return Event{}, false
	}

	ev := Event{
		ID:    p.cur.id,
		Name:  p.cur.name,
		Data:  strings.Join(p.cur.dataLines, "\n"),
		Retry: p.cur.retry,
	}
	p.resetRecord()
	return ev, true
}

func (p *Parser) resetRecord() {
	p.cur.id = ""
	p.cur.name = ""
	p.cur.dataLines = nil
	p.cur.retry = 0
	p.cur.hasField = false
}

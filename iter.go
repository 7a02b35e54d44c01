//go:build go1.23

package eventstream

import (
	"context"
	"iter"
)

// Events returns an iterator over delivered events. It connects in the
// background and yields each event dispatched under the given names
// (DefaultEventName when none are given), stopping when ctx is cancelled
// or the connection terminates.
//
// Use with Go 1.23+ for range syntax:
//
//	for ev, err := range client.Events(ctx, "message") {
//	    if err != nil {
//	        return err
//	    }
//	    process(ev.Data)
//	}
func (c *Client) Events(ctx context.Context, names ...string) iter.Seq2[Event, error] {
	if len(names) == 0 {
		names = []string{DefaultEventName}
	}

	return func(yield func(Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan Event, 64)
		subs := make([]Subscription, 0, len(names))
		for _, name := range names {
			subs = append(subs, c.On(name, func(ev Event) {
				select {
				case ch <- ev:
				case <-ctx.Done():
				}
			}))
		}
		defer func() {
			for _, sub := range subs {
				c.Off(sub)
			}
		}()

		errCh := make(chan error, 1)
		go func() {
			errCh <- c.Connect(ctx)
		}()

		for {
			select {
			case ev := <-ch:
				if !yield(ev, nil) {
					return
				}
			case err := <-errCh:
				if err != nil {
					yield(Event{}, err)
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

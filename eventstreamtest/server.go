// Package eventstreamtest provides testing utilities for event-stream
// clients.
//
// The package includes a scripted in-memory server that plays back
// pre-arranged responses, one per connection attempt, useful for unit
// testing reconnection behavior without network dependencies.
//
// Example:
//
//	func TestMyCode(t *testing.T) {
//	    server := eventstreamtest.NewServer(
//	        eventstreamtest.Response{Events: "data: one\n\n"},
//	        eventstreamtest.Response{Events: "data: two\n\n", KeepOpen: true},
//	    )
//	    defer server.Close()
//
//	    client := eventstream.NewClient(server.URL())
//	    // ...
//	}
package eventstreamtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// Response scripts one connection's worth of server behavior.
type Response struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// ContentType overrides the default "text/event-stream".
	ContentType string

	// Events is raw event-stream framed text written as the body.
	// Ignored when Chunks is set.
	Events string

	// Chunks, when set, is written piece by piece with a flush between
	// each piece, exercising frame boundaries that split across reads.
	Chunks []string

	// KeepOpen holds the connection open after writing until the client
	// disconnects. Without it the handler returns, ending the stream.
	KeepOpen bool
}

// Server plays back scripted responses, one per incoming connection.
// Connections beyond the script length replay the last response.
type Server struct {
	server *httptest.Server

	mu           sync.Mutex
	script       []Response
	connections  int
	lastEventIDs []string
}

// NewServer starts a server that will answer successive connections with
// the given responses.
func NewServer(script ...Response) *Server {
	s := &Server{script: script}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// Connections returns how many connection attempts the server has seen.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// LastEventIDs returns the Last-Event-ID header observed on each
// connection attempt, in order. Empty string means the header was absent.
func (s *Server) LastEventIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lastEventIDs))
	copy(out, s.lastEventIDs)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	i := s.connections
	s.connections++
	s.lastEventIDs = append(s.lastEventIDs, r.Header.Get("Last-Event-ID"))
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	var resp Response
	if i >= 0 {
		resp = s.script[i]
	}
	s.mu.Unlock()

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)

	flusher, _ := w.(http.Flusher)
	if len(resp.Chunks) > 0 {
		for _, chunk := range resp.Chunks {
			w.Write([]byte(chunk))
			if flusher != nil {
				flusher.Flush()
			}
		}
	} else if resp.Events != "" {
		w.Write([]byte(resp.Events))
		if flusher != nil {
			flusher.Flush()
		}
	}

	if resp.KeepOpen {
		<-r.Context().Done()
	}
}

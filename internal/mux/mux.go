// Package mux merges line-oriented output from several byte streams into a
// single consumable sequence.
//
// There is no portable "wait on any of N process pipes" primitive, so the
// merge is built from one reader goroutine per stream feeding a shared
// channel. A stream reaching EOF forwards a close notification instead of
// vanishing silently; the consumer sees end-of-data only once every member
// stream has closed.
package mux

import (
	"bufio"
	"io"
	"log/slog"
)

// maxLineSize bounds a single scanned line. Selenium's startup banner and
// Xvfb diagnostics are short, but Java stack traces can run long.
const maxLineSize = 64 * 1024

// item is one message on the shared channel: either a line from a stream or
// a notification that the named stream closed.
type item struct {
	line   string
	stream string
	closed bool
}

// Stream names a readable line source for a Mux.
type Stream struct {
	Name string
	R    io.Reader
}

// Mux is a multiplexer over a fixed set of line-oriented streams.
//
// ReadLine must be called from a single consumer goroutine. Reader goroutines
// terminate once their underlying stream closes, which the owning process's
// termination guarantees.
type Mux struct {
	logger *slog.Logger
	items  chan item
	active int
}

// New builds a multiplexer over the given streams and starts one reader
// goroutine per stream.
func New(logger *slog.Logger, streams ...Stream) *Mux {
	m := &Mux{
		logger: logger,
		items:  make(chan item, 64),
		active: len(streams),
	}
	for _, s := range streams {
		go m.readLines(s)
	}
	return m
}

// readLines scans one stream and forwards every line to the shared channel.
// Sends block rather than drop: readiness scanning must see every line, and
// the consumer (or the log relay that replaces it) is always draining.
func (m *Mux) readLines(s Stream) {
	scanner := bufio.NewScanner(s.R)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	for scanner.Scan() {
		m.items <- item{line: scanner.Text(), stream: s.Name}
	}
	// EOF or read error (a closed pipe reads as an error): either way the
	// stream is done, so announce the close and exit.
	m.items <- item{stream: s.Name, closed: true}
}

// ReadLine blocks until a line is available from any still-open stream, or
// until every stream has closed, in which case it returns ok=false.
//
// Lines from one stream arrive in the order that stream produced them;
// across streams the order is arrival order, first available wins.
func (m *Mux) ReadLine() (line string, ok bool) {
	for m.active > 0 {
		it := <-m.items
		if it.closed {
			m.active--
			m.logger.Debug("mux_stream_closed", "stream", it.stream, "remaining", m.active)
			continue
		}
		return it.line, true
	}
	return "", false
}

// Active returns the number of member streams that have not yet closed,
// as observed by the consumer.
func (m *Mux) Active() int {
	return m.active
}

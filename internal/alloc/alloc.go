// Package alloc produces candidate display identifiers and TCP ports from a
// pseudo-random pool.
//
// The allocator guarantees nothing about uniqueness: collisions with other
// processes (or with a concurrently running allocator) are detected by the
// launchers through process output, and recovered by asking for a fresh
// candidate.
package alloc

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"
)

// Default address spaces, matching what Xvfb and Selenium accept.
const (
	DefaultDisplayMax = 400
	DefaultPortMin    = 1025
	DefaultPortMax    = 65535
)

// Allocator picks random displays and ports. Safe for concurrent use.
//
// The choice function is injectable so tests can force specific collision
// sequences.
type Allocator struct {
	mu         sync.Mutex
	intn       func(n int) int
	displayMax int
	portMin    int
	portMax    int
}

// New returns an allocator over the given ranges, seeded per instance so two
// allocators in one process do not walk the same sequence.
func New(displayMax, portMin, portMax int) *Allocator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(os.Getpid())<<16))
	return NewWithIntn(rng.Intn, displayMax, portMin, portMax)
}

// NewWithIntn returns an allocator with an injected choice function.
// intn must behave like rand.Intn: return a value in [0, n).
func NewWithIntn(intn func(n int) int, displayMax, portMin, portMax int) *Allocator {
	if displayMax < 1 {
		displayMax = DefaultDisplayMax
	}
	if portMin < 1 || portMax <= portMin {
		portMin, portMax = DefaultPortMin, DefaultPortMax
	}
	return &Allocator{
		intn:       intn,
		displayMax: displayMax,
		portMin:    portMin,
		portMax:    portMax,
	}
}

// Display returns a candidate display identifier in ":1"..":<displayMax>".
func (a *Allocator) Display() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf(":%d", 1+a.intn(a.displayMax))
}

// Port returns a candidate TCP port in [portMin, portMax].
func (a *Allocator) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portMin + a.intn(a.portMax-a.portMin+1)
}

package hook

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// reentrancyGuard is a thread-local boolean: set while the engine is
// actively processing an event, to stop the engine's own invocations
// (e.g. native map/slice operations a native-call profiler would
// otherwise observe) from triggering recursive events.
//
// Go has no native thread-local storage, and the contract to preserve is
// the invariant, not the mechanism: a flag scoped to the unit of
// concurrency actually doing the work. Goroutines, not OS threads, are
// that unit here, so the flag is keyed by goroutine id, recovered with
// the standard runtime.Stack trick (see DESIGN.md for why no
// goroutine-local-storage dependency is used).
type reentrancyGuard struct {
	mu sync.Mutex
	m  map[int64]bool
}

func newReentrancyGuard() *reentrancyGuard {
	return &reentrancyGuard{m: make(map[int64]bool)}
}

// Active reports whether the current goroutine already has the flag set.
func (g *reentrancyGuard) Active() bool {
	id := goroutineID()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[id]
}

// Enter sets the flag for the current goroutine and returns a function
// that clears it. The caller must defer the returned function so the flag
// is cleared on every exit path, including panics.
func (g *reentrancyGuard) Enter() (alreadyActive bool, leave func()) {
	id := goroutineID()
	g.mu.Lock()
	if g.m[id] {
		g.mu.Unlock()
		return true, func() {}
	}
	g.m[id] = true
	g.mu.Unlock()
	return false, func() {
		g.mu.Lock()
		delete(g.m, id)
		g.mu.Unlock()
	}
}

// goroutineID extracts the calling goroutine's id from its stack trace
// header ("goroutine 123 [running]:"). It is a best-effort identifier used
// only to key the reentrancy map; it is never exposed outside this
// package.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

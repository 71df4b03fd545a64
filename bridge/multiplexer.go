package bridge

// readyEvent describes one readiness-multiplexer event for a single fd
// (§4.3.2 step 3).
type readyEvent struct {
	fd           int
	readable     bool
	writable     bool
	errorHangup  bool
}

// multiplexer abstracts the edge-triggered readiness multiplexer (§4.3.2).
// The concrete implementation (epollMultiplexer, multiplexer_linux.go)
// wraps epoll; tests substitute a fake so the readiness loop can be driven
// deterministically.
type multiplexer interface {
	add(fd int) error
	setWritable(fd int, want bool) error
	remove(fd int) error
	// wait blocks for readiness events with no timeout, returning at most
	// capacity events.
	wait(capacity int) ([]readyEvent, error)
	close() error
}

//go:build linux

package bridge

import "golang.org/x/sys/unix"

// epollMultiplexer is the concrete multiplexer backed by Linux epoll in
// edge-triggered mode (§4.3.2, §9 "Edge-triggered semantics"). Grounded on
// original_source/include/networking/PacketHandler.h (register_socket_epoll,
// set_epollout, packet_processor's epoll_wait loop).
type epollMultiplexer struct {
	epfd int
}

func newEpollMultiplexer() (*epollMultiplexer, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollMultiplexer{epfd: fd}, nil
}

func (m *epollMultiplexer) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (m *epollMultiplexer) setWritable(fd int, want bool) error {
	events := uint32(unix.EPOLLIN | unix.EPOLLET)
	if want {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (m *epollMultiplexer) remove(fd int) error {
	// Closing the fd already deregisters it implicitly; this is only used
	// when an fd must be dropped from the multiplexer without being
	// closed, which the forwarding plane never does today, but keeping it
	// symmetric with add/setWritable costs nothing.
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (m *epollMultiplexer) wait(capacity int) ([]readyEvent, error) {
	raw := make([]unix.EpollEvent, capacity)
	n, err := unix.EpollWait(m.epfd, raw, -1)
	if err != nil {
		return nil, errnoError{err}
	}

	events := make([]readyEvent, n)
	for i := 0; i < n; i++ {
		events[i] = readyEvent{
			fd:          int(raw[i].Fd),
			readable:    raw[i].Events&unix.EPOLLIN != 0,
			writable:    raw[i].Events&unix.EPOLLOUT != 0,
			errorHangup: raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return events, nil
}

func (m *epollMultiplexer) close() error {
	return unix.Close(m.epfd)
}

package bridge

import (
	"fmt"
	"log"
	"net"
	"time"
)

// defaultEventCapacity is the initial size of the readiness-event batch
// (§4.3.2 step 5 doubles it on saturation), grounded on
// original_source/include/networking/PacketHandler.h::packet_processor's
// starting std::vector<epoll_event> size of 256.
const defaultEventCapacity = 256

// Plane is the Forwarding Plane (§4.3): it owns the participating
// interfaces, the Learning Table, and the readiness multiplexer, and drives
// the receive/send drains under a single coarse lock held for a full event
// batch (§5).
type Plane struct {
	mu     chan struct{} // binary semaphore; see lock()/unlock() below
	byName map[string]*ifaceEntry
	byFD   map[int]*ifaceEntry
	table  *LearningTable

	timeout   time.Duration
	mux       multiplexer
	newSocket func(name string) (rawSocket, error)
}

// lock/unlock implement a plain mutex via a one-slot buffered channel,
// created by newPlane; a Plane not built by newPlane has a nil channel and
// lock blocks forever.
func (p *Plane) lock()   { p.mu <- struct{}{} }
func (p *Plane) unlock() { <-p.mu }

// NewPlane opens the epoll multiplexer and returns an empty Plane ready for
// Bootstrap/UpdateDevice calls.
func NewPlane() (*Plane, error) {
	mux, err := newEpollMultiplexer()
	if err != nil {
		return nil, fmt.Errorf("bridge: create readiness multiplexer: %w", err)
	}
	return newPlane(mux, func(name string) (rawSocket, error) {
		return openRawSocket(name)
	}), nil
}

func newPlane(mux multiplexer, newSocket func(string) (rawSocket, error)) *Plane {
	p := &Plane{
		mu:        make(chan struct{}, 1),
		byName:    make(map[string]*ifaceEntry),
		byFD:      make(map[int]*ifaceEntry),
		table:     NewLearningTable(),
		timeout:   DefaultAgingTimeout,
		mux:       mux,
		newSocket: newSocket,
	}
	return p
}

// UpdateDevice is idempotent (§4.3.1): it opens a new socket and registers
// the interface if name is unknown, or updates the mutable fields in place
// if it's already known.
func (p *Plane) UpdateDevice(name string, loopback, broadcast, multicast bool, mtu int, mac net.HardwareAddr) error {
	if mtu <= 0 {
		mtu = 1500
	}

	p.lock()
	defer p.unlock()

	if e, ok := p.byName[name]; ok {
		e.mtu = mtu
		e.loopback = loopback
		e.broadcast = broadcast
		e.multicast = multicast
		e.mac = mac
		return nil
	}

	sock, err := p.newSocket(name)
	if err != nil {
		return fmt.Errorf("bridge: open socket for %s: %w", name, err)
	}

	if !loopback {
		if err := p.mux.add(sock.FD()); err != nil {
			_ = sock.Close()
			return fmt.Errorf("bridge: register %s with multiplexer: %w", name, err)
		}
	}

	e := &ifaceEntry{
		name:      name,
		sock:      sock,
		mtu:       mtu,
		mac:       mac,
		loopback:  loopback,
		broadcast: broadcast,
		multicast: multicast,
	}
	p.byName[name] = e
	p.byFD[sock.FD()] = e
	return nil
}

// RemoveDevice destroys an interface entry: closes its socket (which
// implicitly deregisters it from the multiplexer), discards its output
// queue, and purges its Learning Table bucket (§4.3.1).
func (p *Plane) RemoveDevice(name string) {
	p.lock()
	defer p.unlock()
	p.removeDeviceLocked(name)
}

func (p *Plane) removeDeviceLocked(name string) {
	e, ok := p.byName[name]
	if !ok {
		return
	}
	delete(p.byName, name)
	delete(p.byFD, e.sock.FD())
	_ = e.sock.Close()

	for _, buf := range e.outputQueue {
		putBuffer(buf)
	}
	e.outputQueue = nil

	p.table.Purge(name)
}

// removeSocketLocked is remove_socket (§4.3.1): the error-path twin of
// removeDeviceLocked, reached from the readiness loop by fd instead of name.
func (p *Plane) removeSocketLocked(fd int) {
	e, ok := p.byFD[fd]
	if !ok {
		return
	}
	p.removeDeviceLocked(e.name)
}

// Bootstrap enumerates currently-present interfaces and registers every one
// that is administratively up (§4.3.5). Exact kernel LOWER_UP detection
// (the source's IFF_LOWER_UP bit, via getifaddrs) needs a raw ioctl beyond
// what the standard net package exposes; bootstrap approximates it with
// net.FlagUp, which is the best portable signal. The control channel
// still carries the precise LOWER_UP bit from cmd/device_manager for every
// subsequent transition.
func (p *Plane) Bootstrap() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("bridge: enumerate interfaces: %w", err)
	}

	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}

		mtu := ifi.MTU
		if mtu <= 0 {
			mtu = 1500
		}

		err := p.UpdateDevice(
			ifi.Name,
			ifi.Flags&net.FlagLoopback != 0,
			ifi.Flags&net.FlagBroadcast != 0,
			ifi.Flags&net.FlagMulticast != 0,
			mtu,
			ifi.HardwareAddr,
		)
		if err != nil {
			// §7 category 6: bootstrap failure for one interface does not
			// stop the plane from starting with the rest.
			log.Printf("bridge: bootstrap: skipping %s: %v", ifi.Name, err)
		}
	}
	return nil
}

// Run is the packet processor (§4.3.2): a single-threaded, no-timeout
// readiness loop. It never returns except on a multiplexer-fatal error
// (§7 category 4).
func (p *Plane) Run() error {
	capacity := defaultEventCapacity

	for {
		events, err := p.mux.wait(capacity)
		if err != nil {
			if ie, ok := err.(interruptedError); ok && ie.Interrupted() {
				continue
			}
			return fmt.Errorf("bridge: readiness wait failed: %w", err)
		}

		p.lock()
		for _, ev := range events {
			switch {
			case ev.errorHangup:
				p.removeSocketLocked(ev.fd)
			default:
				if ev.readable {
					p.drainReadableLocked(ev.fd)
				}
				if ev.writable {
					p.drainWritableLocked(ev.fd)
				}
			}
		}
		p.unlock()

		if len(events) == capacity {
			capacity *= 2
		}
	}
}

// drainReadableLocked is receive_packet, looped until EWOULDBLOCK (§4.3.3).
// Caller must hold the plane lock.
func (p *Plane) drainReadableLocked(fd int) {
	for {
		e, ok := p.byFD[fd]
		if !ok {
			return
		}

		buf := getBuffer(e.frameBufferSize())
		n, err := e.sock.Recv(buf)
		if err != nil {
			putBuffer(buf)
			if wb, ok := err.(wouldBlockError); ok && wb.WouldBlock() {
				return
			}
			if ie, ok := err.(interruptedError); ok && ie.Interrupted() {
				return
			}
			// §7 category 3: any other recv error is fatal to the interface.
			p.removeSocketLocked(fd)
			return
		}

		frame, err := ParseFrame(buf[:n])
		if err != nil {
			// §7 category 2: parse failure, drop and keep draining.
			putBuffer(buf)
			continue
		}

		p.dispatchLocked(e, frame)
	}
}

// dispatchLocked runs the Switching Decision and enqueues the frame (or its
// copies) for transmission (§4.3.3 step 6).
func (p *Plane) dispatchLocked(in *ifaceEntry, frame *Frame) {
	action := Decide(p.table, in.name, frame, time.Now(), p.timeout)

	switch action.Kind {
	case ActionDrop:
		frame.Release()

	case ActionDeliver:
		out, ok := p.byName[action.Iface]
		if !ok {
			// Soft error (§4.3.3): the decision named an interface that no
			// longer exists; log and free.
			log.Printf("bridge: decision named unknown egress interface %q", action.Iface)
			frame.Release()
			return
		}
		out.outputQueue = append(out.outputQueue, frame.Raw)
		p.armWriteLocked(out, true)

	case ActionFlood:
		for name, out := range p.byName {
			if name == in.name || out.loopback {
				continue
			}
			out.outputQueue = append(out.outputQueue, CloneBuffer(frame.Raw))
			p.armWriteLocked(out, true)
		}
		frame.Release()
	}
}

// drainWritableLocked is the EPOLLOUT branch of packet_processor (§4.3.4).
// Caller must hold the plane lock.
func (p *Plane) drainWritableLocked(fd int) {
	e, ok := p.byFD[fd]
	if !ok {
		return
	}

	for len(e.outputQueue) > 0 {
		head := e.outputQueue[0]

		_, err := e.sock.Send(head)
		if err != nil {
			if wb, ok := err.(wouldBlockError); ok && wb.WouldBlock() {
				return // leave armed, retry on next writable event
			}
			if ie, ok := err.(interruptedError); ok && ie.Interrupted() {
				return
			}
			// §7 category 3: any other send error removes the interface.
			putBuffer(head)
			e.outputQueue = e.outputQueue[1:]
			p.removeSocketLocked(fd)
			return
		}

		putBuffer(head)
		e.outputQueue = e.outputQueue[1:]
	}

	p.armWriteLocked(e, false)
}

func (p *Plane) armWriteLocked(e *ifaceEntry, want bool) {
	if e.wantsWrite == want {
		return
	}
	if err := p.mux.setWritable(e.sock.FD(), want); err != nil {
		log.Printf("bridge: toggling writable interest on %s: %v", e.name, err)
		return
	}
	e.wantsWrite = want
}

// RunControl is the device-control channel thread (§4.3.5): it owns a
// local unixgram socket and translates each §6.1 datagram into an
// UpdateDevice/RemoveDevice call. It returns (without affecting the
// readiness loop) on pipe closure or a framing failure (§7 category 5).
func (p *Plane) RunControl(addr string) error {
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: addr, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("bridge: listen control socket %s: %w", addr, err)
	}
	defer conn.Close()

	buf := make([]byte, MaxControlMessageLen)
	for {
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			log.Printf("bridge: control channel: read error, exiting: %v", err)
			return err
		}
		if n == 0 {
			log.Printf("bridge: control channel: device manager pipe closed unexpectedly")
			return nil
		}

		msg, err := DecodeControlMessage(buf[:n])
		if err != nil {
			log.Printf("bridge: control channel: malformed message, exiting: %v", err)
			return err
		}

		if msg.Remove {
			p.RemoveDevice(msg.Ifname)
			continue
		}
		if err := p.UpdateDevice(msg.Ifname, msg.Loopback, msg.Broadcast, msg.Multicast, msg.MTU, msg.MAC); err != nil {
			log.Printf("bridge: control channel: update %s: %v", msg.Ifname, err)
		}
	}
}

// Close tears down every interface entry and the multiplexer. The process
// has no graceful-shutdown contract (§5); this exists for tests and for
// cmd/forwarder's best-effort signal handler.
func (p *Plane) Close() error {
	p.lock()
	for name := range p.byName {
		p.removeDeviceLocked(name)
	}
	p.unlock()
	return p.mux.close()
}

// Stats returns a snapshot of the plane's current shape, mirroring the
// teacher's SwitchManager.GetStats/VirtualSwitch.GetStats.
func (p *Plane) Stats() map[string]int {
	p.lock()
	defer p.unlock()

	queued := 0
	for _, e := range p.byName {
		queued += len(e.outputQueue)
	}

	return map[string]int{
		"interfaces":    len(p.byName),
		"queued_frames": queued,
		"mac_entries":   p.table.Size(),
	}
}

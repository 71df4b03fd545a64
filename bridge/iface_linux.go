//go:build linux

package bridge

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// packetIgnoreOutgoing is SOL_PACKET/PACKET_IGNORE_OUTGOING (23): tells the
// kernel not to deliver frames this socket itself transmitted, so the
// switch never sees its own output loop back as input (§6.2). Defined
// locally rather than relying on golang.org/x/sys/unix exporting it, since
// the constant was only added to that package fairly recently.
const packetIgnoreOutgoing = 0x17

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// linuxRawSocket is the concrete rawSocket backed by an AF_PACKET/SOCK_RAW
// socket. Grounded on
// _examples/gpillon-kubevirt-wol/internal/wol/raw_listener.go, the only
// pack example that opens this kind of socket from Go.
type linuxRawSocket struct {
	fd int
}

// openRawSocket binds a promiscuous, non-blocking raw Ethernet socket to
// name, with outgoing-frame delivery suppressed (§6.2).
func openRawSocket(name string) (*linuxRawSocket, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("bridge: lookup interface %s: %w", name, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("bridge: open raw socket on %s: %w (requires CAP_NET_RAW)", name, err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bridge: bind raw socket to %s: %w", name, err)
	}

	mreq := &unix.PacketMreq{Ifindex: int32(ifi.Index), Type: unix.PACKET_MR_PROMISC}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		// Not fatal: the interface keeps working, just without promiscuous receive.
		_ = err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, packetIgnoreOutgoing, 1); err != nil {
		_ = err
	}

	return &linuxRawSocket{fd: fd}, nil
}

func (s *linuxRawSocket) FD() int { return s.fd }

func (s *linuxRawSocket) Recv(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return 0, errnoError{err}
	}
	return n, nil
}

func (s *linuxRawSocket) Send(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return 0, errnoError{err}
	}
	return n, nil
}

func (s *linuxRawSocket) Close() error {
	return unix.Close(s.fd)
}

// errnoError adapts a raw syscall error to the wouldBlockError/
// interruptedError interfaces the drain loops (plane.go) check against,
// keeping the unix.Errno comparisons confined to this file.
type errnoError struct{ err error }

func (e errnoError) Error() string { return e.err.Error() }
func (e errnoError) Unwrap() error { return e.err }

func (e errnoError) WouldBlock() bool {
	return e.err == unix.EWOULDBLOCK || e.err == unix.EAGAIN
}

func (e errnoError) Interrupted() bool {
	return e.err == unix.EINTR
}

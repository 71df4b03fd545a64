package bridge

import "net"

// rawSocket abstracts a single promiscuous, non-blocking raw Ethernet
// socket bound to one interface (§6.2). The concrete implementation
// (linuxRawSocket, iface_linux.go) opens an AF_PACKET/SOCK_RAW socket via
// golang.org/x/sys/unix; tests substitute a fake so the forwarding plane's
// logic can be exercised without root privileges or real interfaces.
type rawSocket interface {
	FD() int
	Recv(buf []byte) (int, error)
	Send(buf []byte) (int, error)
	Close() error
}

// wouldBlockError is implemented by errors that mean "no data/space right
// now, try again later" — the transient category of §7's error taxonomy.
type wouldBlockError interface {
	WouldBlock() bool
}

// interruptedError is implemented by errors equivalent to EINTR.
type interruptedError interface {
	Interrupted() bool
}

// ifaceEntry is one participating interface: its raw socket, capability
// flags, MTU, and output queue of owned frame buffers. The queue has no
// length cap; frames are appended until sent or until the entry is removed.
//
// Grounded on original_source/include/networking/PacketHandler.h's Ifentry,
// generalized from the teacher's Connection (which owned a net.Conn to a
// VM rather than a raw socket).
type ifaceEntry struct {
	name    string
	sock    rawSocket
	mtu     int
	mac     net.HardwareAddr
	loopback,
	broadcast,
	multicast bool

	outputQueue [][]byte
	wantsWrite  bool
}

func (e *ifaceEntry) frameBufferSize() int {
	return EthernetHeaderLen + e.mtu
}

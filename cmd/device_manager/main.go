// Command device_manager is the Device Observer (§4.4, §6.3): it watches
// the kernel's link table via rtnetlink and relays every change to a
// forwarder's control channel as a §6.1 datagram.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"ethbridge/bridge"
)

// rtm* mirror the RTM_NEWLINK/RTM_DELLINK message types from
// linux/rtnetlink.h; the pack's rtnetlink driver doesn't export them.
const (
	rtmNewLink = 16
	rtmDelLink = 17
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <observer-address> <forwarder-address>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "observer-address is reserved for a future control/introspection\n")
		fmt.Fprintf(os.Stderr, "channel; the forwarder is the only consumer today.\n")
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	forwarderAddr := flag.Arg(1)

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	out, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: forwarderAddr, Net: "unixgram"})
	if err != nil {
		log.Fatalf("dial forwarder at %s: %v", forwarderAddr, err)
	}
	defer out.Close()

	if err := dumpLinks(out); err != nil {
		log.Printf("initial link dump failed: %v", err)
	}

	conn, err := netlink.Dial(unix.NETLINK_ROUTE, &netlink.Config{Groups: 1 << (unix.RTNLGRP_LINK - 1)})
	if err != nil {
		log.Fatalf("open rtnetlink socket: %v", err)
	}
	defer conn.Close()

	log.Printf("watching link events, relaying to %s", forwarderAddr)
	for {
		msgs, err := conn.Receive()
		if err != nil {
			log.Fatalf("receive link events: %v", err)
		}
		for _, m := range msgs {
			if err := forwardLinkMessage(m, out); err != nil {
				log.Printf("decode link message: %v", err)
			}
		}
	}
}

// dumpLinks does the §4.4 startup dump: every interface present right now
// is announced as if it had just appeared, so a forwarder that starts
// after device_manager still learns about it.
func dumpLinks(out *net.UnixConn) error {
	rconn, err := rtnetlink.Dial(nil)
	if err != nil {
		return fmt.Errorf("dial rtnetlink: %w", err)
	}
	defer rconn.Close()

	links, err := rconn.Link.List()
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}

	for _, lm := range links {
		if lm.Attributes == nil || lm.Attributes.Name == "" {
			continue
		}
		line := encodeLink(lm.Attributes.Name, lm.Flags, lm.Attributes.MTU, lm.Attributes.Address)
		if err := writeControlLine(out, line); err != nil {
			return err
		}
	}
	return nil
}

// writeControlLine enforces §6.1's 64-byte datagram budget before handing
// the line to the forwarder's control socket: a longer line would be
// silently truncated there and fail net.ParseMAC, dropping the
// notification with no indication why.
func writeControlLine(out *net.UnixConn, line string) error {
	if len(line) > bridge.MaxControlMessageLen {
		log.Printf("control message exceeds %d-byte budget, dropping: %q", bridge.MaxControlMessageLen, line)
		return nil
	}
	_, err := out.Write([]byte(line))
	return err
}

func forwardLinkMessage(m netlink.Message, out *net.UnixConn) error {
	switch m.Header.Type {
	case rtmNewLink, rtmDelLink:
	default:
		return nil
	}

	var lm rtnetlink.LinkMessage
	if err := (&lm).UnmarshalBinary(m.Data); err != nil {
		return fmt.Errorf("unmarshal link message: %w", err)
	}
	if lm.Attributes == nil || lm.Attributes.Name == "" {
		return nil
	}

	// §6.1's wire format signals removal by omitting LOWER_UP from a NEW
	// message (Open Questions decision 3), not by sending DEL, so a
	// RTM_DELLINK event is relayed as NEW with LOWER_UP forced off.
	flags := lm.Flags
	if m.Header.Type == rtmDelLink {
		flags &^= unix.IFF_LOWER_UP
	}
	line := encodeLink(lm.Attributes.Name, flags, lm.Attributes.MTU, lm.Attributes.Address)
	return writeControlLine(out, line)
}

func encodeLink(name string, flags uint32, mtu uint32, mac net.HardwareAddr) string {
	return bridge.EncodeNewMessage(
		name,
		flags&unix.IFF_LOOPBACK != 0,
		flags&unix.IFF_BROADCAST != 0,
		flags&unix.IFF_MULTICAST != 0,
		flags&unix.IFF_LOWER_UP != 0,
		int(mtu),
		mac,
	)
}

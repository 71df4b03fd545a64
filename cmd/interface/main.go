// Command interface is the §6.3 interface CLI: a thin front end over
// rtnetlink for bringing a link up or down, or listing the links the
// kernel currently knows about.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/jsimonetti/rtnetlink"
	"golang.org/x/sys/unix"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s <ifname> up\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s <ifname> down\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s list\n", os.Args[0])
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "list" {
		if err := list(); err != nil {
			fmt.Fprintf(os.Stderr, "interface: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) != 3 {
		usage()
		os.Exit(1)
	}

	ifname, action := os.Args[1], os.Args[2]
	var up bool
	switch action {
	case "up":
		up = true
	case "down":
		up = false
	default:
		usage()
		os.Exit(1)
	}

	if err := setLinkState(ifname, up); err != nil {
		fmt.Fprintf(os.Stderr, "interface: %v\n", err)
		os.Exit(1)
	}
}

func setLinkState(ifname string, up bool) error {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", ifname, err)
	}

	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return fmt.Errorf("dial rtnetlink: %w", err)
	}
	defer conn.Close()

	var flags uint32
	if up {
		flags = unix.IFF_UP
	}

	msg := rtnetlink.LinkMessage{
		Family: unix.AF_UNSPEC,
		Index:  uint32(ifi.Index),
		Flags:  flags,
		Change: unix.IFF_UP,
	}
	if err := conn.Link.Set(msg); err != nil {
		return fmt.Errorf("set %s: %w", ifname, err)
	}
	return nil
}

func list() error {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return fmt.Errorf("dial rtnetlink: %w", err)
	}
	defer conn.Close()

	links, err := conn.Link.List()
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}

	for _, lm := range links {
		if lm.Attributes == nil {
			continue
		}
		state := "down"
		if lm.Flags&unix.IFF_LOWER_UP != 0 {
			state = "up"
		}
		fmt.Printf("%-16s %-5s mtu %d %s\n", lm.Attributes.Name, state, lm.Attributes.MTU, lm.Attributes.Address)
	}
	return nil
}

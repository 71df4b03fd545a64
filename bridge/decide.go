package bridge

import "time"

// ActionKind is the outcome of a switching decision.
type ActionKind int

const (
	// ActionDrop means the frame must be discarded without forwarding.
	ActionDrop ActionKind = iota
	// ActionFlood means the frame must be copied to every live,
	// non-loopback interface other than the ingress interface.
	ActionFlood
	// ActionDeliver means the frame must be forwarded to exactly one
	// interface, named by Action.Iface.
	ActionDeliver
)

// Action is the result of a Decide call.
type Action struct {
	Kind  ActionKind
	Iface string // only meaningful when Kind == ActionDeliver
}

// Decide implements the Switching Decision (§4.2): a pure function of the
// Learning Table, the ingress interface and a frame. It also performs the
// table mutations §4.2 specifies as part of the decision (expire, then
// observe the source), since the source prescribes them as steps 3-4 of the
// same procedure rather than a separate maintenance pass.
//
// Grounded on original_source/include/networking/linklayer/PacketSwitch.h
// (switchPacket) for the control flow, and the teacher's processFrame for
// the broadcast-source rejection.
func Decide(table *LearningTable, ingress string, frame *Frame, now time.Time, timeout time.Duration) Action {
	if frame.IsBroadcastSrc() {
		// A broadcast source address is illegal; treat as malicious (§4.2 step 2).
		return Action{Kind: ActionDrop}
	}

	table.Expire(now, timeout)
	table.Observe(ingress, PackMAC(frame.Src), now)

	if iface, ok := table.Lookup(PackMAC(frame.Dst), ingress); ok {
		return Action{Kind: ActionDeliver, Iface: iface}
	}

	// Broadcast/multicast destinations and unknown unicast both flood; the
	// table will never contain the broadcast address as a destination, so
	// no separate check is needed (§4.2 closing note).
	return Action{Kind: ActionFlood}
}

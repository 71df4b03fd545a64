package bridge

import (
	"net"
	"testing"
	"time"
)

func mustMAC(t *testing.T, s string) PackedMAC {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return PackMAC(mac)
}

func TestLearningTableObserveLookup(t *testing.T) {
	table := NewLearningTable()
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	now := time.Unix(1000, 0)

	table.Observe("eth0", mac, now)

	if _, ok := table.Lookup(mac, "eth0"); ok {
		t.Fatalf("Lookup with ingress == learned interface should not match")
	}

	iface, ok := table.Lookup(mac, "eth1")
	if !ok || iface != "eth0" {
		t.Fatalf("Lookup(ingress=eth1) = %q, %v; want eth0, true", iface, ok)
	}
}

// TestLearningTableMobility asserts that both buckets remain reachable
// after a mobility event: each one is found by a Lookup whose ingress is
// the other interface, since Observe never deletes the older entry.
func TestLearningTableMobility(t *testing.T) {
	table := NewLearningTable()
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	now := time.Unix(1000, 0)

	table.Observe("eth0", mac, now)
	// Observe on eth1 does not touch eth0's bucket; both remain until Expire.
	table.Observe("eth1", mac, now.Add(time.Second))

	if _, ok := table.Lookup(mac, "eth0"); !ok {
		t.Fatalf("expected mac to still be reachable via eth1 when ingress is eth0")
	}
	if _, ok := table.Lookup(mac, "eth1"); !ok {
		t.Fatalf("expected mac to still be reachable via eth0 when ingress is eth1")
	}
}

func TestLearningTableExpire(t *testing.T) {
	table := NewLearningTable()
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	base := time.Unix(1000, 0)

	table.Observe("eth0", mac, base)
	table.Expire(base.Add(time.Minute), 30*time.Second)

	if _, ok := table.Lookup(mac, "eth1"); ok {
		t.Fatalf("expected entry to be expired")
	}
	if table.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 after expiry removes the only entry", table.Size())
	}
}

func TestLearningTablePurge(t *testing.T) {
	table := NewLearningTable()
	mac1 := mustMAC(t, "aa:bb:cc:dd:ee:01")
	mac2 := mustMAC(t, "aa:bb:cc:dd:ee:02")
	now := time.Unix(1000, 0)

	table.Observe("eth0", mac1, now)
	table.Observe("eth1", mac2, now)
	table.Purge("eth0")

	if _, ok := table.Lookup(mac1, "eth1"); ok {
		t.Fatalf("expected eth0's entries to be gone after Purge")
	}
	if _, ok := table.Lookup(mac2, "eth0"); !ok {
		t.Fatalf("expected eth1's entries to survive Purge(\"eth0\")")
	}
}

func TestLearningTableSize(t *testing.T) {
	table := NewLearningTable()
	now := time.Unix(1000, 0)
	table.Observe("eth0", mustMAC(t, "aa:bb:cc:dd:ee:01"), now)
	table.Observe("eth0", mustMAC(t, "aa:bb:cc:dd:ee:02"), now)
	table.Observe("eth1", mustMAC(t, "aa:bb:cc:dd:ee:03"), now)

	if got := table.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
}

package bridge

import (
	"net"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectError bool
		expectDst   string
		expectSrc   string
	}{
		{
			name:        "valid frame",
			data:        []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x08, 0x00, 0x45, 0x00},
			expectError: false,
			expectDst:   "01:02:03:04:05:06",
			expectSrc:   "07:08:09:0a:0b:0c",
		},
		{
			name:        "frame too short",
			data:        []byte{0x01, 0x02, 0x03},
			expectError: true,
		},
		{
			name:        "minimum frame (header only)",
			data:        []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x08, 0x00},
			expectError: false,
			expectDst:   "01:02:03:04:05:06",
			expectSrc:   "07:08:09:0a:0b:0c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame(tt.data)

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if frame.Dst.String() != tt.expectDst {
				t.Errorf("Dst = %s, want %s", frame.Dst, tt.expectDst)
			}
			if frame.Src.String() != tt.expectSrc {
				t.Errorf("Src = %s, want %s", frame.Src, tt.expectSrc)
			}
		})
	}
}

func TestFrameIsBroadcastSrc(t *testing.T) {
	raw := make([]byte, EthernetHeaderLen)
	copy(raw[6:12], net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	frame, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !frame.IsBroadcastSrc() {
		t.Errorf("expected broadcast source address to be detected")
	}

	copy(raw[6:12], net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	frame, err = ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.IsBroadcastSrc() {
		t.Errorf("did not expect unicast source to read as broadcast")
	}
}

func TestFrameIsMulticastDst(t *testing.T) {
	tests := []struct {
		name string
		dst  net.HardwareAddr
		want bool
	}{
		{"multicast (LSB set)", net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, true},
		{"unicast (LSB clear)", net.HardwareAddr{0x02, 0x02, 0x03, 0x04, 0x05, 0x06}, false},
		{"broadcast", net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := make([]byte, EthernetHeaderLen)
			copy(raw[0:6], tt.dst)
			frame, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			if got := frame.IsMulticastDst(); got != tt.want {
				t.Errorf("IsMulticastDst() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameString(t *testing.T) {
	raw := make([]byte, 64)
	copy(raw[0:6], net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	copy(raw[6:12], net.HardwareAddr{0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c})
	raw[12], raw[13] = 0x08, 0x00

	frame, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}

	want := "Frame[07:08:09:0a:0b:0c -> 01:02:03:04:05:06, type=0x0800, len=64]"
	if got := frame.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFrameRelease(t *testing.T) {
	buf := getBuffer(32)
	frame := &Frame{Raw: buf}

	frame.Release()
	if frame.Raw != nil {
		t.Errorf("Release() should nil out Raw")
	}

	// Releasing twice (or a nil Frame) must not panic.
	frame.Release()
	var nilFrame *Frame
	nilFrame.Release()
}

func TestCloneBuffer(t *testing.T) {
	original := []byte{1, 2, 3, 4}
	clone := CloneBuffer(original)

	if len(clone) != len(original) {
		t.Fatalf("len(clone) = %d, want %d", len(clone), len(original))
	}
	for i := range original {
		if clone[i] != original[i] {
			t.Fatalf("clone[%d] = %d, want %d", i, clone[i], original[i])
		}
	}

	clone[0] = 0xff
	if original[0] == 0xff {
		t.Fatalf("clone must not alias the original buffer")
	}
}

func TestPackMACRoundTrip(t *testing.T) {
	mac, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}

	packed := PackMAC(mac)
	got := packed.HardwareAddr()

	if got.String() != mac.String() {
		t.Errorf("round trip = %s, want %s", got, mac)
	}
	if packed.String() != mac.String() {
		t.Errorf("PackedMAC.String() = %s, want %s", packed.String(), mac)
	}
}

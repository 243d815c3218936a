package device

import (
	"math/rand"
	"testing"
)

func TestControlPhaseString(t *testing.T) {
	tests := []struct {
		p    ControlPhase
		want string
	}{
		{PhaseIdle, "idle"},
		{PhaseSetup, "setup"},
		{PhaseDataIn, "data-in"},
		{PhaseDataOut, "data-out"},
		{PhaseAccepted, "accepted"},
		{PhaseNodata, "no-data"},
		{ControlPhase(42), "ControlPhase(42)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint32(tt.p), got, tt.want)
		}
	}
}

func TestControlBegin(t *testing.T) {
	var in, out, addr SetupPacket
	GetDescriptorSetup(&in, DescriptorTypeDevice, 0, 18)
	SetDescriptorSetup(&out, DescriptorTypeString, 1, 40)
	SetAddressSetup(&addr, 9)

	tests := []struct {
		name   string
		pkt    *SetupPacket
		phase  ControlPhase
		remain uint32
		nodata bool
	}{
		{"device to host", &in, PhaseDataIn, 18, false},
		{"host to device", &out, PhaseDataOut, 40, false},
		{"no data stage", &addr, PhaseNodata, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c controlState
			c.set(PhaseSetup)
			if got := c.begin(tt.pkt); got != tt.nodata {
				t.Errorf("begin() = %v, want %v", got, tt.nodata)
			}
			if c.Phase() != tt.phase {
				t.Errorf("Phase() = %v, want %v", c.Phase(), tt.phase)
			}
			if c.Remaining() != tt.remain {
				t.Errorf("Remaining() = %d, want %d", c.Remaining(), tt.remain)
			}
		})
	}
}

func TestControlAdvance(t *testing.T) {
	tests := []struct {
		name   string
		length uint16
		mps    uint16
		n      int
		last   bool
		done   bool
		remain uint32
	}{
		{"exact length", 18, 64, 18, false, true, 0},
		{"full packet", 130, 64, 64, false, false, 66},
		{"short packet", 130, 64, 10, false, true, 120},
		{"forced last", 130, 64, 64, true, true, 66},
		{"overlong", 4, 64, 10, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c controlState
			var pkt SetupPacket
			GetDescriptorSetup(&pkt, DescriptorTypeConfiguration, 0, tt.length)
			c.begin(&pkt)

			if got := c.advance(tt.n, tt.mps, tt.last); got != tt.done {
				t.Errorf("advance(%d) = %v, want %v", tt.n, got, tt.done)
			}
			if c.Remaining() != tt.remain {
				t.Errorf("Remaining() = %d, want %d", c.Remaining(), tt.remain)
			}
		})
	}
}

func TestControlReset(t *testing.T) {
	var c controlState
	var pkt SetupPacket
	GetDescriptorSetup(&pkt, DescriptorTypeDevice, 0, 18)
	c.begin(&pkt)
	c.reset()

	if c.Phase() != PhaseIdle || c.Remaining() != 0 {
		t.Errorf("after reset: phase %v, remaining %d; want idle, 0", c.Phase(), c.Remaining())
	}
}

// TestControlPhaseClosure checks that a data stage ends after exactly the
// number of packets its length implies.
func TestControlPhaseClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sizes := []uint16{8, 16, 32, 64}

	for i := 0; i < 500; i++ {
		length := uint16(rng.Intn(300))
		mps := sizes[rng.Intn(len(sizes))]

		var pkt SetupPacket
		if rng.Intn(2) == 0 {
			GetDescriptorSetup(&pkt, DescriptorTypeConfiguration, 0, length)
		} else {
			SetDescriptorSetup(&pkt, DescriptorTypeConfiguration, 0, length)
		}

		var c controlState
		c.set(PhaseSetup)
		nodata := c.begin(&pkt)
		if nodata != (length == 0) {
			t.Fatalf("length %d: begin() = %v", length, nodata)
		}
		if nodata {
			if c.Phase() != PhaseNodata {
				t.Fatalf("length 0: phase %v, want no-data", c.Phase())
			}
			continue
		}

		want := (int(length) + int(mps) - 1) / int(mps)
		packets := 0
		for {
			n := int(mps)
			if r := int(c.Remaining()); r < n {
				n = r
			}
			packets++
			if c.advance(n, mps, false) {
				break
			}
			if packets > want {
				t.Fatalf("length %d mps %d: data stage did not end after %d packets", length, mps, packets)
			}
		}
		if packets != want {
			t.Errorf("length %d mps %d: %d packets, want %d", length, mps, packets, want)
		}
		if c.Remaining() != 0 {
			t.Errorf("length %d mps %d: %d bytes remaining", length, mps, c.Remaining())
		}
	}
}

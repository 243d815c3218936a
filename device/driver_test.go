package device

import (
	"errors"
	"testing"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/profile"
	"github.com/ardnew/musb/regs"
	"github.com/ardnew/musb/sim"
)

// newTestDriver returns a driver for the named builtin profile attached to a
// simulated controller.
func newTestDriver(t *testing.T, name string) (*Driver, *sim.Controller) {
	t.Helper()
	p, err := profile.Builtin(name)
	if err != nil {
		t.Fatalf("Builtin(%q) error = %v", name, err)
	}
	return newTestDriverProfile(t, p)
}

func newTestDriverProfile(t *testing.T, p *profile.Profile) (*Driver, *sim.Controller) {
	t.Helper()
	l, err := p.RegisterLayout()
	if err != nil {
		t.Fatalf("RegisterLayout() error = %v", err)
	}
	c := sim.New(sim.Config{Layout: l, Endpoints: p.NumEndpoints()})
	d, err := New(c.Registers(), p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.SetIRQ(d.OnInterrupt)
	return d, c
}

// fixedProfile returns a std-layout profile with n fixed FIFOs of size bytes.
func fixedProfile(n int, size uint16) *profile.Profile {
	eps := make([]profile.Endpoint, n)
	for i := range eps {
		eps[i] = profile.Endpoint{Direction: profile.RXTX, FIFOSize: size}
	}
	return &profile.Profile{
		Name:      "test-fixed",
		Layout:    "std",
		FIFO:      profile.FIFOFixed,
		Endpoints: eps,
	}
}

func TestNew(t *testing.T) {
	for _, name := range profile.Builtins() {
		t.Run(name, func(t *testing.T) {
			d, c := newTestDriver(t, name)

			if got, want := d.NumEndpoints(), d.Profile().NumEndpoints(); got != want {
				t.Errorf("NumEndpoints() = %d, want %d", got, want)
			}
			usb, tx, rx := c.InterruptEnables()
			if want := regs.IntrUSBReset | regs.IntrUSBSuspend | regs.IntrUSBResume; usb != want {
				t.Errorf("INTRUSBE = %#02x, want %#02x", usb, want)
			}
			mask := uint16(1)<<d.NumEndpoints() - 1
			if tx != mask {
				t.Errorf("INTRTXE = %#04x, want %#04x", tx, mask)
			}
			if rx != mask&^1 {
				t.Errorf("INTRRXE = %#04x, want %#04x", rx, mask&^1)
			}
			if c.Connected() {
				t.Error("device connected before the bus was enabled")
			}
			if d.ControlPhase() != PhaseIdle {
				t.Errorf("ControlPhase() = %v, want idle", d.ControlPhase())
			}
		})
	}
}

func TestNewLayoutMismatch(t *testing.T) {
	p, err := profile.Builtin("py32f403")
	if err != nil {
		t.Fatal(err)
	}
	c := sim.New(sim.Config{Layout: regs.LayoutMini, Endpoints: p.NumEndpoints()})
	if _, err := New(c.Registers(), p); !errors.Is(err, pkg.ErrInvalidProfile) {
		t.Errorf("New() error = %v, want ErrInvalidProfile", err)
	}
}

func TestNewInvalidProfile(t *testing.T) {
	p := fixedProfile(4, 64)
	p.Endpoints[0].Direction = profile.TX
	c := sim.New(sim.Config{Layout: regs.LayoutStd, Endpoints: 4})
	if _, err := New(c.Registers(), p); !errors.Is(err, pkg.ErrInvalidProfile) {
		t.Errorf("New() error = %v, want ErrInvalidProfile", err)
	}
}

func TestDriverProfileIsCopy(t *testing.T) {
	p := fixedProfile(4, 64)
	d, _ := newTestDriverProfile(t, p)
	p.Endpoints[1].FIFOSize = 8

	if got := d.Profile().Endpoints[1].FIFOSize; got != 64 {
		t.Errorf("driver profile changed with caller's copy: FIFOSize = %d", got)
	}
}

func TestAdapterExclusive(t *testing.T) {
	t.Run("start twice", func(t *testing.T) {
		d, _ := newTestDriver(t, "py32f403")
		if _, _, err := d.Start(64); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, _, err := d.Start(64); !errors.Is(err, pkg.ErrAlreadyRunning) {
			t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
		}
		if _, err := d.Polling(); !errors.Is(err, pkg.ErrAlreadyRunning) {
			t.Errorf("Polling() after Start() error = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("polling then start", func(t *testing.T) {
		d, _ := newTestDriver(t, "py32f403")
		if _, err := d.Polling(); err != nil {
			t.Fatalf("Polling() error = %v", err)
		}
		if _, _, err := d.Start(64); !errors.Is(err, pkg.ErrAlreadyRunning) {
			t.Errorf("Start() after Polling() error = %v, want ErrAlreadyRunning", err)
		}
	})

	t.Run("failed start", func(t *testing.T) {
		d, _ := newTestDriver(t, "std-8bep-2048")
		if _, _, err := d.Start(128); !errors.Is(err, pkg.ErrMaxPacketSizeBiggerThanEpFifoSize) {
			t.Fatalf("Start(128) error = %v, want ErrMaxPacketSizeBiggerThanEpFifoSize", err)
		}
		if _, _, err := d.Start(64); err != nil {
			t.Errorf("Start(64) after failed start error = %v", err)
		}
	})
}

func TestAllocAfterStart(t *testing.T) {
	d, _ := newTestDriver(t, "py32f403")
	if _, _, err := d.Start(64); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AllocEndpointIn(EndpointTypeBulk, 64, 0); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("AllocEndpointIn() after Start() error = %v, want ErrAlreadyRunning", err)
	}
}

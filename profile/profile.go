package profile

import (
	"fmt"
	"strings"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// MaxEndpoints is the largest endpoint count a MUSB core can implement.
const MaxEndpoints = 16

// EP0FIFOSize is the size of the control endpoint FIFO in bytes.
const EP0FIFOSize = 64

// Direction is the hardware direction capability of an endpoint slot.
type Direction int

// Direction capabilities.
const (
	RXTX Direction = iota // both directions
	TX                    // device-to-host only
	RX                    // host-to-device only
)

// String returns the profile spelling of the direction.
func (d Direction) String() string {
	switch d {
	case RXTX:
		return "rxtx"
	case TX:
		return "tx"
	case RX:
		return "rx"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	switch d {
	case RXTX, TX, RX:
		return []byte(d.String()), nil
	}
	return nil, fmt.Errorf("%w: direction %d", pkg.ErrInvalidProfile, int(d))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "rxtx", "":
		*d = RXTX
	case "tx", "in":
		*d = TX
	case "rx", "out":
		*d = RX
	default:
		return fmt.Errorf("%w: direction %q", pkg.ErrInvalidProfile, text)
	}
	return nil
}

// FIFOMode selects how endpoint FIFOs are sized.
type FIFOMode int

// FIFO sizing modes.
const (
	// FIFOFixed means FIFO sizes are fixed at synthesis time.
	FIFOFixed FIFOMode = iota
	// FIFODynamic means FIFOs are partitioned by software from shared RAM.
	FIFODynamic
)

// String returns the profile spelling of the mode.
func (m FIFOMode) String() string {
	switch m {
	case FIFOFixed:
		return "fixed"
	case FIFODynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("FIFOMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m FIFOMode) MarshalText() ([]byte, error) {
	switch m {
	case FIFOFixed, FIFODynamic:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("%w: fifo mode %d", pkg.ErrInvalidProfile, int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FIFOMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "fixed", "static", "":
		*m = FIFOFixed
	case "dynamic":
		*m = FIFODynamic
	default:
		return fmt.Errorf("%w: fifo mode %q", pkg.ErrInvalidProfile, text)
	}
	return nil
}

// Endpoint describes one hardware endpoint slot.
type Endpoint struct {
	// Direction is the implemented direction capability.
	Direction Direction `yaml:"direction" toml:"direction"`

	// FIFOSize is the FIFO capacity in bytes. Required in fixed mode. In
	// dynamic mode a non-zero value caps the packet size of the slot.
	FIFOSize uint16 `yaml:"fifo_size,omitempty" toml:"fifo_size,omitempty"`
}

// Profile describes one MUSB-based chip.
type Profile struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`

	// Layout names the register layout ("std" or "mini").
	Layout string `yaml:"layout" toml:"layout"`

	// BaseAddress is the physical address of the register window.
	BaseAddress uint64 `yaml:"base_address,omitempty" toml:"base_address,omitempty"`

	FIFO FIFOMode `yaml:"fifo" toml:"fifo"`

	// TotalFIFOSize is the shared FIFO RAM in bytes (dynamic mode).
	TotalFIFOSize uint32 `yaml:"total_fifo_size,omitempty" toml:"total_fifo_size,omitempty"`

	// DoubleFlush flushes stale FIFO content twice when arming an endpoint,
	// draining both halves of a double-buffered FIFO.
	DoubleFlush bool `yaml:"double_flush" toml:"double_flush"`

	Endpoints []Endpoint `yaml:"endpoints" toml:"endpoints"`
}

// NumEndpoints returns the number of endpoint slots, including EP0.
func (p *Profile) NumEndpoints() int { return len(p.Endpoints) }

// RegisterLayout resolves the register layout.
func (p *Profile) RegisterLayout() (*regs.Layout, error) {
	l, ok := regs.LayoutByName(p.Layout)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown layout %q", pkg.ErrInvalidProfile, p.Name, p.Layout)
	}
	return l, nil
}

// Capacity returns the FIFO capacity of slot i in bytes. Zero means the slot
// is limited only by shared FIFO RAM.
func (p *Profile) Capacity(i int) uint16 {
	if i < 0 || i >= len(p.Endpoints) {
		return 0
	}
	if i == 0 && p.FIFO == FIFODynamic {
		return EP0FIFOSize
	}
	return p.Endpoints[i].FIFOSize
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Endpoints = append([]Endpoint(nil), p.Endpoints...)
	return &c
}

// Validate reports whether the profile describes a usable controller.
func (p *Profile) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", pkg.ErrInvalidProfile, p.Name, fmt.Sprintf(format, args...))
	}

	if p.Name == "" {
		return fmt.Errorf("%w: missing name", pkg.ErrInvalidProfile)
	}
	l, err := p.RegisterLayout()
	if err != nil {
		return err
	}

	n := len(p.Endpoints)
	if n < 1 || n > MaxEndpoints {
		return invalid("%d endpoints, want 1..%d", n, MaxEndpoints)
	}
	if n > l.IntrBits {
		return invalid("%d endpoints exceed %d-bit interrupt registers", n, l.IntrBits)
	}
	if p.Endpoints[0].Direction != RXTX {
		return invalid("endpoint 0 must be rxtx, got %s", p.Endpoints[0].Direction)
	}

	switch p.FIFO {
	case FIFOFixed:
		for i, ep := range p.Endpoints {
			if ep.FIFOSize == 0 {
				return invalid("endpoint %d has no FIFO size", i)
			}
		}
		if p.Endpoints[0].FIFOSize < 8 {
			return invalid("endpoint 0 FIFO is %d bytes, want at least 8", p.Endpoints[0].FIFOSize)
		}
	case FIFODynamic:
		if !l.HasDynamicFIFO() {
			return invalid("layout %s has no dynamic FIFO registers", l.Name)
		}
		if p.TotalFIFOSize < EP0FIFOSize {
			return invalid("total FIFO is %d bytes, want at least %d", p.TotalFIFOSize, EP0FIFOSize)
		}
	default:
		return invalid("unknown FIFO mode %d", int(p.FIFO))
	}
	return nil
}

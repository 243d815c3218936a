package profile

import (
	"fmt"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// SharedFIFO marks an RX FIFO that shares the TX FIFO of its endpoint.
const SharedFIFO = 0xFFFF

// CoreConfig is the synthesis configuration of a MUSB core as reported by
// its configuration registers.
type CoreConfig struct {
	// CONFIGDATA
	MPRx        bool // automatic bulk packet amalgamation
	MPTx        bool // automatic bulk packet splitting
	BigEndian   bool
	HBRx        bool // high-bandwidth RX ISO
	HBTx        bool // high-bandwidth TX ISO
	DynamicFIFO bool
	SoftConnect bool
	UTMIWide    bool // 16-bit UTMI+ data width

	// FIFOSIZE, per endpoint, in bytes. Zero means not configured.
	TxFIFOSizes [MaxEndpoints]uint16
	RxFIFOSizes [MaxEndpoints]uint16

	TxEndpoints uint8
	RxEndpoints uint8
	DMAChannels uint8
	RAMBits     uint8

	WTCon  uint8
	WTID   uint8
	VPLen  uint8
	HSEOF1 uint8
	FSEOF1 uint8
	LSEOF1 uint8

	// Registers that read as all zeros may be unimplemented or masked.
	EPInfoZero   bool
	RAMInfoZero  bool
	LinkInfoZero bool
}

// decodeFIFOSize converts a FIFOSIZE nibble to bytes. Codes 3..13 are 2^n
// bytes; anything else means the FIFO is not configured.
func decodeFIFOSize(nibble uint8) uint16 {
	if nibble >= 3 && nibble <= 13 {
		return 1 << nibble
	}
	return 0
}

// ReadCoreConfig reads the configuration registers of the controller.
// INDEX is left at 0.
func ReadCoreConfig(r *regs.Registers) (*CoreConfig, error) {
	l := r.Layout()
	if !r.ConfigData().Present() {
		return nil, fmt.Errorf("profile: layout %s: %w: no CONFIGDATA register", l.Name, pkg.ErrNotSupported)
	}

	c := &CoreConfig{}

	r.Index().Write(0)
	cd := r.ConfigData().Read()
	c.UTMIWide = cd&regs.ConfigUTMIWidth != 0
	c.SoftConnect = cd&regs.ConfigSoftConE != 0
	c.DynamicFIFO = cd&regs.ConfigDynFIFOSizing != 0
	c.HBTx = cd&regs.ConfigHBTxE != 0
	c.HBRx = cd&regs.ConfigHBRxE != 0
	c.BigEndian = cd&regs.ConfigBigEndian != 0
	c.MPTx = cd&regs.ConfigMPTxE != 0
	c.MPRx = cd&regs.ConfigMPRxE != 0

	if !c.DynamicFIFO {
		for i := 1; i < MaxEndpoints; i++ {
			r.Index().Write(uint8(i))
			fs := r.FIFOSize().Read()
			tx, rx := fs&0x0F, fs>>4
			c.TxFIFOSizes[i] = decodeFIFOSize(tx)
			if rx == 0x0F {
				c.RxFIFOSizes[i] = SharedFIFO
			} else {
				c.RxFIFOSizes[i] = decodeFIFOSize(rx)
			}
		}
		r.Index().Write(0)
	}

	epinfo := r.EPInfo().Read()
	c.EPInfoZero = epinfo == 0
	c.TxEndpoints = epinfo & 0x0F
	c.RxEndpoints = epinfo >> 4

	raminfo := r.RAMInfo().Read()
	c.RAMInfoZero = raminfo == 0
	c.RAMBits = raminfo & 0x0F
	c.DMAChannels = raminfo >> 4

	linkinfo := r.LinkInfo().Read()
	c.LinkInfoZero = linkinfo == 0
	c.WTID = linkinfo & 0x0F
	c.WTCon = linkinfo >> 4

	c.VPLen = r.VPLen().Read()
	c.HSEOF1 = r.HSEOF1().Read()
	c.FSEOF1 = r.FSEOF1().Read()
	c.LSEOF1 = r.LSEOF1().Read()

	if c.BigEndian {
		pkg.LogWarn(pkg.ComponentProfile, "core reports big endian FIFO access")
	}
	if !c.SoftConnect {
		pkg.LogWarn(pkg.ComponentProfile, "core reports hard-wired connection")
	}
	if c.EPInfoZero {
		pkg.LogWarn(pkg.ComponentProfile, "EPINFO reads zero, may be unimplemented")
	}
	if c.RAMInfoZero {
		pkg.LogWarn(pkg.ComponentProfile, "RAMINFO reads zero, may be unimplemented")
	}
	return c, nil
}

// NumEndpoints returns the number of endpoint slots including EP0.
func (c *CoreConfig) NumEndpoints() int {
	n := int(max(c.TxEndpoints, c.RxEndpoints))
	if n == 0 {
		// EPINFO masked: infer from configured FIFOs.
		for i := MaxEndpoints - 1; i > 0; i-- {
			if c.TxFIFOSizes[i] != 0 || c.RxFIFOSizes[i] != 0 {
				n = i
				break
			}
		}
	}
	return min(n+1, MaxEndpoints)
}

// RAMSize returns the FIFO RAM size in bytes. The RAM is 32 bits wide.
func (c *CoreConfig) RAMSize() uint32 {
	if c.RAMBits == 0 {
		return 0
	}
	return 4 << c.RAMBits
}

// Profile derives a chip profile from the configuration.
func (c *CoreConfig) Profile(name string, l *regs.Layout) (*Profile, error) {
	p := &Profile{
		Name:        name,
		Description: "read from hardware configuration registers",
		Layout:      l.Name,
		DoubleFlush: true,
	}

	n := c.NumEndpoints()
	p.Endpoints = make([]Endpoint, n)
	p.Endpoints[0] = Endpoint{Direction: RXTX, FIFOSize: EP0FIFOSize}

	if c.DynamicFIFO {
		p.FIFO = FIFODynamic
		p.TotalFIFOSize = c.RAMSize()
		for i := 1; i < n; i++ {
			p.Endpoints[i] = Endpoint{Direction: RXTX}
		}
	} else {
		p.FIFO = FIFOFixed
		for i := 1; i < n; i++ {
			tx, rx := c.TxFIFOSizes[i], c.RxFIFOSizes[i]
			switch {
			case rx == SharedFIFO:
				p.Endpoints[i] = Endpoint{Direction: RXTX, FIFOSize: tx}
			case tx != 0 && rx != 0:
				p.Endpoints[i] = Endpoint{Direction: RXTX, FIFOSize: min(tx, rx)}
			case tx != 0:
				p.Endpoints[i] = Endpoint{Direction: TX, FIFOSize: tx}
			case rx != 0:
				p.Endpoints[i] = Endpoint{Direction: RX, FIFOSize: rx}
			default:
				return nil, fmt.Errorf("%w: %s: endpoint %d has no configured FIFO", pkg.ErrInvalidProfile, name, i)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

package profile

import (
	"errors"
	"testing"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// configBlock answers configuration register reads of a std layout core.
type configBlock struct {
	index    uint8
	mem      [0x80]uint8
	fifoSize [MaxEndpoints]uint8
}

func (b *configBlock) Read8(off uintptr) uint8 {
	switch {
	case off == regs.LayoutStd.Index:
		return b.index
	case off == regs.LayoutStd.FIFOSize && b.index != 0:
		return b.fifoSize[b.index]
	}
	return b.mem[off]
}

func (b *configBlock) Write8(off uintptr, v uint8) {
	if off == regs.LayoutStd.Index {
		b.index = v & regs.IndexMask
		return
	}
	b.mem[off] = v
}

func (b *configBlock) Read16(off uintptr) uint16 {
	return uint16(b.Read8(off)) | uint16(b.Read8(off+1))<<8
}

func (b *configBlock) Write16(off uintptr, v uint16) {
	b.Write8(off, uint8(v))
	b.Write8(off+1, uint8(v>>8))
}

func TestReadCoreConfigStatic(t *testing.T) {
	b := &configBlock{}
	b.mem[regs.LayoutStd.ConfigData] = regs.ConfigSoftConE | regs.ConfigMPRxE
	b.mem[regs.LayoutStd.EPInfo] = 0x44 // 4 RX, 4 TX
	b.mem[regs.LayoutStd.RAMInfo] = 0x09
	b.fifoSize[1] = 0x66 // 64/64
	b.fifoSize[2] = 0xF9 // 512, RX shared
	b.fifoSize[3] = 0x07 // TX 128 only
	b.fifoSize[4] = 0x80 // RX 256 only

	r := regs.New(b, regs.LayoutStd)
	c, err := ReadCoreConfig(r)
	if err != nil {
		t.Fatalf("ReadCoreConfig() error = %v", err)
	}
	if b.index != 0 {
		t.Errorf("INDEX left at %d, want 0", b.index)
	}
	if c.DynamicFIFO || !c.SoftConnect || !c.MPRx || c.MPTx {
		t.Errorf("CONFIGDATA decode = %+v", c)
	}
	if c.TxFIFOSizes[2] != 512 || c.RxFIFOSizes[2] != SharedFIFO {
		t.Errorf("endpoint 2 = %d/%d, want 512/shared", c.TxFIFOSizes[2], c.RxFIFOSizes[2])
	}
	if c.NumEndpoints() != 5 {
		t.Errorf("NumEndpoints() = %d, want 5", c.NumEndpoints())
	}

	p, err := c.Profile("board", regs.LayoutStd)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	want := []Endpoint{
		{RXTX, 64},
		{RXTX, 64},
		{RXTX, 512},
		{TX, 128},
		{RX, 256},
	}
	for i, ep := range want {
		if p.Endpoints[i] != ep {
			t.Errorf("endpoint %d = %+v, want %+v", i, p.Endpoints[i], ep)
		}
	}
}

func TestReadCoreConfigDynamic(t *testing.T) {
	b := &configBlock{}
	b.mem[regs.LayoutStd.ConfigData] = regs.ConfigSoftConE | regs.ConfigDynFIFOSizing
	b.mem[regs.LayoutStd.EPInfo] = 0x77
	b.mem[regs.LayoutStd.RAMInfo] = 0x29 // 2 DMA channels, 9 address bits

	c, err := ReadCoreConfig(regs.New(b, regs.LayoutStd))
	if err != nil {
		t.Fatal(err)
	}
	if c.DMAChannels != 2 || c.RAMBits != 9 {
		t.Errorf("RAMINFO decode = %d/%d, want 2/9", c.DMAChannels, c.RAMBits)
	}
	if c.RAMSize() != 2048 {
		t.Errorf("RAMSize() = %d, want 2048", c.RAMSize())
	}

	p, err := c.Profile("dyn", regs.LayoutStd)
	if err != nil {
		t.Fatal(err)
	}
	if p.FIFO != FIFODynamic || p.TotalFIFOSize != 2048 || p.NumEndpoints() != 8 {
		t.Errorf("Profile() = %+v", p)
	}
}

func TestReadCoreConfigMasked(t *testing.T) {
	b := &configBlock{}
	b.mem[regs.LayoutStd.ConfigData] = regs.ConfigSoftConE
	b.fifoSize[1] = 0x66
	b.fifoSize[2] = 0x66

	c, err := ReadCoreConfig(regs.New(b, regs.LayoutStd))
	if err != nil {
		t.Fatal(err)
	}
	if !c.EPInfoZero || !c.RAMInfoZero {
		t.Error("zero registers not flagged")
	}
	if c.NumEndpoints() != 3 {
		t.Errorf("NumEndpoints() = %d, want 3 (inferred from FIFOs)", c.NumEndpoints())
	}
}

func TestReadCoreConfigMini(t *testing.T) {
	b := &configBlock{}
	_, err := ReadCoreConfig(regs.New(b, regs.LayoutMini))
	if !errors.Is(err, pkg.ErrNotSupported) {
		t.Errorf("ReadCoreConfig(mini) error = %v, want ErrNotSupported", err)
	}
}

func TestDecodeFIFOSize(t *testing.T) {
	tests := []struct {
		nibble uint8
		want   uint16
	}{
		{0, 0},
		{2, 0},
		{3, 8},
		{6, 64},
		{13, 8192},
		{14, 0},
	}
	for _, tt := range tests {
		if got := decodeFIFOSize(tt.nibble); got != tt.want {
			t.Errorf("decodeFIFOSize(%d) = %d, want %d", tt.nibble, got, tt.want)
		}
	}
}

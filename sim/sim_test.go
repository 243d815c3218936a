package sim

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardnew/musb/regs"
)

func newTestController(l *regs.Layout) (*Controller, *regs.Registers) {
	c := New(Config{Layout: l, Endpoints: 4})
	r := c.Registers()
	r.IntrUSBE().Write(regs.IntrUSBReset | regs.IntrUSBSuspend | regs.IntrUSBResume)
	r.IntrTxE().Write(0x0F)
	r.IntrRxE().Write(0x0E)
	return c, r
}

func TestSetupDelivery(t *testing.T) {
	for _, l := range regs.Layouts() {
		t.Run(l.Name, func(t *testing.T) {
			c, r := newTestController(l)
			pkt := [8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
			c.Setup(pkt)

			r.Index().Write(0)
			if !r.CSR0L().Bit(regs.CSR0LRxPktRdy) {
				t.Fatal("RxPktRdy not set after setup")
			}
			if got := r.Count0().Read(); got != 8 {
				t.Errorf("COUNT0 = %d, want 8", got)
			}
			if got := r.IntrTx().Read(); got != 0x01 {
				t.Errorf("INTRTX = %#x, want 0x1", got)
			}
			if got := r.IntrTx().Read(); got != 0 {
				t.Errorf("INTRTX not cleared by read: %#x", got)
			}

			var buf [8]byte
			for i := range buf {
				buf[i] = r.FIFO(0).Read()
			}
			if buf != pkt {
				t.Errorf("FIFO = % x, want % x", buf, pkt)
			}

			r.CSR0L().Set(regs.CSR0LServicedRxPktRdy | regs.CSR0LDataEnd)
			if r.CSR0L().Bit(regs.CSR0LRxPktRdy) {
				t.Error("RxPktRdy still set after ServicedRxPktRdy")
			}
			if c.DataEnds() != 1 {
				t.Errorf("DataEnds() = %d, want 1", c.DataEnds())
			}
		})
	}
}

func TestControlIn(t *testing.T) {
	c, r := newTestController(regs.LayoutStd)

	if _, err := c.In(0); !errors.Is(err, ErrNAK) {
		t.Errorf("In(0) before load error = %v, want ErrNAK", err)
	}

	r.Index().Write(0)
	for _, b := range []byte{1, 2, 3} {
		r.FIFO(0).Write(b)
	}
	r.CSR0L().Set(regs.CSR0LTxPktRdy | regs.CSR0LDataEnd)

	if err := c.Status(); !errors.Is(err, ErrNAK) {
		t.Errorf("Status() before IN error = %v, want ErrNAK", err)
	}
	data, err := c.In(0)
	if err != nil {
		t.Fatalf("In(0) error = %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("In(0) = % x", data)
	}
	if r.CSR0L().Bit(regs.CSR0LTxPktRdy) {
		t.Error("TxPktRdy still set after IN")
	}
	if err := c.Status(); err != nil {
		t.Errorf("Status() error = %v", err)
	}
}

func TestBulkTransfers(t *testing.T) {
	c, r := newTestController(regs.LayoutStd)

	if err := c.Out(1, []byte("hello")); err != nil {
		t.Fatalf("Out(1) error = %v", err)
	}
	if err := c.Out(1, []byte("again")); !errors.Is(err, ErrNAK) {
		t.Errorf("Out(1) with full FIFO error = %v, want ErrNAK", err)
	}
	if got := r.IntrRx().Read(); got != 0x02 {
		t.Errorf("INTRRX = %#x, want 0x2", got)
	}

	r.Index().Write(1)
	n := r.RxCount().Read()
	if n != 5 {
		t.Fatalf("RXCOUNT = %d, want 5", n)
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = r.FIFO(1).Read()
	}
	r.RxCSRL().Clear(regs.RxCSRLRxPktRdy)
	if string(buf) != "hello" {
		t.Errorf("FIFO = %q", buf)
	}
	if r.RxCSRL().Bit(regs.RxCSRLRxPktRdy) {
		t.Error("RxPktRdy still set after clear")
	}

	r.Index().Write(2)
	r.FIFO(2).Write(0xAA)
	if !r.TxCSRL().Bit(regs.TxCSRLFIFONotEmpty) {
		t.Error("FIFONotEmpty not set after load")
	}
	r.TxCSRL().Set(regs.TxCSRLTxPktRdy)
	data, err := c.In(2)
	if err != nil || !bytes.Equal(data, []byte{0xAA}) {
		t.Errorf("In(2) = % x, %v", data, err)
	}
	if got := r.IntrTx().Read(); got != 0x04 {
		t.Errorf("INTRTX = %#x, want 0x4", got)
	}
}

func TestStall(t *testing.T) {
	c, r := newTestController(regs.LayoutStd)

	r.Index().Write(1)
	r.TxCSRL().Write(regs.TxCSRLSendStall)
	if !c.Endpoint(1).TxStalled {
		t.Fatal("endpoint 1 TX not stalled")
	}
	if _, err := c.In(1); !errors.Is(err, ErrStall) {
		t.Errorf("In(1) error = %v, want ErrStall", err)
	}
	if !r.TxCSRL().Bit(regs.TxCSRLSentStall) {
		t.Error("SentStall not set")
	}
	r.TxCSRL().Write(regs.TxCSRLClrDataTog)
	if r.TxCSRL().Bit(regs.TxCSRLSentStall | regs.TxCSRLSendStall) {
		t.Error("stall bits not cleared")
	}
	if c.Endpoint(1).TxToggles != 1 {
		t.Errorf("TxToggles = %d, want 1", c.Endpoint(1).TxToggles)
	}

	r.Index().Write(0)
	r.CSR0L().Write(regs.CSR0LSendStall | regs.CSR0LServicedRxPktRdy)
	if err := c.Status(); !errors.Is(err, ErrStall) {
		t.Errorf("Status() error = %v, want ErrStall", err)
	}
	if r.CSR0L().Bit(regs.CSR0LSendStall) {
		t.Error("EP0 SendStall not cleared after handshake")
	}
}

func TestInterruptMasking(t *testing.T) {
	c := New(Config{Layout: regs.LayoutStd, Endpoints: 4})
	r := c.Registers()

	fired := 0
	c.SetIRQ(func() { fired++ })

	c.BusReset()
	if fired != 0 {
		t.Error("IRQ fired with interrupts disabled")
	}
	if r.IntrUSB().Read() != 0 {
		t.Error("disabled reset interrupt latched")
	}

	r.IntrUSBE().Write(regs.IntrUSBReset)
	c.BusReset()
	if fired != 1 {
		t.Errorf("IRQ fired %d times, want 1", fired)
	}
	if got := r.IntrUSB().Read(); got != regs.IntrUSBReset {
		t.Errorf("INTRUSB = %#x, want reset only", got)
	}

	// Suspend is masked and nothing else is pending.
	c.Suspend()
	if fired != 1 {
		t.Errorf("IRQ fired %d times after masked suspend, want 1", fired)
	}
}

func TestFlush(t *testing.T) {
	c, r := newTestController(regs.LayoutStd)

	r.Index().Write(3)
	r.FIFO(3).Write(1)
	r.TxCSRL().Set(regs.TxCSRLTxPktRdy)
	r.TxCSRL().Set(regs.TxCSRLFlushFIFO)
	if r.TxCSRL().Bit(regs.TxCSRLFIFONotEmpty) {
		t.Error("FIFO not empty after flush")
	}
	if c.Endpoint(3).TxFlushes != 1 {
		t.Errorf("TxFlushes = %d, want 1", c.Endpoint(3).TxFlushes)
	}

	r.Index().Write(0)
	r.CSR0H().Set(regs.CSR0HFlushFIFO)
	if c.Endpoint(0).TxFlushes != 1 {
		t.Errorf("EP0 flushes = %d, want 1", c.Endpoint(0).TxFlushes)
	}
}

func TestNarrowInterrupts(t *testing.T) {
	c, r := newTestController(regs.LayoutMini)

	_, tx, rx := c.InterruptEnables()
	if tx != 0x0F || rx != 0x0E {
		t.Errorf("enables = %#x/%#x, want 0xf/0xe", tx, rx)
	}
	if err := c.Out(2, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if got := r.IntrRx().Read(); got != 0x04 {
		t.Errorf("INTRRX = %#x, want 0x4", got)
	}
}

func TestMalformedSetupBytes(t *testing.T) {
	c, r := newTestController(regs.LayoutStd)
	c.SetupBytes([]byte{1, 2, 3})
	r.Index().Write(0)
	if got := r.Count0().Read(); got != 3 {
		t.Errorf("COUNT0 = %d, want 3", got)
	}
}

func TestNoEndpoint(t *testing.T) {
	c, _ := newTestController(regs.LayoutStd)
	if err := c.Out(9, nil); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Out(9) error = %v", err)
	}
	if _, err := c.In(-1); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("In(-1) error = %v", err)
	}
}

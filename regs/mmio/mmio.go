// Package mmio maps a MUSB controller register window from physical memory.
//
// It targets Linux SoCs that carry a MUSB core and expose /dev/mem. The
// mapping is provided by periph's host/pmem driver; callers should run
// host.Init() first so the host drivers are registered.
package mmio

import (
	"fmt"
	"unsafe"

	"periph.io/x/periph/host/pmem"

	"github.com/ardnew/musb/pkg"
	"github.com/ardnew/musb/regs"
)

// Window is a regs.Block over mapped physical memory.
type Window struct {
	view *pmem.View
	mem  []byte
	base uint64
}

var _ regs.Block = (*Window)(nil)

// Map maps size bytes of physical memory at base.
func Map(base uint64, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmio: map %#x: %w", base, pkg.ErrInvalidParameter)
	}
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("mmio: map %#x+%#x: %w", base, size, err)
	}
	w := &Window{view: v, mem: v.Bytes(), base: base}
	pkg.LogDebug(pkg.ComponentRegs, "mapped register window", "base", fmt.Sprintf("%#x", base), "size", size)
	return w, nil
}

// MapLayout maps the register window described by l at base.
func MapLayout(base uint64, l *regs.Layout) (*Window, error) {
	return Map(base, int(l.Size))
}

// newWindow wraps an existing buffer. Used by tests.
func newWindow(mem []byte) *Window {
	return &Window{mem: mem}
}

// Base returns the physical base address of the window.
func (w *Window) Base() uint64 { return w.base }

// Close unmaps the window.
func (w *Window) Close() error {
	w.mem = nil
	if w.view == nil {
		return nil
	}
	err := w.view.Close()
	w.view = nil
	return err
}

func (w *Window) check(off uintptr, n uintptr) {
	if off+n > uintptr(len(w.mem)) {
		panic(fmt.Sprintf("mmio: offset %#x outside %d-byte window", off, len(w.mem)))
	}
}

// Read8 implements regs.Block.
func (w *Window) Read8(off uintptr) uint8 {
	w.check(off, 1)
	return *(*uint8)(unsafe.Pointer(&w.mem[off]))
}

// Write8 implements regs.Block.
func (w *Window) Write8(off uintptr, v uint8) {
	w.check(off, 1)
	*(*uint8)(unsafe.Pointer(&w.mem[off])) = v
}

// Read16 implements regs.Block. The offset must be 2-byte aligned.
func (w *Window) Read16(off uintptr) uint16 {
	w.check(off, 2)
	return *(*uint16)(unsafe.Pointer(&w.mem[off]))
}

// Write16 implements regs.Block. The offset must be 2-byte aligned.
func (w *Window) Write16(off uintptr, v uint16) {
	w.check(off, 2)
	*(*uint16)(unsafe.Pointer(&w.mem[off])) = v
}

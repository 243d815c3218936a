// Package regs provides named access to the register file of a MUSB-family
// USB 2.0 controller.
//
// The controller exposes a small set of global registers (function address,
// power, interrupt status and enable) plus a window of "indexed" registers
// whose meaning depends on the endpoint selected in the INDEX register. Raw
// FIFO data ports are addressed per endpoint and are not indexed.
//
// Register placement differs between silicon variants, so accessors are
// resolved through a [Layout]:
//
//   - [LayoutStd]: the full Mentor register map with 16-bit endpoint
//     interrupt registers, CSR0H and dynamic FIFO sizing registers.
//   - [LayoutMini]: the reduced map found on PY32F07x parts, with 8-bit
//     interrupt registers, no CSR0H, and max packet size in 8-byte units.
//
// Raw access goes through a [Block], which is satisfied by a physical memory
// mapping (see package mmio) or by a behavioral model (see package sim).
//
// # Example
//
//	r := regs.New(block, regs.LayoutStd)
//	r.Index().Write(1)
//	if r.TxCSRL().Bit(regs.TxCSRLTxPktRdy) {
//	    // FIFO still owned by hardware
//	}
//
// Registers absent from a layout have offset [NoReg]: reads return zero and
// writes are dropped.
package regs

package regs

// POWER bits.
const (
	PowerEnSuspendM  uint8 = 1 << 0
	PowerSuspendMode uint8 = 1 << 1
	PowerResume      uint8 = 1 << 2
	PowerReset       uint8 = 1 << 3
	PowerHSMode      uint8 = 1 << 4
	PowerHSEnab      uint8 = 1 << 5
	PowerSoftConn    uint8 = 1 << 6
	PowerISOUpdate   uint8 = 1 << 7
)

// INTRUSB and INTRUSBE bits.
const (
	IntrUSBSuspend   uint8 = 1 << 0
	IntrUSBResume    uint8 = 1 << 1
	IntrUSBReset     uint8 = 1 << 2 // babble in host mode
	IntrUSBSOF       uint8 = 1 << 3
	IntrUSBConn      uint8 = 1 << 4
	IntrUSBDiscon    uint8 = 1 << 5
	IntrUSBSessReq   uint8 = 1 << 6
	IntrUSBVBusError uint8 = 1 << 7
)

// CSR0L bits (peripheral mode).
const (
	CSR0LRxPktRdy         uint8 = 1 << 0
	CSR0LTxPktRdy         uint8 = 1 << 1
	CSR0LSentStall        uint8 = 1 << 2
	CSR0LDataEnd          uint8 = 1 << 3
	CSR0LSetupEnd         uint8 = 1 << 4
	CSR0LSendStall        uint8 = 1 << 5
	CSR0LServicedRxPktRdy uint8 = 1 << 6
	CSR0LServicedSetupEnd uint8 = 1 << 7
)

// CSR0H bits.
const (
	CSR0HFlushFIFO uint8 = 1 << 0
)

// TXCSRL bits (peripheral mode).
const (
	TxCSRLTxPktRdy     uint8 = 1 << 0
	TxCSRLFIFONotEmpty uint8 = 1 << 1
	TxCSRLUnderRun     uint8 = 1 << 2
	TxCSRLFlushFIFO    uint8 = 1 << 3
	TxCSRLSendStall    uint8 = 1 << 4
	TxCSRLSentStall    uint8 = 1 << 5
	TxCSRLClrDataTog   uint8 = 1 << 6
	TxCSRLIncompTx     uint8 = 1 << 7
)

// TXCSRH bits.
const (
	TxCSRHDMAReqMode uint8 = 1 << 2
	TxCSRHFrcDataTog uint8 = 1 << 3
	TxCSRHDMAReqEnab uint8 = 1 << 4
	TxCSRHMode       uint8 = 1 << 5 // 1 = TX
	TxCSRHISO        uint8 = 1 << 6
	TxCSRHAutoSet    uint8 = 1 << 7
)

// RXCSRL bits (peripheral mode).
const (
	RxCSRLRxPktRdy   uint8 = 1 << 0
	RxCSRLFIFOFull   uint8 = 1 << 1
	RxCSRLOverRun    uint8 = 1 << 2
	RxCSRLDataError  uint8 = 1 << 3
	RxCSRLFlushFIFO  uint8 = 1 << 4
	RxCSRLSendStall  uint8 = 1 << 5
	RxCSRLSentStall  uint8 = 1 << 6
	RxCSRLClrDataTog uint8 = 1 << 7
)

// RXCSRH bits.
const (
	RxCSRHIncompRx   uint8 = 1 << 0
	RxCSRHDMAReqMode uint8 = 1 << 3
	RxCSRHDisNyet    uint8 = 1 << 4
	RxCSRHDMAReqEnab uint8 = 1 << 5
	RxCSRHISO        uint8 = 1 << 6
	RxCSRHAutoClear  uint8 = 1 << 7
)

// TXFIFOSZ and RXFIFOSZ fields.
const (
	FIFOSzMask uint8 = 0x0F   // size code: log2(bytes) - 3
	FIFOSzDPB  uint8 = 1 << 4 // double packet buffering
)

// CONFIGDATA bits.
const (
	ConfigUTMIWidth     uint8 = 1 << 0
	ConfigSoftConE      uint8 = 1 << 1
	ConfigDynFIFOSizing uint8 = 1 << 2
	ConfigHBTxE         uint8 = 1 << 3
	ConfigHBRxE         uint8 = 1 << 4
	ConfigBigEndian     uint8 = 1 << 5
	ConfigMPTxE         uint8 = 1 << 6
	ConfigMPRxE         uint8 = 1 << 7
)

// Field masks.
const (
	MaxPMask    uint16 = 0x07FF
	RxCountMask uint16 = 0x1FFF
	Count0Mask  uint8  = 0x7F
	FAddrMask   uint8  = 0x7F
	IndexMask   uint8  = 0x0F
)

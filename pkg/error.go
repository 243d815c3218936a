package pkg

import "errors"

// Endpoint allocation errors.
//
// Resource exhaustion (ErrEndpointOverflow, ErrBufferOverflow) is recoverable
// by retrying with a different configuration. The remaining allocation errors
// describe configuration conflicts made by the caller at enumeration time.
var (
	// ErrEndpointOverflow indicates no free endpoint slot, or an index beyond
	// the endpoints implemented by the controller.
	ErrEndpointOverflow = errors.New("endpoint overflow")

	// ErrBufferOverflow indicates the shared FIFO RAM cannot hold the
	// requested partition.
	ErrBufferOverflow = errors.New("endpoint memory overflow")

	// ErrInvalidEndpoint indicates a fixed endpoint index that cannot serve
	// the requested allocation.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrEpDirNotSupported indicates the endpoint hardware does not implement
	// the requested direction.
	ErrEpDirNotSupported = errors.New("endpoint direction not supported")

	// ErrEpUsed indicates the endpoint slot is already in use.
	ErrEpUsed = errors.New("endpoint already in use")

	// ErrMaxPacketSizeBiggerThanEpFifoSize indicates the requested maximum
	// packet size exceeds the endpoint's FIFO capacity.
	ErrMaxPacketSizeBiggerThanEpFifoSize = errors.New("max packet size bigger than endpoint FIFO size")
)

// Transfer errors.
var (
	// ErrWouldBlock indicates the endpoint is not ready; retry later.
	ErrWouldBlock = errors.New("operation would block")

	// ErrBufferTooSmall indicates the destination buffer is smaller than the
	// received packet. The packet has been drained from the FIFO.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrPacketTooLarge indicates a write larger than the endpoint's maximum
	// packet size.
	ErrPacketTooLarge = errors.New("packet larger than max packet size")

	// ErrEndpointDisabled indicates the endpoint has not been enabled.
	ErrEndpointDisabled = errors.New("endpoint disabled")

	// ErrProtocolViolation indicates a control transfer operation invoked in
	// a phase that does not permit it. EP0 is stalled and returned to idle.
	ErrProtocolViolation = errors.New("control transfer protocol violation")

	// ErrMalformedSetup indicates EP0 received a setup-stage packet whose
	// length is not 8 bytes. The packet is discarded.
	ErrMalformedSetup = errors.New("malformed setup packet")

	// ErrReset indicates a bus reset was received.
	ErrReset = errors.New("bus reset")
)

// Driver lifecycle and configuration errors.
var (
	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrAlreadyRunning indicates the driver is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the driver is not running.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidProfile indicates a chip profile failed validation.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrUnknownProfile indicates no builtin profile has the requested name.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

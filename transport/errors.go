package transport

import "errors"

var (
	// ErrTransportTimeout indicates RDYN never went low after REQN was asserted.
	// Nothing was clocked; the command may be retried unchanged.
	ErrTransportTimeout = errors.New("transport timeout: chip not ready")

	// ErrTransportBusy indicates a second session tried to claim the transport
	ErrTransportBusy = errors.New("transport already claimed by a session")

	// ErrPacketTooLong indicates a command larger than the chip buffer
	ErrPacketTooLong = errors.New("packet exceeds hardware buffer")
)

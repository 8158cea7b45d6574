package usbi2c

import "errors"

// Error categories. Chip adapters wrap these with operation context via
// fmt.Errorf and %w, so callers can match with errors.Is.
var (
	// ErrorClosed is returned when an operation is attempted on an
	// adapter that was never opened or was already closed.
	ErrorClosed = errors.New("Adapter is not opened")

	// ErrorConfig covers invalid parameters detected before any I/O:
	// unsupported clock speed, bad address, payload exceeding the chip
	// frame ceiling. Never retried.
	ErrorConfig = errors.New("Invalid configuration")

	// ErrorTransport covers failed, short or timed out USB transfers.
	ErrorTransport = errors.New("USB transfer failed")

	// ErrorProtocol covers unexpected report or status identifiers,
	// chunks longer than the remaining expected data, echo mismatches
	// and NACKed data bytes. Fatal to the current operation.
	ErrorProtocol = errors.New("Received invalid response")

	// ErrorNoDevice means the address probe or the address byte was
	// NACKed: no slave present. An expected outcome for bus scanners.
	ErrorNoDevice = errors.New("No device at address")

	// ErrorTimeout means chip-side completion polling exhausted its
	// retry bound. A best effort cancel is issued before it is returned.
	ErrorTimeout = errors.New("The transfer did not complete in time")
)

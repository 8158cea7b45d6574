// Package usbtransport abstracts the raw USB transfer primitives the
// adapter protocol layer is built on. The library never enumerates USB
// devices itself: callers resolve and open a device with one of the
// backends in this package (or their own) and hand the Transport to an
// adapter.
package usbtransport

import (
	"errors"
	"time"
)

// Request type bits used to compose the bmRequestType field of a control
// transfer.
const (
	DirOut byte = 0x00
	DirIn  byte = 0x80

	TypeClass  byte = 0x20
	TypeVendor byte = 0x40

	RecipInterface byte = 0x01
)

// Transport is a single opened USB bridge device. All calls block until
// completion or until the given timeout, whichever comes first. A Transport
// is owned by exactly one adapter session and must not be shared.
type Transport interface {
	// ControlTransfer performs a transfer on endpoint zero. For IN
	// transfers data is filled with the response, for OUT transfers it
	// holds the payload of the data stage (may be nil). Returns the
	// number of bytes moved in the data stage.
	ControlTransfer(requestType, request byte, value, index uint16, data []byte, timeout time.Duration) (int, error)

	// BulkTransfer moves len(data) bytes over the device's bulk or
	// interrupt data endpoint for the given direction. Returns the
	// number of bytes actually moved, which may be short for IN
	// transfers.
	BulkTransfer(in bool, data []byte, timeout time.Duration) (int, error)

	Close() error
}

var (
	ErrorNoEndpoint  = errors.New("Device has no suitable data endpoints")
	ErrorUnsupported = errors.New("Transfer is not supported by this backend")
)

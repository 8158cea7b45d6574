package usbtransport

import (
	"time"

	"github.com/sstallion/go-hid"
)

// HID report requests from the USB HID class specification.
const (
	hidRequestGetReport byte = 0x01
	hidRequestSetReport byte = 0x09

	hidReportTypeFeature = 0x03
)

// HID is a Transport backed by hidapi, for HID-class bridge chips
// (CP2112, FT260) on hosts where the OS HID driver owns the interface and
// raw control transfers are not available. Feature report control requests
// are translated to hidapi feature report calls, bulk transfers to
// interrupt report I/O. Any other control transfer is refused.
type HID struct {
	dev *hid.Device
}

// OpenHID opens the first HID device matching vid and pid. An empty
// serial matches any device.
func OpenHID(vid, pid uint16, serial string) (*HID, error) {
	dev, err := hid.Open(vid, pid, serial)
	if err != nil {
		return nil, err
	}
	return &HID{dev: dev}, nil
}

// WrapHID wraps an already opened hidapi device.
func WrapHID(dev *hid.Device) *HID {
	return &HID{dev: dev}
}

func (h *HID) ControlTransfer(requestType, request byte, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	if requestType&TypeVendor != 0 || byte(value>>8) != hidReportTypeFeature {
		return 0, ErrorUnsupported
	}

	switch request {
	case hidRequestGetReport:
		// hidapi wants the report ID in the first byte of the buffer,
		// which matches the report layout the adapters already use.
		if len(data) > 0 {
			data[0] = byte(value)
		}
		return h.dev.GetFeatureReport(data)
	case hidRequestSetReport:
		return h.dev.SendFeatureReport(data)
	}

	return 0, ErrorUnsupported
}

func (h *HID) BulkTransfer(in bool, data []byte, timeout time.Duration) (int, error) {
	if in {
		return h.dev.ReadWithTimeout(data, timeout)
	}
	return h.dev.Write(data)
}

func (h *HID) Close() error {
	return h.dev.Close()
}

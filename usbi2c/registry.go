package usbi2c

import "github.com/3cky/usbi2c/usbtransport"

// DeviceID identifies a supported bridge chip on the USB bus.
type DeviceID struct {
	VendorID  uint16
	ProductID uint16
}

// Constructor builds an adapter for an opened transport. The adapter
// still has to be opened before use.
type Constructor func(tr usbtransport.Transport, cfg Config) Adapter

// Entry describes one supported bridge chip. HID marks chips that
// enumerate as HID class devices, which on most hosts must be reached
// through a hidapi transport instead of raw USB.
type Entry struct {
	ID   DeviceID
	Name string
	HID  bool
	New  Constructor
}

// The registry is a static table: the chip for a given USB device is
// resolved by VID/PID lookup, never by runtime discovery.
var registry = []Entry{
	{DeviceID{0x1a86, 0x5512}, "CH341", false,
		func(tr usbtransport.Transport, cfg Config) Adapter { return NewCH341(tr, cfg) }},
	{DeviceID{0x10c4, 0xea90}, "CP2112", true,
		func(tr usbtransport.Transport, cfg Config) Adapter { return NewCP2112(tr, cfg) }},
	{DeviceID{0x0403, 0x6030}, "FT260", true,
		func(tr usbtransport.Transport, cfg Config) Adapter { return NewFT260(tr, cfg) }},
	{DeviceID{0x0403, 0x6014}, "FT232H", false,
		func(tr usbtransport.Transport, cfg Config) Adapter { return NewFT232H(tr, cfg) }},
	{DeviceID{0x0403, 0xc631}, "TinyUSB", false,
		func(tr usbtransport.Transport, cfg Config) Adapter { return NewTinyUSB(tr, cfg) }},
}

// Lookup returns the registry entry for a USB device, if its VID/PID
// pair belongs to a supported bridge chip.
func Lookup(vendorID, productID uint16) (Entry, bool) {
	for _, e := range registry {
		if e.ID.VendorID == vendorID && e.ID.ProductID == productID {
			return e, true
		}
	}
	return Entry{}, false
}

// SupportedDevices lists the VID/PID pairs of all supported chips, for
// use as an enumeration filter.
func SupportedDevices() []DeviceID {
	ids := make([]DeviceID, len(registry))
	for i, e := range registry {
		ids[i] = e.ID
	}
	return ids
}

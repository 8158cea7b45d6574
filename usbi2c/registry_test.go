package usbi2c

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		vendorID  uint16
		productID uint16
		name      string
		hid       bool
	}{
		{0x1a86, 0x5512, "CH341", false},
		{0x10c4, 0xea90, "CP2112", true},
		{0x0403, 0x6030, "FT260", true},
		{0x0403, 0x6014, "FT232H", false},
		{0x0403, 0xc631, "TinyUSB", false},
	}
	for _, tt := range tests {
		e, ok := Lookup(tt.vendorID, tt.productID)
		if !ok {
			t.Errorf("Lookup(%04x:%04x) not found", tt.vendorID, tt.productID)
			continue
		}
		if e.Name != tt.name || e.HID != tt.hid {
			t.Errorf("Lookup(%04x:%04x) = %q HID=%v, want %q HID=%v",
				tt.vendorID, tt.productID, e.Name, e.HID, tt.name, tt.hid)
		}

		a := e.New(&fakeTransport{}, Config{})
		if a.Name() != tt.name {
			t.Errorf("constructor for %q built %q", tt.name, a.Name())
		}
		if a.ID() == "" {
			t.Errorf("adapter %q has no ID", tt.name)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup(0x0403, 0x6001); ok {
		t.Errorf("Lookup found an entry for a plain FT232R")
	}
}

func TestSupportedDevices(t *testing.T) {
	ids := SupportedDevices()
	if len(ids) != len(registry) {
		t.Fatalf("SupportedDevices length = %d, want %d", len(ids), len(registry))
	}
	for _, id := range ids {
		if _, ok := Lookup(id.VendorID, id.ProductID); !ok {
			t.Errorf("SupportedDevices entry %04x:%04x not resolvable", id.VendorID, id.ProductID)
		}
	}
}

func TestAddressReserved(t *testing.T) {
	for address := byte(0x00); address <= 0x07; address++ {
		if !AddressReserved(address) {
			t.Errorf("AddressReserved(%#02x) = false", address)
		}
	}
	for address := byte(0x08); address <= 0x77; address++ {
		if AddressReserved(address) {
			t.Errorf("AddressReserved(%#02x) = true", address)
		}
	}
	for address := byte(0x78); address <= 0x7F; address++ {
		if !AddressReserved(address) {
			t.Errorf("AddressReserved(%#02x) = false", address)
		}
	}
}

func TestKnownDeviceName(t *testing.T) {
	if name := KnownDeviceName(0x50); name != "AT24 EEPROM" {
		t.Errorf("KnownDeviceName(0x50) = %q", name)
	}
	if name := KnownDeviceName(0xD0); name != "AT24 EEPROM" {
		t.Errorf("KnownDeviceName masks the top bit: got %q", name)
	}
	if name := KnownDeviceName(0x09); name != "" {
		t.Errorf("KnownDeviceName(0x09) = %q, want empty", name)
	}
}

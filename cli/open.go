package main

import (
	"fmt"
	"os"

	"github.com/3cky/usbi2c/usbi2c"
	"github.com/3cky/usbi2c/usbtransport"
	"github.com/google/gousb"
	"github.com/sstallion/go-hid"
)

// Kept for the process lifetime: closing the context invalidates the
// devices opened through it.
var usbContext *gousb.Context

func adapterConfig() usbi2c.Config {
	return usbi2c.Config{
		ClockSpeed: CLI.Speed,

		LogFunc: func(level int, format string, param ...interface{}) {
			if level > CLI.LogLevel {
				return
			}
			str := fmt.Sprintf(format, param...)
			fmt.Printf("I2C(%d): %s\n", level, str)
		},
	}
}

func deviceWanted(vid, pid uint16) (usbi2c.Entry, bool) {
	entry, ok := usbi2c.Lookup(vid, pid)
	if !ok {
		return entry, false
	}
	if CLI.VID != 0 && uint16(CLI.VID) != vid {
		return entry, false
	}
	if CLI.PID != 0 && uint16(CLI.PID) != pid {
		return entry, false
	}
	return entry, true
}

// OpenAdapter finds the first supported bridge chip matching the VID,
// PID and serial filters and returns an opened adapter for it.
func OpenAdapter() (usbi2c.Adapter, error) {
	entry, tr, err := openTransport()
	if err != nil {
		return nil, err
	}

	adapter := entry.New(tr, adapterConfig())
	if err := adapter.Open(); err != nil {
		tr.Close()
		return nil, err
	}
	return adapter, nil
}

func openTransport() (usbi2c.Entry, usbtransport.Transport, error) {
	// HID class bridges are owned by the OS HID driver, so they must be
	// reached through hidapi. Try that enumeration first.
	if entry, tr, err := openHIDTransport(); err != nil {
		return usbi2c.Entry{}, nil, err
	} else if tr != nil {
		return entry, tr, nil
	}
	return openUSBTransport()
}

func openHIDTransport() (usbi2c.Entry, usbtransport.Transport, error) {
	var found *hid.DeviceInfo
	var entry usbi2c.Entry
	hid.Enumerate(uint16(CLI.VID), uint16(CLI.PID), func(info *hid.DeviceInfo) error {
		if found != nil {
			return nil
		}
		if CLI.Serial != "" && info.SerialNbr != CLI.Serial {
			return nil
		}
		e, ok := deviceWanted(info.VendorID, info.ProductID)
		if !ok || !e.HID {
			return nil
		}
		found, entry = info, e
		return nil
	})
	if found == nil {
		return usbi2c.Entry{}, nil, nil
	}

	tr, err := usbtransport.OpenHID(found.VendorID, found.ProductID, found.SerialNbr)
	if err != nil {
		return usbi2c.Entry{}, nil, err
	}
	return entry, tr, nil
}

func openUSBTransport() (usbi2c.Entry, usbtransport.Transport, error) {
	if usbContext == nil {
		usbContext = gousb.NewContext()
	}

	devs, err := usbContext.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		entry, ok := deviceWanted(uint16(desc.Vendor), uint16(desc.Product))
		return ok && !entry.HID
	})
	if err != nil {
		for _, dev := range devs {
			dev.Close()
		}
		return usbi2c.Entry{}, nil, err
	}

	var picked *gousb.Device
	for _, dev := range devs {
		if picked != nil {
			dev.Close()
			continue
		}
		if CLI.Serial != "" {
			serial, err := dev.SerialNumber()
			if err != nil || serial != CLI.Serial {
				dev.Close()
				continue
			}
		}
		picked = dev
	}
	if picked == nil {
		return usbi2c.Entry{}, nil, os.ErrNotExist
	}

	entry, _ := usbi2c.Lookup(uint16(picked.Desc.Vendor), uint16(picked.Desc.Product))
	tr, err := usbtransport.OpenUSB(picked)
	if err != nil {
		picked.Close()
		return usbi2c.Entry{}, nil, err
	}
	return entry, tr, nil
}

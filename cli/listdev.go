package main

import (
	"fmt"

	"github.com/3cky/usbi2c/usbi2c"
	"github.com/google/gousb"
	"github.com/sstallion/go-hid"
)

type ListDevCmd struct {
}

func (l *ListDevCmd) Run(c *Context) error {
	hid.Enumerate(uint16(CLI.VID), uint16(CLI.PID), func(info *hid.DeviceInfo) error {
		entry, ok := usbi2c.Lookup(info.VendorID, info.ProductID)
		if !ok || !entry.HID {
			return nil
		}
		fmt.Printf("%s: ID %04x:%04x %s (%s %s)\n",
			info.Path, info.VendorID, info.ProductID, entry.Name, info.MfrStr, info.ProductStr)
		if info.SerialNbr != "" {
			fmt.Printf("\tSerialNbr %s\n", info.SerialNbr)
		}
		return nil
	})

	if usbContext == nil {
		usbContext = gousb.NewContext()
	}
	devs, err := usbContext.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		entry, ok := usbi2c.Lookup(uint16(desc.Vendor), uint16(desc.Product))
		return ok && !entry.HID
	})
	for _, dev := range devs {
		entry, _ := usbi2c.Lookup(uint16(dev.Desc.Vendor), uint16(dev.Desc.Product))
		fmt.Printf("bus %03d addr %03d: ID %s:%s %s\n",
			dev.Desc.Bus, dev.Desc.Address, dev.Desc.Vendor, dev.Desc.Product, entry.Name)
		dev.Close()
	}
	return err
}

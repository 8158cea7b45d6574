package main

import (
	"fmt"

	"github.com/3cky/usbi2c/usbi2c"
	"github.com/fatih/color"
)

type ScanCmd struct {
	Names bool `optional help:"List well known part names for discovered addresses." default:"true"`
}

func (l *ScanCmd) Run(c *Context) error {
	green := color.New(color.FgGreen)

	var found []byte
	fmt.Printf("Detected I2C devices:\r\n   ")
	for i := 0; i < 16; i++ {
		fmt.Printf("%02X ", i)
	}
	for i := byte(0); i < 0x80; i++ {
		if i&15 == 0 {
			fmt.Printf("\r\n%02x ", i)
		}

		if usbi2c.AddressReserved(i) {
			fmt.Printf("   ")
			continue
		}

		present, err := probeAddress(c.adapter, i)
		if err != nil {
			return err
		}
		if present {
			green.Printf("%02X ", i)
			found = append(found, i)
		} else {
			fmt.Printf("-- ")
		}
	}
	fmt.Println()

	if l.Names {
		for _, i := range found {
			if name := usbi2c.KnownDeviceName(i); name != "" {
				fmt.Printf("0x%02x: possibly %s\n", i, name)
			}
		}
	}
	return nil
}

// probeAddress addresses a slave with a one byte read. Every supported
// chip reports a NACKed address as an error, so any failed probe counts
// as an absent device, the way i2cdetect does it.
func probeAddress(adapter usbi2c.Adapter, address byte) (bool, error) {
	dev, err := adapter.Device(address)
	if err != nil {
		return false, err
	}

	var probe [1]byte
	if err := dev.Read(probe[:]); err != nil {
		return false, nil
	}
	return true, nil
}

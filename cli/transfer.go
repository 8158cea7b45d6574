package main

import (
	"encoding/hex"
	"fmt"
)

type TransferCmd struct {
	Addr int `arg name:"addr" help:"I2C device address" type:"hex"`

	Write string `optional help:"Hex string to write to device"`
	Read  int    `optional help:"Number of bytes to read back"`
}

func (l *TransferCmd) Run(c *Context) error {
	wrBuf, err := hex.DecodeString(l.Write)
	if err != nil {
		return err
	}

	dev, err := c.adapter.Device(byte(l.Addr))
	if err != nil {
		return err
	}

	if len(wrBuf) > 0 {
		if err := dev.Write(wrBuf); err != nil {
			return err
		}
	}

	if l.Read > 0 {
		rdBuf := make([]byte, l.Read)
		if err := dev.Read(rdBuf); err != nil {
			return err
		}
		fmt.Println(hexdump(0, rdBuf, nil))
	}
	return nil
}

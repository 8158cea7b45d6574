package main

import (
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/sigurn/crc16"
)

type EEPROMDumpCmd struct {
	Addr      int `optional help:"I2C device address of the EEPROM." type:"hex" default:"50"`
	Size      int `optional help:"EEPROM size in bytes." default:"256"`
	ChunkSize int `optional help:"Read chunk size in bytes." default:"16"`

	Filename string `arg name:"filename" help:"File to write dump to."`
}

// Run dumps an AT24 style EEPROM with one byte addressing: each chunk is
// a register read starting at the chunk offset. The CRC printed at the
// end is a quick fingerprint for comparing dumps.
func (l *EEPROMDumpCmd) Run(c *Context) error {
	if l.Size < 1 || l.Size > 0x100 {
		return errors.New("Size out of range for one byte addressing")
	}
	if l.ChunkSize < 1 {
		return errors.New("Chunk size out of range")
	}

	dev, err := c.adapter.Device(byte(l.Addr))
	if err != nil {
		return err
	}

	buf := make([]byte, l.Size)
	for offset := 0; offset < l.Size; offset += l.ChunkSize {
		end := offset + l.ChunkSize
		if end > l.Size {
			end = l.Size
		}
		if err := dev.ReadRegBuffer(byte(offset), buf[offset:end]); err != nil {
			return fmt.Errorf("Read error at 0x%02x: %s", offset, err.Error())
		}
	}

	if err := ioutil.WriteFile(l.Filename, buf, 0644); err != nil {
		return err
	}

	crcTab := crc16.MakeTable(crc16.CRC16_XMODEM)
	fmt.Printf("Wrote %d bytes to %s, CRC16 %04x.\n",
		l.Size, l.Filename, crc16.Checksum(buf, crcTab))
	return nil
}

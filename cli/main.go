package main

import (
	"fmt"
	"os"

	"github.com/3cky/usbi2c/usbi2c"
	"github.com/alecthomas/kong"
	"github.com/sstallion/go-hid"
)

type Context struct {
	adapter usbi2c.Adapter
}

var CLI struct {
	VID      int    `optional type:"hex" help:"The USB Vendor ID."`
	PID      int    `optional type:"hex" help:"The USB Product ID."`
	Serial   string `optional help:"The USB Serial."`
	LogLevel int    `optional help:"Higher values give more output."`

	Speed int `optional help:"I2C bus clock in Hz." default:"100000"`

	ListDev ListDevCmd `cmd help:"List supported bridge devices."`

	I2CScan     ScanCmd     `cmd name:"i2c-scan" help:"Scan I2C bus and show discovered devices."`
	I2CTransfer TransferCmd `cmd name:"i2c-txfr" help:"Perform I2C transfer."`

	RegRead  RegReadCmd  `cmd name:"reg-read" help:"Read and dump device registers."`
	RegWrite RegWriteCmd `cmd name:"reg-write" help:"Write value to device register."`

	EEPROMDump EEPROMDumpCmd `cmd name:"eeprom-dump" help:"Dump AT24 style EEPROM contents to file."`
}

func main() {
	k, err := kong.New(&CLI,
		kong.NamedMapper("int", numMapper{}),
		kong.NamedMapper("hex", numMapper{base: 16}))
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, err := k.Parse(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		return
	}

	hid.Init()
	defer hid.Exit()

	c := &Context{}
	if ctx.Command() != "list-dev" {
		adapter, err := OpenAdapter()
		if err != nil {
			fmt.Println("Failed to open device", err)
			return
		}
		defer adapter.Close()

		c.adapter = adapter
	}

	err = ctx.Run(c)
	ctx.FatalIfErrorf(err)
}

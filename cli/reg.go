package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/inancgumus/screen"
)

type RegReadCmd struct {
	Loop     int    `optional help:"0=Perform once, 1=Mark changes since start, 2=Mark changes since previous iteration."`
	Filename string `optional help:"File to write dump to."`

	Addr   int `arg name:"addr" help:"I2C device address" type:"hex"`
	Reg    int `arg name:"reg" help:"First register to read" type:"hex"`
	Amount int `arg name:"amount" help:"Number of registers to read." optional default:"1"`
}

func (l *RegReadCmd) Run(c *Context) error {
	if l.Loop < 0 || l.Loop > 2 {
		return errors.New("Loop flag out of range")
	}
	if l.Amount < 1 || l.Reg+l.Amount > 0x100 {
		return errors.New("Register range out of bounds")
	}

	dev, err := c.adapter.Device(byte(l.Addr))
	if err != nil {
		return err
	}

	var oldBuf []byte
	var mark []bool
	for {
		startTime := time.Now()
		if l.Loop == 2 || mark == nil {
			mark = make([]bool, l.Amount)
		}

		buf := make([]byte, l.Amount)
		if err := dev.ReadRegBuffer(byte(l.Reg), buf); err != nil {
			return fmt.Errorf("Read error: %s", err.Error())
		}

		if l.Filename != "" {
			return ioutil.WriteFile(l.Filename, buf, 0644)
		}

		if l.Amount == 1 {
			fmt.Printf("0x%02x\n", buf[0])
		} else {
			if l.Loop != 0 {
				screen.Clear()
				screen.MoveTopLeft()
				if oldBuf != nil {
					for i, m := range oldBuf {
						if m != buf[i] {
							mark[i] = true
						}
					}
				}
			}
			fmt.Println(hexdump(l.Reg, buf, mark))
		}

		oldBuf = buf

		if l.Loop == 0 {
			break
		}
		d := time.Now().Sub(startTime)
		td := 200 * time.Millisecond
		if d < td {
			time.Sleep(td - d)
		}
	}

	return nil
}

type RegWriteCmd struct {
	Addr  int `arg name:"addr" help:"I2C device address" type:"hex"`
	Reg   int `arg name:"reg" help:"Register to write" type:"hex"`
	Value int `arg name:"value" help:"Value to write." type:"hex"`
}

func (w RegWriteCmd) Run(c *Context) error {
	dev, err := c.adapter.Device(byte(w.Addr))
	if err != nil {
		return err
	}
	return dev.WriteRegByte(byte(w.Reg), byte(w.Value))
}

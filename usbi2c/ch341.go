package usbi2c

import (
	"fmt"

	"github.com/3cky/usbi2c/usbtransport"
)

// CH341 command stream markers. A logical I2C transaction is one bulk
// frame: STREAM, then START/STOP conditions, OUT payload and IN byte
// markers, terminated by END.
const (
	ch341CmdStream byte = 0xAA

	ch341StreamStart byte = 0x74
	ch341StreamStop  byte = 0x75
	ch341StreamOut   byte = 0x80
	ch341StreamIn    byte = 0xC0
	ch341StreamSet   byte = 0x60
	ch341StreamEnd   byte = 0x00
)

// Chip clock speed selectors, ORed into the SET marker.
const (
	ch341SpeedLow      = 0 // 20 kHz
	ch341SpeedStandard = 1 // 100 kHz
	ch341SpeedFast     = 2 // 400 kHz
	ch341SpeedHigh     = 3 // 750 kHz
)

const (
	ch341MaxTransfer = 32
	// Six bytes of a data frame are protocol overhead: STREAM, START,
	// OUT marker, address, STOP, END.
	ch341MaxPayload = ch341MaxTransfer - 6
)

// CH341 drives the WCH CH341 USB bridge in I2C stream mode. Commands and
// responses are raw bulk transfers; the chip echoes read data with no
// framing, so the only status available is the per-byte ACK flag of the
// presence probe.
type CH341 struct {
	session

	wbuf [ch341MaxTransfer]byte
	rbuf [ch341MaxTransfer]byte
}

func NewCH341(tr usbtransport.Transport, cfg Config) *CH341 {
	a := &CH341{}
	a.session.init(tr, cfg, "CH341", "ch341")
	a.session.configure = a.configureLocked
	a.session.supported = ch341SpeedSupported
	return a
}

func ch341SpeedSupported(speed int) bool {
	return ch341SpeedCode(speed) >= 0
}

func ch341SpeedCode(speed int) int {
	switch speed {
	case 20000:
		return ch341SpeedLow
	case ClockSpeedStandard:
		return ch341SpeedStandard
	case ClockSpeedFast:
		return ch341SpeedFast
	case 750000:
		return ch341SpeedHigh
	}
	return -1
}

func (a *CH341) Device(address byte) (*Device, error) {
	return a.session.device(a, address)
}

func (a *CH341) configureLocked() error {
	a.wbuf[0] = ch341CmdStream
	a.wbuf[1] = ch341StreamSet | byte(ch341SpeedCode(a.clockSpeed))
	a.wbuf[2] = ch341StreamEnd
	return a.bulkWrite(a.wbuf[:3])
}

func (a *CH341) writeData(address byte, data []byte) error {
	if err := checkDataLength(len(data), ch341MaxPayload); err != nil {
		return err
	}

	i := 0
	a.wbuf[i] = ch341CmdStream
	i++
	a.wbuf[i] = ch341StreamStart
	i++
	a.wbuf[i] = ch341StreamOut | byte(len(data)+1) // address byte included
	i++
	a.wbuf[i] = addressByte(address, false)
	i++
	i += copy(a.wbuf[i:], data)
	a.wbuf[i] = ch341StreamStop
	i++
	a.wbuf[i] = ch341StreamEnd
	i++
	return a.bulkWrite(a.wbuf[:i])
}

func (a *CH341) readData(address byte, buf []byte) error {
	if err := checkDataLength(len(buf), ch341MaxPayload); err != nil {
		return err
	}

	// Probe first: the chip happily clocks in garbage from an absent
	// slave, which would show up as phantom devices in scans.
	if err := a.checkPresence(address); err != nil {
		return err
	}
	return a.readInto(address, buf)
}

func (a *CH341) readRegData(address byte, reg byte, buf []byte) error {
	if err := checkDataLength(len(buf), ch341MaxPayload); err != nil {
		return err
	}

	// Write the register address, then read in a separate frame.
	i := 0
	a.wbuf[i] = ch341CmdStream
	i++
	a.wbuf[i] = ch341StreamStart
	i++
	a.wbuf[i] = ch341StreamOut | 2
	i++
	a.wbuf[i] = addressByte(address, false)
	i++
	a.wbuf[i] = reg
	i++
	if err := a.bulkWrite(a.wbuf[:i]); err != nil {
		return err
	}
	return a.readInto(address, buf)
}

// readInto issues one read frame: address with the read flag, one IN
// marker per byte with the last one terminal, then STOP.
func (a *CH341) readInto(address byte, buf []byte) error {
	i := 0
	a.wbuf[i] = ch341CmdStream
	i++
	a.wbuf[i] = ch341StreamStart
	i++
	a.wbuf[i] = ch341StreamOut | 1
	i++
	a.wbuf[i] = addressByte(address, true)
	i++
	for j := 0; j < len(buf)-1; j++ {
		a.wbuf[i] = ch341StreamIn | 1
		i++
	}
	if len(buf) > 0 {
		a.wbuf[i] = ch341StreamIn
		i++
	}
	a.wbuf[i] = ch341StreamStop
	i++
	a.wbuf[i] = ch341StreamEnd
	i++
	if err := a.bulkWrite(a.wbuf[:i]); err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}

	n, err := a.bulkRead(a.rbuf[:])
	if err != nil {
		return err
	}
	if n < len(buf) {
		return fmt.Errorf("%w: read %d of %d byte(s) from 0x%02x",
			ErrorTransport, n, len(buf), address)
	}
	copy(buf, a.rbuf[:len(buf)])
	return nil
}

// checkPresence addresses the slave for a zero length read. The chip
// reports the ACK state in the top bit of the returned status byte.
func (a *CH341) checkPresence(address byte) error {
	i := 0
	a.wbuf[i] = ch341CmdStream
	i++
	a.wbuf[i] = ch341StreamStart
	i++
	a.wbuf[i] = ch341StreamOut
	i++
	a.wbuf[i] = addressByte(address, true)
	i++
	a.wbuf[i] = ch341StreamStop
	i++
	a.wbuf[i] = ch341StreamEnd
	i++
	if err := a.bulkWrite(a.wbuf[:i]); err != nil {
		return err
	}

	n, err := a.bulkRead(a.rbuf[:])
	if err != nil {
		return err
	}
	if n <= 0 || a.rbuf[0]&0x80 != 0 {
		return fmt.Errorf("%w: 0x%02x", ErrorNoDevice, address)
	}
	return nil
}

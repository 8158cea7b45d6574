package usbi2c

import (
	"fmt"

	"github.com/3cky/usbi2c/usbtransport"
)

// I2C-Tiny-USB firmware commands. The command code carries the
// begin/end-of-transaction flags, the control transfer value the
// direction flag and the index the slave address; payload travels in
// the data stage with no further framing.
const (
	tinyUsbCmdI2CIO byte = 4

	tinyUsbIOBegin byte = 1
	tinyUsbIOEnd   byte = 1 << 1

	// Linux kernel i2c message flag: read, slave to master.
	tinyUsbFlagRead uint16 = 0x01
)

// One control transfer moves the whole payload; the firmware buffers it
// in RAM, so keep requests modest.
const tinyUsbMaxTransfer = 2048

// TinyUSB drives the I2C-Tiny-USB family of AVR firmware bridges. It is
// the simplest protocol of the lot: the whole logical operation maps to
// one or two vendor control transfers, and errors surface as failed or
// short transfers.
type TinyUSB struct {
	session
}

func NewTinyUSB(tr usbtransport.Transport, cfg Config) *TinyUSB {
	a := &TinyUSB{}
	a.session.init(tr, cfg, "TinyUSB", "i2c-tiny-usb")
	a.session.configure = func() error { return nil }
	a.session.supported = func(speed int) bool { return speed == ClockSpeedStandard }
	return a
}

func (a *TinyUSB) Device(address byte) (*Device, error) {
	return a.session.device(a, address)
}

func (a *TinyUSB) writeData(address byte, data []byte) error {
	if err := checkDataLength(len(data), tinyUsbMaxTransfer); err != nil {
		return err
	}
	return a.usbWrite(tinyUsbCmdI2CIO|tinyUsbIOBegin|tinyUsbIOEnd, 0, address, data)
}

func (a *TinyUSB) readData(address byte, buf []byte) error {
	if err := checkDataLength(len(buf), tinyUsbMaxTransfer); err != nil {
		return err
	}
	return a.usbRead(tinyUsbCmdI2CIO|tinyUsbIOBegin|tinyUsbIOEnd, tinyUsbFlagRead, address, buf)
}

func (a *TinyUSB) readRegData(address byte, reg byte, buf []byte) error {
	if err := checkDataLength(len(buf), tinyUsbMaxTransfer); err != nil {
		return err
	}

	// Both control transfers belong to the same bus transaction: the
	// register write opens it, the read closes it.
	if err := a.usbWrite(tinyUsbCmdI2CIO|tinyUsbIOBegin, 0, address, []byte{reg}); err != nil {
		return err
	}
	return a.usbRead(tinyUsbCmdI2CIO|tinyUsbIOEnd, tinyUsbFlagRead, address, buf)
}

func (a *TinyUSB) usbWrite(cmd byte, value uint16, address byte, data []byte) error {
	err := a.controlWrite(
		usbtransport.TypeVendor|usbtransport.RecipInterface|usbtransport.DirOut,
		cmd, value, uint16(address), data)
	return tinyUsbWrapAbsent(err, address)
}

func (a *TinyUSB) usbRead(cmd byte, value uint16, address byte, buf []byte) error {
	err := a.controlRead(
		usbtransport.TypeVendor|usbtransport.RecipInterface|usbtransport.DirIn,
		cmd, value, uint16(address), buf)
	return tinyUsbWrapAbsent(err, address)
}

// tinyUsbWrapAbsent keeps scan diagnostics readable: the firmware
// reports a NACKed address as a failed control transfer, which is the
// expected outcome while probing.
func tinyUsbWrapAbsent(err error, address byte) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("address 0x%02x: %w", address, err)
}

package usbi2c

import (
	"fmt"

	"github.com/3cky/usbi2c/usbtransport"
)

// FT260 report IDs. Data reports are sized in 4-byte steps, with the
// report ID selecting the size bucket.
const (
	ft260ReportChipVersion    byte = 0xA0
	ft260ReportSystemSettings byte = 0xA1
	ft260ReportI2CStatus      byte = 0xC0
	ft260ReportI2CReadRequest byte = 0xC2
	ft260ReportI2CDataMin     byte = 0xD0
	ft260ReportI2CDataMax     byte = 0xDE
)

// System settings requests.
const (
	ft260RequestI2CReset         byte = 0x20
	ft260RequestI2CSetClockSpeed byte = 0x22
)

// Feature report sizes, report ID included.
const (
	ft260ReportSizeChipVersion  = 13
	ft260ReportSizeSystemStatus = 25
	ft260ReportSizeI2CStatus    = 5
)

// Transaction condition flags of read requests and data reports.
const (
	ft260FlagNone              byte = 0x00
	ft260FlagStart             byte = 0x02
	ft260FlagRepeatedStart     byte = 0x03
	ft260FlagStop              byte = 0x04
	ft260FlagStartStop         byte = 0x06
	ft260FlagStartStopRepeated byte = 0x07
)

// I2C status report bus condition bits.
const (
	ft260StatusControllerBusy byte = 0x01
	ft260StatusError          byte = 0x02
)

const (
	// One data report carries at most 60 payload bytes; longer writes
	// are chunked with continuation flags.
	ft260MaxChunkLength = 60
	// Ceiling for one logical transfer in either direction.
	ft260MaxDataLength = 8192

	ft260MinClockSpeed = 60000
	ft260MaxClockSpeed = ClockSpeedHigh
)

// FT260 drives the FTDI FT260 HID I2C bridge. Unlike the CP2112 the
// status lives in a feature report, and writes longer than one report
// are chunked on the host with explicit START/STOP flags per chunk.
type FT260 struct {
	session

	buf [hidMaxReportSize]byte
}

func NewFT260(tr usbtransport.Transport, cfg Config) *FT260 {
	a := &FT260{}
	a.session.init(tr, cfg, "FT260", "ft260")
	a.session.configure = a.configureLocked
	a.session.initialize = a.initLocked
	a.session.shutdown = a.resetI2CMaster
	a.session.supported = ft260SpeedSupported
	return a
}

func ft260SpeedSupported(speed int) bool {
	return speed >= ft260MinClockSpeed && speed <= ft260MaxClockSpeed
}

func (a *FT260) Device(address byte) (*Device, error) {
	return a.session.device(a, address)
}

func (a *FT260) initLocked() error {
	if err := a.probe(); err != nil {
		return err
	}
	return a.configureLocked()
}

// probe verifies the chip identity and that the DCNF0/DCNF1 pins have
// the I2C interface enabled at all.
func (a *FT260) probe() error {
	if err := a.getFeatureReport(ft260ReportChipVersion, a.buf[:ft260ReportSizeChipVersion]); err != nil {
		return err
	}
	if a.buf[1] != 0x02 || a.buf[2] != 0x60 {
		return fmt.Errorf("%w: unknown chip code %02x%02x", ErrorProtocol, a.buf[1], a.buf[2])
	}

	if err := a.getFeatureReport(ft260ReportSystemSettings, a.buf[:ft260ReportSizeSystemStatus]); err != nil {
		return err
	}
	// I2C is routed out when both DCNF pins are low or DCNF0 is high.
	if mode := a.buf[1]; mode != 0 && mode&0x01 == 0 {
		return fmt.Errorf("%w: I2C interface disabled by DCNF pins (mode 0x%02x)", ErrorProtocol, mode)
	}
	return nil
}

func (a *FT260) configureLocked() error {
	if err := a.resetI2CMaster(); err != nil {
		return err
	}

	kHz := a.clockSpeed / 1000
	a.buf[0] = ft260ReportSystemSettings
	a.buf[1] = ft260RequestI2CSetClockSpeed
	a.buf[2] = byte(kHz)
	a.buf[3] = byte(kHz >> 8)
	return a.setFeatureReport(a.buf[:4])
}

func (a *FT260) writeData(address byte, data []byte) error {
	if err := checkDataLength(len(data), ft260MaxDataLength); err != nil {
		return err
	}

	sent := 0
	for sent < len(data) || len(data) == 0 {
		chunk := len(data) - sent
		if chunk > ft260MaxChunkLength {
			chunk = ft260MaxChunkLength
		}

		flag := ft260FlagNone
		switch {
		case sent == 0 && sent+chunk == len(data):
			flag = ft260FlagStartStop
		case sent == 0:
			flag = ft260FlagStart
		case sent+chunk == len(data):
			flag = ft260FlagStop
		}

		reportID := ft260ReportI2CDataMin
		if chunk > 0 {
			reportID += byte((chunk - 1) / 4)
		}
		a.buf[0] = reportID
		a.buf[1] = address
		a.buf[2] = flag
		a.buf[3] = byte(chunk)
		copy(a.buf[4:], data[sent:sent+chunk])
		if err := a.sendDataReport(a.buf[:4+chunk]); err != nil {
			return err
		}
		sent += chunk

		if err := a.checkTransferStatus(address); err != nil {
			return err
		}
		if len(data) == 0 {
			break
		}
	}
	return nil
}

func (a *FT260) readData(address byte, buf []byte) error {
	if err := checkDataLength(len(buf), ft260MaxDataLength); err != nil {
		return err
	}

	if err := a.sendReadRequest(address, ft260FlagStartStop, len(buf)); err != nil {
		return err
	}
	if err := a.readDataFully(buf); err != nil {
		return err
	}
	return a.checkTransferStatus(address)
}

func (a *FT260) readRegData(address byte, reg byte, buf []byte) error {
	if err := checkDataLength(len(buf), ft260MaxDataLength); err != nil {
		return err
	}

	// Register address write with START only, holding the transaction
	// open for the repeated-start read.
	a.buf[0] = ft260ReportI2CDataMin
	a.buf[1] = address
	a.buf[2] = ft260FlagStart
	a.buf[3] = 0x01
	a.buf[4] = reg
	if err := a.sendDataReport(a.buf[:5]); err != nil {
		return err
	}
	if err := a.checkTransferStatus(address); err != nil {
		return err
	}

	if err := a.sendReadRequest(address, ft260FlagStartStopRepeated, len(buf)); err != nil {
		return err
	}
	if err := a.readDataFully(buf); err != nil {
		return err
	}
	return a.checkTransferStatus(address)
}

func (a *FT260) sendReadRequest(address byte, flag byte, length int) error {
	a.buf[0] = ft260ReportI2CReadRequest
	a.buf[1] = address
	a.buf[2] = flag
	a.buf[3] = byte(length)
	a.buf[4] = byte(length >> 8)
	return a.sendDataReport(a.buf[:5])
}

func (a *FT260) readDataFully(buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := a.readDataReport(a.buf[:], a.cfg.TransferTimeout); err != nil {
			return err
		}

		if a.buf[0] < ft260ReportI2CDataMin || a.buf[0] > ft260ReportI2CDataMax {
			return fmt.Errorf("%w: unexpected data read report ID 0x%02x", ErrorProtocol, a.buf[0])
		}

		chunk := int(a.buf[1])
		if chunk > len(buf)-read {
			return fmt.Errorf("%w: chunk of %d byte(s) exceeds %d remaining",
				ErrorProtocol, chunk, len(buf)-read)
		}
		copy(buf[read:], a.buf[2:2+chunk])
		read += chunk
	}
	return nil
}

func (a *FT260) checkTransferStatus(address byte) error {
	for try := 0; try < a.cfg.StatusRetries; try++ {
		if err := a.getFeatureReport(ft260ReportI2CStatus, a.buf[:ft260ReportSizeI2CStatus]); err != nil {
			return err
		}

		status := a.buf[1]
		if status&ft260StatusControllerBusy != 0 {
			a.logf(2, "FT260: controller busy for 0x%02x, try %d", address, try+1)
			continue
		}
		if status&ft260StatusError != 0 {
			return fmt.Errorf("%w: transfer to 0x%02x failed, bus status 0x%02x",
				ErrorProtocol, address, status)
		}
		return nil
	}

	if err := a.resetI2CMaster(); err != nil {
		a.logf(1, "FT260: reset after status retries failed: %v", err)
	}
	return fmt.Errorf("%w: 0x%02x still busy after %d status poll(s)",
		ErrorTimeout, address, a.cfg.StatusRetries)
}

func (a *FT260) resetI2CMaster() error {
	a.buf[0] = ft260ReportSystemSettings
	a.buf[1] = ft260RequestI2CReset
	return a.setFeatureReport(a.buf[:2])
}

package usbi2c

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/3cky/usbi2c/usbtransport"
)

// CP2112 report IDs.
const (
	cp2112ReportSMBusConfig    byte = 0x06
	cp2112ReportReadRequest    byte = 0x10
	cp2112ReportWriteReadReq   byte = 0x11
	cp2112ReportReadForceSend  byte = 0x12
	cp2112ReportReadResponse   byte = 0x13
	cp2112ReportWriteRequest   byte = 0x14
	cp2112ReportStatusRequest  byte = 0x15
	cp2112ReportStatusResponse byte = 0x16
	cp2112ReportCancelTransfer byte = 0x17
)

// SMBus configuration feature report layout (report ID included).
const (
	cp2112SMBusConfigSize        = 14
	cp2112SMBusConfigClockOffset = 1
	cp2112SMBusConfigRetryOffset = 12
)

// Transfer status codes reported in status responses.
const (
	cp2112StatusIdle     byte = 0x00
	cp2112StatusBusy     byte = 0x01
	cp2112StatusComplete byte = 0x02
	cp2112StatusError    byte = 0x03
)

const (
	// One write request report carries at most 61 payload bytes.
	cp2112MaxWriteLength = 61
	// Reads are chunked by the chip and may span multiple reports.
	cp2112MaxReadLength = 512

	cp2112MinClockSpeed = 10000
	cp2112MaxClockSpeed = ClockSpeedHigh

	// Short timeout used when draining stale reports on open: an empty
	// interrupt queue is the expected case.
	cp2112DrainTimeout = 5 * time.Millisecond
)

// CP2112 drives the Silicon Labs CP2112 HID SMBus bridge. Transfers are
// asynchronous on the chip side: each write or read request is followed
// by transfer status polling, and read data is pulled with force-send
// round trips until the requested byte count arrives.
type CP2112 struct {
	session

	buf [hidMaxReportSize]byte
}

func NewCP2112(tr usbtransport.Transport, cfg Config) *CP2112 {
	a := &CP2112{}
	a.session.init(tr, cfg, "CP2112", "cp2112")
	a.session.configure = a.configureLocked
	a.session.initialize = a.initLocked
	a.session.shutdown = a.cancelTransfer
	a.session.supported = cp2112SpeedSupported
	return a
}

func cp2112SpeedSupported(speed int) bool {
	return speed >= cp2112MinClockSpeed && speed <= cp2112MaxClockSpeed
}

func (a *CP2112) Device(address byte) (*Device, error) {
	return a.session.device(a, address)
}

func (a *CP2112) initLocked() error {
	if err := a.configureLocked(); err != nil {
		return err
	}
	// A crashed session may have left data reports queued and a
	// transfer pending on the chip.
	return a.drainPendingReports()
}

func (a *CP2112) configureLocked() error {
	if err := a.getFeatureReport(cp2112ReportSMBusConfig, a.buf[:cp2112SMBusConfigSize]); err != nil {
		return err
	}

	// Not every transport echoes the report ID in the response.
	a.buf[0] = cp2112ReportSMBusConfig
	binary.BigEndian.PutUint32(a.buf[cp2112SMBusConfigClockOffset:], uint32(a.clockSpeed))

	// Bound chip-side address retries; zero means retry forever.
	a.buf[cp2112SMBusConfigRetryOffset] = 0x00
	a.buf[cp2112SMBusConfigRetryOffset+1] = 0x01

	return a.setFeatureReport(a.buf[:cp2112SMBusConfigSize])
}

func (a *CP2112) writeData(address byte, data []byte) error {
	if err := checkDataLength(len(data), cp2112MaxWriteLength); err != nil {
		return err
	}

	a.buf[0] = cp2112ReportWriteRequest
	a.buf[1] = addressByte(address, false)
	a.buf[2] = byte(len(data))
	copy(a.buf[3:], data)
	if err := a.sendDataReport(a.buf[:len(data)+3]); err != nil {
		return err
	}
	return a.waitTransferComplete(address)
}

func (a *CP2112) readData(address byte, buf []byte) error {
	if err := checkDataLength(len(buf), cp2112MaxReadLength); err != nil {
		return err
	}

	a.buf[0] = cp2112ReportReadRequest
	a.buf[1] = addressByte(address, false) // read flag not required
	binary.BigEndian.PutUint16(a.buf[2:], uint16(len(buf)))
	if err := a.sendDataReport(a.buf[:4]); err != nil {
		return err
	}
	if err := a.waitTransferComplete(address); err != nil {
		return err
	}
	return a.readDataFully(address, buf)
}

func (a *CP2112) readRegData(address byte, reg byte, buf []byte) error {
	if err := checkDataLength(len(buf), cp2112MaxReadLength); err != nil {
		return err
	}

	a.buf[0] = cp2112ReportWriteReadReq
	a.buf[1] = addressByte(address, false)
	binary.BigEndian.PutUint16(a.buf[2:], uint16(len(buf)))
	a.buf[4] = 0x01 // register address is one byte
	a.buf[5] = reg
	if err := a.sendDataReport(a.buf[:6]); err != nil {
		return err
	}
	if err := a.waitTransferComplete(address); err != nil {
		return err
	}
	return a.readDataFully(address, buf)
}

// readDataFully pulls read response reports until buf is filled. Every
// report carries its own chunk length which must fit into the remaining
// expected bytes.
func (a *CP2112) readDataFully(address byte, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := a.sendForceReadRequest(len(buf) - read); err != nil {
			return err
		}
		if err := a.readDataReport(a.buf[:], a.cfg.TransferTimeout); err != nil {
			return err
		}

		if a.buf[0] != cp2112ReportReadResponse {
			return fmt.Errorf("%w: unexpected data read report ID 0x%02x", ErrorProtocol, a.buf[0])
		}
		if a.buf[1] == cp2112StatusError {
			return fmt.Errorf("%w: data read from 0x%02x failed, condition 0x%02x",
				ErrorProtocol, address, a.buf[2])
		}

		chunk := int(a.buf[2])
		if chunk > len(buf)-read {
			return fmt.Errorf("%w: chunk of %d byte(s) exceeds %d remaining",
				ErrorProtocol, chunk, len(buf)-read)
		}
		copy(buf[read:], a.buf[3:3+chunk])
		read += chunk
	}
	return nil
}

// waitTransferComplete polls the transfer status until the chip reports
// completion. Exhausting the retry bound cancels the transfer.
func (a *CP2112) waitTransferComplete(address byte) error {
	for try := 0; try < a.cfg.StatusRetries; try++ {
		a.buf[0] = cp2112ReportStatusRequest
		a.buf[1] = 0x01
		if err := a.sendDataReport(a.buf[:2]); err != nil {
			return err
		}
		if err := a.readDataReport(a.buf[:], a.cfg.TransferTimeout); err != nil {
			return err
		}

		if a.buf[0] != cp2112ReportStatusResponse {
			return fmt.Errorf("%w: unexpected transfer status report ID 0x%02x",
				ErrorProtocol, a.buf[0])
		}

		switch a.buf[1] {
		case cp2112StatusBusy:
			a.logf(2, "CP2112: transfer to 0x%02x busy, try %d", address, try+1)
		case cp2112StatusComplete:
			return nil
		default:
			return fmt.Errorf("%w: transfer status 0x%02x for 0x%02x",
				ErrorProtocol, a.buf[1], address)
		}
	}

	if err := a.cancelTransfer(); err != nil {
		a.logf(1, "CP2112: cancel after status retries failed: %v", err)
	}
	return fmt.Errorf("%w: 0x%02x still busy after %d status poll(s)",
		ErrorTimeout, address, a.cfg.StatusRetries)
}

func (a *CP2112) sendForceReadRequest(length int) error {
	a.buf[0] = cp2112ReportReadForceSend
	binary.BigEndian.PutUint16(a.buf[1:], uint16(length))
	return a.sendDataReport(a.buf[:3])
}

func (a *CP2112) cancelTransfer() error {
	a.buf[0] = cp2112ReportCancelTransfer
	a.buf[1] = 0x01
	return a.sendDataReport(a.buf[:2])
}

func (a *CP2112) drainPendingReports() error {
	drained := 0
	for ; drained < a.cfg.DrainRetries; drained++ {
		if err := a.readDataReport(a.buf[:], cp2112DrainTimeout); err != nil {
			break
		}
	}
	if drained >= a.cfg.DrainRetries {
		return fmt.Errorf("%w: stale data reports keep arriving", ErrorProtocol)
	}
	if drained > 0 {
		a.logf(1, "CP2112: drained %d stale data report(s)", drained)
	}
	return a.cancelTransfer()
}

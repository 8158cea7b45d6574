package usbi2c

import (
	"errors"
	"fmt"
	"time"

	"github.com/3cky/usbi2c/usbtransport"
)

// FT232H vendor control requests.
const (
	ft232hSIOReset           byte = 0x00
	ft232hSIOSetEventChar    byte = 0x06
	ft232hSIOSetErrorChar    byte = 0x07
	ft232hSIOSetLatencyTimer byte = 0x09
	ft232hSIOSetBitmode      byte = 0x0B
)

// SIO reset request values.
const (
	ft232hResetSIO     uint16 = 0
	ft232hResetPurgeRX uint16 = 1
	ft232hResetPurgeTX uint16 = 2
)

// Bit modes.
const (
	ft232hBitmodeReset uint16 = 0x00
	ft232hBitmodeMPSSE uint16 = 0x02
)

// AD port bit assignment for I2C.
const (
	ft232hSCLBit    byte = 0x01 // AD0
	ft232hSDAOutBit byte = 0x02 // AD1
	ft232hSDAInBit  byte = 0x04 // AD2
)

// MPSSE engine opcodes.
const (
	mpsseWriteBytesNegMSB   byte = 0x11
	mpsseWriteBitsNegMSB    byte = 0x13
	mpsseReadBytesPosMSB    byte = 0x20
	mpsseReadBitsPosMSB     byte = 0x22
	mpsseSetBitsLow         byte = 0x80
	mpsseLoopbackEnd        byte = 0x85
	mpsseSetTCKDivisor      byte = 0x86
	mpsseSendImmediate      byte = 0x87
	mpsseDisableClkDiv5     byte = 0x8A
	mpsseEnableClk3Phase    byte = 0x8C
	mpsseDisableClkAdaptive byte = 0x97
	mpsseDriveZero          byte = 0x9E
	mpsseDummyRequest       byte = 0xAA
	mpsseBadCommand         byte = 0xFA
)

// Writing the port state several times in a row stretches the condition
// long enough for slaves to sample it reliably.
const mpssePortSteadyWrites = 4

const (
	ft232hLatencyTimer = 16 * time.Millisecond

	// Internal bus clock feeding the TCK divisor with divide-by-5 off.
	ft232hBusClockSpeed = 30000000

	ft232hMaxTransfer  = 16384
	ft232hHeaderLength = 2
	ft232hMaxData      = ft232hMaxTransfer - ft232hHeaderLength

	ft232hMinClockSpeed = 10000
	ft232hMaxClockSpeed = ClockSpeedHigh
)

var errNack = fmt.Errorf("%w: NACK from slave", ErrorProtocol)

// mpsseScript accumulates MPSSE commands for one logical I2C leg in a
// reusable scratch buffer. It must be reset before each encode; flushing
// is the adapter's job since it needs the transport.
type mpsseScript struct {
	buf []byte
}

func (m *mpsseScript) reset() {
	m.buf = m.buf[:0]
}

// portConfig drives the AD port: set bits are released high, SDA input
// stays an input.
func (m *mpsseScript) portConfig(levels byte) {
	m.buf = append(m.buf, mpsseSetBitsLow, levels, ^ft232hSDAInBit)
}

// idle releases both SCL and SDA high.
func (m *mpsseScript) idle() {
	m.portConfig(0xFF)
}

// start pulls SDA low while SCL is high, then pulls SCL low.
func (m *mpsseScript) start() {
	for i := 0; i < mpssePortSteadyWrites; i++ {
		m.portConfig(^ft232hSDAOutBit)
	}
	for i := 0; i < mpssePortSteadyWrites; i++ {
		m.portConfig(^(ft232hSDAOutBit | ft232hSCLBit))
	}
}

// stop raises SCL while SDA is low, then releases SDA high.
func (m *mpsseScript) stop() {
	for i := 0; i < mpssePortSteadyWrites; i++ {
		m.portConfig(^(ft232hSDAOutBit | ft232hSCLBit))
	}
	for i := 0; i < mpssePortSteadyWrites; i++ {
		m.portConfig(^ft232hSDAOutBit)
	}
	for i := 0; i < mpssePortSteadyWrites; i++ {
		m.portConfig(0xFF)
	}
}

// sendByteReadAck clocks value out MSB first, then clocks in the ACK bit
// with SDA released.
func (m *mpsseScript) sendByteReadAck(value byte) {
	m.buf = append(m.buf, mpsseWriteBytesNegMSB, 0x00, 0x00, value)
	m.portConfig(^ft232hSCLBit) // transfer idle: SCL low, SDA released
	m.buf = append(m.buf, mpsseReadBitsPosMSB, 0x00)
}

// readByte clocks one byte in, then clocks out the ACK (or NACK for the
// final byte) bit.
func (m *mpsseScript) readByte(ack bool) {
	ackBit := byte(0xFF)
	if ack {
		ackBit = 0x00
	}
	m.buf = append(m.buf, mpsseReadBytesPosMSB, 0x00, 0x00)
	m.buf = append(m.buf, mpsseWriteBitsNegMSB, 0x00, ackBit)
	m.portConfig(^ft232hSCLBit)
}

func (m *mpsseScript) readBytes(length int) {
	for i := 0; i < length; i++ {
		m.readByte(i < length-1)
	}
}

// receiveImmediate terminates a script so the engine flushes its result
// buffer to the host right away.
func (m *mpsseScript) receiveImmediate() {
	m.buf = append(m.buf, mpsseSendImmediate)
}

func (m *mpsseScript) initI2C(clockSpeed int) {
	m.buf = append(m.buf, mpsseDisableClkDiv5, mpsseDisableClkAdaptive, mpsseEnableClk3Phase)
	// Open drain on the I2C pins of port AD, nothing on AC.
	m.buf = append(m.buf, mpsseDriveZero, ft232hSCLBit|ft232hSDAOutBit|ft232hSDAInBit, 0x00)
	m.buf = append(m.buf, mpsseLoopbackEnd)

	divisor := (2*ft232hBusClockSpeed/clockSpeed - 2) / 3
	m.buf = append(m.buf, mpsseSetTCKDivisor, byte(divisor), byte(divisor>>8))
}

// FT232H drives the FTDI FT232H in MPSSE mode. The chip has no native
// I2C engine: every bus condition and every byte is scripted as clock
// and data line sequences, executed by the MPSSE engine and read back
// over bulk transfers. Each response packet starts with a two byte modem
// status header that carries no payload.
type FT232H struct {
	session

	script mpsseScript
	rbuf   [ft232hMaxTransfer]byte
}

func NewFT232H(tr usbtransport.Transport, cfg Config) *FT232H {
	a := &FT232H{}
	a.session.init(tr, cfg, "FT232H", "ft232h")
	a.session.configure = a.configureLocked
	a.session.shutdown = a.resetChip
	a.session.supported = ft232hSpeedSupported
	return a
}

func ft232hSpeedSupported(speed int) bool {
	return speed >= ft232hMinClockSpeed && speed <= ft232hMaxClockSpeed
}

func (a *FT232H) Device(address byte) (*Device, error) {
	return a.session.device(a, address)
}

func (a *FT232H) configureLocked() error {
	steps := []struct {
		request byte
		value   uint16
	}{
		{ft232hSIOReset, ft232hResetSIO},
		{ft232hSIOSetLatencyTimer, uint16(ft232hLatencyTimer / time.Millisecond)},
		{ft232hSIOReset, ft232hResetPurgeRX},
		{ft232hSIOReset, ft232hResetPurgeTX},
		{ft232hSIOSetEventChar, 0},
		{ft232hSIOSetErrorChar, 0},
		{ft232hSIOSetBitmode, ft232hBitmodeReset << 8},
		{ft232hSIOSetBitmode, ft232hBitmodeMPSSE << 8},
	}
	for _, step := range steps {
		if err := a.commandWrite(step.request, step.value); err != nil {
			return err
		}
	}

	if err := a.checkMPSSEEnabled(); err != nil {
		return err
	}

	a.script.reset()
	a.script.initI2C(a.clockSpeed)
	a.script.idle()
	return a.flush()
}

// checkMPSSEEnabled round-trips a dummy command: a working MPSSE engine
// echoes it back behind a bad-command marker.
func (a *FT232H) checkMPSSEEnabled() error {
	if err := a.bulkWrite([]byte{mpsseDummyRequest}); err != nil {
		return err
	}
	var echo [2]byte
	if err := a.dataRead(echo[:]); err != nil {
		return err
	}
	if echo[0] != mpsseBadCommand || echo[1] != mpsseDummyRequest {
		return fmt.Errorf("%w: MPSSE is not enabled (echo %02x %02x)",
			ErrorProtocol, echo[0], echo[1])
	}
	return nil
}

func (a *FT232H) writeData(address byte, data []byte) error {
	if err := checkDataLength(len(data), ft232hMaxData); err != nil {
		return err
	}

	a.script.reset()
	a.script.idle()
	a.script.start()
	if err := a.writeByteCheckAck(addressByte(address, false)); err != nil {
		return addressNackToNoDevice(err, address)
	}
	for _, b := range data {
		if err := a.writeByteCheckAck(b); err != nil {
			return err
		}
	}
	a.script.stop()
	return a.flush()
}

func (a *FT232H) readData(address byte, buf []byte) error {
	if err := checkDataLength(len(buf), ft232hMaxData); err != nil {
		return err
	}

	a.script.reset()
	a.script.idle()
	a.script.start()
	if err := a.writeByteCheckAck(addressByte(address, true)); err != nil {
		return addressNackToNoDevice(err, address)
	}
	if err := a.readBytesInto(buf); err != nil {
		return err
	}
	a.script.stop()
	return a.flush()
}

func (a *FT232H) readRegData(address byte, reg byte, buf []byte) error {
	if err := checkDataLength(len(buf), ft232hMaxData); err != nil {
		return err
	}

	a.script.reset()
	a.script.idle()
	a.script.start()
	if err := a.writeByteCheckAck(addressByte(address, false)); err != nil {
		return addressNackToNoDevice(err, address)
	}
	if err := a.writeByteCheckAck(reg); err != nil {
		return err
	}
	// Repeated start for the read phase.
	a.script.idle()
	a.script.start()
	if err := a.writeByteCheckAck(addressByte(address, true)); err != nil {
		return addressNackToNoDevice(err, address)
	}
	if err := a.readBytesInto(buf); err != nil {
		return err
	}
	a.script.stop()
	return a.flush()
}

// writeByteCheckAck flushes any pending script together with one clocked
// out byte and fails with errNack when the slave did not acknowledge it.
func (a *FT232H) writeByteCheckAck(value byte) error {
	a.script.sendByteReadAck(value)
	a.script.receiveImmediate()
	if err := a.flush(); err != nil {
		return err
	}

	var ack [1]byte
	if err := a.dataRead(ack[:]); err != nil {
		return err
	}
	if ack[0]&0x01 != 0 {
		return errNack
	}
	return nil
}

func (a *FT232H) readBytesInto(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	a.script.readBytes(len(buf))
	a.script.receiveImmediate()
	if err := a.flush(); err != nil {
		return err
	}
	return a.dataRead(buf)
}

// addressNackToNoDevice maps a NACKed address byte to the absent-device
// outcome bus scanners expect; transport failures pass through.
func addressNackToNoDevice(err error, address byte) error {
	if errors.Is(err, errNack) {
		return fmt.Errorf("%w: 0x%02x", ErrorNoDevice, address)
	}
	return err
}

func (a *FT232H) flush() error {
	defer a.script.reset()
	if len(a.script.buf) == 0 {
		return nil
	}
	return a.bulkWrite(a.script.buf)
}

// dataRead accumulates response bytes until dst is filled, stripping the
// chip framing header from every packet. The latency timer means the
// response can dribble in over many short transfers, so the deadline is
// recomputed per read instead of per chunk.
func (a *FT232H) dataRead(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}

	start := time.Now()
	read := 0
	for {
		remain := a.cfg.TransferTimeout - time.Since(start)
		if remain <= 0 {
			return fmt.Errorf("%w: received %d of %d response byte(s)",
				ErrorTimeout, read, len(dst))
		}

		n, err := a.tr.BulkTransfer(true, a.rbuf[:], remain)
		if err != nil {
			return fmt.Errorf("%w: bulk read: %v", ErrorTransport, err)
		}
		if n >= ft232hHeaderLength {
			chunk := n - ft232hHeaderLength
			if chunk > len(dst)-read {
				return fmt.Errorf("%w: chunk of %d byte(s) exceeds %d remaining",
					ErrorProtocol, chunk, len(dst)-read)
			}
			copy(dst[read:], a.rbuf[ft232hHeaderLength:n])
			read += chunk
			if read >= len(dst) {
				return nil
			}
		}

		time.Sleep(ft232hLatencyTimer / 2)
	}
}

func (a *FT232H) commandWrite(request byte, value uint16) error {
	return a.controlWrite(usbtransport.TypeVendor|usbtransport.DirOut,
		request, value, 1, nil)
}

func (a *FT232H) resetChip() error {
	return a.commandWrite(ft232hSIOReset, ft232hResetSIO)
}

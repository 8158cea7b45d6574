// Package usbi2c drives I2C slave devices attached to USB bridge chips.
// Each supported chip (CH341, CP2112, FT260, FT232H, I2C-Tiny-USB) speaks
// a different wire protocol over USB; the adapters in this package encode
// logical I2C operations into the chip command format, drive the chip
// specific completion protocol and map chip status to a common result.
//
// USB device discovery is out of scope: callers open a device with a
// usbtransport backend and construct the adapter matching the device's
// vendor and product IDs (see Lookup).
package usbi2c

import (
	"fmt"
	"sync"
	"time"

	"github.com/3cky/usbi2c/usbtransport"
)

// Common I2C bus clock speeds, in Hz.
const (
	ClockSpeedStandard = 100000
	ClockSpeedFast     = 400000
	ClockSpeedFastPlus = 1000000
	ClockSpeedHigh     = 3400000
)

// Address space of the 7-bit addressing scheme.
const MaxAddress = 0x7F

type LogFunc func(level int, format string, param ...interface{})

// Config tunes an adapter session. The zero value selects the defaults,
// so passing Config{} is always valid.
type Config struct {
	// ClockSpeed is the initial bus clock in Hz. Default is
	// ClockSpeedStandard, which every chip accepts.
	ClockSpeed int

	// TransferTimeout bounds one USB transfer. For the FT232H it is
	// also the overall deadline of one response accumulation loop.
	// Default is 1s.
	TransferTimeout time.Duration

	// StatusRetries bounds chip-side completion polling. Default is 10.
	StatusRetries int

	// DrainRetries bounds draining of stale data reports left queued by
	// a previous session. Default is 10.
	DrainRetries int

	LogFunc LogFunc
}

func (c *Config) setDefaults() {
	if c.ClockSpeed == 0 {
		c.ClockSpeed = ClockSpeedStandard
	}
	if c.TransferTimeout == 0 {
		c.TransferTimeout = time.Second
	}
	if c.StatusRetries == 0 {
		c.StatusRetries = 10
	}
	if c.DrainRetries == 0 {
		c.DrainRetries = 10
	}
}

// Adapter is one physical USB I2C bridge. All operations on an adapter
// and on the devices obtained from it are serialized by a per-adapter
// lock, including chip-side completion polling. Adapters are created
// closed; every other method requires Open to have succeeded.
type Adapter interface {
	// Name is the chip's display name, ID a stable lowercase
	// identifier for configuration and log matching.
	Name() string
	ID() string

	// Open runs the chip initialization sequence. The transport handle
	// must already be open.
	Open() error

	// Close cancels or resets a busy chip-side transaction where the
	// protocol supports it and releases the transport. Closing an
	// adapter that is not open is a no-op.
	Close() error

	SetClockSpeed(speed int) error
	ClockSpeedSupported(speed int) bool

	// Device returns a handle for the slave at the given 7-bit address.
	// The top bit is masked off.
	Device(address byte) (*Device, error)
}

// transactor is the chip-specific side of an adapter: one logical I2C
// leg per call, executed with the session lock already held.
type transactor interface {
	readData(address byte, buf []byte) error
	writeData(address byte, data []byte) error
	readRegData(address byte, reg byte, buf []byte) error
}

// session carries the chip-independent adapter state: the transport
// handle, the serialization lock and the clock speed. Chip adapters embed
// it and register their hooks at construction time.
type session struct {
	mu sync.Mutex

	tr   usbtransport.Transport
	cfg  Config
	name string
	id   string

	opened     bool
	clockSpeed int

	// configure pushes the current clock speed (and chip defaults) to
	// the chip. Runs on open and on every clock speed change.
	configure func() error
	// initialize runs the full chip bring-up on open. Defaults to
	// configure when nil.
	initialize func() error
	// shutdown is the best effort chip-side cancel run on close.
	shutdown func() error
	// supported reports whether the chip accepts a clock speed.
	supported func(speed int) bool
}

func (s *session) init(tr usbtransport.Transport, cfg Config, name, id string) {
	cfg.setDefaults()
	s.tr = tr
	s.cfg = cfg
	s.name = name
	s.id = id
	s.clockSpeed = cfg.ClockSpeed
}

func (s *session) Name() string {
	return s.name
}

func (s *session) ID() string {
	return s.id
}

func (s *session) logf(level int, format string, param ...interface{}) {
	if s.cfg.LogFunc != nil {
		s.cfg.LogFunc(level, format, param...)
	}
}

func (s *session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return fmt.Errorf("%w: already opened", ErrorConfig)
	}

	if !s.supported(s.clockSpeed) {
		return fmt.Errorf("%w: clock speed %d Hz", ErrorConfig, s.clockSpeed)
	}

	s.opened = true
	init := s.initialize
	if init == nil {
		init = s.configure
	}
	if err := init(); err != nil {
		s.opened = false
		return err
	}

	s.logf(1, "%s: opened, clock %d Hz", s.name, s.clockSpeed)
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}

	var err error
	if s.shutdown != nil {
		// Chip state is unknown after a failed operation, so the
		// cancel itself may fail. The transport still must go.
		err = s.shutdown()
	}
	s.opened = false

	if cerr := s.tr.Close(); err == nil {
		err = cerr
	}
	s.logf(1, "%s: closed", s.name)
	return err
}

func (s *session) SetClockSpeed(speed int) error {
	if !s.supported(speed) {
		return fmt.Errorf("%w: clock speed %d Hz", ErrorConfig, speed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clockSpeed = speed
	if !s.opened {
		return nil
	}
	return s.configure()
}

func (s *session) ClockSpeedSupported(speed int) bool {
	return s.supported(speed)
}

func (s *session) checkOpened() error {
	if !s.opened {
		return ErrorClosed
	}
	return nil
}

func (s *session) device(tx transactor, address byte) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpened(); err != nil {
		return nil, err
	}
	return &Device{
		session: s,
		tx:      tx,
		address: address & MaxAddress,
	}, nil
}

// bulkWrite moves the whole frame out or fails.
func (s *session) bulkWrite(data []byte) error {
	n, err := s.tr.BulkTransfer(false, data, s.cfg.TransferTimeout)
	if err != nil {
		return fmt.Errorf("%w: bulk write: %v", ErrorTransport, err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: short bulk write: %d of %d byte(s)", ErrorTransport, n, len(data))
	}
	return nil
}

func (s *session) bulkRead(buf []byte) (int, error) {
	n, err := s.tr.BulkTransfer(true, buf, s.cfg.TransferTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: bulk read: %v", ErrorTransport, err)
	}
	return n, nil
}

func (s *session) controlWrite(requestType, request byte, value, index uint16, data []byte) error {
	n, err := s.tr.ControlTransfer(requestType, request, value, index, data, s.cfg.TransferTimeout)
	if err != nil {
		return fmt.Errorf("%w: control 0x%02x: %v", ErrorTransport, request, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: control 0x%02x: wrote %d of %d byte(s)",
			ErrorTransport, request, n, len(data))
	}
	return nil
}

func (s *session) controlRead(requestType, request byte, value, index uint16, data []byte) error {
	n, err := s.tr.ControlTransfer(requestType, request, value, index, data, s.cfg.TransferTimeout)
	if err != nil {
		return fmt.Errorf("%w: control 0x%02x: %v", ErrorTransport, request, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: control 0x%02x: read %d of %d byte(s)",
			ErrorTransport, request, n, len(data))
	}
	return nil
}

// addressByte builds the wire address byte: the 7-bit address in the high
// bits with the R/W flag in bit 0.
func addressByte(address byte, read bool) byte {
	b := address << 1
	if read {
		b |= 0x01
	}
	return b
}

// checkDataLength rejects payloads exceeding the chip frame ceiling
// before any I/O happens.
func checkDataLength(length, max int) error {
	if length > max {
		return fmt.Errorf("%w: data length %d exceeds maximum of %d byte(s)",
			ErrorConfig, length, max)
	}
	return nil
}

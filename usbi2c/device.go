package usbi2c

// Device is a handle to one I2C slave behind an adapter. Handles for
// different addresses share the adapter's lock: no two operations on the
// same physical bridge interleave their frames.
type Device struct {
	session *session
	tx      transactor
	address byte
}

// Address returns the slave's 7-bit address.
func (d *Device) Address() byte {
	return d.address
}

// Read fills buf from the device.
func (d *Device) Read(buf []byte) error {
	d.session.mu.Lock()
	defer d.session.mu.Unlock()

	if err := d.session.checkOpened(); err != nil {
		return err
	}
	return d.tx.readData(d.address, buf)
}

// Write sends buf to the device.
func (d *Device) Write(buf []byte) error {
	d.session.mu.Lock()
	defer d.session.mu.Unlock()

	if err := d.session.checkOpened(); err != nil {
		return err
	}
	return d.tx.writeData(d.address, buf)
}

// ReadRegBuffer fills buf starting at register reg.
func (d *Device) ReadRegBuffer(reg byte, buf []byte) error {
	d.session.mu.Lock()
	defer d.session.mu.Unlock()

	if err := d.session.checkOpened(); err != nil {
		return err
	}
	return d.tx.readRegData(d.address, reg, buf)
}

func (d *Device) ReadRegByte(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.ReadRegBuffer(reg, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadRegWord reads a 16-bit register value, combining the two bytes
// little-endian and unsigned.
func (d *Device) ReadRegWord(reg byte) (uint16, error) {
	var buf [2]byte
	if err := d.ReadRegBuffer(reg, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// WriteRegBuffer writes data starting at register reg as a single bus
// transaction.
func (d *Device) WriteRegBuffer(reg byte, data []byte) error {
	buf := make([]byte, len(data)+1)
	buf[0] = reg
	copy(buf[1:], data)
	return d.Write(buf)
}

func (d *Device) WriteRegByte(reg byte, value byte) error {
	return d.Write([]byte{reg, value})
}

// WriteRegWord writes a 16-bit register value, low byte first.
func (d *Device) WriteRegWord(reg byte, value uint16) error {
	return d.Write([]byte{reg, byte(value), byte(value >> 8)})
}

package usbi2c

import (
	"bytes"
	"errors"
	"testing"
)

func openCH341(t *testing.T) (*CH341, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{}
	a := NewCH341(ft, Config{})
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a, ft
}

func TestCH341ConfigureFrame(t *testing.T) {
	_, ft := openCH341(t)

	want := []byte{0xAA, 0x61, 0x00} // SET | standard speed code
	if len(ft.bulkWrites) != 1 || !bytes.Equal(ft.bulkWrites[0], want) {
		t.Fatalf("configure frame = %x, want %x", ft.bulkWrites, want)
	}
}

func TestCH341WriteFrame(t *testing.T) {
	a, ft := openCH341(t)

	if err := a.SetClockSpeed(ClockSpeedFast); err != nil {
		t.Fatalf("SetClockSpeed: %v", err)
	}
	if want := []byte{0xAA, 0x62, 0x00}; !bytes.Equal(ft.bulkWrites[1], want) {
		t.Fatalf("reconfigure frame = %x, want %x", ft.bulkWrites[1], want)
	}

	dev, err := a.Device(0x50)
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if err := dev.Write([]byte{0x10, 0x20}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// OUT count covers the address byte plus the two payload bytes.
	want := []byte{0xAA, 0x74, 0x83, 0xA0, 0x10, 0x20, 0x75, 0x00}
	if got := ft.bulkWrites[2]; !bytes.Equal(got, want) {
		t.Fatalf("write frame = %x, want %x", got, want)
	}
}

func TestCH341ReadProbesFirst(t *testing.T) {
	a, ft := openCH341(t)

	ft.queueBulk(
		[]byte{0x01},       // probe status, ACK
		[]byte{0xDE, 0xAD}, // read data
	)

	dev, _ := a.Device(0x50)
	buf := make([]byte, 2)
	if err := dev.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xDE, 0xAD}) {
		t.Fatalf("read data = %x", buf)
	}

	probe := []byte{0xAA, 0x74, 0x80, 0xA1, 0x75, 0x00}
	if got := ft.bulkWrites[1]; !bytes.Equal(got, probe) {
		t.Fatalf("probe frame = %x, want %x", got, probe)
	}
	read := []byte{0xAA, 0x74, 0x81, 0xA1, 0xC1, 0xC0, 0x75, 0x00}
	if got := ft.bulkWrites[2]; !bytes.Equal(got, read) {
		t.Fatalf("read frame = %x, want %x", got, read)
	}
}

func TestCH341ReadNoDevice(t *testing.T) {
	a, ft := openCH341(t)

	// Top bit set in the probe status means the address byte was NAKed.
	ft.queueBulk([]byte{0x80})

	dev, _ := a.Device(0x2A)
	err := dev.Read(make([]byte, 4))
	if !errors.Is(err, ErrorNoDevice) {
		t.Fatalf("Read error = %v, want ErrorNoDevice", err)
	}

	// Only the configure and probe frames must have gone out.
	if len(ft.bulkWrites) != 2 {
		t.Fatalf("bulk writes after failed probe = %x", ft.bulkWrites)
	}
}

func TestCH341ZeroLengthRead(t *testing.T) {
	a, ft := openCH341(t)

	ft.queueBulk([]byte{0x01})

	dev, _ := a.Device(0x50)
	if err := dev.Read(nil); err != nil {
		t.Fatalf("Read: %v", err)
	}

	// The probe still runs, so a zero length read is a presence check.
	if len(ft.bulkWrites) != 3 || len(ft.bulkReads) != 0 {
		t.Fatalf("bulk writes = %x", ft.bulkWrites)
	}
}

func TestCH341OversizedTransfer(t *testing.T) {
	a, ft := openCH341(t)
	dev, _ := a.Device(0x50)
	calls := ft.calls

	if err := dev.Write(make([]byte, ch341MaxPayload+1)); !errors.Is(err, ErrorConfig) {
		t.Fatalf("Write error = %v, want ErrorConfig", err)
	}
	if err := dev.Read(make([]byte, ch341MaxPayload+1)); !errors.Is(err, ErrorConfig) {
		t.Fatalf("Read error = %v, want ErrorConfig", err)
	}
	if ft.calls != calls {
		t.Fatalf("transport touched for oversized transfer")
	}
}

func TestCH341ReadReg(t *testing.T) {
	a, ft := openCH341(t)

	ft.queueBulk([]byte{0x12, 0x34})

	dev, _ := a.Device(0x68)
	w, err := dev.ReadRegWord(0x05)
	if err != nil {
		t.Fatalf("ReadRegWord: %v", err)
	}
	if w != 0x3412 {
		t.Fatalf("ReadRegWord = %#04x, want 0x3412", w)
	}

	regWrite := []byte{0xAA, 0x74, 0x82, 0xD0, 0x05}
	if got := ft.bulkWrites[1]; !bytes.Equal(got, regWrite) {
		t.Fatalf("register select frame = %x, want %x", got, regWrite)
	}
	read := []byte{0xAA, 0x74, 0x81, 0xD1, 0xC1, 0xC0, 0x75, 0x00}
	if got := ft.bulkWrites[2]; !bytes.Equal(got, read) {
		t.Fatalf("read frame = %x, want %x", got, read)
	}
}

func TestCH341ShortRead(t *testing.T) {
	a, ft := openCH341(t)

	ft.queueBulk([]byte{0x01}, []byte{0xAB})

	dev, _ := a.Device(0x50)
	err := dev.Read(make([]byte, 2))
	if !errors.Is(err, ErrorTransport) {
		t.Fatalf("Read error = %v, want ErrorTransport", err)
	}
}

func TestCH341ClockSpeeds(t *testing.T) {
	a, _ := openCH341(t)

	for _, speed := range []int{20000, ClockSpeedStandard, ClockSpeedFast, 750000} {
		if !a.ClockSpeedSupported(speed) {
			t.Errorf("ClockSpeedSupported(%d) = false", speed)
		}
	}
	for _, speed := range []int{0, 50000, ClockSpeedFastPlus, ClockSpeedHigh} {
		if a.ClockSpeedSupported(speed) {
			t.Errorf("ClockSpeedSupported(%d) = true", speed)
		}
	}

	if err := a.SetClockSpeed(123); !errors.Is(err, ErrorConfig) {
		t.Fatalf("SetClockSpeed(123) = %v, want ErrorConfig", err)
	}
}

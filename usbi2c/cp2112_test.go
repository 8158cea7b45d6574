package usbi2c

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func openCP2112(t *testing.T, cfg Config) (*CP2112, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{}
	// SMBus configuration read back during open.
	ft.queueCtrl(cp2112ConfigReport())

	a := NewCP2112(ft, cfg)
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a, ft
}

func cp2112ConfigReport() []byte {
	report := make([]byte, cp2112SMBusConfigSize)
	report[0] = cp2112ReportSMBusConfig
	return report
}

func statusReport(status byte) []byte {
	return []byte{cp2112ReportStatusResponse, status}
}

func TestCP2112OpenConfiguresClock(t *testing.T) {
	_, ft := openCP2112(t, Config{ClockSpeed: ClockSpeedFast})

	var set []byte
	for _, c := range ft.ctrlCalls {
		if len(c.data) > 0 && c.data[0] == cp2112ReportSMBusConfig {
			set = c.data
		}
	}
	if set == nil {
		t.Fatalf("no SMBus configuration written: %+v", ft.ctrlCalls)
	}

	if got := binary.BigEndian.Uint32(set[cp2112SMBusConfigClockOffset:]); got != ClockSpeedFast {
		t.Errorf("configured clock = %d, want %d", got, ClockSpeedFast)
	}
	if set[cp2112SMBusConfigRetryOffset] != 0x00 || set[cp2112SMBusConfigRetryOffset+1] != 0x01 {
		t.Errorf("retry bound = %x", set[cp2112SMBusConfigRetryOffset:cp2112SMBusConfigRetryOffset+2])
	}

	// Open finishes by cancelling any transfer left over from before.
	if got := ft.bulkWritesWithID(cp2112ReportCancelTransfer); len(got) != 1 {
		t.Errorf("cancel reports on open = %x", got)
	}
}

func TestCP2112ConfigReportIDWithoutEcho(t *testing.T) {
	ft := &fakeTransport{}
	// A config response with a zeroed report ID byte: some transports do
	// not echo the ID. The written config must still carry 0x06.
	ft.queueCtrl(make([]byte, cp2112SMBusConfigSize))

	a := NewCP2112(ft, Config{})
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var set []byte
	for _, c := range ft.ctrlCalls {
		if len(c.data) == cp2112SMBusConfigSize {
			set = c.data
		}
	}
	if set == nil || set[0] != cp2112ReportSMBusConfig {
		t.Fatalf("written config report = %x, want ID 0x%02x", set, cp2112ReportSMBusConfig)
	}
}

func TestCP2112WritePollsUntilComplete(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(
		statusReport(cp2112StatusBusy),
		statusReport(cp2112StatusBusy),
		statusReport(cp2112StatusComplete),
	)

	dev, _ := a.Device(0x50)
	if err := dev.Write([]byte{0x10, 0x20}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []byte{cp2112ReportWriteRequest, 0xA0, 0x02, 0x10, 0x20}
	if got := ft.bulkWritesWithID(cp2112ReportWriteRequest); len(got) != 1 || !bytes.Equal(got[0], want) {
		t.Fatalf("write request report = %x, want %x", got, want)
	}
	if got := ft.bulkWritesWithID(cp2112ReportStatusRequest); len(got) != 3 {
		t.Fatalf("status poll count = %d, want 3", len(got))
	}
}

func TestCP2112StatusPollTimeout(t *testing.T) {
	a, ft := openCP2112(t, Config{StatusRetries: 4})

	for i := 0; i < 4; i++ {
		ft.queueBulk(statusReport(cp2112StatusBusy))
	}

	dev, _ := a.Device(0x50)
	cancelsBefore := len(ft.bulkWritesWithID(cp2112ReportCancelTransfer))

	err := dev.Write([]byte{0x01})
	if !errors.Is(err, ErrorTimeout) {
		t.Fatalf("Write error = %v, want ErrorTimeout", err)
	}

	if polls := len(ft.bulkWritesWithID(cp2112ReportStatusRequest)); polls != 4 {
		t.Errorf("status poll count = %d, want 4", polls)
	}
	if cancels := len(ft.bulkWritesWithID(cp2112ReportCancelTransfer)); cancels != cancelsBefore+1 {
		t.Errorf("cancel reports after timeout = %d, want %d", cancels, cancelsBefore+1)
	}
}

func TestCP2112StatusError(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(statusReport(cp2112StatusError))

	dev, _ := a.Device(0x50)
	if err := dev.Write([]byte{0x01}); !errors.Is(err, ErrorProtocol) {
		t.Fatalf("Write error = %v, want ErrorProtocol", err)
	}
}

func TestCP2112Read(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(
		statusReport(cp2112StatusComplete),
		[]byte{cp2112ReportReadResponse, cp2112StatusComplete, 0x02, 0xCA, 0xFE},
	)

	dev, _ := a.Device(0x50)
	buf := make([]byte, 2)
	if err := dev.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xCA, 0xFE}) {
		t.Fatalf("read data = %x", buf)
	}

	req := []byte{cp2112ReportReadRequest, 0xA0, 0x00, 0x02}
	if got := ft.bulkWritesWithID(cp2112ReportReadRequest); len(got) != 1 || !bytes.Equal(got[0], req) {
		t.Fatalf("read request report = %x, want %x", got, req)
	}
	force := []byte{cp2112ReportReadForceSend, 0x00, 0x02}
	if got := ft.bulkWritesWithID(cp2112ReportReadForceSend); len(got) != 1 || !bytes.Equal(got[0], force) {
		t.Fatalf("force send report = %x, want %x", got, force)
	}
}

func TestCP2112ReadChunked(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(
		statusReport(cp2112StatusComplete),
		[]byte{cp2112ReportReadResponse, cp2112StatusComplete, 0x02, 0x01, 0x02},
		[]byte{cp2112ReportReadResponse, cp2112StatusComplete, 0x01, 0x03},
	)

	dev, _ := a.Device(0x50)
	buf := make([]byte, 3)
	if err := dev.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("read data = %x", buf)
	}

	// The second force send asks only for the remaining byte.
	force := ft.bulkWritesWithID(cp2112ReportReadForceSend)
	if len(force) != 2 || !bytes.Equal(force[1], []byte{cp2112ReportReadForceSend, 0x00, 0x01}) {
		t.Fatalf("force send reports = %x", force)
	}
}

func TestCP2112ReadOversizedChunk(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(
		statusReport(cp2112StatusComplete),
		[]byte{cp2112ReportReadResponse, cp2112StatusComplete, 40, 0x00},
	)

	dev, _ := a.Device(0x50)
	if err := dev.Read(make([]byte, 2)); !errors.Is(err, ErrorProtocol) {
		t.Fatalf("Read error = %v, want ErrorProtocol", err)
	}
}

func TestCP2112ReadReg(t *testing.T) {
	a, ft := openCP2112(t, Config{})

	ft.queueBulk(
		statusReport(cp2112StatusComplete),
		[]byte{cp2112ReportReadResponse, cp2112StatusComplete, 0x01, 0x42},
	)

	dev, _ := a.Device(0x68)
	v, err := dev.ReadRegByte(0x75)
	if err != nil {
		t.Fatalf("ReadRegByte: %v", err)
	}
	if v != 0x42 {
		t.Fatalf("ReadRegByte = %#02x, want 0x42", v)
	}

	want := []byte{cp2112ReportWriteReadReq, 0xD0, 0x00, 0x01, 0x01, 0x75}
	if got := ft.bulkWritesWithID(cp2112ReportWriteReadReq); len(got) != 1 || !bytes.Equal(got[0], want) {
		t.Fatalf("write-read request report = %x, want %x", got, want)
	}
}

func TestCP2112TransferLimits(t *testing.T) {
	a, ft := openCP2112(t, Config{})
	dev, _ := a.Device(0x50)
	calls := ft.calls

	if err := dev.Write(make([]byte, cp2112MaxWriteLength+1)); !errors.Is(err, ErrorConfig) {
		t.Fatalf("Write error = %v, want ErrorConfig", err)
	}
	if err := dev.Read(make([]byte, cp2112MaxReadLength+1)); !errors.Is(err, ErrorConfig) {
		t.Fatalf("Read error = %v, want ErrorConfig", err)
	}
	if ft.calls != calls {
		t.Fatalf("transport touched for oversized transfer")
	}
}

func TestCP2112DrainStaleReports(t *testing.T) {
	ft := &fakeTransport{}
	ft.queueCtrl(make([]byte, cp2112SMBusConfigSize))
	// Two stale data reports from a previous session.
	ft.queueBulk([]byte{cp2112ReportReadResponse, 0x00, 0x00}, statusReport(cp2112StatusBusy))

	a := NewCP2112(ft, Config{})
	if err := a.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(ft.bulkReads) != 0 {
		t.Fatalf("stale reports left queued: %x", ft.bulkReads)
	}
}

func TestCP2112ClockSpeedRange(t *testing.T) {
	a, _ := openCP2112(t, Config{})

	for _, speed := range []int{cp2112MinClockSpeed, ClockSpeedStandard, ClockSpeedFast, ClockSpeedHigh} {
		if !a.ClockSpeedSupported(speed) {
			t.Errorf("ClockSpeedSupported(%d) = false", speed)
		}
	}
	if a.ClockSpeedSupported(cp2112MinClockSpeed - 1) {
		t.Errorf("ClockSpeedSupported below minimum = true")
	}
	if a.ClockSpeedSupported(ClockSpeedHigh + 1) {
		t.Errorf("ClockSpeedSupported above maximum = true")
	}
}

package usbi2c

import (
	"errors"
	"time"

	"github.com/3cky/usbi2c/usbtransport"
)

// fakeTransport is a scripted Transport: OUT transfers are recorded,
// IN transfers are served from queued responses. An empty queue fails
// the transfer, which doubles as the "nothing pending" outcome for
// drain loops.
type fakeTransport struct {
	bulkWrites [][]byte
	bulkReads  [][]byte

	ctrlCalls []ctrlCall
	ctrlReads [][]byte

	calls  int
	closed int
}

type ctrlCall struct {
	requestType byte
	request     byte
	value       uint16
	index       uint16
	data        []byte // OUT payload, nil for IN transfers
}

var errNothingQueued = errors.New("fake transport: no response queued")

func (f *fakeTransport) ControlTransfer(requestType, request byte, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	f.calls++
	call := ctrlCall{requestType: requestType, request: request, value: value, index: index}

	if requestType&usbtransport.DirIn != 0 {
		if len(f.ctrlReads) == 0 {
			return 0, errNothingQueued
		}
		resp := f.ctrlReads[0]
		f.ctrlReads = f.ctrlReads[1:]
		copy(data, resp)
		f.ctrlCalls = append(f.ctrlCalls, call)
		return len(data), nil
	}

	call.data = append([]byte(nil), data...)
	f.ctrlCalls = append(f.ctrlCalls, call)
	return len(data), nil
}

func (f *fakeTransport) BulkTransfer(in bool, data []byte, timeout time.Duration) (int, error) {
	f.calls++
	if in {
		if len(f.bulkReads) == 0 {
			return 0, errNothingQueued
		}
		resp := f.bulkReads[0]
		f.bulkReads = f.bulkReads[1:]
		return copy(data, resp), nil
	}

	f.bulkWrites = append(f.bulkWrites, append([]byte(nil), data...))
	return len(data), nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func (f *fakeTransport) queueBulk(resp ...[]byte) {
	f.bulkReads = append(f.bulkReads, resp...)
}

func (f *fakeTransport) queueCtrl(resp ...[]byte) {
	f.ctrlReads = append(f.ctrlReads, resp...)
}

// bulkWritesWithID returns the recorded bulk writes whose first byte
// matches id, for counting report traffic of one kind.
func (f *fakeTransport) bulkWritesWithID(id byte) [][]byte {
	var out [][]byte
	for _, w := range f.bulkWrites {
		if len(w) > 0 && w[0] == id {
			out = append(out, w)
		}
	}
	return out
}

package usbtransport

import (
	"context"
	"time"

	"github.com/google/gousb"
)

// USB is a Transport backed by gousb/libusb. It claims the default
// interface of the device and resolves the first IN and OUT bulk or
// interrupt endpoints, which is how every supported bridge chip lays out
// its data pipe.
type USB struct {
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	in  *gousb.InEndpoint
	out *gousb.OutEndpoint
}

// OpenUSB claims dev and resolves its data endpoints. The caller keeps
// ownership of the gousb Context; the returned Transport owns dev and
// closes it on Close.
func OpenUSB(dev *gousb.Device) (*USB, error) {
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, err
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		return nil, err
	}

	u := &USB{
		dev:  dev,
		intf: intf,
		done: done,
	}

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk && ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			if u.in == nil {
				u.in, err = intf.InEndpoint(ep.Number)
			}
		} else if u.out == nil {
			u.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			done()
			dev.Close()
			return nil, err
		}
	}

	if u.in == nil || u.out == nil {
		done()
		dev.Close()
		return nil, ErrorNoEndpoint
	}

	return u, nil
}

func (u *USB) ControlTransfer(requestType, request byte, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	u.dev.ControlTimeout = timeout
	return u.dev.Control(requestType, request, value, index, data)
}

func (u *USB) BulkTransfer(in bool, data []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if in {
		return u.in.ReadContext(ctx, data)
	}
	return u.out.WriteContext(ctx, data)
}

func (u *USB) Close() error {
	u.done()
	return u.dev.Close()
}

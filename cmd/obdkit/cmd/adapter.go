package cmd

import (
	"time"

	"github.com/vwdiag/obdkit/internal/device"
	"github.com/vwdiag/obdkit/isotp"
)

// canBus adapts *device.CAN's device.Frame to the isotp.Frame shape the
// transport and simulator packages use, keeping them independent of the
// socket layer for testing.
type canBus struct {
	can *device.CAN
}

func (b canBus) Send(f isotp.Frame) error {
	return b.can.Send(device.Frame{ID: f.ID, Data: f.Data})
}

func (b canBus) Receive(deadline time.Duration) (isotp.Frame, error) {
	f, err := b.can.Receive(deadline)
	if err != nil {
		return isotp.Frame{}, err
	}
	return isotp.Frame{ID: f.ID, Data: f.Data}, nil
}

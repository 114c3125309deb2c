package simulator

import (
	"time"

	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/isotp"
)

// CANBus is the subset of *device.CAN a simulator needs.
type CANBus interface {
	Send(isotp.Frame) error
	Receive(deadline time.Duration) (isotp.Frame, error)
}

// CANECU answers OBD-II requests addressed to requestID on responseID: a
// single-frame reply for RPM (PID 0x0C) and, when asked for the VIN (mode
// 09 PID 0x02), a multi-frame reply that demonstrates a real flow-control
// limitation rather than working around it — this simulator sends its
// consecutive frame unconditionally, without waiting out the tester's
// requested separation time, the way at least one real ECU is reported to
// behave.
type CANECU struct {
	bus              CANBus
	requestID        uint32
	responseID       uint32
	rpmRawA, rpmRawB byte
	vin              string
	log              *obdlog.Logger
}

// NewCANECU constructs a simulator that reports rpm as its PID 0x0C value
// and vin (up to 10 bytes) as its mode 09 PID 0x02 value.
func NewCANECU(bus CANBus, requestID, responseID uint32, rpm float64, vin string) *CANECU {
	raw := uint16(rpm * 4)
	return &CANECU{
		bus: bus, requestID: requestID, responseID: responseID,
		rpmRawA: byte(raw >> 8), rpmRawB: byte(raw),
		vin: vin, log: obdlog.New("simulator/can"),
	}
}

// Run answers one request and returns. Callers loop it for a longer session.
func (e *CANECU) Run(timeout time.Duration) error {
	f, err := e.bus.Receive(timeout)
	if err != nil {
		return err
	}
	if f.ID != e.requestID || len(f.Data) < 3 {
		return nil
	}

	service, pid := f.Data[1], f.Data[2]
	switch {
	case service == 0x01 && pid == 0x0c:
		return e.bus.Send(isotp.Frame{
			ID:   e.responseID,
			Data: []byte{0x04, 0x41, 0x0c, e.rpmRawA, e.rpmRawB, 0x00, 0x00, 0x00},
		})
	case service == 0x09 && pid == 0x02:
		return e.sendVIN()
	}
	return nil
}

func (e *CANECU) sendVIN() error {
	payload := append([]byte{0x49, 0x02, 0x01}, []byte(e.vin)...)
	totalLength := len(payload)

	first := make([]byte, 8)
	first[0] = 0x10 | byte((totalLength>>8)&0x0f)
	first[1] = byte(totalLength)
	copy(first[2:], payload[:6])
	if err := e.bus.Send(isotp.Frame{ID: e.responseID, Data: first}); err != nil {
		return err
	}

	if _, err := e.bus.Receive(time.Second); err != nil { // flow control, ignored
		return err
	}

	remaining := payload[6:]
	cf := make([]byte, 8)
	cf[0] = 0x21
	copy(cf[1:], remaining)
	return e.bus.Send(isotp.Frame{ID: e.responseID, Data: cf})
}

package isotp

import (
	"time"

	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

// Frame is one CAN frame's arbitration id and payload, kept independent of
// the socket layer so this package tests without a real CAN device.
type Frame struct {
	ID   uint32
	Data []byte
}

// Bus is the subset of *device.CAN a transport needs.
type Bus interface {
	Send(Frame) error
	Receive(deadline time.Duration) (Frame, error)
}

// Transport runs one blocking request/response exchange at a time, per the
// single-threaded architecture the rest of this module follows: no
// background reassembly goroutine, no channel-based event loop.
type Transport struct {
	bus        Bus
	requestID  uint32
	responseID uint32
	timeout    time.Duration
	log        *obdlog.Logger
}

// NewTransport binds a transport to one request/response CAN id pair, e.g.
// 0x7DF/0x7E8 for a functional OBD-II query.
func NewTransport(bus Bus, requestID, responseID uint32, timeout time.Duration) *Transport {
	return &Transport{bus: bus, requestID: requestID, responseID: responseID, timeout: timeout, log: obdlog.New("isotp")}
}

// Request sends payload to requestID and returns the reassembled response
// from responseID, handling single- and multi-frame traffic in both
// directions.
func (t *Transport) Request(payload []byte) ([]byte, error) {
	if err := t.send(payload); err != nil {
		return nil, err
	}
	return t.receive()
}

func (t *Transport) send(payload []byte) error {
	if len(payload) <= 7 {
		sf, err := buildSingleFrame(payload)
		if err != nil {
			return err
		}
		// Single frames go out as a full 8-byte CAN frame, zero-padded.
		padded := make([]byte, MaxFrameData)
		copy(padded, sf)
		return t.bus.Send(Frame{ID: t.requestID, Data: padded})
	}

	ff, err := buildFirstFrame(len(payload), payload[:6])
	if err != nil {
		return err
	}
	if err := t.bus.Send(Frame{ID: t.requestID, Data: ff}); err != nil {
		return err
	}

	fc, err := t.awaitFlowControl()
	if err != nil {
		return err
	}

	remaining := payload[6:]
	sequence := 1
	sent := 0
	for len(remaining) > 0 {
		if fc.blockSize > 0 && sent == fc.blockSize {
			fc, err = t.awaitFlowControl()
			if err != nil {
				return err
			}
			sent = 0
		}
		n := 7
		if n > len(remaining) {
			n = len(remaining)
		}
		cf := buildConsecutiveFrame(sequence, remaining[:n])
		if err := t.bus.Send(Frame{ID: t.requestID, Data: cf}); err != nil {
			return err
		}
		remaining = remaining[n:]
		sequence++
		sent++
		if fc.separationMs > 0 {
			time.Sleep(time.Duration(fc.separationMs) * time.Millisecond)
		}
	}
	return nil
}

func (t *Transport) awaitFlowControl() (parsedPCI, error) {
	f, err := t.bus.Receive(t.timeout)
	if err != nil {
		return parsedPCI{}, xerrors.Timeout("flow control frame not received in time")
	}
	if f.ID != t.responseID {
		return t.awaitFlowControl()
	}
	pci, _, err := parsePCI(f.Data)
	if err != nil {
		return parsedPCI{}, err
	}
	if pci.kind != pciFlowControl {
		return parsedPCI{}, xerrors.UnexpectedBlock("expected a flow control frame", f.Data)
	}
	if pci.flowStatus == FlowOverflow {
		return parsedPCI{}, xerrors.UnexpectedBlock("remote node reported ISO-TP overflow", f.Data)
	}
	if pci.flowStatus == FlowWait {
		return t.awaitFlowControl()
	}
	return pci, nil
}

// receive reassembles one message from responseID. Multi-frame responses
// are accepted at whatever pace the sender chooses to honour: this
// transport always answers a first frame with block-size 0 and STmin 0,
// asking for every consecutive frame without further pacing. Some vehicles
// do not respect that and stall past the first frame; this is a known,
// documented limitation rather than a bug this transport tries to route
// around.
func (t *Transport) receive() ([]byte, error) {
	f, err := t.bus.Receive(t.timeout)
	if err != nil {
		return nil, err
	}
	if f.ID != t.responseID {
		return t.receive()
	}
	pci, data, err := parsePCI(f.Data)
	if err != nil {
		return nil, err
	}

	switch pci.kind {
	case pciSingleFrame:
		return data, nil
	case pciFirstFrame:
		return t.receiveConsecutive(pci.length, data)
	default:
		return nil, xerrors.UnexpectedBlock("unexpected ISO-TP frame kind for a new message", f.Data)
	}
}

func (t *Transport) receiveConsecutive(totalLength int, firstChunk []byte) ([]byte, error) {
	payload := make([]byte, 0, totalLength)
	payload = append(payload, firstChunk...)

	fc := buildFlowControl(FlowContinueToSend, 0, 0)
	if err := t.bus.Send(Frame{ID: t.requestID, Data: fc}); err != nil {
		return nil, err
	}

	expected := 1
	for len(payload) < totalLength {
		f, err := t.bus.Receive(t.timeout)
		if err != nil {
			return nil, xerrors.Timeout("consecutive frame not received in time")
		}
		if f.ID != t.responseID {
			continue
		}
		pci, data, err := parsePCI(f.Data)
		if err != nil {
			return nil, err
		}
		if pci.kind != pciConsecutiveFrame {
			return nil, xerrors.UnexpectedBlock("expected a consecutive frame", f.Data)
		}
		if pci.sequence != expected%16 {
			return nil, xerrors.UnexpectedBlock("wrong ISO-TP sequence number", f.Data)
		}
		payload = append(payload, data...)
		expected++
	}

	if len(payload) > totalLength {
		payload = payload[:totalLength]
	}
	return payload, nil
}

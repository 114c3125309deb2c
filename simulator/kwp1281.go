// Package simulator plays the ECU half of a KWP1281 or CAN conversation,
// for exercising the tester side against a second board (or an in-memory
// fake) without a real vehicle.
package simulator

import (
	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/obdlog"
)

const (
	kwpTitleClearDTCs      byte = 0x05
	kwpTitleQuit           byte = 0x06
	kwpTitleGetDTCs        byte = 0x07
	kwpTitleAck            byte = 0x09
	kwpTitleAsciiID        byte = 0xf6
	kwpTitleFaultCodes     byte = 0xfc
)

// KWP1281ECU plays the ECU side of a KWP1281 conversation: it answers with
// one ASCII identification block per configured id line, then an Ack, and
// with a canned fault triplet when asked for DTCs, matching what a real VAG
// ECU replies with over the first exchanges of a session.
type KWP1281ECU struct {
	line    *kline.Line
	counter uint8
	idLines []string
	faults  []byte // 0xff,0xff,0x88 for none, or 3-byte VAG triplets
	log     *obdlog.Logger
}

// NewKWP1281ECU wraps an already-established Line (the simulator does not
// perform 5-baud address detection itself; callers that need to answer a
// real 5-baud wakeup should sample the RX GPIO before constructing this).
func NewKWP1281ECU(line *kline.Line, idLines []string, faults []byte) *KWP1281ECU {
	return &KWP1281ECU{line: line, idLines: idLines, faults: faults, log: obdlog.New("simulator/kwp1281")}
}

// Run answers ASCII identification blocks, then loops answering requests
// until the tester sends Quit.
func (e *KWP1281ECU) Run() error {
	for _, id := range e.idLines {
		if err := e.sendBlock(kwpTitleAsciiID, []byte(id)); err != nil {
			return err
		}
		if _, _, err := e.recvBlock(); err != nil { // tester's Ack
			return err
		}
	}
	if err := e.sendBlock(kwpTitleAck, nil); err != nil {
		return err
	}

	for {
		title, _, err := e.recvBlock()
		if err != nil {
			return err
		}
		switch title {
		case kwpTitleGetDTCs:
			if err := e.sendBlock(kwpTitleFaultCodes, e.faults); err != nil {
				return err
			}
		case kwpTitleClearDTCs:
			e.faults = []byte{0xff, 0xff, 0x88}
			if err := e.sendBlock(kwpTitleAck, nil); err != nil {
				return err
			}
		case kwpTitleQuit:
			return e.sendBlock(kwpTitleAck, nil)
		default:
			if err := e.sendBlock(kwpTitleAck, nil); err != nil {
				return err
			}
		}
	}
}

func (e *KWP1281ECU) sendBlock(title byte, data []byte) error {
	length := byte(len(data) + 2)
	msg := make([]byte, 0, len(data)+4)
	msg = append(msg, length, e.counter, title)
	msg = append(msg, data...)
	msg = append(msg, 0x03)
	for i, b := range msg {
		last := i == len(msg)-1
		if err := e.line.WriteByte(b, !last); err != nil {
			return err
		}
	}
	e.counter++
	return nil
}

func (e *KWP1281ECU) recvBlock() (title byte, data []byte, err error) {
	lengthByte, err := e.line.ReadByte(true)
	if err != nil {
		return 0, nil, err
	}
	length := int(lengthByte)

	if _, err := e.line.ReadByte(true); err != nil { // counter, unchecked here
		return 0, nil, err
	}

	rest := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		last := i == length-1
		b, err := e.line.ReadByte(!last)
		if err != nil {
			return 0, nil, err
		}
		rest = append(rest, b)
	}
	e.counter++
	return rest[0], rest[1 : len(rest)-1], nil
}

// Package kwp1281 implements the VAG-proprietary KWP1281 session over the
// K-line — 5-baud address init, key-byte exchange, block-counter
// bookkeeping, per-byte complement handshake, and the high-level commands
// built on top of that block protocol.
package kwp1281

import (
	"fmt"
	"time"

	"github.com/vwdiag/obdkit/dtc"
	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/obdlog"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

// State is the session's lifecycle: pre-init, initializing, established,
// closed, or faulted after a wire-level protocol violation.
type State int

const (
	StatePreInit State = iota
	StateIniting
	StateEstablished
	StateClosed
	StateFaulted
)

// MeasuredValue is one field of a read_group response; the session forwards
// raw bytes and lets the caller (or groups.go's formula table) interpret
// them.
type MeasuredValue struct {
	FormulaID byte
	A, B      byte
}

// Session is one established KWP1281 conversation with a single ECU.
type Session struct {
	line    *kline.Line
	counter uint8
	kb1     byte
	kb2     byte
	ecuID   []byte
	state   State
	log     *obdlog.Logger
}

// Open performs the full init sequence: 5-baud address, sync-byte baud
// measurement, key-byte exchange, and ASCII identification gather. The
// returned Session is Established.
func Open(cfg kline.Config, ecuAddress byte) (*Session, error) {
	s := &Session{state: StateIniting, log: obdlog.New(fmt.Sprintf("kwp1281 ecu=0x%02x", ecuAddress))}

	line, err := kline.Init(cfg, ecuAddress)
	if err != nil {
		s.state = StateFaulted
		return nil, err
	}
	s.line = line
	s.log.Infof("measured baud %d", line.Baud())

	kb1, err := line.ReadByte(false)
	if err != nil {
		s.state = StateFaulted
		return nil, err
	}
	kb2, err := line.ReadByte(false)
	if err != nil {
		s.state = StateFaulted
		return nil, err
	}
	s.kb1, s.kb2 = kb1, kb2

	if err := line.WriteByte(0xff-kb2, false); err != nil {
		s.state = StateFaulted
		return nil, err
	}

	s.state = StateEstablished
	if err := s.gatherASCIIIdentification(); err != nil {
		s.state = StateFaulted
		return nil, err
	}

	return s, nil
}

func (s *Session) gatherASCIIIdentification() error {
	for i := 0; i < 10; i++ {
		title, data, err := s.readBlock()
		if err != nil {
			return err
		}
		if title == titleAscii {
			s.ecuID = append(s.ecuID, data...)
			if err := s.writeBlock(titleAck, nil); err != nil {
				return err
			}
			continue
		}
		if title == titleAck {
			return nil
		}
		return xerrors.UnexpectedBlock("unexpected block during ASCII id gather", data)
	}
	return xerrors.Timeout("ECU never sent end-of-identification block")
}

// ECUIdentification returns the assembled ASCII id string collected during
// init.
func (s *Session) ECUIdentification() string { return string(s.ecuID) }

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

func (s *Session) fault(err error) error {
	s.state = StateFaulted
	return err
}

// writeBlock sends one block with the given title and payload, honouring
// the per-byte complement handshake for every byte except the terminating
// 0x03. The length byte counts title+data+terminator, not the counter byte
// that follows it (see DESIGN.md).
func (s *Session) writeBlock(title byte, data []byte) error {
	if s.state == StateFaulted {
		return xerrors.Unsupported("session is faulted")
	}
	length := byte(len(data) + 2)
	msg := make([]byte, 0, len(data)+4)
	msg = append(msg, length, s.counter, title)
	msg = append(msg, data...)
	msg = append(msg, 0x03)

	for i, b := range msg {
		last := i == len(msg)-1
		if err := s.line.WriteByte(b, !last); err != nil {
			return s.fault(err)
		}
	}
	s.counter++
	return nil
}

// readBlock reads one block, ACKing every byte except the terminating 0x03,
// and validates the block counter is in lock-step with what this side
// expects.
func (s *Session) readBlock() (title byte, data []byte, err error) {
	if s.state == StateFaulted {
		return 0, nil, xerrors.Unsupported("session is faulted")
	}
	lengthByte, err := s.line.ReadByte(true)
	if err != nil {
		return 0, nil, s.fault(err)
	}
	length := int(lengthByte)
	if length < 2 {
		return 0, nil, s.fault(xerrors.UnexpectedBlock("block shorter than minimum length", []byte{lengthByte}))
	}

	counterByte, err := s.line.ReadByte(true)
	if err != nil {
		return 0, nil, s.fault(err)
	}
	if counterByte != s.counter {
		return 0, nil, s.fault(xerrors.CounterMismatch("KWP1281 block counter out of lock-step"))
	}

	rest := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		last := i == length-1
		b, rerr := s.line.ReadByte(!last)
		if rerr != nil {
			return 0, nil, s.fault(rerr)
		}
		rest = append(rest, b)
	}

	if rest[len(rest)-1] != 0x03 {
		return 0, nil, s.fault(xerrors.UnexpectedBlock("block not terminated with 0x03", rest))
	}
	s.counter++

	title = rest[0]
	data = rest[1 : len(rest)-1]
	return title, data, nil
}

// ReadDTCs sends title 0x07 and collects fault-code triplets from the
// resulting 0xFC blocks until the ECU sends 0x09. There is no cap on the
// number of triplets consumed per block.
func (s *Session) ReadDTCs() ([]dtc.Record, error) {
	if err := s.writeBlock(titleGetDtcs, nil); err != nil {
		return nil, err
	}

	var records []dtc.Record
	for {
		title, data, err := s.readBlock()
		if err != nil {
			return nil, err
		}
		if title == titleAck {
			return records, nil
		}
		if title != titleFaultCodes {
			return nil, xerrors.UnexpectedBlock("expected fault code or ack block", data)
		}
		for i := 0; i+3 <= len(data); i += 3 {
			if rec, ok := dtc.DecodeVAG3(data[i], data[i+1], data[i+2]); ok {
				records = append(records, rec)
			}
		}
		if err := s.writeBlock(titleAck, nil); err != nil {
			return nil, err
		}
	}
}

// ClearDTCs sends title 0x05 and expects an acknowledgement.
func (s *Session) ClearDTCs() error {
	if err := s.writeBlock(titleClearDtcs, nil); err != nil {
		return err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return err
	}
	if title != titleAck {
		return xerrors.UnexpectedBlock("expected ack after clear DTCs", data)
	}
	return nil
}

// ReadGroup sends title 0x29 with a group index and returns up to ten
// 3-byte measured-value fields, unparsed: the session forwards raw fields
// and leaves formula interpretation to groups.go.
func (s *Session) ReadGroup(group byte) ([]MeasuredValue, error) {
	if err := s.writeBlock(titleReadGroup, []byte{group}); err != nil {
		return nil, err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return nil, err
	}
	if title != titleGroupReply {
		return nil, xerrors.UnexpectedBlock("expected group reply block", data)
	}
	if err := s.writeBlock(titleAck, nil); err != nil {
		return nil, err
	}

	var values []MeasuredValue
	for i := 0; i+3 <= len(data); i += 3 {
		values = append(values, MeasuredValue{FormulaID: data[i], A: data[i+1], B: data[i+2]})
	}
	return values, nil
}

// ReadAdaptation reads channel's stored adaptation value. The reply block's
// leading byte echoes the channel, not part of the value, so it's stripped
// before returning.
func (s *Session) ReadAdaptation(channel byte) ([]byte, error) {
	if err := s.writeBlock(titleReadAdaptation, []byte{channel}); err != nil {
		return nil, err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return nil, err
	}
	if title != titleAdaptationReply {
		return nil, xerrors.UnexpectedBlock("expected adaptation reply block", data)
	}
	if len(data) < 1 {
		return nil, xerrors.UnexpectedBlock("adaptation reply block missing channel byte", data)
	}
	return data[1:], nil
}

// workshopCode is appended to write-adaptation requests. There is no CLI
// surface for a real workshop code, so a fixed placeholder is used.
var workshopCode = [3]byte{0x00, 0x00, 0x00}

// WriteAdaptation stores value into channel, appending the fixed workshop
// code trailer.
func (s *Session) WriteAdaptation(channel byte, value [2]byte) ([]byte, error) {
	payload := []byte{channel, value[0], value[1], workshopCode[0], workshopCode[1], workshopCode[2]}
	if err := s.writeBlock(titleWriteAdaptation, payload); err != nil {
		return nil, err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return nil, err
	}
	if title != titleAdaptationReply {
		return nil, xerrors.UnexpectedBlock("expected adaptation reply block", data)
	}
	return data, nil
}

// TestAdaptation exercises channel with value without persisting it.
func (s *Session) TestAdaptation(channel byte, value [2]byte) ([]byte, error) {
	payload := []byte{channel, value[0], value[1]}
	if err := s.writeBlock(titleTestAdaptation, payload); err != nil {
		return nil, err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return nil, err
	}
	if title != titleAdaptationReply {
		return nil, xerrors.UnexpectedBlock("expected adaptation reply block", data)
	}
	return data, nil
}

// Close sends the end-output block and awaits the final acknowledgement,
// transitioning the session to Closed.
func (s *Session) Close() error {
	if s.state != StateEstablished {
		return nil
	}
	if err := s.writeBlock(titleQuit, nil); err != nil {
		return err
	}
	title, data, err := s.readBlock()
	if err != nil {
		return err
	}
	if title != titleAck {
		return xerrors.UnexpectedBlock("expected ack after quit", data)
	}
	s.state = StateClosed
	return s.line.Close()
}

// KeepBusIdle blocks for the minimum idle window the K-line's shared-bus
// convention requires before a new session may be initialised, per the
// concurrency model's session-teardown rule.
func KeepBusIdle() { time.Sleep(3 * time.Second) }

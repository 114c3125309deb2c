package kwp1281

import (
	"testing"
	"time"

	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/klinetest"
	"github.com/vwdiag/obdkit/internal/obdlog"
)

// badEchoDevice wraps a klinetest.Device but corrupts the echo of the
// writeAt'th byte written to it, simulating a transceiver or line fault
// mid-block.
type badEchoDevice struct {
	*klinetest.Device
	writeAt int
	writes  int
}

func (d *badEchoDevice) WriteByte(b byte) error {
	if d.writes == d.writeAt {
		b ^= 0xff
	}
	d.writes++
	return d.Device.WriteByte(b)
}

func (d *badEchoDevice) SetReadTimeout(time.Duration) error { return nil }

// established builds a Session already in the Established state, wired to
// an in-memory K-line so higher-level command tests don't need real
// hardware or a full 5-baud init.
func established(remote []byte) (*Session, *klinetest.Device) {
	dev := klinetest.NewDevice(remote)
	line := kline.NewLine(dev, 10400)
	return &Session{line: line, state: StateEstablished, log: obdlog.New("test")}, dev
}

// ackBytesFor mirrors what the fake ECU would echo back for each
// non-terminal byte of a block the session transmits.
func ackBytesFor(block []byte) []byte {
	var acks []byte
	for i, b := range block {
		if i == len(block)-1 {
			continue
		}
		acks = append(acks, 0xff-b)
	}
	return acks
}

// block builds the raw wire bytes of one KWP1281 block.
func block(counter, title byte, data ...byte) []byte {
	b := []byte{byte(len(data) + 2), counter, title}
	b = append(b, data...)
	return append(b, 0x03)
}

func TestReadDTCsNoFaults(t *testing.T) {
	// scenario 1: response block [len, ctr, FC, FF, FF, 88, 03]
	request := block(0, titleGetDtcs)
	response := block(1, titleFaultCodes, 0xff, 0xff, 0x88)
	ackReply := block(2, titleAck)
	endOfList := block(3, titleAck)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)
	remote = append(remote, ackBytesFor(ackReply)...)
	remote = append(remote, endOfList...)

	s, _ := established(remote)
	records, err := s.ReadDTCs()
	if err != nil {
		t.Fatalf("ReadDTCs: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want none", records)
	}
	if s.State() != StateEstablished {
		t.Errorf("state = %v, want Established", s.State())
	}
}

func TestReadDTCsOneFault(t *testing.T) {
	// scenario 2: response block [len, ctr, FC, 40, AB, 23, 03]
	request := block(0, titleGetDtcs)
	response := block(1, titleFaultCodes, 0x40, 0xab, 0x23)
	ackReply := block(2, titleAck)
	endOfList := block(3, titleAck)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)
	remote = append(remote, ackBytesFor(ackReply)...)
	remote = append(remote, endOfList...)

	s, _ := established(remote)
	records, err := s.ReadDTCs()
	if err != nil {
		t.Fatalf("ReadDTCs: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %v, want exactly one", records)
	}
	rec := records[0]
	if rec.CodeNumber != 16555 {
		t.Errorf("code number = %d, want 16555", rec.CodeNumber)
	}
	if rec.StatusByte == nil || *rec.StatusByte != 0x23 {
		t.Errorf("status byte = %v, want 0x23", rec.StatusByte)
	}
}

func TestEchoMismatchFaultsSession(t *testing.T) {
	// Corrupt the echo of the very first byte the session transmits (the
	// length byte of the clear-DTCs request), before the ECU ever answers.
	dev := &badEchoDevice{Device: klinetest.NewDevice(nil), writeAt: 0}
	line := kline.NewLine(dev, 10400)
	s := &Session{line: line, state: StateEstablished, log: obdlog.New("test")}

	if err := s.ClearDTCs(); err == nil {
		t.Fatal("expected an echo mismatch error")
	}
	if s.State() != StateFaulted {
		t.Errorf("state = %v, want Faulted", s.State())
	}

	// Once Faulted, further operations must not touch the wire.
	sentBefore := len(dev.Sent)
	if _, err := s.ReadDTCs(); err == nil {
		t.Fatal("expected an error from a faulted session")
	}
	if len(dev.Sent) != sentBefore {
		t.Errorf("faulted session sent %d more bytes, want none", len(dev.Sent)-sentBefore)
	}
}

func TestReadAdaptation(t *testing.T) {
	// The reply block's leading byte echoes the requested channel and must
	// be stripped before the value is returned.
	const channel = 0x05
	request := block(0, titleReadAdaptation, channel)
	response := block(1, titleAdaptationReply, channel, 0x12, 0x34)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)

	s, _ := established(remote)
	value, err := s.ReadAdaptation(channel)
	if err != nil {
		t.Fatalf("ReadAdaptation: %v", err)
	}
	want := []byte{0x12, 0x34}
	if len(value) != len(want) || value[0] != want[0] || value[1] != want[1] {
		t.Errorf("value = % x, want % x", value, want)
	}
}

func TestWriteAdaptation(t *testing.T) {
	const channel = 0x05
	value := [2]byte{0x01, 0x02}
	payload := []byte{channel, value[0], value[1], 0x00, 0x00, 0x00}
	request := block(0, titleWriteAdaptation, payload...)
	response := block(1, titleAdaptationReply, 0xaa, 0xbb)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)

	s, _ := established(remote)
	got, err := s.WriteAdaptation(channel, value)
	if err != nil {
		t.Fatalf("WriteAdaptation: %v", err)
	}
	want := []byte{0xaa, 0xbb}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("value = % x, want % x (unstripped)", got, want)
	}
}

func TestTestAdaptation(t *testing.T) {
	const channel = 0x05
	value := [2]byte{0x01, 0x02}
	payload := []byte{channel, value[0], value[1]}
	request := block(0, titleTestAdaptation, payload...)
	response := block(1, titleAdaptationReply, 0xaa, 0xbb)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)

	s, _ := established(remote)
	got, err := s.TestAdaptation(channel, value)
	if err != nil {
		t.Fatalf("TestAdaptation: %v", err)
	}
	want := []byte{0xaa, 0xbb}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("value = % x, want % x (unstripped)", got, want)
	}
}

func TestReadGroup(t *testing.T) {
	const group = 0x03
	request := block(0, titleReadGroup, group)
	response := block(1, titleGroupReply, 0x01, 0x64, 0x00, 0x02, 0x32, 0x10)
	ackReply := block(2, titleAck)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)
	remote = append(remote, ackBytesFor(ackReply)...)

	s, _ := established(remote)
	values, err := s.ReadGroup(group)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	want := []MeasuredValue{
		{FormulaID: 0x01, A: 0x64, B: 0x00},
		{FormulaID: 0x02, A: 0x32, B: 0x10},
	}
	if len(values) != len(want) {
		t.Fatalf("values = %+v, want %+v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %+v, want %+v", i, values[i], want[i])
		}
	}
}

func TestCounterMismatchFaultsSession(t *testing.T) {
	// response carries the wrong counter (2 instead of the expected 1).
	request := block(0, titleClearDtcs)
	response := block(2, titleAck)

	var remote []byte
	remote = append(remote, ackBytesFor(request)...)
	remote = append(remote, response...)

	s, _ := established(remote)
	if err := s.ClearDTCs(); err == nil {
		t.Fatal("expected counter mismatch error")
	}
	if s.State() != StateFaulted {
		t.Errorf("state = %v, want Faulted", s.State())
	}

	// Once Faulted, further operations must not touch the wire.
	if _, err := s.ReadDTCs(); err == nil {
		t.Fatal("expected an error from a faulted session")
	}
}

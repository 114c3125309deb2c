package isotp

import (
	"testing"
	"time"
)

// fakeBus is a minimal in-memory Bus: every written frame is captured in
// sent, and Receive plays back a scripted sequence of frames.
type fakeBus struct {
	script []Frame
	pos    int
	sent   []Frame
}

func (b *fakeBus) Send(f Frame) error {
	b.sent = append(b.sent, f)
	return nil
}

func (b *fakeBus) Receive(time.Duration) (Frame, error) {
	if b.pos >= len(b.script) {
		return Frame{}, errTimeout
	}
	f := b.script[b.pos]
	b.pos++
	return f, nil
}

var errTimeout = &timeoutErr{}

type timeoutErr struct{}

func (e *timeoutErr) Error() string { return "no more scripted frames" }

func TestRequestSingleFrameRPM(t *testing.T) {
	// scenario 4: tester writes 02 01 0C 00 00 00 00 00, ECU replies
	// 04 41 0C 1A F8 00 00 00.
	bus := &fakeBus{
		script: []Frame{
			{ID: 0x7e8, Data: []byte{0x04, 0x41, 0x0c, 0x1a, 0xf8, 0x00, 0x00, 0x00}},
		},
	}
	tr := NewTransport(bus, 0x7df, 0x7e8, time.Second)

	resp, err := tr.Request([]byte{0x01, 0x0c})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(bus.sent))
	}
	if got, want := bus.sent[0].Data, []byte{0x02, 0x01, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x00}; string(got) != string(want) {
		t.Errorf("request frame = % x, want % x", got, want)
	}
	if len(resp) != 4 || resp[0] != 0x41 || resp[1] != 0x0c {
		t.Fatalf("response = % x, want a 0x41 0x0c reply", resp)
	}
	rpm := ((uint16(resp[2]) << 8) | uint16(resp[3])) / 4
	if rpm != 1726 {
		t.Errorf("rpm = %d, want 1726", rpm)
	}
}

func TestReceiveMultiFrameSendsFlowControl(t *testing.T) {
	bus := &fakeBus{
		script: []Frame{
			{ID: 0x7e8, Data: []byte{0x10, 0x0a, 0x49, 0x02, 0x01, 0x31, 0x47, 0x31}},
			{ID: 0x7e8, Data: []byte{0x21, 0x4a, 0x43, 0x35, 0x34, 0x34, 0x34, 0x37}},
		},
	}
	tr := NewTransport(bus, 0x7df, 0x7e8, time.Second)

	resp, err := tr.Request([]byte{0x09, 0x02})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(resp) != 10 {
		t.Fatalf("response length = %d, want 10", len(resp))
	}
	if len(bus.sent) != 2 {
		t.Fatalf("sent %d frames, want request + flow control", len(bus.sent))
	}
	if bus.sent[1].Data[0]&0xf0 != pciFlowControl {
		t.Errorf("second sent frame is not flow control: % x", bus.sent[1].Data)
	}
}

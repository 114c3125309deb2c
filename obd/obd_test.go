package obd

import (
	"testing"
	"time"

	"github.com/vwdiag/obdkit/isotp"
)

type fakeBus struct {
	script []isotp.Frame
	pos    int
	sent   []isotp.Frame
}

func (b *fakeBus) Send(f isotp.Frame) error {
	b.sent = append(b.sent, f)
	return nil
}

func (b *fakeBus) Receive(time.Duration) (isotp.Frame, error) {
	f := b.script[b.pos]
	b.pos++
	return f, nil
}

func TestReadDataFormattedRPM(t *testing.T) {
	// scenario 4: tester writes id=0x7DF 02 01 0C ..., ECU replies id=0x7E8
	// 04 41 0C 1A F8 ...
	bus := &fakeBus{script: []isotp.Frame{
		{ID: 0x7e8, Data: []byte{0x04, 0x41, 0x0c, 0x1a, 0xf8, 0x00, 0x00, 0x00}},
	}}
	client := NewClient(isotp.NewTransport(bus, 0x7df, 0x7e8, time.Second))

	got, err := client.ReadDataFormatted(0x0c, false)
	if err != nil {
		t.Fatalf("ReadDataFormatted: %v", err)
	}
	if want := "Engine speed: 1726.00 rpm"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadDTCsEmpty(t *testing.T) {
	bus := &fakeBus{script: []isotp.Frame{
		{ID: 0x7e8, Data: []byte{0x02, 0x43, 0x00}},
	}}
	client := NewClient(isotp.NewTransport(bus, 0x7df, 0x7e8, time.Second))

	records, err := client.ReadDTCs(false)
	if err != nil {
		t.Fatalf("ReadDTCs: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want none", records)
	}
}

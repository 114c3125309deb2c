package kwp2000

import (
	"testing"
	"time"

	"github.com/vwdiag/obdkit/internal/kline"
	"github.com/vwdiag/obdkit/internal/klinetest"
	"github.com/vwdiag/obdkit/internal/obdlog"
)

// established builds a Session already past slow init, wired to an
// in-memory K-line preloaded with the bytes the ECU would send.
func established(remote []byte, target byte) *Session {
	dev := klinetest.NewDevice(remote)
	line := kline.NewLine(dev, 10400)
	return &Session{line: line, target: target, lastActive: time.Now(), log: obdlog.New("test")}
}

func TestAddressWireByteParity(t *testing.T) {
	if got := addressWireByte(0x03); got != 0x83 {
		t.Errorf("addressWireByte(0x03) = %#02x, want 0x83", got)
	}
}

func TestFrameTargetForBrakes(t *testing.T) {
	if got := frameTargetFor(0x03); got != 0x28 {
		t.Errorf("frameTargetFor(0x03) = %#02x, want 0x28", got)
	}
}

func TestStartDiagnosticSessionAndReadDTCs(t *testing.T) {
	// scenario 3: brakes ECU. Tester writes are echoed by the fake device;
	// only the ECU's own bytes need to be scripted as "remote".
	startResponse := []byte{0x82, 0xf1, 0x28, 0x50, 0x89, 0x74}
	dtcResponse := []byte{0x82, 0xf1, 0x28, 0x58, 0x00, 0xf3}

	var remote []byte
	remote = append(remote, startResponse...)
	remote = append(remote, dtcResponse...)

	s := established(remote, 0x28)

	if _, err := s.request(serviceStartDiagnosticSession, []byte{0x89}); err != nil {
		t.Fatalf("start diagnostic session: %v", err)
	}

	records, err := s.ReadDTCs()
	if err != nil {
		t.Fatalf("ReadDTCs: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want none", records)
	}
}

func TestReadBlockChecksumMismatch(t *testing.T) {
	// last byte perturbed so the checksum no longer matches.
	bad := []byte{0x82, 0xf1, 0x28, 0x50, 0x89, 0x00}
	s := established(bad, 0x28)

	if _, err := s.request(serviceStartDiagnosticSession, []byte{0x89}); err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}

func TestRequestRetriesOnBusyRepeatRequest(t *testing.T) {
	// ECU answers busy-repeat-request once, then succeeds.
	busy := []byte{0x83, 0xf1, 0x28, 0x7f, 0x10, 0x21, 0x4c}
	ok := []byte{0x82, 0xf1, 0x28, 0x50, 0x89, 0x74}

	var remote []byte
	remote = append(remote, busy...)
	remote = append(remote, ok...)

	s := established(remote, 0x28)
	if _, err := s.request(serviceStartDiagnosticSession, []byte{0x89}); err != nil {
		t.Fatalf("request: %v", err)
	}
}

func TestRequestGivesUpOnNonRetryableNRC(t *testing.T) {
	// service-not-supported (0x11) is not in isRetryable's set.
	rejected := []byte{0x83, 0xf1, 0x28, 0x7f, 0x10, 0x11, 0x3c}
	s := established(rejected, 0x28)

	if _, err := s.request(serviceStartDiagnosticSession, []byte{0x89}); err == nil {
		t.Fatal("expected a negative response error")
	}
}

// Package device wraps the serial, GPIO and CAN peripherals a diagnostic
// session opens directly. Every operation here is synchronous and blocking
// with a caller-supplied deadline.
package device

import (
	"time"

	"go.bug.st/serial"

	"github.com/vwdiag/obdkit/internal/xerrors"
)

// Serial is an 8-N-1 UART opened for K-line use.
type Serial struct {
	port serial.Port
	baud int
}

// OpenSerial opens path at baud in 8-N-1, no flow control, with the read
// timeout set so reads return promptly instead of blocking forever (the
// software equivalent of VMIN=0/VTIME>0).
func OpenSerial(path string, baud int, readTimeout time.Duration) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, xerrors.IO("failed to open serial device "+path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, xerrors.IO("failed to set serial read timeout", err)
	}
	return &Serial{port: port, baud: baud}, nil
}

func (s *Serial) Baud() int { return s.baud }

// SetBaud reconfigures an already-open device to a new baud rate without
// closing and reopening the underlying file descriptor, used after K-line
// baud measurement when the caller keeps its own handle open across
// sessions instead of leaving each Init to open and close its own.
func (s *Serial) SetBaud(baud int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := s.port.SetMode(mode); err != nil {
		return xerrors.IO("failed to change serial baud rate", err)
	}
	s.baud = baud
	return nil
}

// ReadByte reads exactly one byte, or times out per the port's configured
// read timeout.
func (s *Serial) ReadByte() (byte, error) {
	buf := make([]byte, 1)
	n, err := s.port.Read(buf)
	if err != nil {
		return 0, xerrors.IO("serial read failed", err)
	}
	if n == 0 {
		return 0, xerrors.Timeout("timed out waiting for serial byte")
	}
	return buf[0], nil
}

// WriteByte writes exactly one byte.
func (s *Serial) WriteByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	if err != nil {
		return xerrors.IO("serial write failed", err)
	}
	return nil
}

func (s *Serial) SetReadTimeout(d time.Duration) error {
	if err := s.port.SetReadTimeout(d); err != nil {
		return xerrors.IO("failed to set serial read timeout", err)
	}
	return nil
}

func (s *Serial) Close() error { return s.port.Close() }

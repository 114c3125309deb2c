// Package kline implements the half-duplex K-line driver shared by the
// KWP1281 and KWP2000 sessions — 5-baud address init, baud measurement from
// the ECU's 0x55 sync byte, and byte-level send/receive with echo
// cancellation and complement handshakes.
package kline

import (
	"time"

	"github.com/vwdiag/obdkit/internal/device"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

const (
	initBaud          = 5
	writeDelay        = 5 * time.Millisecond
	edgeWaitTimeout   = 500 * time.Millisecond
	interByteReadWait = 5 * time.Millisecond
)

// Config describes the physical resources one K-line session needs. The TX
// GPIO line doubles as the UART TX pin: fiveBaudInit's GPIO handle and the
// UART that Init opens afterwards alias the same physical pin, so only one
// of them owns it at a time.
type Config struct {
	SerialPath string
	GPIOChip   string
	TXOffset   uint32
	RXOffset   uint32
	// Baud, if non-zero, skips 5-baud measurement and fixes the rate.
	Baud int
	// Serial, if set, is an already-open UART handle that Init reconfigures
	// to the measured baud rate in place (set_serial_baud) instead of
	// opening a fresh device. Used when a caller keeps one serial handle
	// open across repeated sessions on the same physical port; left nil,
	// Init opens and owns its own handle as usual.
	Serial *device.Serial
}

// owner tracks which peripheral currently drives the shared TX pin.
type owner int

const (
	ownerNone owner = iota
	ownerGPIO
	ownerUART
)

// byteDevice is the subset of *device.Serial the byte-level protocol needs.
// Sessions can be tested against a fake implementing this interface instead
// of a real UART.
type byteDevice interface {
	ReadByte() (byte, error)
	WriteByte(byte) error
	SetReadTimeout(time.Duration) error
	Close() error
}

// Line is an initialized K-line ready for byte-level exchange.
type Line struct {
	cfg    Config
	serial byteDevice
	baud   int
	owner  owner
}

// NewLine wraps an already-open byteDevice as an established Line, skipping
// 5-baud init. Used by protocol-level tests and by the simulator.
func NewLine(dev byteDevice, baud int) *Line {
	return &Line{serial: dev, baud: baud, owner: ownerUART}
}

// Init performs the 5-baud address init against initAddress and returns a
// Line switched to UART mode at the ECU's measured (or configured) baud
// rate. The GPIO ownership of the TX pin is released before returning,
// whether or not init succeeds.
func Init(cfg Config, initAddress byte) (*Line, error) {
	l := &Line{cfg: cfg}

	measured, err := l.fiveBaudInit(initAddress)
	if err != nil {
		return nil, err
	}

	baud := cfg.Baud
	if baud == 0 {
		baud = nearestBaudRate(measured)
	}

	if cfg.Serial != nil {
		if err := cfg.Serial.SetBaud(baud); err != nil {
			return nil, err
		}
		l.serial = cfg.Serial
	} else {
		s, err := device.OpenSerial(cfg.SerialPath, baud, edgeWaitTimeout)
		if err != nil {
			return nil, err
		}
		l.serial = s
	}
	l.baud = baud
	l.owner = ownerUART
	return l, nil
}

// Baud reports the rate the line settled on after init.
func (l *Line) Baud() int { return l.baud }

// fiveBaudInit holds the TX GPIO high (idle) for 300ms, bit-bangs
// initAddress as 7O1 at 5 baud, then samples the ECU's 0x55 sync byte to
// measure its native baud rate. Ownership of the shared TX pin is scoped:
// acquired here, released before returning even on error, so the caller's
// subsequent UART open always succeeds.
func (l *Line) fiveBaudInit(initAddress byte) (int, error) {
	tx, err := device.OpenGPIOLine(l.cfg.GPIOChip, l.cfg.TXOffset, device.DirectionOut, 1, "k-tx")
	if err != nil {
		return 0, err
	}
	l.owner = ownerGPIO
	defer func() {
		tx.Close()
		l.owner = ownerNone
	}()

	rx, err := device.OpenGPIOLine(l.cfg.GPIOChip, l.cfg.RXOffset, device.DirectionIn, 0, "k-rx")
	if err != nil {
		return 0, err
	}
	defer rx.Close()

	// Guarantee the line has been high for a while before pulling it low.
	time.Sleep(300 * time.Millisecond)

	if err := writeAddressSoftware(tx, initAddress); err != nil {
		return 0, err
	}

	return measureSyncByte(rx)
}

// writeAddressSoftware bit-bangs value as 7 data bits (LSB first), one odd
// parity bit, framed by a start bit (low) and stop bit (high), one bit per
// 200ms (5 baud). Total duration is roughly 2s.
func writeAddressSoftware(tx *device.GPIOLine, value byte) error {
	const bitTime = time.Second / initBaud

	bits := make([]uint8, 7)
	var parity uint8
	for i := 0; i < 7; i++ {
		b := (value >> i) & 1
		bits[i] = b
		parity += b
	}

	start := time.Now()
	sleepUntil := func(d time.Duration) {
		for time.Since(start) < d {
			time.Sleep(time.Millisecond)
		}
	}

	if err := tx.SetValue(0); err != nil { // start bit
		return err
	}
	for i, b := range bits {
		sleepUntil(time.Duration(i+1) * bitTime)
		if err := tx.SetValue(b); err != nil {
			return err
		}
	}
	sleepUntil(8 * bitTime)
	if err := tx.SetValue(1 - (parity % 2)); err != nil { // odd parity
		return err
	}
	sleepUntil(9 * bitTime)
	if err := tx.SetValue(1); err != nil { // stop bit
		return err
	}
	sleepUntil(10 * bitTime)
	return nil
}

// measureSyncByte samples the RX line's edges for the ECU's 0x55 sync byte
// and returns the measured baud rate.
func measureSyncByte(rx *device.GPIOLine) (int, error) {
	if err := waitForEdge(rx, 0); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := waitForEdge(rx, 1); err != nil {
		return 0, err
	}
	for i := 0; i < 4; i++ {
		if err := waitForEdge(rx, 0); err != nil {
			return 0, err
		}
		if err := waitForEdge(rx, 1); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start).Microseconds()
	return measuredBaudFromSyncByte(elapsed), nil
}

func waitForEdge(rx *device.GPIOLine, level uint8) error {
	deadline := time.Now().Add(edgeWaitTimeout)
	for time.Now().Before(deadline) {
		v, err := rx.Value()
		if err != nil {
			return err
		}
		if v == level {
			return nil
		}
	}
	return xerrors.Timeout("timed out waiting for edge")
}

// Send writes one byte and asserts the transceiver's echo matches, per the
// half-duplex line's echo-cancellation contract.
func (l *Line) Send(b byte) error {
	if err := l.serial.WriteByte(b); err != nil {
		return err
	}
	echo, err := l.serial.ReadByte()
	if err != nil {
		return err
	}
	if echo != b {
		return xerrors.EchoMismatch("K-line echo did not match transmitted byte")
	}
	return nil
}

// WriteByte writes value after the fixed inter-byte delay, and optionally
// expects the ECU to answer with its bitwise complement.
func (l *Line) WriteByte(value byte, complement bool) error {
	time.Sleep(writeDelay)
	if err := l.serial.WriteByte(value); err != nil {
		return err
	}
	echo, err := l.serial.ReadByte()
	if err != nil {
		return err
	}
	if echo != value {
		return xerrors.EchoMismatch("K-line echo did not match transmitted byte")
	}
	time.Sleep(l.tenBitTimes())
	if complement {
		got, err := l.serial.ReadByte()
		if err != nil {
			return err
		}
		if got != 0xff-value {
			return xerrors.ComplementMismatch("invalid complement received")
		}
	}
	return nil
}

// ReadByte reads one byte, optionally sending its bitwise complement back.
// The transceiver echoes our own transmitted ack into our RX just like it
// echoes any other write, so that echo is consumed here rather than left
// for the next ReadByte/WriteByte call to trip over.
func (l *Line) ReadByte(complement bool) (byte, error) {
	b, err := l.serial.ReadByte()
	if err != nil {
		return 0, err
	}
	if complement {
		if err := l.serial.WriteByte(0xff - b); err != nil {
			return 0, err
		}
		if _, err := l.serial.ReadByte(); err != nil {
			return 0, err
		}
	}
	return b, nil
}

func (l *Line) tenBitTimes() time.Duration {
	return time.Duration(10*1_000_000/l.baud) * time.Microsecond
}

// SetReadTimeout adjusts the per-read deadline, used to enforce
// caller-supplied deadlines on top of the driver's own defaults.
func (l *Line) SetReadTimeout(d time.Duration) error {
	return l.serial.SetReadTimeout(d)
}

// Close releases the underlying UART.
func (l *Line) Close() error {
	if l.serial == nil {
		return nil
	}
	return l.serial.Close()
}

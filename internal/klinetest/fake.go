// Package klinetest provides an in-memory half-duplex K-line double for
// exercising the KWP1281 and KWP2000 sessions without real UART/GPIO
// hardware.
package klinetest

import (
	"io"
	"time"
)

// Device models a half-duplex K-line: any byte written is immediately
// readable back as the transceiver's echo, ahead of whatever the scripted
// remote side ("ECU") sends next.
type Device struct {
	remote []byte
	rpos   int
	echo   []byte
	Sent   []byte
}

// NewDevice returns a Device that plays back remote as the ECU's side of
// the conversation.
func NewDevice(remote []byte) *Device {
	return &Device{remote: remote}
}

func (d *Device) ReadByte() (byte, error) {
	if len(d.echo) > 0 {
		b := d.echo[0]
		d.echo = d.echo[1:]
		return b, nil
	}
	if d.rpos >= len(d.remote) {
		return 0, io.EOF
	}
	b := d.remote[d.rpos]
	d.rpos++
	return b, nil
}

func (d *Device) WriteByte(b byte) error {
	d.echo = append(d.echo, b)
	d.Sent = append(d.Sent, b)
	return nil
}

func (d *Device) SetReadTimeout(time.Duration) error { return nil }
func (d *Device) Close() error                       { return nil }

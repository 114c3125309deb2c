package kline

import (
	"testing"

	"github.com/vwdiag/obdkit/internal/klinetest"
	"github.com/vwdiag/obdkit/internal/xerrors"
)

func TestWriteByteComplementOK(t *testing.T) {
	dev := klinetest.NewDevice([]byte{0xfe}) // complement of 0x01
	l := NewLine(dev, 10400)

	if err := l.WriteByte(0x01, true); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if len(dev.Sent) != 1 || dev.Sent[0] != 0x01 {
		t.Errorf("sent = %v, want [0x01]", dev.Sent)
	}
}

func TestWriteByteComplementMismatch(t *testing.T) {
	dev := klinetest.NewDevice([]byte{0x00}) // not the complement of 0x01
	l := NewLine(dev, 10400)

	err := l.WriteByte(0x01, true)
	if !xerrors.As(err, xerrors.KindComplementMismatch) {
		t.Fatalf("err = %v, want ComplementMismatch", err)
	}
}

func TestReadByteSendsComplement(t *testing.T) {
	dev := klinetest.NewDevice([]byte{0x55})
	l := NewLine(dev, 10400)

	b, err := l.ReadByte(true)
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0x55 {
		t.Errorf("read %#x, want 0x55", b)
	}
	if len(dev.Sent) != 1 || dev.Sent[0] != 0xaa {
		t.Errorf("sent = %v, want [0xaa]", dev.Sent)
	}
}

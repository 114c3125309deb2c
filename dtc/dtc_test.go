package dtc

import (
	"bytes"
	"testing"
)

func TestDecodeVAG3NoFault(t *testing.T) {
	if _, ok := DecodeVAG3(0xff, 0xff, 0x88); ok {
		t.Fatal("expected the 0xFF 0xFF sentinel triplet to decode to no fault")
	}
}

func TestDecodeVAG3OneFault(t *testing.T) {
	// scenario 2: block [05, ctr, FC, 40, AB, 23, 03]
	rec, ok := DecodeVAG3(0x40, 0xab, 0x23)
	if !ok {
		t.Fatal("expected a decoded record")
	}
	if rec.Family != FamilyVAG {
		t.Errorf("family = %v, want VAG", rec.Family)
	}
	if rec.CodeNumber != 16555 {
		t.Errorf("code number = %d, want 16555", rec.CodeNumber)
	}
	if rec.StatusByte == nil || *rec.StatusByte != 0x23 {
		t.Errorf("status byte = %v, want 0x23", rec.StatusByte)
	}
}

func TestDecodeVAG3Purity(t *testing.T) {
	a, _ := DecodeVAG3(0x12, 0x34, 0x56)
	b, _ := DecodeVAG3(0x12, 0x34, 0x56)
	sameStatus := (a.StatusByte == nil) == (b.StatusByte == nil) &&
		(a.StatusByte == nil || *a.StatusByte == *b.StatusByte)
	if a.Family != b.Family || a.CodeNumber != b.CodeNumber || !sameStatus || !bytes.Equal(a.Raw, b.Raw) {
		t.Errorf("decoding the same bytes twice produced different records: %+v vs %+v", a, b)
	}
}

func TestDecodeISO15031Families(t *testing.T) {
	cases := []struct {
		b1, b2 byte
		want   string
	}{
		{0x01, 0x43, "P0143"},
		{0x41, 0x43, "C0143"},
		{0x81, 0x43, "B0143"},
		{0xc1, 0x43, "U0143"},
	}
	for _, c := range cases {
		got := DecodeISO15031(c.b1, c.b2).String()
		if got != c.want {
			t.Errorf("DecodeISO15031(%#x, %#x) = %q, want %q", c.b1, c.b2, got, c.want)
		}
	}
}

// Package dtc decodes raw Diagnostic Trouble Code bytes into normalised
// records, for both the VAG 3-byte form (used by KWP1281, and by the KWP2000
// session for its 3-byte read-DTCs records) and the ISO 15031 2-byte form
// used by OBD-II.
package dtc

import "fmt"

// Family distinguishes the two DTC code spaces this module decodes.
type Family int

const (
	FamilyISO15031 Family = iota
	FamilyVAG
)

func (f Family) String() string {
	if f == FamilyVAG {
		return "VAG"
	}
	return "ISO15031"
}

// Record is the normalised output of both decoders.
type Record struct {
	Family     Family
	CodeNumber uint32
	// StatusByte is present for VAG records; nil for ISO 15031 records,
	// which carry no status byte.
	StatusByte *byte
	Raw        []byte
}

// DecodeVAG3 decodes one 3-byte KWP1281 fault-code triplet [hi, lo, status].
// A triplet whose first two bytes are both 0xFF is the ECU's "no fault"
// sentinel and decodes to ok=false; the third byte varies across samples, so
// hi==0xFF && lo==0xFF alone is treated as the sentinel.
func DecodeVAG3(hi, lo, status byte) (Record, bool) {
	raw := []byte{hi, lo, status}
	if hi == 0xff && lo == 0xff {
		return Record{}, false
	}
	st := status
	return Record{
		Family:     FamilyVAG,
		CodeNumber: uint32(hi)<<8 | uint32(lo),
		StatusByte: &st,
		Raw:        raw,
	}, true
}

// DecodeISO15031 decodes a 2-byte ISO 15031 DTC. The top two bits select the
// family letter (00 P, 01 C, 10 B, 11 U); the remaining 14 bits print
// zero-padded as the 4-digit hex code appended to that letter.
func DecodeISO15031(b1, b2 byte) Record {
	return Record{
		Family:     FamilyISO15031,
		CodeNumber: uint32(b1)<<8 | uint32(b2),
		Raw:        []byte{b1, b2},
	}
}

// String renders an ISO 15031 record as the conventional five-character
// code, e.g. "P0143". VAG records render as their decimal code number.
func (r Record) String() string {
	if r.Family == FamilyVAG {
		if r.StatusByte != nil {
			return fmt.Sprintf("%05d (status 0x%02x)", r.CodeNumber, *r.StatusByte)
		}
		return fmt.Sprintf("%05d", r.CodeNumber)
	}

	letters := [4]byte{'P', 'C', 'B', 'U'}
	letter := letters[(r.CodeNumber>>14)&0x3]
	digits := r.CodeNumber & 0x3fff
	return fmt.Sprintf("%c%04X", letter, digits)
}

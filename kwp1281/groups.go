package kwp1281

import "fmt"

// FormulaID selects how a measured-value field's two data bytes convert to
// a physical unit. The KWP1281 session forwards raw fields (see
// MeasuredValue); this table is the presentation layer the CLI uses to
// print read-group output, mirroring the way obd/pid.go presents raw OBD-II
// bytes as physical units.
type FormulaID = byte

const (
	FormulaRPM          FormulaID = 0x01 // a*b/4
	FormulaCoolantTemp  FormulaID = 0x02 // a*(b-100)/10, degrees C
	FormulaVoltage      FormulaID = 0x03 // a*b/100, volts
	FormulaRaw          FormulaID = 0x00 // no known formula, show raw bytes
)

// Format renders a MeasuredValue as a human-readable string per its
// formula ID, falling back to raw hex for formulas this table does not
// recognise.
func (v MeasuredValue) Format() string {
	a, b := float64(v.A), float64(v.B)
	switch v.FormulaID {
	case FormulaRPM:
		return fmt.Sprintf("%.0f rpm", a*b/4)
	case FormulaCoolantTemp:
		return fmt.Sprintf("%.1f C", a*(b-100)/10)
	case FormulaVoltage:
		return fmt.Sprintf("%.2f V", a*b/100)
	default:
		return fmt.Sprintf("raw 0x%02x 0x%02x", v.A, v.B)
	}
}

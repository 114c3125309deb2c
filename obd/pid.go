package obd

import (
	"fmt"

	"github.com/vwdiag/obdkit/dtc"
)

// FormatPID renders a mode 01/02 response body for pid using its known
// formula, per SAE J1979/ISO 15031-5. Unknown PIDs render as a hex dump
// rather than failing, since the caller may just want raw bytes anyway.
func FormatPID(pid byte, data []byte) string {
	switch pid {
	case 0x02:
		rec := dtc.DecodeISO15031(data[0], data[1])
		return fmt.Sprintf("Freeze DTC: %s", rec.String())
	case 0x04:
		return fmt.Sprintf("Calculated engine load: %.2f %%", float64(data[0])/2.55)
	case 0x05:
		return fmt.Sprintf("Engine coolant temperature: %d C", int(data[0])-40)
	case 0x06, 0x07, 0x08, 0x09:
		term := "Long"
		if pid == 0x06 || pid == 0x08 {
			term = "Short"
		}
		bank := 1
		if pid >= 0x08 {
			bank = 2
		}
		return fmt.Sprintf("%s term fuel trim - Bank %d: %.2f %%", term, bank, float64(data[0])/1.28-100.0)
	case 0x0a:
		return fmt.Sprintf("Fuel pressure: %d kPa", int(data[0])*3)
	case 0x0b:
		return fmt.Sprintf("Intake manifold absolute pressure: %d kPa", data[0])
	case 0x0c:
		return fmt.Sprintf("Engine speed: %.2f rpm", (256.0*float64(data[0])+float64(data[1]))/4.0)
	case 0x0d:
		return fmt.Sprintf("Vehicle speed: %d km/h", data[0])
	case 0x0e:
		return fmt.Sprintf("Timing advance: %.1f deg before TDC", float64(data[0])/2.0-64.0)
	case 0x0f:
		return fmt.Sprintf("Intake air temperature: %d C", int(data[0])-40)
	case 0x10:
		return fmt.Sprintf("MAF air flow rate: %.2f g/s", (256.0*float64(data[0])+float64(data[1]))/100.0)
	case 0x11:
		return fmt.Sprintf("Throttle position: %.2f %%", float64(data[0])/2.55)
	case 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b:
		id := pid - 0x13
		if data[1] == 0xff {
			return fmt.Sprintf("Oxygen Sensor %d: %.3f V, N/A %%", id, float64(data[0])/200.0)
		}
		return fmt.Sprintf("Oxygen Sensor %d: %.3f V, %.2f %%", id, float64(data[0])/200.0, float64(data[1])/1.28-100.0)
	case 0x1c:
		return fmt.Sprintf("OBD standard: %s", obdStandardName(data[0]))
	case 0x1f:
		return fmt.Sprintf("Run time since engine start: %d s", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x21:
		return fmt.Sprintf("Distance traveled with MIL on: %d km", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x22:
		return fmt.Sprintf("Fuel rail pressure: %.3f kPa", (float64(data[0])*256.0+float64(data[1]))*0.079)
	case 0x23:
		return fmt.Sprintf("Fuel rail gauge pressure: %d kPa", ((uint32(data[0])<<8)+uint32(data[1]))*10)
	case 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b:
		id := pid - 0x23
		ratio := (2.0 / 65536.0) * (float64(data[0])*256.0 + float64(data[1]))
		voltage := (8.0 / 65536.0) * (float64(data[2])*256.0 + float64(data[3]))
		return fmt.Sprintf("Oxygen Sensor %d: %.3f ratio, %.4f V", id, ratio, voltage)
	case 0x2c:
		return fmt.Sprintf("Commanded EGR: %.2f %%", float64(data[0])/2.55)
	case 0x2d:
		return fmt.Sprintf("EGR error: %.2f %%", float64(data[0])/1.28-100.0)
	case 0x2e:
		return fmt.Sprintf("Commanded evaporative purge: %.2f %%", float64(data[0])/2.55)
	case 0x2f:
		return fmt.Sprintf("Fuel tank level input: %.2f %%", float64(data[0])/2.55)
	case 0x30:
		return fmt.Sprintf("Warm-ups since codes cleared: %d", data[0])
	case 0x31:
		return fmt.Sprintf("Distance traveled since codes cleared: %d km", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x32:
		return fmt.Sprintf("Evaporative system vapor pressure: %.2f Pa", (float64(data[0])*256.0+float64(data[1]))/4.0)
	case 0x33:
		return fmt.Sprintf("Absolute barometric pressure: %d kPa", data[0])
	case 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b:
		id := pid - 0x33
		ratio := (2.0 / 65536.0) * (float64(data[0])*256.0 + float64(data[1]))
		current := float64(data[2]) + float64(data[3])/256.0 + 128.0
		return fmt.Sprintf("Oxygen sensor %d: %.3f ratio, %.2f mA", id, ratio, current)
	case 0x3c, 0x3d, 0x3e, 0x3f:
		bank := 1
		if pid == 0x3d || pid == 0x3f {
			bank = 2
		}
		sensor := 1
		if pid > 0x3d {
			sensor = 2
		}
		return fmt.Sprintf("Catalyst temperature: Bank %d, Sensor %d: %.1f C", bank, sensor, (float64(data[0])*256.0+float64(data[1]))/10.0-40.0)
	case 0x42:
		return fmt.Sprintf("Control module voltage: %.3f V", (float64(data[0])*256.0+float64(data[1]))/1000.0)
	case 0x43:
		return fmt.Sprintf("Absolute load value: %.2f %%", (float64(data[0])*256.0+float64(data[1]))/2.55)
	case 0x44:
		return fmt.Sprintf("Fuel-Air commanded equiv. ratio: %.3f", (float64(data[0])*256.0+float64(data[1]))*(2.0/65536.0))
	case 0x45:
		return fmt.Sprintf("Relative throttle position: %.2f %%", float64(data[0])/2.55)
	case 0x46:
		return fmt.Sprintf("Ambient air temperature: %d C", int(data[0])-40)
	case 0x47:
		return fmt.Sprintf("Absolute throttle position B: %.2f %%", float64(data[0])/2.55)
	case 0x48:
		return fmt.Sprintf("Absolute throttle position C: %.2f %%", float64(data[0])/2.55)
	case 0x49:
		return fmt.Sprintf("Absolute pedal position D: %.2f %%", float64(data[0])/2.55)
	case 0x4a:
		return fmt.Sprintf("Absolute pedal position E: %.2f %%", float64(data[0])/2.55)
	case 0x4b:
		return fmt.Sprintf("Absolute pedal position F: %.2f %%", float64(data[0])/2.55)
	case 0x4c:
		return fmt.Sprintf("Commanded throttle actuator: %.2f %%", float64(data[0])/2.55)
	case 0x4d:
		return fmt.Sprintf("Time run with MIL on: %d m", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x4e:
		return fmt.Sprintf("Time since trouble codes cleared: %d m", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x4f:
		return fmt.Sprintf("Max. value for fuel-air equiv. ratio, oxygen sensor voltage, oxygen sensor current, and intake manifold absolute pressure: %d, %d, %d, %d",
			data[0], data[1], data[2], uint16(data[3])*10)
	case 0x50:
		return fmt.Sprintf("Max. value for MAF air flow rate: %d", uint16(data[0])*10)
	case 0x51:
		return fmt.Sprintf("Fuel type: %s", fuelTypeName(data[0]))
	case 0x52:
		return fmt.Sprintf("Ethanol fuel: %.2f %%", float64(data[0])/2.55)
	case 0x53:
		return fmt.Sprintf("Absolute evap. system vapor pressure: %.3f kPa", (float64(data[0])*256.0+float64(data[1]))/200.0)
	case 0x54:
		return fmt.Sprintf("Evap. system vapor pressure: %d Pa", (int32(data[0])<<8)+int32(data[1])-32767)
	case 0x55, 0x56, 0x57, 0x58:
		term := "Short"
		if pid == 0x56 || pid == 0x58 {
			term = "Long"
		}
		bankA := 1
		if pid > 0x56 {
			bankA = 3
		}
		if len(data) > 1 {
			bankB := bankA + 1
			return fmt.Sprintf("%s term secondary oxygen sensor trim: bank %d: %.2f %%, bank %d: %.2f %%",
				term, bankA, float64(data[0])/1.28-100.0, bankB, float64(data[1])/1.28-100.0)
		}
		// Some ECUs (Golf Mk7 observed) answer with a single byte for this PID.
		return fmt.Sprintf("%s term secondary oxygen sensor trim: bank %d: %.2f %%", term, bankA, float64(data[0])/1.28-100.0)
	case 0x59:
		return fmt.Sprintf("Fuel rail absolute pressure: %d kPa", ((uint32(data[0])<<8)+uint32(data[1]))*10)
	case 0x5a:
		return fmt.Sprintf("Relative accelerator pedal position: %.2f %%", float64(data[0])/2.55)
	case 0x5b:
		return fmt.Sprintf("Hybrid battery pack remaining life: %.2f %%", float64(data[0])/2.55)
	case 0x5c:
		return fmt.Sprintf("Engine oil temperature: %d C", int(data[0])-40)
	case 0x5d:
		return fmt.Sprintf("Fuel injection timing: %.3f deg", (float64(data[0])*256.0+float64(data[1]))/128.0-210.0)
	case 0x5e:
		return fmt.Sprintf("Engine fuel rate: %.2f L/h", (float64(data[0])*256.0+float64(data[1]))/20.0)
	case 0x61:
		return fmt.Sprintf("Driver's demand engine torque: %d %%", int(data[0])-125)
	case 0x62:
		return fmt.Sprintf("Actual engine torque: %d %%", int(data[0])-125)
	case 0x63:
		return fmt.Sprintf("Engine reference torque: %d Nm", (uint16(data[0])<<8)+uint16(data[1]))
	case 0x64:
		return fmt.Sprintf("Engine percent torque data: idle: %d %%, P1: %d %%, P2: %d %%, P3: %d %%, P4: %d %%",
			int(data[0])-125, int(data[1])-125, int(data[2])-125, int(data[3])-125, int(data[4])-125)
	case 0xa6:
		if len(data) >= 4 {
			odo := uint64(data[0])<<24 + uint64(data[1])<<16 + uint64(data[2])<<8 + uint64(data[3])
			return fmt.Sprintf("Odometer: %d km", odo)
		}
	}
	return fmt.Sprintf("% x", data)
}

func obdStandardName(v byte) string {
	names := map[byte]string{
		1:  "OBD-II as defined by the CARB",
		2:  "OBD as defined by the EPA",
		3:  "OBD and OBD-II",
		4:  "OBD-I",
		5:  "Not OBD compliant",
		6:  "EOBD (Europe)",
		7:  "EOBD and OBD-II",
		8:  "EOBD and OBD",
		9:  "EOBD, OBD and OBD II",
		10: "JOBD (Japan)",
		11: "JOBD and OBD II",
		12: "JOBD and EOBD",
		13: "JOBD, EOBD, and OBD II",
		14: "Reserved",
		15: "Reserved",
		16: "Reserved",
		17: "Engine Manufacturer Diagnostics (EMD)",
		18: "Engine Manufacturer Diagnostics Enhanced (EMD+)",
		19: "Heavy Duty On-Board Diagnostics (Child/Partial) (HD OBD-C)",
		20: "Heavy Duty On-Board Diagnostics (HD OBD)",
		21: "World Wide Harmonized OBD (WWH OBD)",
		22: "Reserved",
		23: "Heavy Duty Euro OBD Stage I without NOx control (HD EOBD-I)",
		24: "Heavy Duty Euro OBD Stage I with NOx control (HD EOBD-I N)",
		25: "Heavy Duty Euro OBD Stage II without NOx control (HD EOBD-II)",
		26: "Heavy Duty Euro OBD Stage II with NOx control (HD EOBD-II N)",
		27: "Reserved",
		28: "Brazil OBD Phase 1 (OBDBr-1)",
		29: "Brazil OBD Phase 2 (OBDBr-2)",
		30: "Korean OBD (KOBD)",
		31: "India OBD I (IOBD I)",
		32: "India OBD II (IOBD II)",
		33: "Heavy Duty Euro OBD Stage VI (HD EOBD-IV)",
	}
	if name, ok := names[v]; ok {
		return name
	}
	return "Unknown"
}

func fuelTypeName(v byte) string {
	names := map[byte]string{
		0:  "Not available",
		1:  "Gasoline",
		2:  "Methanol",
		3:  "Ethanol",
		4:  "Diesel",
		5:  "LPG",
		6:  "CNG",
		7:  "Propane",
		8:  "Electric",
		9:  "Bifuel running Gasoline",
		10: "Bifuel running Methanol",
		11: "Bifuel running Ethanol",
		12: "Bifuel running LPG",
		13: "Bifuel running CNG",
		14: "Bifuel running Propane",
		15: "Bifuel running Electricity",
		16: "Bifuel running electric and combustion engine",
		17: "Hybrid Gasoline",
		18: "Hybrid Ethanol",
		19: "Hybrid Diesel",
		20: "Hybrid Electric",
		21: "Hybrid running electric and combustion engine",
		22: "Hybrid Regenerative",
		23: "Bifuel running Diesel",
	}
	if name, ok := names[v]; ok {
		return name
	}
	return "Unknown"
}

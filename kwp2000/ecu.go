package kwp2000

// frameTargets maps the well-known 5-baud wakeup address to the KWP2000
// frame target byte the ECU expects once communication has switched from
// the init address space to the K-line frame address space. Only the
// engine and brakes pairs are known; unlisted wakeup addresses are used
// verbatim as their own frame target, which matches simple ECUs where the
// two coincide.
var frameTargets = map[byte]byte{
	0x01: 0x10, // engine
	0x03: 0x28, // brakes
}

func frameTargetFor(wakeupAddress byte) byte {
	if t, ok := frameTargets[wakeupAddress]; ok {
		return t
	}
	return wakeupAddress
}

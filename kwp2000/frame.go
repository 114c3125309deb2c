package kwp2000

// TesterAddress is the conventional source address KWP2000 testers use.
const TesterAddress byte = 0xf1

// buildFrame builds the short frame form 0x80|len, target, source, data...,
// checksum. Payloads must fit in 63 bytes; larger payloads would need the
// alternate 0x80,target,source,0x00,length,data,checksum form, which this
// module does not build since no operation here needs a payload that long.
func buildFrame(target, source byte, data []byte) []byte {
	msg := make([]byte, 0, len(data)+4)
	msg = append(msg, 0x80+byte(len(data)), target, source)
	msg = append(msg, data...)
	msg = append(msg, checksum(msg))
	return msg
}

// checksum sums every byte modulo 256, wrapping like a Go byte addition.
func checksum(msg []byte) byte {
	var sum byte
	for _, b := range msg {
		sum += b
	}
	return sum
}

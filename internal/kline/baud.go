package kline

// knownBaudRates is the fixed candidate set for K-line baud-rate snapping
// (see DESIGN.md for why this list is wider than some reference material
// suggests).
var knownBaudRates = []int{1200, 2400, 4800, 9600, 10400}

// nearestBaudRate returns the known baud rate closest to measured.
func nearestBaudRate(measured int) int {
	best := knownBaudRates[0]
	bestDist := abs(best - measured)
	for _, b := range knownBaudRates[1:] {
		if d := abs(b - measured); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// measuredBaudFromSyncByte converts the elapsed microseconds between the
// first and last sampled edge of a 0x55 sync byte into a measured baud rate.
// 0x55 (0b01010101) framed as a UART byte has 9 bit-times between the first
// falling edge (start bit) and the last edge sampled, so one bit time is
// elapsedMicros/9.
func measuredBaudFromSyncByte(elapsedMicros int64) int {
	if elapsedMicros <= 0 {
		return 0
	}
	return int(1_000_000 / (elapsedMicros / 9))
}

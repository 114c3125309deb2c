package kline

import "testing"

func TestNearestBaudRateExact(t *testing.T) {
	for _, b := range knownBaudRates {
		if got := nearestBaudRate(b); got != b {
			t.Errorf("nearestBaudRate(%d) = %d, want %d", b, got, b)
		}
	}
}

func TestNearestBaudRateTolerance(t *testing.T) {
	cases := []struct {
		measured int
		want     int
	}{
		{9700, 9600},
		{10638, 10400}, // scenario 5: 10638 baud snaps to 10400
		{2500, 2400},
		{1150, 1200},
	}
	for _, c := range cases {
		if got := nearestBaudRate(c.measured); got != c.want {
			t.Errorf("nearestBaudRate(%d) = %d, want %d", c.measured, got, c.want)
		}
	}
}

func TestMeasuredBaudFromSyncByte(t *testing.T) {
	for _, b := range knownBaudRates {
		// A byte at rate b has 9 bit times spanning 1e6*9/b microseconds.
		elapsed := int64(1_000_000 * 9 / b)
		got := measuredBaudFromSyncByte(elapsed)
		if nearestBaudRate(got) != b {
			t.Errorf("measuredBaudFromSyncByte(%d) = %d, nearest %d, want %d", elapsed, got, nearestBaudRate(got), b)
		}
	}
}

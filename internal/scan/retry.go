// Package scan wraps retry-go for the small number of operations that
// deserve an automatic retry: opening a session against an ECU that may not
// answer the first 5-baud init.
package scan

import (
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	defaultDelay    = 3 * time.Second
)

// Retry runs fn up to three times with a three-second delay between
// attempts, the retry policy used when probing an ECU address that may not
// respond to the first 5-baud init.
func Retry(fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(defaultAttempts),
		retry.Delay(defaultDelay),
		retry.DelayType(retry.FixedDelay),
	)
}

package utils

import "time"

// Retry calls fn up to attempts times, sleeping delay * backoff^attempt
// between failures. Returns nil on the first success, otherwise the last
// error.
func Retry(attempts int, delay time.Duration, backoff float64, fn func() error) error {
	var err error
	wait := delay
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < attempts-1 {
			time.Sleep(wait)
			wait = time.Duration(float64(wait) * backoff)
		}
	}
	return err
}

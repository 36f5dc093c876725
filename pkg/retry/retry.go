// Package retry provides a bounded retry combinator for operations that can
// fail transiently, such as id-generation collisions on insert.
package retry

// Do invokes fn up to attempts times, passing the zero-based attempt number.
// It stops early when fn succeeds, or when retryable reports the returned
// error as non-retryable. The last error is returned after the final attempt.
func Do(attempts int, retryable func(error) bool, fn func(attempt int) error) error {
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		if retryable != nil && !retryable(err) {
			return err
		}
	}

	return err
}

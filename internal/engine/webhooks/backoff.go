package webhooks

import "time"

// RetryDelay computes the exponential backoff before the next attempt.
// attemptCount is the number of attempts already made, so the first retry
// waits the base delay. The schedule for base=30s is 30, 60, 120, 240, 480,
// ... capped at maxDelay.
func RetryDelay(attemptCount int, baseDelay, maxDelay time.Duration) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}

	delay := baseDelay
	for i := 1; i < attemptCount; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

package connection

import (
	"math"
	"math/rand"
	"time"
)

// reconnectDelay computes the wait before reconnect attempt n (1-based):
// base doubled per attempt up to the exponent clamp, capped at max,
// plus uniform jitter so clients recovering from the same outage don't
// stampede the backend.
func reconnectDelay(base, max, jitter time.Duration, maxExponent, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if maxExponent > 0 && attempt > maxExponent {
		attempt = maxExponent
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > max || delay < 0 {
		delay = max
	}
	if jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	return delay
}

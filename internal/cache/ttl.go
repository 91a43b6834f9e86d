package cache

import "time"

// TTL policy constants. Error responses are cached briefly so a flapping
// upstream is not hammered, while expensive successful calls stay cached
// longer in proportion to their cost.
const (
	clientErrorDivisor = 4
	serverErrorDivisor = 10
	minErrorTTL        = time.Second

	// costScaleUnits is the quantity (tokens, bytes) at which the TTL
	// multiplier grows by one.
	costScaleUnits = 1000.0
	maxCostFactor  = 4.0
)

// ResponseTTL derives the TTL for a cached upstream response from the base
// TTL, the HTTP status class and the billable quantity of the call.
//
// Non-2xx responses get a shortened TTL: 4xx shorter, 5xx shortest. 2xx
// responses get the base TTL lengthened proportionally to cost, so the most
// expensive calls are the last to expire.
func ResponseTTL(base time.Duration, statusCode int, costUnits float64) time.Duration {
	switch {
	case statusCode >= 500:
		return clampTTL(base / serverErrorDivisor)
	case statusCode >= 400:
		return clampTTL(base / clientErrorDivisor)
	}

	factor := 1.0
	if costUnits > 0 {
		factor += costUnits / costScaleUnits
		if factor > maxCostFactor {
			factor = maxCostFactor
		}
	}
	return time.Duration(float64(base) * factor)
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < minErrorTTL {
		return minErrorTTL
	}
	return ttl
}

package cache

import (
	"testing"
	"time"
)

func TestResponseTTL(t *testing.T) {
	base := 10 * time.Minute

	tests := []struct {
		name      string
		status    int
		costUnits float64
		expected  time.Duration
	}{
		{"success uses base", 200, 0, base},
		{"client error shortened", 404, 0, base / 4},
		{"server error shortest", 503, 0, base / 10},
		{"cost lengthens ttl", 200, 1000, 2 * base},
		{"cost factor capped", 200, 100000, 4 * base},
		{"error ignores cost", 500, 100000, base / 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResponseTTL(base, tt.status, tt.costUnits)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestResponseTTL_ErrorFloor(t *testing.T) {
	// A tiny base TTL must not collapse below the floor for error responses.
	got := ResponseTTL(2*time.Second, 500, 0)
	if got != time.Second {
		t.Errorf("expected 1s floor, got %v", got)
	}
}

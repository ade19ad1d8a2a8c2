package hcsr04

import (
	"testing"
	"time"
)

func TestMeasurement(t *testing.T) {
	for _, tc := range []struct {
		m        Measurement
		us       int64
		str      string
		duration time.Duration
	}{
		{Measurement{timeOfFlight: 150 * time.Microsecond}, 150, "150", 150 * time.Microsecond},
		{Measurement{timeOfFlight: 1500 * time.Nanosecond}, 1, "1", 1500 * time.Nanosecond},
		{Measurement{}, 0, "0", 0},
		{Measurement{timeOfFlight: time.Second, timedOut: true}, TimeoutSentinel, "-1", 0},
	} {
		if got := tc.m.InMicroseconds(); got != tc.us {
			t.Errorf("%+v.InMicroseconds(): want %d, got %d", tc.m, tc.us, got)
		}
		if got := tc.m.String(); got != tc.str {
			t.Errorf("%+v.String(): want %q, got %q", tc.m, tc.str, got)
		}
		if got := tc.m.Duration(); got != tc.duration {
			t.Errorf("%+v.Duration(): want %s, got %s", tc.m, tc.duration, got)
		}
	}
}

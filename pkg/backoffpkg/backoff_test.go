package backoffpkg

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestExponential(t *testing.T) {
	testCases := []struct {
		name    string
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{name: "ZeroBase", base: 0, attempt: 3, want: 0},
		{name: "FirstAttempt", base: 100 * time.Millisecond, attempt: 0, want: 100 * time.Millisecond},
		{name: "ThirdAttempt", base: 100 * time.Millisecond, attempt: 2, want: 400 * time.Millisecond},
		{name: "NegativeAttempt", base: time.Second, attempt: -1, want: time.Second},
		{name: "Overflow", base: time.Hour, attempt: 100, want: time.Duration(math.MaxInt64)},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Exponential(tc.base, tc.attempt); got != tc.want {
				t.Errorf("Exponential(%v, %v) = %v, want %v", tc.base, tc.attempt, got, tc.want)
			}
		})
	}
}

func TestFullJitterRange(t *testing.T) {
	delay := 50 * time.Millisecond

	for i := 0; i < 100; i++ {
		if got := FullJitter(delay); got < 0 || got >= delay {
			t.Fatalf("FullJitter(%v) = %v, want [0, %v)", delay, got, delay)
		}
	}

	if got := FullJitter(0); got != 0 {
		t.Errorf("FullJitter(0) = %v, want 0", got)
	}
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SleepWithContext(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SleepWithContext() returned %v, want %v", err, context.Canceled)
	}
}

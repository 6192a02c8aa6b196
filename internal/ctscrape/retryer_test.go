package ctscrape

import (
	"testing"
	"time"
)

// newTestRetryer returns a Retryer whose "sleep" just records the
// duration it would have waited, so backoff-progression tests run
// instantly instead of burning wall-clock time up to the 15s cap.
func newTestRetryer() (*Retryer, *[]time.Duration) {
	r := NewRetryer()
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestRetryerMonotonicUntilCap(t *testing.T) {
	r, slept := newTestRetryer()
	var last time.Duration
	for i := 0; i < 20; i++ {
		// Once the base delay sits at the cap, only the random jitter
		// varies, so the snooze is no longer guaranteed to grow.
		capped := r.delay >= retryerMaxDelay
		if err := r.Failure(); err != nil {
			t.Fatalf("Failure: %v", err)
		}
		got := (*slept)[i]
		if !capped && got < last {
			t.Fatalf("attempt %d snoozed %v, shorter than previous %v", i, got, last)
		}
		last = got
		if r.delay > retryerMaxDelay {
			t.Fatalf("delay %v exceeded cap %v", r.delay, retryerMaxDelay)
		}
	}
}

func TestRetryerResetRestoresInitialState(t *testing.T) {
	r, _ := newTestRetryer()
	for i := 0; i < 5; i++ {
		if err := r.Failure(); err != nil {
			t.Fatalf("Failure: %v", err)
		}
	}
	r.Reset()
	if r.delay != retryerInitialDelay || r.delayScaling != retryerInitialScaling {
		t.Fatalf("Reset left delay=%v scaling=%v, want initial values", r.delay, r.delayScaling)
	}
}

func TestRetryerDelayCapsAt15Seconds(t *testing.T) {
	r, _ := newTestRetryer()
	for i := 0; i < 10; i++ {
		if err := r.Failure(); err != nil {
			t.Fatalf("Failure: %v", err)
		}
	}
	if r.delay != retryerMaxDelay {
		t.Fatalf("delay = %v after repeated failures, want cap %v", r.delay, retryerMaxDelay)
	}
}

func TestRetryerJitterWindowGrows(t *testing.T) {
	r, _ := newTestRetryer()
	if r.delayScaling != retryerInitialScaling {
		t.Fatalf("initial scaling = %v, want %v", r.delayScaling, retryerInitialScaling)
	}
	if err := r.Failure(); err != nil {
		t.Fatalf("Failure: %v", err)
	}
	if want := retryerInitialScaling + retryerScalingIncrement; r.delayScaling != want {
		t.Fatalf("scaling after one failure = %v, want %v", r.delayScaling, want)
	}
}

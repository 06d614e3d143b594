package redis

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("probe failure")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.Execute(func() error { return errProbe })
	}
}

func TestBreaker_TripsAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	failN(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after 2 failures = %s, want closed", got)
	}

	failN(b, 1)
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after 3 failures = %s, want open", got)
	}

	// Open breaker rejects without calling fn.
	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Fatal("fn executed while breaker open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	failN(b, 2)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Counter reset: two more failures must not trip.
	failN(b, 2)
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state = %s, want closed after reset", got)
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, time.Millisecond)

	failN(b, 1)
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state = %s, want open", got)
	}

	time.Sleep(5 * time.Millisecond)

	// Failed probe reopens.
	b.Execute(func() error { return errProbe })
	if got := b.State(); got != BreakerOpen {
		t.Fatalf("state after failed probe = %s, want open", got)
	}

	time.Sleep(5 * time.Millisecond)

	// Successful probe closes.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if got := b.State(); got != BreakerClosed {
		t.Fatalf("state after successful probe = %s, want closed", got)
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	var transitions []string
	b.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	failN(b, 1)
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("transitions = %v", transitions)
	}
}

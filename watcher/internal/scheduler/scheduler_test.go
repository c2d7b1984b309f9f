package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestRun_ImmediateFirstRun(t *testing.T) {
	// WHAT: The task fires once right away, before the first tick.
	// WHY: A freshly started daemon should check the report immediately,
	// not six hours later.
	ran := make(chan struct{}, 1)
	r := New(time.Hour, func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run immediately")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	// WHAT: The task keeps firing on the ticker until the context ends.
	ran := make(chan struct{}, 16)
	r := New(5*time.Millisecond, func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d never happened", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	r := New(0, func(context.Context) {}, nil)
	if r.Interval() != 6*time.Hour {
		t.Errorf("interval = %v, want 6h", r.Interval())
	}
}

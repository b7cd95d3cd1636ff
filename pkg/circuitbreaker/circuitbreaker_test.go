package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errTestError   = errors.New("test error")
	errCallerFault = errors.New("caller fault")
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clock.Now
	return cb, clock
}

func testConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 1,
	}
}

func call(cb *CircuitBreaker, err error) error {
	_, got := ExecuteWithResult(context.Background(), cb, func() (struct{}, error) {
		return struct{}{}, err
	})
	return got
}

func openBreaker(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	for i := 0; i < cb.cfg.FailureThreshold; i++ {
		_ = call(cb, errTestError)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state Open, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_FailuresBelowThresholdPassThrough(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())

	if err := call(cb, errTestError); err != errTestError {
		t.Errorf("Expected original error, got: %v", err)
	}
	if err := call(cb, nil); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	// The success above reset the streak.
	_ = call(cb, errTestError)
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())
	openBreaker(t, cb)

	called := false
	_, err := ExecuteWithResult(context.Background(), cb, func() (string, error) {
		called = true
		return "x", nil
	})

	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got: %v", err)
	}
	if called {
		t.Error("function must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	cb, clock := newTestBreaker(testConfig())
	openBreaker(t, cb)

	clock.Advance(time.Minute)
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("Expected state HalfOpen, got: %v", cb.GetState())
	}

	for i := 0; i < 2; i++ {
		if err := call(cb, nil); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(testConfig())
	openBreaker(t, cb)
	clock.Advance(time.Minute)

	_ = call(cb, errTestError)

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state Open, got: %v", cb.GetState())
	}
	clock.Advance(30 * time.Second)
	if !errors.Is(call(cb, nil), ErrOpen) {
		t.Error("reopened breaker must wait a full timeout again")
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(testConfig())
	openBreaker(t, cb)
	clock.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := ExecuteWithResult(context.Background(), cb, func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started

	if err := call(cb, nil); !errors.Is(err, ErrOpen) {
		t.Errorf("second probe should be rejected, got: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first probe: %v", err)
	}
}

func TestCircuitBreaker_StaleResultsIgnored(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ExecuteWithResult(context.Background(), cb, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	_ = call(cb, errTestError)
	close(release)
	<-done

	if cb.GetState() != StateOpen {
		t.Errorf("a success admitted before opening must not count, state: %v", cb.GetState())
	}
}

func TestCircuitBreaker_IsFailureFiltersCallerErrors(t *testing.T) {
	cfg := testConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, errCallerFault) }
	cb, _ := newTestBreaker(cfg)

	for i := 0; i < 5; i++ {
		if err := call(cb, errCallerFault); err != errCallerFault {
			t.Fatalf("Expected caller error back, got: %v", err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("caller errors must not open the breaker, state: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ZeroValueOnRejection(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())

	got, err := ExecuteWithResult(context.Background(), cb, func() (string, error) {
		return "video-1", nil
	})
	if err != nil || got != "video-1" {
		t.Fatalf("ExecuteWithResult() = %q, %v", got, err)
	}

	openBreaker(t, cb)
	got, err = ExecuteWithResult(context.Background(), cb, func() (string, error) {
		return "unreachable", nil
	})
	if !errors.Is(err, ErrOpen) || got != "" {
		t.Errorf("Expected ErrOpen and zero value, got %q, %v", got, err)
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteWithResult(ctx, cb, func() (int, error) { return 1, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, _ := newTestBreaker(testConfig())

	changes := make(chan [2]State, 4)
	cb.OnStateChange(func(from, to State) {
		changes <- [2]State{from, to}
	})

	openBreaker(t, cb)

	select {
	case change := <-changes:
		if change[0] != StateClosed || change[1] != StateOpen {
			t.Errorf("unexpected transition %v -> %v", change[0], change[1])
		}
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = call(cb, errTestError)
			} else {
				_ = call(cb, nil)
			}
		}(i)
	}
	wg.Wait()
	_ = cb.GetState()
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", state, state.String(), want)
		}
	}
}

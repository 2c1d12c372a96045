package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarket/marketplace/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestBreaker(t *testing.T, mutate func(*CircuitBreakerConfig)) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.VolumeThreshold = 4
	cfg.SleepWindow = time.Second
	if mutate != nil {
		mutate(cfg)
	}
	cb, err := NewCircuitBreaker(cfg)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now()}
	cb.now = clock.Now
	cb.window.Reset()
	cb.stateChangedAt = clock.Now()
	return cb, clock
}

func fail(ctx context.Context) error    { return transient() }
func succeed(ctx context.Context) error { return nil }

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestCircuitBreakerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CircuitBreakerConfig)
	}{
		{"zero threshold", func(c *CircuitBreakerConfig) { c.ErrorThreshold = 0 }},
		{"threshold above one", func(c *CircuitBreakerConfig) { c.ErrorThreshold = 1.5 }},
		{"zero volume", func(c *CircuitBreakerConfig) { c.VolumeThreshold = 0 }},
		{"zero sleep window", func(c *CircuitBreakerConfig) { c.SleepWindow = 0 }},
		{"negative half-open requests", func(c *CircuitBreakerConfig) { c.HalfOpenRequests = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := NewCircuitBreaker(cfg)
			assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
		})
	}

	cb, err := NewCircuitBreaker(nil)
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("storage", core.CircuitBreakerConfig{
		Enabled:         true,
		ErrorThreshold:  0.25,
		VolumeThreshold: 8,
	})

	assert.Equal(t, "storage", cfg.Name)
	assert.Equal(t, 0.25, cfg.ErrorThreshold)
	assert.Equal(t, 8, cfg.VolumeThreshold)
	assert.Equal(t, DefaultConfig().SleepWindow, cfg.SleepWindow, "unset fields keep defaults")
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(ctx, fail))
		assert.Equal(t, StateClosed, cb.State(), "below volume threshold")
	}

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.False(t, core.IsRetryable(err))
	assert.Zero(t, calls)
	assert.Equal(t, uint64(1), cb.GetMetrics()["rejected"])
}

func TestCircuitBreakerStaysClosedBelowErrorRate(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(ctx, fail))
	}

	assert.Equal(t, StateClosed, cb.State(), "3 of 9 is below 50%")
}

func TestCircuitBreakerIgnoresUserErrors(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := cb.Execute(ctx, func(context.Context) error {
			return core.NewValidationError("op", "price", core.ErrInvalidPrice)
		})
		assert.ErrorIs(t, err, core.ErrInvalidPrice)
		_ = cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	}

	assert.Equal(t, StateClosed, cb.State())
	success, failure := cb.window.Counts()
	assert.Zero(t, success)
	assert.Zero(t, failure)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(500 * time.Millisecond)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), core.ErrCircuitBreakerOpen, "still sleeping")

	clock.Advance(time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	success, failure := cb.window.Counts()
	assert.Zero(t, success+failure, "closing clears the window")
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)
	ctx := context.Background()

	var transitions []string
	var mu sync.Mutex
	cb.AddStateChangeListener(func(name string, from, to CircuitState) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(2 * time.Second)

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->open"}, transitions)
}

func TestCircuitBreakerHalfOpenLimitsTrials(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, succeed), core.ErrCircuitBreakerOpen, "one trial at a time")
	assert.Equal(t, StateHalfOpen, cb.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerRecoversPanic(t *testing.T) {
	cb, _ := newTestBreaker(t, func(c *CircuitBreakerConfig) { c.VolumeThreshold = 1 })

	err := cb.Execute(context.Background(), func(context.Context) error {
		panic("driver exploded")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver exploded")
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t, func(c *CircuitBreakerConfig) { c.VolumeThreshold = 1 })
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint64(0), cb.GetMetrics()["rejected"])
	assert.NoError(t, cb.Execute(context.Background(), succeed))
}

func TestCircuitBreakerWithRetry(t *testing.T) {
	cb, _ := newTestBreaker(t, func(c *CircuitBreakerConfig) { c.VolumeThreshold = 2 })
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, fastConfig(5), func() error {
		return cb.Execute(ctx, func(context.Context) error {
			calls++
			return transient()
		})
	})

	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen, "an open circuit stops the retry loop")
	assert.False(t, errors.Is(err, core.ErrMaxRetriesExceeded))
	assert.Equal(t, 2, calls)
}

func TestSlidingWindowExpiresBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sw := NewSlidingWindow(10*time.Second, 10, clock.Now)

	sw.RecordFailure()
	sw.RecordSuccess()
	assert.Equal(t, 0.5, sw.ErrorRate())

	clock.Advance(5 * time.Second)
	sw.RecordSuccess()
	success, failure := sw.Counts()
	assert.Equal(t, uint64(2), success)
	assert.Equal(t, uint64(1), failure)

	clock.Advance(6 * time.Second)
	success, failure = sw.Counts()
	assert.Equal(t, uint64(1), success, "the first bucket aged out")
	assert.Zero(t, failure)

	clock.Advance(time.Minute)
	assert.Zero(t, sw.ErrorRate())
}

func TestSlidingWindowClockSkewResets(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	sw := NewSlidingWindow(10*time.Second, 10, clock.Now)
	sw.RecordFailure()

	clock.Advance(-time.Minute)
	sw.RecordSuccess()

	success, failure := sw.Counts()
	assert.Equal(t, uint64(1), success)
	assert.Zero(t, failure)
}

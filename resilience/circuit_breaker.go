package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openmarket/marketplace/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors count toward the error threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors. Input, lookup,
// session and cancellation errors say nothing about the backend's health.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsValidation(err) || core.IsNotFound(err) || core.IsStateError(err) || core.IsConfigurationError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs, errors and metrics
	Name string

	// ErrorThreshold is the error rate (0.0 to 1.0) that triggers opening
	ErrorThreshold float64

	// VolumeThreshold is the minimum number of calls in the window before
	// the error rate is evaluated
	VolumeThreshold int

	// SleepWindow is how long the circuit stays open before a trial call
	SleepWindow time.Duration

	// HalfOpenRequests is the number of trial calls allowed while half-open
	HalfOpenRequests int

	// WindowSize and BucketCount shape the sliding window of outcomes
	WindowSize  time.Duration
	BucketCount int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Telemetry       core.Telemetry
}

// DefaultConfig returns the configuration used for storage writes
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "storage",
		ErrorThreshold:   0.5,
		VolumeThreshold:  5,
		SleepWindow:      10 * time.Second,
		HalfOpenRequests: 1,
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Telemetry:        &core.NoOpTelemetry{},
	}
}

// FromSettings builds a breaker configuration from the service config.
func FromSettings(name string, s core.CircuitBreakerConfig) *CircuitBreakerConfig {
	cfg := DefaultConfig()
	cfg.Name = name
	if s.ErrorThreshold > 0 {
		cfg.ErrorThreshold = s.ErrorThreshold
	}
	if s.VolumeThreshold > 0 {
		cfg.VolumeThreshold = s.VolumeThreshold
	}
	if s.SleepWindow > 0 {
		cfg.SleepWindow = s.SleepWindow
	}
	if s.HalfOpenRequests > 0 {
		cfg.HalfOpenRequests = s.HalfOpenRequests
	}
	return cfg
}

// Validate checks the configuration
func (c *CircuitBreakerConfig) Validate() error {
	if c.ErrorThreshold <= 0 || c.ErrorThreshold > 1 {
		return fmt.Errorf("error threshold must be in (0, 1], got %v: %w", c.ErrorThreshold, core.ErrInvalidConfiguration)
	}
	if c.VolumeThreshold < 1 {
		return fmt.Errorf("volume threshold must be positive, got %d: %w", c.VolumeThreshold, core.ErrInvalidConfiguration)
	}
	if c.SleepWindow <= 0 {
		return fmt.Errorf("sleep window must be positive, got %v: %w", c.SleepWindow, core.ErrInvalidConfiguration)
	}
	if c.HalfOpenRequests < 0 {
		return fmt.Errorf("half-open requests must not be negative: %w", core.ErrInvalidConfiguration)
	}
	return nil
}

// CircuitBreaker stops calling a failing backend for SleepWindow once the
// error rate over the sliding window reaches ErrorThreshold. After the
// window, up to HalfOpenRequests trial calls decide whether it closes again.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	window *SlidingWindow
	now    func() time.Time

	mu                sync.Mutex
	state             CircuitState
	stateChangedAt    time.Time
	halfOpenInFlight  int
	halfOpenSuccesses int
	rejected          uint64
	listeners         []func(name string, from, to CircuitState)
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.WindowSize <= 0 {
		config.WindowSize = 60 * time.Second
	}
	if config.BucketCount <= 0 {
		config.BucketCount = 10
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Telemetry == nil {
		config.Telemetry = &core.NoOpTelemetry{}
	}

	cb := &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
	cb.window = NewSlidingWindow(config.WindowSize, config.BucketCount, cb.clock)
	cb.stateChangedAt = cb.now()

	config.Logger.Info("Circuit breaker created", map[string]interface{}{
		"operation":        "circuit_breaker_created",
		"name":             config.Name,
		"error_threshold":  config.ErrorThreshold,
		"volume_threshold": config.VolumeThreshold,
		"sleep_window_ms":  config.SleepWindow.Milliseconds(),
	})
	return cb, nil
}

func (cb *CircuitBreaker) clock() time.Time {
	return cb.now()
}

// SetLogger scopes the logger to the "resilience" component.
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch l := logger.(type) {
	case nil:
		cb.config.Logger = &core.NoOpLogger{}
	case core.ComponentAwareLogger:
		cb.config.Logger = l.WithComponent("resilience")
	default:
		cb.config.Logger = logger
	}
}

// Execute runs fn unless the circuit is open, in which case it returns an
// error wrapping core.ErrCircuitBreakerOpen without calling fn. A panic in
// fn is recovered and counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) (err error) {
	halfOpen, allowed := cb.allow()
	if !allowed {
		cb.config.Logger.DebugWithContext(ctx, "Circuit breaker rejected execution", map[string]interface{}{
			"operation": "circuit_breaker_reject",
			"name":      cb.config.Name,
		})
		cb.config.Telemetry.RecordMetric("marketplace.circuit.rejections", 1, map[string]string{"name": cb.config.Name})
		return fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in circuit breaker '%s': %v", cb.config.Name, r)
			cb.config.Logger.ErrorWithContext(ctx, "Circuit breaker caught panic", map[string]interface{}{
				"name":  cb.config.Name,
				"panic": fmt.Sprintf("%v", r),
			})
		}
		cb.complete(ctx, halfOpen, err)
	}()

	return fn(ctx)
}

// allow decides whether a call may proceed and whether it is a half-open
// trial.
func (cb *CircuitBreaker) allow() (halfOpen, allowed bool) {
	cb.mu.Lock()
	var notify func()
	defer func() {
		cb.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.now().Sub(cb.stateChangedAt) < cb.config.SleepWindow {
			cb.rejected++
			return false, false
		}
		notify = cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenInFlight+cb.halfOpenSuccesses >= cb.config.HalfOpenRequests {
			cb.rejected++
			return false, false
		}
		cb.halfOpenInFlight++
		return true, true
	default:
		return false, false
	}
}

func (cb *CircuitBreaker) complete(ctx context.Context, halfOpen bool, err error) {
	failed := err != nil && cb.config.ErrorClassifier(err)
	if failed {
		cb.window.RecordFailure()
	} else if err == nil {
		cb.window.RecordSuccess()
	}

	cb.mu.Lock()
	var notify func()
	defer func() {
		cb.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	if halfOpen {
		if cb.state != StateHalfOpen {
			return
		}
		cb.halfOpenInFlight--
		switch {
		case failed:
			notify = cb.transitionLocked(StateOpen)
		case err == nil:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.config.HalfOpenRequests {
				cb.window.Reset()
				notify = cb.transitionLocked(StateClosed)
			}
		}
		return
	}

	if cb.state != StateClosed || !failed {
		return
	}
	success, failure := cb.window.Counts()
	total := success + failure
	if total < uint64(cb.config.VolumeThreshold) {
		return
	}
	rate := float64(failure) / float64(total)
	if rate >= cb.config.ErrorThreshold {
		cb.config.Logger.WarnWithContext(ctx, "Circuit breaker opening due to error threshold", map[string]interface{}{
			"operation":       "circuit_breaker_opening",
			"name":            cb.config.Name,
			"error_rate":      rate,
			"error_threshold": cb.config.ErrorThreshold,
			"total_requests":  total,
			"error":           err.Error(),
		})
		notify = cb.transitionLocked(StateOpen)
	}
}

// transitionLocked changes state and returns the listener notification to
// run once cb.mu is released.
func (cb *CircuitBreaker) transitionLocked(to CircuitState) func() {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	cb.stateChangedAt = cb.now()
	cb.halfOpenInFlight = 0
	cb.halfOpenSuccesses = 0

	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
	cb.config.Telemetry.RecordMetric("marketplace.circuit.transitions", 1, map[string]string{
		"name": cb.config.Name,
		"to":   to.String(),
	})

	listeners := append([]func(string, CircuitState, CircuitState){}, cb.listeners...)
	name := cb.config.Name
	return func() {
		for _, l := range listeners {
			l(name, from, to)
		}
	}
}

// AddStateChangeListener registers a callback run after every transition.
func (cb *CircuitBreaker) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	cb.listeners = append(cb.listeners, listener)
	cb.mu.Unlock()
}

// State returns the current state. An open circuit whose sleep window has
// passed still reports open until the next call probes it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetState returns the current state as a string
func (cb *CircuitBreaker) GetState() string {
	return cb.State().String()
}

// GetMetrics returns a snapshot for health reporting
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	success, failure := cb.window.Counts()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"name":      cb.config.Name,
		"state":     cb.state.String(),
		"success":   success,
		"failure":   failure,
		"rejected":  cb.rejected,
		"since":     cb.stateChangedAt,
		"threshold": cb.config.ErrorThreshold,
	}
}

// Reset closes the circuit and clears the window
func (cb *CircuitBreaker) Reset() {
	cb.window.Reset()

	cb.mu.Lock()
	notify := cb.transitionLocked(StateClosed)
	cb.rejected = 0
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

type bucket struct {
	start   time.Time
	success uint64
	failure uint64
}

// SlidingWindow counts outcomes over the last windowSize, split into
// fixed buckets that expire one at a time.
type SlidingWindow struct {
	mu         sync.Mutex
	buckets    []bucket
	bucketSize time.Duration
	windowSize time.Duration
	current    int
	now        func() time.Time
}

// NewSlidingWindow creates a window; now defaults to time.Now.
func NewSlidingWindow(windowSize time.Duration, bucketCount int, now func() time.Time) *SlidingWindow {
	if bucketCount <= 0 {
		bucketCount = 10
	}
	if now == nil {
		now = time.Now
	}
	sw := &SlidingWindow{
		buckets:    make([]bucket, bucketCount),
		bucketSize: windowSize / time.Duration(bucketCount),
		windowSize: windowSize,
		now:        now,
	}
	sw.resetLocked()
	return sw
}

// rotateLocked advances to the bucket covering now. A clock that went
// backwards resets the window.
func (sw *SlidingWindow) rotateLocked() {
	now := sw.now()
	elapsed := now.Sub(sw.buckets[sw.current].start)
	if elapsed < 0 {
		sw.resetLocked()
		return
	}
	if sw.bucketSize <= 0 || elapsed < sw.bucketSize {
		return
	}

	steps := int(elapsed / sw.bucketSize)
	if steps > len(sw.buckets) {
		steps = len(sw.buckets)
	}
	for i := 0; i < steps; i++ {
		sw.current = (sw.current + 1) % len(sw.buckets)
		sw.buckets[sw.current] = bucket{start: now}
	}
}

func (sw *SlidingWindow) resetLocked() {
	now := sw.now()
	for i := range sw.buckets {
		sw.buckets[i] = bucket{start: now}
	}
	sw.current = 0
}

// RecordSuccess records a successful call
func (sw *SlidingWindow) RecordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateLocked()
	sw.buckets[sw.current].success++
}

// RecordFailure records a failed call
func (sw *SlidingWindow) RecordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateLocked()
	sw.buckets[sw.current].failure++
}

// Counts returns the successes and failures still inside the window
func (sw *SlidingWindow) Counts() (success, failure uint64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.now().Add(-sw.windowSize)
	for _, b := range sw.buckets {
		if b.start.After(cutoff) {
			success += b.success
			failure += b.failure
		}
	}
	return success, failure
}

// ErrorRate returns failures divided by total calls in the window
func (sw *SlidingWindow) ErrorRate() float64 {
	success, failure := sw.Counts()
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(failure) / float64(total)
}

// Reset clears every bucket
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.resetLocked()
}

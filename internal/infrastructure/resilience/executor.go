package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errNilCall = errors.New("resilience: operation callback is nil")

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Observer is told about retries and breaker transitions.
type Observer interface {
	RecordRetry(operation string)
	RecordBreakerState(operation, state string)
}

// Executor runs backend calls behind a per-operation circuit breaker, with
// bounded retries for calls that are safe to repeat.
type Executor struct {
	cfg      Config
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// WithObserver must be called before the first Execute.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observer = o
	return e
}

// Execute retries retryable failures. Use it for idempotent reads.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	return e.run(ctx, operation, fn, classifier, e.cfg.RetryMaxAttempts)
}

// ExecuteOnce never repeats fn. Uploads that the backend bills per call go
// through here so only the breaker applies.
func (e *Executor) ExecuteOnce(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	return e.run(ctx, operation, fn, classifier, 1)
}

// State reports the breaker state for an operation; "closed" when the
// operation has not run yet or breakers are disabled.
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[operation]; ok {
		return breaker.State().String()
	}
	return gobreaker.StateClosed.String()
}

func (e *Executor) run(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier, attempts int) error {
	if fn == nil {
		return errNilCall
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	call := retryLoop{
		cfg:        e.cfg,
		operation:  operation,
		attempts:   attempts,
		classifier: classifier,
		onRetry:    e.recordRetry,
	}
	if !e.cfg.BreakerEnabled {
		return call.do(ctx, fn)
	}
	_, err := e.breaker(operation, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, call.do(ctx, fn)
	})
	return err
}

func (e *Executor) recordRetry(operation string) {
	if e.observer != nil {
		e.observer.RecordRetry(operation)
	}
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	cfg := e.cfg
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.BreakerMinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.observer != nil {
				e.observer.RecordBreakerState(name, to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

type retryLoop struct {
	cfg        Config
	operation  string
	attempts   int
	classifier ErrorClassifier
	onRetry    func(operation string)
}

func (l retryLoop) do(ctx context.Context, fn func(context.Context) error) error {
	wait := l.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil || attempt >= l.attempts || !l.classifier(err).Retryable {
			return err
		}

		wait = min(wait, l.cfg.RetryMaxBackoff)
		slog.Warn("retry_attempt",
			"operation", l.operation,
			"attempt", attempt,
			"max_attempts", l.attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		l.onRetry(l.operation)
		if !sleep(ctx, wait) {
			return err
		}
		wait = time.Duration(float64(wait) * l.cfg.RetryMultiplier)
	}
}

// sleep reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}

// Package resilience runs tool handlers under a concurrency limit and a
// deadline using fortify.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/ferrors"
)

var (
	// ErrExecutionTimeout indicates the caller stopped waiting for the function.
	// The function keeps running on its own goroutine and its result is dropped.
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrSaturated indicates every slot and queue position was taken, so the
	// function never started.
	ErrSaturated = errors.New("executor saturated")
)

// PanicError is returned when the executed function panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Func is the unit of work run by the executor.
type Func func(ctx context.Context) (any, error)

// Executor bounds concurrent executions with a bulkhead and applies a
// per-call deadline.
type Executor struct {
	bulkhead bulkhead.Bulkhead[any]
	timeout  time.Duration
}

// ExecutorConfig configures the executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent executions.
	MaxConcurrent int

	// MaxQueue bounds executions waiting for a slot. Zero uses the default,
	// a negative value rejects as soon as every slot is busy.
	MaxQueue int

	// DefaultTimeout applies when Execute is given no timeout.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:  10,
		MaxQueue:       100,
		DefaultTimeout: 30 * time.Second,
	}
}

// NewExecutor creates a new executor.
func NewExecutor(config ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	switch {
	case config.MaxQueue == 0:
		config.MaxQueue = defaults.MaxQueue
	case config.MaxQueue < 0:
		config.MaxQueue = 0
	}

	// Queued calls wait under the call deadline, so no separate queue
	// timeout is set.
	return &Executor{
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
			MaxQueue:      config.MaxQueue,
		}),
		timeout: config.DefaultTimeout,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// DefaultTimeout returns the timeout used when Execute gets none.
func (e *Executor) DefaultTimeout() time.Duration {
	return e.timeout
}

// Execute runs fn on its own goroutine and waits for it, for ctx, or for
// the timeout, whichever ends first. A zero timeout uses the default. The
// timeout covers time spent queued for a slot.
//
// A timeout returns an error matching both ErrExecutionTimeout and
// context.DeadlineExceeded. Cancellation of ctx returns ctx.Err().
// A full queue returns ErrSaturated without running fn.
// A panic in fn is recovered and returned as *PanicError.
func (e *Executor) Execute(ctx context.Context, timeout time.Duration, fn Func) (any, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		return run(ctx, fn)
	})
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, ferrors.ErrBulkheadFull):
		return nil, fmt.Errorf("%w: %w", ErrSaturated, err)
	case errors.Is(err, ErrExecutionTimeout):
		return nil, err
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded):
		// Deadline passed while queued.
		return nil, fmt.Errorf("%w: %w", ErrExecutionTimeout, err)
	}
	return value, err
}

type outcome struct {
	value any
	err   error
}

func run(ctx context.Context, fn Func) (any, error) {
	// Buffered so an abandoned goroutine can still send and exit.
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrExecutionTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

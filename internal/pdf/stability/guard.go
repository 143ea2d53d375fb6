package stability

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
)

// PanicRecord stores information about a recovered panic
type PanicRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stack_trace"`
	Operation  string    `json:"operation"`
}

// Guard converts panics and overruns in native library calls into typed
// errors. A Guard is safe for concurrent use.
type Guard struct {
	logger    *zap.Logger
	maxPanics int
	mu        sync.RWMutex
	panics    []PanicRecord
}

// NewGuard creates a guard that keeps the most recent maxPanics records
func NewGuard(logger *zap.Logger, maxPanics int) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPanics <= 0 {
		maxPanics = 10
	}
	return &Guard{logger: logger, maxPanics: maxPanics}
}

// Run executes fn with panic recovery and, when timeout > 0, a deadline.
// The ctx passed to fn is cancelled when the deadline passes; a fn that
// ignores it keeps running in its goroutine and its result is discarded.
func Run[T any](ctx context.Context, g *Guard, operation string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (result T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		data T
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: g.recordPanic(operation, r)}
			}
		}()
		data, err := fn(ctx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case res := <-done:
		if timeout > 0 && res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) &&
			errors.Is(res.err, context.DeadlineExceeded) {
			return result, g.timedOut(operation, timeout)
		}
		return res.data, res.err
	case <-ctx.Done():
		return result, g.timedOut(operation, timeout)
	}
}

func (g *Guard) timedOut(operation string, timeout time.Duration) error {
	g.logger.Warn("operation timed out",
		zap.String("operation", operation),
		zap.Duration("timeout", timeout))
	return pdferrors.NewPDFError(pdferrors.ErrorTypeTimeout,
		fmt.Sprintf("%s timed out after %v", operation, timeout)).WithComponent(operation)
}

// Protect runs fn on the calling goroutine and turns a panic into an error.
// It is used around small best-effort steps where spawning is unnecessary.
func (g *Guard) Protect(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = g.recordPanic(operation, r)
		}
	}()
	return fn()
}

func (g *Guard) recordPanic(operation string, r interface{}) error {
	msg := fmt.Sprintf("%v", r)
	record := PanicRecord{
		Timestamp:  time.Now(),
		Message:    msg,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}

	g.mu.Lock()
	g.panics = append(g.panics, record)
	if len(g.panics) > g.maxPanics {
		g.panics = g.panics[len(g.panics)-g.maxPanics:]
	}
	g.mu.Unlock()

	g.logger.Warn("panic recovered",
		zap.String("operation", operation),
		zap.String("panic", msg))

	return pdferrors.NewPDFError(pdferrors.ErrorTypePageProcessing,
		"recovered panic: "+msg).WithComponent(operation)
}

// Panics returns a copy of the recent panic records
func (g *Guard) Panics() []PanicRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PanicRecord, len(g.panics))
	copy(out, g.panics)
	return out
}

// PanicCount returns the number of retained panic records
func (g *Guard) PanicCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.panics)
}

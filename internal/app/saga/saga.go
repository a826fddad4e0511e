package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Step is an external side effect with an undo action.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Log collects compensations for side effects performed while a transaction
// is open. They run in reverse order when the transaction does not commit.
type Log struct {
	mu    sync.Mutex
	steps []Step
}

type ctxKey struct{}

func WithLog(ctx context.Context) (context.Context, *Log) {
	log := &Log{}
	return context.WithValue(ctx, ctxKey{}, log), log
}

func FromContext(ctx context.Context) (*Log, bool) {
	log, ok := ctx.Value(ctxKey{}).(*Log)
	return log, ok && log != nil
}

// Run executes step and, on success, registers its compensation with the log in ctx.
func Run(ctx context.Context, step Step) error {
	if err := step.Execute(ctx); err != nil {
		return err
	}
	if log, ok := FromContext(ctx); ok {
		log.add(step)
	}
	return nil
}

func (l *Log) add(step Step) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.steps)
}

// Compensate undoes registered steps newest first and empties the log.
func (l *Log) Compensate(ctx context.Context) error {
	l.mu.Lock()
	steps := l.steps
	l.steps = nil
	l.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("saga: compensate %s: %w", steps[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Forget drops registered steps after the transaction committed.
func (l *Log) Forget() {
	l.mu.Lock()
	l.steps = nil
	l.mu.Unlock()
}

// StepFunc builds a Step from two functions.
type StepFunc struct {
	StepName string
	Do       func(ctx context.Context) error
	Undo     func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Execute(ctx context.Context) error {
	if s.Do == nil {
		return nil
	}
	return s.Do(ctx)
}

func (s StepFunc) Compensate(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}

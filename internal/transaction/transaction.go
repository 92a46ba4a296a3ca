package transaction

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// UndoFunc reverses one completed step of a lifecycle operation
type UndoFunc func() error

type step struct {
	name string
	undo UndoFunc
}

// Log is a stack of undo operations collected while a multi-step lifecycle
// operation runs. On failure Rollback unwinds completed steps in reverse
// order; on success Commit discards them.
type Log struct {
	steps  []step
	mu     sync.Mutex
	logger *zerolog.Logger
}

// New creates an empty transaction log
func New(logger *zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Add records the undo for a completed step
func (l *Log) Add(name string, undo UndoFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step{name: name, undo: undo})
}

// Rollback executes all recorded undo functions in reverse order (LIFO).
// Undo failures are collected, not fatal: every step gets its chance to run.
func (l *Log) Rollback() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.steps) == 0 {
		return nil
	}

	if l.logger != nil {
		l.logger.Info().Int("steps", len(l.steps)).Msg("rolling back")
	}

	var errs []error
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		if l.logger != nil {
			l.logger.Debug().Str("step", s.name).Msg("undoing step")
		}

		if err := s.undo(); err != nil {
			errs = append(errs, fmt.Errorf("undo %q: %w", s.name, err))
			if l.logger != nil {
				l.logger.Error().Err(err).Str("step", s.name).Msg("undo failed")
			}
		}
	}

	l.steps = nil

	if len(errs) > 0 {
		return fmt.Errorf("rollback completed with errors: %v", errs)
	}
	return nil
}

// Commit clears the log, confirming the operation
func (l *Log) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = nil
}

// Len returns the number of recorded steps
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.steps)
}

// internal/service/checkout/saga.go
package checkout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Compensation undoes one completed provisioning step.
type Compensation func(ctx context.Context) error

func noCompensation(context.Context) error { return nil }

type sagaStep struct {
	name string
	undo Compensation
}

// Saga collects compensations as steps complete and runs them newest first.
type Saga struct {
	steps   []sagaStep
	logger  *zap.Logger
	timeout time.Duration
}

func NewSaga(logger *zap.Logger, timeout time.Duration) *Saga {
	return &Saga{logger: logger, timeout: timeout}
}

// Add registers the compensation for a step that just succeeded.
func (s *Saga) Add(name string, undo Compensation) {
	if undo == nil {
		return
	}
	s.steps = append(s.steps, sagaStep{name: name, undo: undo})
}

// Compensate runs every registered compensation in reverse order.
// It keeps going past failures and only logs them; the caller returns its
// original error. Cancellation of ctx does not stop the rollback.
func (s *Saga) Compensate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("step", step.name),
				zap.Error(err))
			continue
		}
		s.logger.Info("compensation applied", zap.String("step", step.name))
	}
	s.steps = nil
}

package robot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Policy produces the action for a given step number. Returning nil stops
// the run.
type Policy func(step int) []float64

// Runner paces a manipulator at a fixed step rate. The clock is injectable
// so tests can drive the loop with a mock instead of waiting in real time.
type Runner struct {
	manip        *Manipulator
	stepDuration time.Duration
	clk          clock.Clock
	logger       golog.Logger
}

// NewRunner returns a runner stepping manip every stepDuration. A nil clk
// uses the wall clock.
func NewRunner(manip *Manipulator, stepDuration time.Duration, clk clock.Clock, logger golog.Logger) (*Runner, error) {
	if manip == nil {
		return nil, errors.New("runner needs a manipulator")
	}
	if stepDuration <= 0 {
		return nil, errors.Errorf("runner needs a positive step duration, got %v", stepDuration)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{manip: manip, stepDuration: stepDuration, clk: clk, logger: logger}, nil
}

// Run steps the manipulator with actions from policy until the policy
// returns nil, steps have elapsed (steps < 0 means unbounded), or the
// context is cancelled.
func (r *Runner) Run(ctx context.Context, steps int, policy Policy) error {
	if policy == nil {
		return errors.New("runner needs a policy")
	}
	ticker := r.clk.Ticker(r.stepDuration)
	defer ticker.Stop()

	for step := 0; steps < 0 || step < steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		action := policy(step)
		if action == nil {
			r.logger.Debugf("policy finished after %d steps", step)
			return nil
		}
		if err := r.manip.ApplyAction(action); err != nil {
			return errors.Wrapf(err, "step %d", step)
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
)

// FallbackStep is one alternative of an ordered fallback chain
type FallbackStep struct {
	Name string
	Do   func(ctx context.Context) error
}

type StepFailure struct {
	Step string
	Err  error
}

// FallbackOutcome records which step succeeded and every failure before it
type FallbackOutcome struct {
	Succeeded string
	Failures  []StepFailure
}

func (o FallbackOutcome) OK() bool {
	return o.Succeeded != ""
}

func (o FallbackOutcome) Err() error {
	if o.OK() {
		return nil
	}
	errs := []error{errorz.ErrAllFallbacksFailed}
	for _, f := range o.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Step, f.Err))
	}
	return errors.Join(errs...)
}

// RunFallback runs the steps in order until one succeeds.
func RunFallback(ctx context.Context, steps ...FallbackStep) FallbackOutcome {
	var outcome FallbackOutcome
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			outcome.Failures = append(outcome.Failures, StepFailure{Step: step.Name, Err: err})
			continue
		}
		outcome.Succeeded = step.Name
		return outcome
	}
	return outcome
}

package services

import (
	"context"
	"errors"
	"fmt"
)

// Runner is a component with a blocking Run loop, like usecases.LocationPoller.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner Runner
	name   string
}

func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve runs the loop. Returning before ctx is canceled counts as a failure.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("returned without error")
	}
	return fmt.Errorf("%s stopped: %w", s.name, err)
}

func (s *RunnerService) String() string {
	return s.name
}

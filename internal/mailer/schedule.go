package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devonik/email-api/internal/scheduler"
)

// DefaultStopCause is recorded when a cancellation does not give a cause.
const DefaultStopCause = "Stopped by email-api"

// scheduleInput is the state machine input. The state machine waits until
// executionDate and then posts body back to the email handler. Besides the
// executionDate, httpMethod, path and body envelope it sets
// startedByStateMachine, which the post handler uses to answer the state
// machine with errors instead of HTTP responses.
type scheduleInput struct {
	ExecutionDate         string          `json:"executionDate"`
	HTTPMethod            string          `json:"httpMethod"`
	Path                  string          `json:"path"`
	Body                  json.RawMessage `json:"body"`
	StartedByStateMachine bool            `json:"startedByStateMachine"`
}

// Schedule starts a state machine execution that sends body at executionDate.
// body is forwarded untouched.
func (s *Service) Schedule(ctx context.Context, executionDate string, body json.RawMessage) (*scheduler.Execution, error) {
	if s.orchestrator == nil {
		return nil, scheduler.ErrMisconfigured
	}

	input, err := json.Marshal(scheduleInput{
		ExecutionDate:         executionDate,
		HTTPMethod:            "POST",
		Path:                  "/",
		Body:                  body,
		StartedByStateMachine: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule input: %w", err)
	}

	exec, err := s.orchestrator.StartExecution(ctx, input)
	if err != nil {
		return nil, err
	}
	if exec == nil || exec.ExecutionArn == "" {
		return nil, errors.New("orchestrator returned no execution")
	}

	s.logger.Info("e-mail scheduled", "execution_arn", exec.ExecutionArn, "execution_date", executionDate)
	return exec, nil
}

// CancelSchedule stops a pending execution.
func (s *Service) CancelSchedule(ctx context.Context, executionArn, cause string) error {
	if s.orchestrator == nil {
		return scheduler.ErrMisconfigured
	}
	if cause == "" {
		cause = DefaultStopCause
	}

	if err := s.orchestrator.StopExecution(ctx, executionArn, cause); err != nil {
		return err
	}

	s.logger.Info("scheduled e-mail stopped", "execution_arn", executionArn, "cause", cause)
	return nil
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

type mockSFN struct {
	startErr  error
	stopErr   error
	lastStart *sfn.StartExecutionInput
	lastStop  *sfn.StopExecutionInput
	calls     int
}

func (m *mockSFN) StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	m.calls++
	m.lastStart = params
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &sfn.StartExecutionOutput{
		ExecutionArn: aws.String("arn:aws:states:eu-central-1:123:execution:email:" + aws.ToString(params.Name)),
		StartDate:    aws.Time(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
	}, nil
}

func (m *mockSFN) StopExecution(ctx context.Context, params *sfn.StopExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StopExecutionOutput, error) {
	m.calls++
	m.lastStop = params
	if m.stopErr != nil {
		return nil, m.stopErr
	}
	return &sfn.StopExecutionOutput{StopDate: aws.Time(time.Now())}, nil
}

func TestStartExecution(t *testing.T) {
	t.Parallel()

	mock := &mockSFN{}
	c := NewWithClient(mock, "arn:aws:states:eu-central-1:123:stateMachine:email")
	c.newName = func() string { return "fixed-name" }

	exec, err := c.StartExecution(context.Background(), []byte(`{"executionDate":"2024-01-02T03:04:05Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := aws.ToString(mock.lastStart.StateMachineArn); got != "arn:aws:states:eu-central-1:123:stateMachine:email" {
		t.Errorf("StateMachineArn: got %q", got)
	}
	if got := aws.ToString(mock.lastStart.Name); got != "fixed-name" {
		t.Errorf("Name: got %q, want %q", got, "fixed-name")
	}
	if got := aws.ToString(mock.lastStart.Input); got != `{"executionDate":"2024-01-02T03:04:05Z"}` {
		t.Errorf("Input: got %q", got)
	}
	if exec.ExecutionArn != "arn:aws:states:eu-central-1:123:execution:email:fixed-name" {
		t.Errorf("ExecutionArn: got %q", exec.ExecutionArn)
	}
	if !exec.StartDate.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("StartDate: got %v", exec.StartDate)
	}
}

func TestStartExecution_UniqueNames(t *testing.T) {
	t.Parallel()

	mock := &mockSFN{}
	c := NewWithClient(mock, "arn:sm")

	first, err := c.StartExecution(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.StartExecution(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ExecutionArn == second.ExecutionArn {
		t.Error("expected distinct execution names per start")
	}
}

func TestStopExecution(t *testing.T) {
	t.Parallel()

	mock := &mockSFN{}
	c := NewWithClient(mock, "arn:sm")

	if err := c.StopExecution(context.Background(), "arn:exec", "customer cancelled"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(mock.lastStop.ExecutionArn); got != "arn:exec" {
		t.Errorf("ExecutionArn: got %q", got)
	}
	if got := aws.ToString(mock.lastStop.Cause); got != "customer cancelled" {
		t.Errorf("Cause: got %q", got)
	}
}

func TestMisconfigured(t *testing.T) {
	t.Parallel()

	mock := &mockSFN{}
	c := NewWithClient(mock, "")

	if _, err := c.StartExecution(context.Background(), []byte(`{}`)); !errors.Is(err, ErrMisconfigured) {
		t.Errorf("StartExecution error: got %v, want ErrMisconfigured", err)
	}
	if err := c.StopExecution(context.Background(), "arn:exec", "cause"); !errors.Is(err, ErrMisconfigured) {
		t.Errorf("StopExecution error: got %v, want ErrMisconfigured", err)
	}
	if mock.calls != 0 {
		t.Errorf("calls: got %d, want 0", mock.calls)
	}
}

func TestProviderErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	sdkErr := errors.New("ExecutionDoesNotExist")
	mock := &mockSFN{startErr: sdkErr, stopErr: sdkErr}
	c := NewWithClient(mock, "arn:sm")

	if _, err := c.StartExecution(context.Background(), []byte(`{}`)); !errors.Is(err, sdkErr) {
		t.Errorf("StartExecution error: got %v, want wrapped sdk error", err)
	}
	if err := c.StopExecution(context.Background(), "arn:exec", "cause"); !errors.Is(err, sdkErr) {
		t.Errorf("StopExecution error: got %v, want wrapped sdk error", err)
	}
}

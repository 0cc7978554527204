package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/devonik/email-api/internal/scheduler"
)

func TestSchedule(t *testing.T) {
	t.Parallel()

	o := &mockOrchestrator{}
	svc := newTestService(newMockProvider(), o)

	body := json.RawMessage(`{"executionDate":"2024-05-01T08:00:00Z","destinationAddress":"a@example.org","emailTemplate":"t","templateData":{"x":"y"}}`)
	exec, err := svc.Schedule(context.Background(), "2024-05-01T08:00:00Z", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.ExecutionArn != "arn:exec:1" {
		t.Errorf("ExecutionArn: got %q", exec.ExecutionArn)
	}

	var input struct {
		ExecutionDate         string          `json:"executionDate"`
		HTTPMethod            string          `json:"httpMethod"`
		Path                  string          `json:"path"`
		Body                  json.RawMessage `json:"body"`
		StartedByStateMachine bool            `json:"startedByStateMachine"`
	}
	if err := json.Unmarshal(o.input, &input); err != nil {
		t.Fatalf("input is not JSON: %v", err)
	}
	if input.ExecutionDate != "2024-05-01T08:00:00Z" {
		t.Errorf("executionDate: got %q", input.ExecutionDate)
	}
	if input.HTTPMethod != "POST" || input.Path != "/" {
		t.Errorf("route: got %s %s", input.HTTPMethod, input.Path)
	}
	if !input.StartedByStateMachine {
		t.Error("startedByStateMachine: got false, want true")
	}
	if string(input.Body) != string(body) {
		t.Errorf("body: got %s, want %s", input.Body, body)
	}
}

func TestSchedule_Errors(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockProvider(), nil)
	if _, err := svc.Schedule(context.Background(), "2024-05-01T08:00:00Z", json.RawMessage(`{}`)); !errors.Is(err, scheduler.ErrMisconfigured) {
		t.Errorf("no orchestrator: got %v, want ErrMisconfigured", err)
	}

	startErr := errors.New("StateMachineDoesNotExist")
	svc = newTestService(newMockProvider(), &mockOrchestrator{startErr: startErr})
	if _, err := svc.Schedule(context.Background(), "2024-05-01T08:00:00Z", json.RawMessage(`{}`)); !errors.Is(err, startErr) {
		t.Errorf("start error: got %v, want %v", err, startErr)
	}
}

func TestCancelSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause string
		want  string
	}{
		{name: "explicit cause", cause: "patient cancelled", want: "patient cancelled"},
		{name: "default cause", cause: "", want: DefaultStopCause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := &mockOrchestrator{}
			svc := newTestService(newMockProvider(), o)
			if err := svc.CancelSchedule(context.Background(), "arn:exec:1", tt.cause); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.stopArn != "arn:exec:1" {
				t.Errorf("arn: got %q", o.stopArn)
			}
			if o.stopCause != tt.want {
				t.Errorf("cause: got %q, want %q", o.stopCause, tt.want)
			}
		})
	}
}

func TestCancelSchedule_Error(t *testing.T) {
	t.Parallel()

	stopErr := errors.New("ExecutionDoesNotExist")
	svc := newTestService(newMockProvider(), &mockOrchestrator{stopErr: stopErr})
	if err := svc.CancelSchedule(context.Background(), "arn:exec:1", ""); !errors.Is(err, stopErr) {
		t.Errorf("got %v, want %v", err, stopErr)
	}
}

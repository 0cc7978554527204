// Package handler holds the entry points invoked by API Gateway, the state
// machine and direct lambda invocations.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/mailer"
)

// InvocationMode tells how an entry point was invoked, which decides how
// faults are reported back.
type InvocationMode int

const (
	// ModeAPI is an API Gateway proxy request. Faults become status codes.
	ModeAPI InvocationMode = iota + 1
	// ModeStateMachine is an execution of the schedule state machine.
	// Provider faults are returned as *Fault errors.
	ModeStateMachine
	// ModeDirect is a plain lambda invocation with the request as payload.
	// Every fault is returned as an error.
	ModeDirect
)

func (m InvocationMode) String() string {
	switch m {
	case ModeAPI:
		return "api"
	case ModeStateMachine:
		return "state-machine"
	case ModeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Fault is returned to the state machine when sending failed, so the
// execution fails with an inspectable error.
type Fault struct {
	Message string
	Cause   error
}

func (f *Fault) Error() string {
	if f.Cause == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Message, f.Cause)
}

func (f *Fault) Unwrap() error { return f.Cause }

// Handler serves the post, schedule and cancel entry points.
type Handler struct {
	svc    *mailer.Service
	stage  string
	logger *slog.Logger
}

// New creates a Handler. stage is attached to every invocation log line.
func New(svc *mailer.Service, stage string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		stage:  stage,
		logger: logger,
	}
}

// IsClientFault reports whether err was caused by the request payload.
func IsClientFault(err error) bool {
	return errors.Is(err, email.ErrInvalidRequest)
}

// invocationLogger scopes the logger to one invocation.
func (h *Handler) invocationLogger(ctx context.Context, traceID string) *slog.Logger {
	l := h.logger.With("stage", h.stage)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		l = l.With("request_id", lc.AwsRequestID)
	}
	if traceID != "" {
		l = l.With("trace_id", traceID)
	}
	return l
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       body,
	}
}

func jsonResponse(status int, v any) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to encode response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func methodNotAllowed(got, want string) events.APIGatewayProxyResponse {
	return textResponse(http.StatusMethodNotAllowed,
		fmt.Sprintf("Method %s is not allowed, expected %s", got, want))
}

// requestBody returns the body of a proxy request, decoding base64 if flagged.
func requestBody(body string, isBase64 bool) ([]byte, error) {
	if !isBase64 {
		return []byte(body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 body: %w", err)
	}
	return decoded, nil
}

// missingBodyParameters lists the required keys that are absent, null or
// empty strings in body.
func missingBodyParameters(body []byte, required []string) ([]string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range required {
		v := bytes.TrimSpace(fields[name])
		switch string(v) {
		case "", "null", `""`:
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func missingPathParameters(params map[string]string, required []string) []string {
	var missing []string
	for _, name := range required {
		if params[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func listParameters(names []string) string {
	return strings.Join(names, ", ")
}

// Package scheduler starts and stops delayed sends on an AWS Step Functions
// state machine. No schedule state is kept locally.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/google/uuid"
)

// ErrMisconfigured is returned when no state machine ARN is configured.
var ErrMisconfigured = errors.New("could not read STATE_MACHINE_ARN, be sure it is defined for the deployment")

// Execution is the handle of a started state machine execution.
type Execution struct {
	ExecutionArn string    `json:"executionArn"`
	StartDate    time.Time `json:"startDate"`
}

// API is the subset of the Step Functions client used by Client.
type API interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	StopExecution(ctx context.Context, params *sfn.StopExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StopExecutionOutput, error)
}

// Client wraps a Step Functions client bound to one state machine.
type Client struct {
	api             API
	stateMachineArn string
	newName         func() string
}

// New creates a Client from a loaded AWS configuration.
func New(awsCfg aws.Config, stateMachineArn string) *Client {
	return NewWithClient(sfn.NewFromConfig(awsCfg), stateMachineArn)
}

// NewWithClient creates a Client with a custom API, used for testing.
func NewWithClient(api API, stateMachineArn string) *Client {
	return &Client{
		api:             api,
		stateMachineArn: stateMachineArn,
		newName:         uuid.NewString,
	}
}

// StartExecution starts a new execution with the given JSON input.
func (c *Client) StartExecution(ctx context.Context, input []byte) (*Execution, error) {
	if c.stateMachineArn == "" {
		return nil, ErrMisconfigured
	}

	out, err := c.api.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.stateMachineArn),
		Name:            aws.String(c.newName()),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return nil, fmt.Errorf("StartExecution failed: %w", err)
	}

	return &Execution{
		ExecutionArn: aws.ToString(out.ExecutionArn),
		StartDate:    aws.ToTime(out.StartDate),
	}, nil
}

// StopExecution stops a pending execution, recording cause on it.
func (c *Client) StopExecution(ctx context.Context, executionArn, cause string) error {
	if c.stateMachineArn == "" {
		return ErrMisconfigured
	}

	_, err := c.api.StopExecution(ctx, &sfn.StopExecutionInput{
		ExecutionArn: aws.String(executionArn),
		Cause:        aws.String(cause),
	})
	if err != nil {
		return fmt.Errorf("StopExecution failed: %w", err)
	}
	return nil
}

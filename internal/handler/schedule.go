package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/devonik/email-api/internal/email"
)

// ExecutionDateLayout is the executionDate format handed to the state
// machine. Fractional seconds are rejected.
const ExecutionDateLayout = "2006-01-02T15:04:05Z07:00"

// executionDateCompactLayout accepts offsets written without a colon, e.g. +0100.
const executionDateCompactLayout = "2006-01-02T15:04:05Z0700"

const (
	scheduleErrorMessage = "Could not post email reminder schedule. Check logs for details"
	cancelErrorMessage   = "Could not stop step function execution. Check logs for details"

	defaultCancelCause = "Stopped by lambda email api /email/{executionArn}"
)

var scheduleRequired = []string{"executionDate", "emailTemplate", "templateData", "destinationAddress"}

// ParseExecutionDate parses s in ExecutionDateLayout or with a colonless
// offset such as +0100.
func ParseExecutionDate(s string) (time.Time, error) {
	if strings.Contains(s, ".") {
		return time.Time{}, fmt.Errorf("fractional seconds are not allowed in %q", s)
	}
	t, err := time.Parse(ExecutionDateLayout, s)
	if err == nil {
		return t, nil
	}
	if t, compactErr := time.Parse(executionDateCompactLayout, s); compactErr == nil {
		return t, nil
	}
	return time.Time{}, err
}

// Schedule starts a delayed send. The body is the post body plus executionDate.
func (h *Handler) Schedule(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodPost {
		return methodNotAllowed(req.HTTPMethod, http.MethodPost), nil
	}

	body, err := requestBody(req.Body, req.IsBase64Encoded)
	if err != nil {
		return textResponse(http.StatusBadRequest, err.Error()), nil
	}

	missing, err := missingBodyParameters(body, scheduleRequired)
	if err != nil {
		return textResponse(http.StatusBadRequest, "Request body must be a JSON object"), nil
	}
	if len(missing) > 0 {
		return textResponse(http.StatusBadRequest,
			"Missing body parameter(s): "+listParameters(missing)), nil
	}

	var fields struct {
		ExecutionDate string `json:"executionDate"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return textResponse(http.StatusBadRequest, "executionDate has to be a string"), nil
	}
	executionDate, err := ParseExecutionDate(fields.ExecutionDate)
	if err != nil {
		return textResponse(http.StatusBadRequest,
			"Path param executionDate is not a valid Date. Format must be YYYY-MM-DDTHH:mm:ssZ"), nil
	}

	// Reject what the post handler would reject once the execution fires.
	emailReq, err := email.DecodeRequest(body)
	if err == nil {
		_, err = email.Parse(emailReq)
	}
	if err != nil {
		return textResponse(http.StatusBadRequest, err.Error()), nil
	}

	logger := h.invocationLogger(ctx, emailReq.TraceID)

	exec, err := h.svc.WithLogger(logger).Schedule(ctx, executionDate.Format(ExecutionDateLayout), body)
	if err != nil {
		logger.Error("could not schedule mail", "error", err)
		return textResponse(http.StatusInternalServerError, scheduleErrorMessage), nil
	}

	resp, err := jsonResponse(http.StatusOK, exec)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	logger.Info("response", "path", req.Path, "status_code", resp.StatusCode, "body", resp.Body)
	return resp, nil
}

// Cancel stops a scheduled send identified by the executionArn path parameter.
func (h *Handler) Cancel(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodDelete {
		return methodNotAllowed(req.HTTPMethod, http.MethodDelete), nil
	}

	if missing := missingPathParameters(req.PathParameters, []string{"executionArn"}); len(missing) > 0 {
		return textResponse(http.StatusBadRequest,
			"Missing path parameter(s): "+listParameters(missing)), nil
	}
	executionArn := req.PathParameters["executionArn"]

	cause := req.QueryStringParameters["cause"]
	if cause == "" {
		cause = defaultCancelCause
	}

	logger := h.invocationLogger(ctx, "")

	if err := h.svc.WithLogger(logger).CancelSchedule(ctx, executionArn, cause); err != nil {
		logger.Error("could not stop scheduled email", "execution_arn", executionArn, "error", err)
		return textResponse(http.StatusInternalServerError, cancelErrorMessage), nil
	}

	logger.Info("response", "path", req.Path, "status_code", http.StatusOK)
	return textResponse(http.StatusOK, "OK"), nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/devonik/email-api/internal/email"
)

const postErrorMessage = "Could not post email. Check logs for details"

// invocation covers both API Gateway proxy events and state machine events.
// State machine events carry the body as a JSON object instead of a string.
type invocation struct {
	HTTPMethod            string          `json:"httpMethod"`
	Path                  string          `json:"path"`
	Body                  json.RawMessage `json:"body"`
	IsBase64Encoded       bool            `json:"isBase64Encoded"`
	StartedByStateMachine bool            `json:"startedByStateMachine"`
}

// Post is the lambda entry point for sending. It accepts an API Gateway
// proxy event, a state machine event or the request itself.
func (h *Handler) Post(ctx context.Context, payload json.RawMessage) (any, error) {
	var inv invocation
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", email.ErrInvalidRequest, err)
	}

	switch {
	case inv.StartedByStateMachine:
		body, err := invocationBody(inv.Body, inv.IsBase64Encoded)
		if err != nil {
			return textResponse(http.StatusBadRequest, err.Error()), nil
		}
		return h.post(ctx, ModeStateMachine, inv.HTTPMethod, body)
	case inv.HTTPMethod != "":
		body, err := invocationBody(inv.Body, inv.IsBase64Encoded)
		if err != nil {
			return textResponse(http.StatusBadRequest, err.Error()), nil
		}
		return h.post(ctx, ModeAPI, inv.HTTPMethod, body)
	default:
		return h.post(ctx, ModeDirect, http.MethodPost, payload)
	}
}

// PostRequest handles an API Gateway proxy request.
func (h *Handler) PostRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body, err := requestBody(req.Body, req.IsBase64Encoded)
	if err != nil {
		return textResponse(http.StatusBadRequest, err.Error()), nil
	}

	resp, err := h.post(ctx, ModeAPI, req.HTTPMethod, body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return resp.(events.APIGatewayProxyResponse), nil
}

// post validates and dispatches one request. The result is always an
// events.APIGatewayProxyResponse when err is nil.
func (h *Handler) post(ctx context.Context, mode InvocationMode, method string, body []byte) (any, error) {
	if method != http.MethodPost {
		if mode == ModeDirect {
			return nil, fmt.Errorf("%w: method %s is not allowed", email.ErrInvalidRequest, method)
		}
		return methodNotAllowed(method, http.MethodPost), nil
	}

	req, err := email.DecodeRequest(body)
	if err != nil {
		h.logger.Warn("cannot send email cause bad request", "mode", mode.String(), "error", err)
		return h.inputFault(mode, err)
	}

	logger := h.invocationLogger(ctx, req.TraceID)

	parsed, err := email.Parse(req)
	if err != nil {
		logger.Warn("cannot send email cause bad request", "mode", mode.String(), "error", err)
		return h.inputFault(mode, err)
	}
	logStart(logger, parsed)

	result, err := h.svc.WithLogger(logger).Dispatch(ctx, parsed)
	if err != nil {
		if IsClientFault(err) {
			logger.Warn("cannot send email cause bad request", "mode", mode.String(), "error", err)
			return h.inputFault(mode, err)
		}

		logger.Error("could not send mail via provider", "mode", mode.String(), "error", err)
		switch mode {
		case ModeStateMachine:
			return nil, &Fault{Message: postErrorMessage, Cause: err}
		case ModeDirect:
			return nil, err
		default:
			return textResponse(http.StatusInternalServerError, postErrorMessage), nil
		}
	}

	resp, err := jsonResponse(http.StatusOK, result)
	if err != nil {
		return nil, err
	}
	logger.Info("response", "mode", mode.String(), "status_code", resp.StatusCode, "body", resp.Body)
	return resp, nil
}

// inputFault reports a client fault: a 400 response for API and state
// machine invocations, the error itself for direct ones.
func (h *Handler) inputFault(mode InvocationMode, err error) (any, error) {
	if mode == ModeDirect {
		return nil, err
	}
	return textResponse(http.StatusBadRequest, err.Error()), nil
}

// logStart logs what is about to be sent. Template data can be large and
// personal, so only its presence is logged.
func logStart(logger *slog.Logger, p *email.Parsed) {
	if p.Content == email.ContentTemplated {
		logger.Info("starting send",
			"template", p.TemplateName,
			"template_data", p.TemplateData != nil,
			"bulk", p.Recipient == email.RecipientBulk,
		)
		return
	}
	logger.Info("starting send",
		"subject", p.Subject,
		"text", p.Text != "",
		"html", p.Html != "",
		"bulk", p.Recipient == email.RecipientBulk,
	)
}

// invocationBody unwraps a body given either as a JSON string or as an object.
func invocationBody(raw json.RawMessage, isBase64 bool) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing body", email.ErrInvalidRequest)
	}
	if raw[0] != '"' {
		return raw, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", email.ErrInvalidRequest, err)
	}
	if !isBase64 {
		return []byte(s), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 body: %v", email.ErrInvalidRequest, err)
	}
	return decoded, nil
}

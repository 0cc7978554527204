// Package mailer composes and dispatches email requests: single sends, bulk
// templated sends and delayed sends through the orchestrator.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dario.cat/mergo"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/provider"
	"github.com/devonik/email-api/internal/scheduler"
)

const (
	// TrackingTag is the message tag used to route copies to a tracking mailbox.
	TrackingTag = "email-api-tracking"

	defaultTrackingValue = "email-api"
)

var (
	ErrSendRejected     = errors.New("sending e-mail was rejected")
	ErrTemplateNotFound = errors.New("email template not found")
)

// SendRejectedError is returned when the provider answers a send without a
// message id. It matches ErrSendRejected.
type SendRejectedError struct {
	Provider string
	// Response is the provider's raw reply.
	Response any
}

func (e *SendRejectedError) Error() string {
	return fmt.Sprintf("%v: provider %s returned %+v", ErrSendRejected, e.Provider, e.Response)
}

func (e *SendRejectedError) Unwrap() error { return ErrSendRejected }

// Orchestrator starts and stops delayed sends.
type Orchestrator interface {
	StartExecution(ctx context.Context, input []byte) (*scheduler.Execution, error)
	StopExecution(ctx context.Context, executionArn, cause string) error
}

// Config holds the read-only sender settings.
type Config struct {
	// SenderLabel is the display name put in front of every sender address.
	SenderLabel string
	// SenderAddress is the default sender and tracking mailbox, e.g. mail@example.com.
	SenderAddress string
}

// Service is the single entry point used by the handlers.
type Service struct {
	provider     provider.Provider
	orchestrator Orchestrator
	cfg          Config
	logger       *slog.Logger
}

// New creates a Service. orchestrator may be nil when scheduling is not deployed.
func New(p provider.Provider, orchestrator Orchestrator, cfg Config) *Service {
	return &Service{
		provider:     p,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       slog.Default(),
	}
}

// WithLogger returns a copy of s that logs to l, typically scoped to one invocation.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	c := *s
	c.logger = l
	return &c
}

// Dispatch routes a validated request to the single or bulk send path.
// Single sends return the message id, bulk sends the per-batch results.
func (s *Service) Dispatch(ctx context.Context, p *email.Parsed) (any, error) {
	switch p.Recipient {
	case email.RecipientSingle:
		return s.SendEmail(ctx, p)
	case email.RecipientBulk:
		return s.SendBulkEmail(ctx, p)
	default:
		return nil, fmt.Errorf("unknown recipient mode %d", p.Recipient)
	}
}

// from renders "{label}<{address}>", preferring the request's sending address.
func (s *Service) from(sendingAddress string) string {
	addr := s.cfg.SenderAddress
	if sendingAddress != "" {
		addr = sendingAddress
	}
	if s.cfg.SenderLabel == "" {
		return addr
	}
	return fmt.Sprintf("%s<%s>", s.cfg.SenderLabel, addr)
}

// trackingMailbox returns the bcc address for a single send. A tracking tag
// value like "abc-def" turns mail@example.com into mail+abc@example.com; an
// explicit sending address replaces the mailbox altogether.
func (s *Service) trackingMailbox(req *email.Request) string {
	if req.SendingAddress != "" {
		return req.SendingAddress
	}

	mailbox := s.cfg.SenderAddress
	value := req.MessageTags[TrackingTag]
	if value == "" {
		return mailbox
	}
	suffix, _, _ := strings.Cut(value, "-")
	local, domain, ok := strings.Cut(mailbox, "@")
	if suffix == "" || !ok {
		return mailbox
	}
	return fmt.Sprintf("%s+%s@%s", local, suffix, domain)
}

// mergeTags combines the default tracking tag with the request tags.
// When requestWins is false the default tracking value is kept.
func mergeTags(requestTags map[string]string, requestWins bool) (map[string]string, error) {
	defaults := map[string]string{TrackingTag: defaultTrackingValue}
	if len(requestTags) == 0 {
		return defaults, nil
	}

	if requestWins {
		if err := mergo.Merge(&defaults, requestTags, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge message tags: %w", err)
		}
		return defaults, nil
	}

	tags := make(map[string]string, len(requestTags)+1)
	if err := mergo.Merge(&tags, requestTags); err != nil {
		return nil, fmt.Errorf("failed to merge message tags: %w", err)
	}
	if err := mergo.Merge(&tags, defaults, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge message tags: %w", err)
	}
	return tags, nil
}

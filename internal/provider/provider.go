// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"
	"errors"

	"github.com/devonik/email-api/internal/email"
)

// ErrTemplateNotFound is returned by GetTemplate when no template has the given name.
var ErrTemplateNotFound = errors.New("template not found")

// Provider is the interface that email delivery backends must implement.
type Provider interface {
	// Send delivers a composed message. A result without a message id and a
	// nil error means the provider did not accept the message.
	Send(ctx context.Context, env *email.Envelope) (*email.SendResult, error)

	// GetTemplate fetches a stored template by name.
	GetTemplate(ctx context.Context, name string) (*email.Template, error)

	// SendBulk issues one templated bulk call for the batch.
	SendBulk(ctx context.Context, batch *email.BulkBatch) (*email.BulkResult, error)

	// Name returns the human-readable name of this provider.
	Name() string
}

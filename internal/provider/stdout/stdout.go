// Package stdout implements a Provider that prints emails to standard output.
// It is the dry-run backend for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/provider"
)

// Provider prints email messages to stdout in a human-readable format.
type Provider struct {
	mu sync.Mutex
	// writer is the output destination, defaulting to os.Stdout.
	writer    io.Writer
	templates map[string]*email.Template
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w, templates: make(map[string]*email.Template)}
}

// AddTemplate registers a template served by GetTemplate.
func (p *Provider) AddTemplate(tpl *email.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[tpl.Name] = tpl
}

// Send prints the message and returns a generated message id.
func (p *Provider) Send(_ context.Context, env *email.Envelope) (*email.SendResult, error) {
	var b strings.Builder
	id := uuid.NewString()

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("Message-ID: %s\n", id))
	b.WriteString(fmt.Sprintf("From: %s\n", env.From))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(env.To, ", ")))

	if len(env.Bcc) > 0 {
		b.WriteString(fmt.Sprintf("Bcc: %s\n", strings.Join(env.Bcc, ", ")))
	}
	if env.ReplyTo != "" {
		b.WriteString(fmt.Sprintf("Reply-To: %s\n", env.ReplyTo))
	}
	if len(env.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", formatTags(env.Tags)))
	}

	b.WriteString(fmt.Sprintf("Subject: %s\n", env.Subject))
	b.WriteString("Body:\n")

	body := env.TextBody
	if body == "" {
		body = env.HtmlBody
	}
	b.WriteString(body + "\n")

	if len(env.Attachments) > 0 {
		attachments := make([]string, 0, len(env.Attachments))
		for _, att := range env.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(attachments, ", ")))
	}
	if env.Invite != nil {
		b.WriteString(fmt.Sprintf("Invite: %s (%s)\n", env.Invite.Filename, formatSize(len(env.Invite.Content))))
	}

	b.WriteString("========================================\n")

	if err := p.write(b.String()); err != nil {
		return nil, err
	}
	return &email.SendResult{MessageID: id}, nil
}

// GetTemplate returns a template registered with AddTemplate.
func (p *Provider) GetTemplate(_ context.Context, name string) (*email.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tpl, ok := p.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

// SendBulk prints one line per destination and reports every entry as sent.
func (p *Provider) SendBulk(_ context.Context, batch *email.BulkBatch) (*email.BulkResult, error) {
	var b strings.Builder
	result := &email.BulkResult{Entries: make([]email.BulkEntryResult, 0, len(batch.Destinations))}

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", batch.Source))
	b.WriteString(fmt.Sprintf("Template: %s\n", batch.Template))
	b.WriteString(fmt.Sprintf("Destinations: %d\n", len(batch.Destinations)))
	for _, d := range batch.Destinations {
		id := uuid.NewString()
		b.WriteString(fmt.Sprintf("  %s -> %s\n", id, strings.Join(d.Recipients, ", ")))
		result.Entries = append(result.Entries, email.BulkEntryResult{Status: "SUCCESS", MessageID: id})
	}
	b.WriteString("========================================\n")

	if err := p.write(b.String()); err != nil {
		return nil, err
	}
	return result, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func (p *Provider) write(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprint(p.writer, s); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func formatTags(tags map[string]string) string {
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

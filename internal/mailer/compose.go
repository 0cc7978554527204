package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/devonik/email-api/internal/attachment"
	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/invite"
	"github.com/devonik/email-api/internal/provider"
	"github.com/devonik/email-api/internal/render"
)

// SendEmail composes and sends a single message and returns its message id.
func (s *Service) SendEmail(ctx context.Context, p *email.Parsed) (string, error) {
	env, err := s.compose(ctx, p)
	if err != nil {
		return "", err
	}

	res, err := s.provider.Send(ctx, env)
	if err != nil {
		return "", err
	}
	if res == nil || res.MessageID == "" {
		rejected := &SendRejectedError{Provider: s.provider.Name()}
		if res != nil {
			rejected.Response = res.Response
		}
		s.logger.Error("error occurred for sending e-mail", "provider", rejected.Provider, "to", env.To, "response", rejected.Response)
		return "", rejected
	}
	id := res.MessageID

	s.logger.Info("e-mail sent", "message_id", id, "provider", s.provider.Name())
	return id, nil
}

// compose builds the envelope. Attachments and the invite are built before
// any provider call so bad input never reaches the provider.
func (s *Service) compose(ctx context.Context, p *email.Parsed) (*email.Envelope, error) {
	req := p.Request

	tags, err := mergeTags(req.MessageTags, true)
	if err != nil {
		return nil, err
	}

	attachments, err := attachment.Build(s.logger, req.Attachment)
	if err != nil {
		return nil, err
	}

	inv, err := invite.Build(req.Invite, req.TemplateData)
	if err != nil {
		return nil, err
	}

	env := &email.Envelope{
		From:        s.from(req.SendingAddress),
		To:          []string{req.DestinationAddress},
		Bcc:         []string{s.trackingMailbox(req)},
		Tags:        tags,
		Attachments: attachments,
		Invite:      inv,
	}

	if p.Content == email.ContentTemplated {
		if err := s.applyTemplate(ctx, env, req); err != nil {
			return nil, err
		}
	} else if req.Html != "" {
		env.HtmlBody = req.Html
	}

	// Explicit fields win over the template.
	if req.Subject != "" {
		env.Subject = req.Subject
	}
	if req.Text != "" {
		env.TextBody = req.Text
	}

	if req.ReplyTo != "" {
		env.ReplyTo = req.ReplyTo
	} else if clinicMail := req.TemplateData["clinicMail"]; clinicMail != "" {
		env.ReplyTo = clinicMail
	}

	return env, nil
}

func (s *Service) applyTemplate(ctx context.Context, env *email.Envelope, req *email.Request) error {
	tpl, err := s.provider.GetTemplate(ctx, req.TemplateName)
	if err != nil {
		if errors.Is(err, provider.ErrTemplateNotFound) {
			return fmt.Errorf("%w: %v", ErrTemplateNotFound, err)
		}
		return fmt.Errorf("failed to get template %q: %w", req.TemplateName, err)
	}

	if env.Subject, err = render.String(tpl.Subject, req.TemplateData); err != nil {
		return fmt.Errorf("template %q subject: %w", req.TemplateName, err)
	}
	if env.HtmlBody, err = render.String(tpl.Html, req.TemplateData); err != nil {
		return fmt.Errorf("template %q html: %w", req.TemplateName, err)
	}
	if env.TextBody, err = render.String(tpl.Text, req.TemplateData); err != nil {
		return fmt.Errorf("template %q text: %w", req.TemplateName, err)
	}
	return nil
}

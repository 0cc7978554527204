// Package ses implements a Provider that sends emails via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/provider"
)

// SESProviderConfig holds the configuration for creating a SESProvider.
type SESProviderConfig struct {
	// ConfigurationSet is attached to every send when non-empty.
	ConfigurationSet string
}

// SESProvider sends emails via the AWS SES v2 API.
type SESProvider struct {
	client           API
	configurationSet string
}

// API is the subset of the SES v2 client used by the provider.
// Used for testing with mock implementations.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetEmailTemplate(ctx context.Context, params *sesv2.GetEmailTemplateInput, optFns ...func(*sesv2.Options)) (*sesv2.GetEmailTemplateOutput, error)
	SendBulkEmail(ctx context.Context, params *sesv2.SendBulkEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendBulkEmailOutput, error)
}

// New creates a SESProvider from a loaded AWS configuration.
func New(awsCfg aws.Config, cfg SESProviderConfig) *SESProvider {
	return NewWithClient(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewWithClient creates a SESProvider with a custom client, used for testing.
func NewWithClient(client API, cfg SESProviderConfig) *SESProvider {
	return &SESProvider{
		client:           client,
		configurationSet: cfg.ConfigurationSet,
	}
}

// Send delivers a message via AWS SES v2 and returns the SES message id.
// Messages with attachments or an invite are sent as raw MIME.
func (s *SESProvider) Send(ctx context.Context, env *email.Envelope) (*email.SendResult, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses:  env.To,
			BccAddresses: env.Bcc,
		},
		EmailTags: messageTags(env.Tags),
	}
	if env.ReplyTo != "" {
		input.ReplyToAddresses = []string{env.ReplyTo}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	if len(env.Attachments) > 0 || env.Invite != nil {
		raw, err := buildRawMessage(env)
		if err != nil {
			return nil, fmt.Errorf("failed to build raw message: %w", err)
		}
		input.Content = &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		}
	} else {
		input.Content = &types.EmailContent{
			Simple: buildSimpleMessage(env),
		}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("SES SendEmail failed: %w", err)
	}
	return &email.SendResult{
		MessageID: aws.ToString(out.MessageId),
		Response:  sendResponse(out),
	}, nil
}

// sendResponse flattens the SES reply for error reports.
func sendResponse(out *sesv2.SendEmailOutput) map[string]string {
	resp := map[string]string{"MessageId": aws.ToString(out.MessageId)}
	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok {
		resp["RequestId"] = id
	}
	return resp
}

// GetTemplate fetches a stored SES email template.
func (s *SESProvider) GetTemplate(ctx context.Context, name string) (*email.Template, error) {
	out, err := s.client.GetEmailTemplate(ctx, &sesv2.GetEmailTemplateInput{
		TemplateName: aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", provider.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("SES GetEmailTemplate failed: %w", err)
	}
	if out.TemplateContent == nil {
		return nil, fmt.Errorf("%w: %s has no content", provider.ErrTemplateNotFound, name)
	}

	return &email.Template{
		Name:    name,
		Subject: aws.ToString(out.TemplateContent.Subject),
		Html:    aws.ToString(out.TemplateContent.Html),
		Text:    aws.ToString(out.TemplateContent.Text),
	}, nil
}

// SendBulk sends one templated bulk call. SES accepts at most 50 entries.
func (s *SESProvider) SendBulk(ctx context.Context, batch *email.BulkBatch) (*email.BulkResult, error) {
	entries := make([]types.BulkEmailEntry, 0, len(batch.Destinations))
	for _, d := range batch.Destinations {
		entry := types.BulkEmailEntry{
			Destination: &types.Destination{ToAddresses: d.Recipients},
		}
		if d.ReplacementTemplateData != "" {
			entry.ReplacementEmailContent = &types.ReplacementEmailContent{
				ReplacementTemplate: &types.ReplacementTemplate{
					ReplacementTemplateData: aws.String(d.ReplacementTemplateData),
				},
			}
		}
		entries = append(entries, entry)
	}

	input := &sesv2.SendBulkEmailInput{
		FromEmailAddress: aws.String(batch.Source),
		DefaultContent: &types.BulkEmailContent{
			Template: &types.Template{
				TemplateName: aws.String(batch.Template),
				TemplateData: aws.String(batch.DefaultTemplateData),
			},
		},
		DefaultEmailTags: messageTags(batch.DefaultTags),
		BulkEmailEntries: entries,
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendBulkEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("SES SendBulkEmail failed: %w", err)
	}

	result := &email.BulkResult{Entries: make([]email.BulkEntryResult, 0, len(out.BulkEmailEntryResults))}
	for _, r := range out.BulkEmailEntryResults {
		result.Entries = append(result.Entries, email.BulkEntryResult{
			Status:    string(r.Status),
			MessageID: aws.ToString(r.MessageId),
			Error:     aws.ToString(r.Error),
		})
	}
	return result, nil
}

// Name returns the provider name.
func (s *SESProvider) Name() string {
	return "ses"
}

// messageTags converts a tag map into SES tags, sorted by name.
func messageTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.MessageTag, 0, len(tags))
	for _, name := range names {
		out = append(out, types.MessageTag{
			Name:  aws.String(name),
			Value: aws.String(tags[name]),
		})
	}
	return out
}

// buildSimpleMessage creates the SES simple content for messages without attachments.
func buildSimpleMessage(env *email.Envelope) *types.Message {
	body := &types.Body{}

	if env.HtmlBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(env.HtmlBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if env.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(env.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	return &types.Message{
		Subject: &types.Content{
			Data:    aws.String(env.Subject),
			Charset: aws.String("UTF-8"),
		},
		Body: body,
	}
}

// buildRawMessage constructs a raw MIME message for messages with attachments
// or an invite. Bcc recipients are left to the SES destination.
func buildRawMessage(env *email.Envelope) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", env.From)
	if len(env.To) > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(env.To, ", "))
	}
	if env.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", env.ReplyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", env.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	if err := writeBody(writer, env); err != nil {
		return nil, err
	}

	if env.Invite != nil {
		invHeader := make(textproto.MIMEHeader)
		invHeader.Set("Content-Type", fmt.Sprintf("text/calendar; charset=UTF-8; method=%s; name=%q", env.Invite.Method, env.Invite.Filename))
		invHeader.Set("Content-Transfer-Encoding", "base64")
		invHeader.Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", mime.QEncoding.Encode("UTF-8", env.Invite.Filename)))

		part, err := writer.CreatePart(invHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create invite part: %w", err)
		}
		part.Write([]byte(encodeBase64WithLineBreaks(env.Invite.Content)))
	}

	for _, att := range env.Attachments {
		attHeader := make(textproto.MIMEHeader)
		attHeader.Set("Content-Type", att.ContentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", mime.QEncoding.Encode("UTF-8", att.Filename)))

		part, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		part.Write([]byte(encodeBase64WithLineBreaks(att.Content)))
	}

	writer.Close()
	return buf.Bytes(), nil
}

// writeBody writes the text and html bodies, as multipart/alternative when
// both are present.
func writeBody(writer *multipart.Writer, env *email.Envelope) error {
	switch {
	case env.HtmlBody != "" && env.TextBody != "":
		var alt bytes.Buffer
		altWriter := multipart.NewWriter(&alt)
		if err := writeTextPart(altWriter, "text/plain", env.TextBody); err != nil {
			return err
		}
		if err := writeTextPart(altWriter, "text/html", env.HtmlBody); err != nil {
			return err
		}
		altWriter.Close()

		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary()))
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		part.Write(alt.Bytes())
		return nil
	case env.HtmlBody != "":
		return writeTextPart(writer, "text/html", env.HtmlBody)
	case env.TextBody != "":
		return writeTextPart(writer, "text/plain", env.TextBody)
	default:
		return nil
	}
}

func writeTextPart(writer *multipart.Writer, contentType, body string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType+"; charset=UTF-8")
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	part.Write([]byte(body))
	return nil
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

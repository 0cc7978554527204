package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devonik/email-api/internal/email"
)

// BulkBatchSize is the SES limit of destinations per bulk call.
const BulkBatchSize = 50

// ErrBulkRequiresTemplate rejects bulk requests without a template.
var ErrBulkRequiresTemplate = fmt.Errorf("%w: bulk mail requires 'emailTemplate' and 'templateData'", email.ErrInvalidRequest)

// SendBulkEmail sends the request's destinations in batches of BulkBatchSize,
// one provider call per batch, in order. The first failing batch aborts the
// remaining ones; results of the batches sent so far are returned with the error.
func (s *Service) SendBulkEmail(ctx context.Context, p *email.Parsed) ([]*email.BulkResult, error) {
	req := p.Request
	if p.Content != email.ContentTemplated {
		return nil, ErrBulkRequiresTemplate
	}

	tags, err := mergeTags(req.MessageTags, false)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.TemplateData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template data: %w", err)
	}

	source := s.from(req.SendingAddress)
	destinations := req.Destinations
	s.logger.Info("sending bulk e-mail", "destinations", len(destinations), "template", req.TemplateName)

	results := make([]*email.BulkResult, 0, (len(destinations)+BulkBatchSize-1)/BulkBatchSize)
	for start := 0; start < len(destinations); start += BulkBatchSize {
		end := min(start+BulkBatchSize, len(destinations))

		res, err := s.provider.SendBulk(ctx, &email.BulkBatch{
			Source:              source,
			Template:            req.TemplateName,
			DefaultTemplateData: string(data),
			DefaultTags:         tags,
			Destinations:        destinations[start:end],
		})
		if err != nil {
			return results, fmt.Errorf("bulk batch %d (destinations %d-%d): %w", len(results), start, end-1, err)
		}
		results = append(results, res)

		s.logger.Info("bulk batch sent", "batch", len(results), "destinations", end-start)
	}

	return results, nil
}

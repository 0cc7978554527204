package email

import "errors"

// ErrInvalidRequest is wrapped by every error caused by the request payload
// itself, so callers can separate client faults from provider faults.
var ErrInvalidRequest = errors.New("invalid request")

// Reason identifies which validation rule rejected a request.
type Reason int

const (
	MissingDestinations Reason = iota + 1
	IncompleteTemplateData
	IncompleteMetaData
)

var reasonMessages = map[Reason]string{
	MissingDestinations:    "Missing parameter destinationAddress (for single mail) or destinations (for aws bulk mail)",
	IncompleteTemplateData: "If you want to use templating then you have to provide 'emailTemplate' and 'templateData' within body",
	IncompleteMetaData:     "If you don't want to use templating then you have to provide 'subject' and 'text' or 'html' within body",
}

func (r Reason) String() string {
	switch r {
	case MissingDestinations:
		return "MissingDestinations"
	case IncompleteTemplateData:
		return "IncompleteTemplateData"
	case IncompleteMetaData:
		return "IncompleteMetaData"
	default:
		return "Unknown"
	}
}

// ValidationError reports the first validation rule a request violated.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return reasonMessages[e.Reason]
}

// Is reports ErrInvalidRequest as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// RecipientMode selects the send path.
type RecipientMode int

const (
	RecipientSingle RecipientMode = iota + 1
	RecipientBulk
)

// ContentMode selects how subject and body are resolved.
type ContentMode int

const (
	ContentTemplated ContentMode = iota + 1
	ContentPlain
)

// Parsed is a request that passed validation, tagged with its modes.
type Parsed struct {
	*Request
	Recipient RecipientMode
	Content   ContentMode
}

// Parse validates req and classifies it. Rules are applied in order and the
// first failing one wins:
//  1. a destination address or a non-empty destinations list is required
//  2. emailTemplate and templateData must be given together
//  3. without a template, subject and one of text or html are required
func Parse(req *Request) (*Parsed, error) {
	p := &Parsed{Request: req}

	switch {
	case req.DestinationAddress != "":
		p.Recipient = RecipientSingle
	case len(req.Destinations) > 0:
		p.Recipient = RecipientBulk
	default:
		return nil, &ValidationError{Reason: MissingDestinations}
	}

	hasTemplate := req.TemplateName != ""
	hasData := req.TemplateData != nil
	if hasTemplate || hasData {
		if !hasTemplate || !hasData {
			return nil, &ValidationError{Reason: IncompleteTemplateData}
		}
		p.Content = ContentTemplated
		return p, nil
	}

	if req.Subject == "" || (req.Text == "" && req.Html == "") {
		return nil, &ValidationError{Reason: IncompleteMetaData}
	}
	p.Content = ContentPlain
	return p, nil
}

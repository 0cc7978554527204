// Package email defines the request and message model used throughout the email API.
package email

// Envelope is a fully composed message ready to be handed to a provider.
type Envelope struct {
	From        string
	To          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	TextBody    string
	HtmlBody    string
	Tags        map[string]string
	Attachments []Attachment
	Invite      *Invite
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Invite is an iCalendar payload embedded into a message.
type Invite struct {
	Filename string
	Method   string
	Content  []byte
}

// Template is a provider-stored template. The parts use handlebars syntax.
type Template struct {
	Name    string
	Subject string
	Html    string
	Text    string
}

// BulkBatch is one provider call worth of templated bulk mail.
type BulkBatch struct {
	Source              string
	Template            string
	DefaultTemplateData string
	DefaultTags         map[string]string
	Destinations        []Destination
}

// SendResult is the provider's answer to a single send.
type SendResult struct {
	MessageID string
	// Response is the raw provider reply, reported when no message id came back.
	Response any
}

// BulkResult is the provider response for a single BulkBatch.
type BulkResult struct {
	Entries []BulkEntryResult `json:"entries"`
}

// BulkEntryResult reports the outcome for one destination of a batch.
type BulkEntryResult struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

package email

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is the payload accepted by the post, schedule and consumer entry points.
type Request struct {
	TraceID            string            `json:"heilandTraceId,omitempty"`
	SendingAddress     string            `json:"sendingEmailAddress,omitempty"`
	DestinationAddress string            `json:"destinationAddress,omitempty"`
	Destinations       []Destination     `json:"destinations,omitempty"`
	TemplateName       string            `json:"emailTemplate,omitempty"`
	TemplateData       map[string]string `json:"templateData,omitempty"`
	Subject            string            `json:"subject,omitempty"`
	Text               string            `json:"text,omitempty"`
	Html               string            `json:"html,omitempty"`
	ReplyTo            string            `json:"replyTo,omitempty"`
	MessageTags        map[string]string `json:"messageTag,omitempty"`
	Attachment         *AttachmentSpec   `json:"attachment,omitempty"`
	Invite             *InviteSpec       `json:"icsEvent,omitempty"`
}

// Destination is a bulk recipient group with its per-destination template data.
type Destination struct {
	Recipients              []string
	ReplacementTemplateData string
}

type destinationWire struct {
	Destination struct {
		ToAddresses []string `json:"ToAddresses"`
	} `json:"Destination"`
	ReplacementTemplateData string `json:"ReplacementTemplateData,omitempty"`
}

// UnmarshalJSON accepts either the provider shape
// {"Destination":{"ToAddresses":[...]},"ReplacementTemplateData":"..."}
// or a bare address string.
func (d *Destination) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var addr string
		if err := json.Unmarshal(data, &addr); err != nil {
			return err
		}
		*d = Destination{Recipients: []string{addr}}
		return nil
	}

	var w destinationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	*d = Destination{
		Recipients:              w.Destination.ToAddresses,
		ReplacementTemplateData: w.ReplacementTemplateData,
	}
	return nil
}

// MarshalJSON writes the provider shape so scheduled payloads round-trip.
func (d Destination) MarshalJSON() ([]byte, error) {
	var w destinationWire
	w.Destination.ToAddresses = d.Recipients
	w.ReplacementTemplateData = d.ReplacementTemplateData
	return json.Marshal(w)
}

// AttachmentSpec declares an attachment to be generated from structured data.
// Data and Options are kept raw so their shape can be checked explicitly.
type AttachmentSpec struct {
	Filename string          `json:"filename,omitempty"`
	Format   string          `json:"format"`
	Data     json.RawMessage `json:"data,omitempty"`
	Options  json.RawMessage `json:"options,omitempty"`
}

// InviteSpec declares a calendar event to be sent along with the message.
type InviteSpec struct {
	StartDate   string          `json:"startDate"`
	Duration    json.RawMessage `json:"duration,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Organizer   json.RawMessage `json:"organizer,omitempty"`
	Attendees   json.RawMessage `json:"attendees,omitempty"`
}

// DecodeRequest parses a JSON payload into a Request.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &req, nil
}

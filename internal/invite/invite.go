// Package invite builds iCalendar invites from declarative event specs.
package invite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/devonik/email-api/internal/email"
)

// StartDateLayout is the accepted format of startDate (YYYY-MM-DDTHH:mm:ss).
const StartDateLayout = "2006-01-02T15:04:05"

// floatingLayout renders DTSTART/DTEND without a zone so clients show local time.
const floatingLayout = "20060102T150405"

const productID = "-//devonik//email-api//DE"

var (
	ErrStartDateInvalid       = fmt.Errorf("%w: startDate for ICS event creation is not valid, format must be YYYY-MM-DDTHH:mm:ss", email.ErrInvalidRequest)
	ErrDurationMissing        = fmt.Errorf("%w: the duration for ICS event creation is not defined", email.ErrInvalidRequest)
	ErrDurationMalformed      = fmt.Errorf("%w: the duration for ICS event creation is not valid, must be an object like {\"hours\": 1, \"minutes\": 15}", email.ErrInvalidRequest)
	ErrDurationHoursInvalid   = fmt.Errorf("%w: duration.hours is not set", email.ErrInvalidRequest)
	ErrDurationMinutesInvalid = fmt.Errorf("%w: duration.minutes is not set", email.ErrInvalidRequest)
	ErrTitleMissing           = fmt.Errorf("%w: the title for ICS event creation is not defined", email.ErrInvalidRequest)
	ErrOrganizerInvalid       = fmt.Errorf("%w: the organizer for ICS event creation is not valid, must be an object like {\"name\": \"Adam Gibbons\", \"email\": \"adam@example.com\"}", email.ErrInvalidRequest)
	ErrAttendeeInvalid        = fmt.Errorf("%w: one attendee for ICS event creation is not valid, must be an object like {\"name\": \"Adam Gibbons\", \"email\": \"adam@example.com\", \"rsvp\": true, \"partstat\": \"ACCEPTED\", \"role\": \"REQ-PARTICIPANT\"}", email.ErrInvalidRequest)
	ErrEncoding               = fmt.Errorf("%w: ICS event creation failed", email.ErrInvalidRequest)
)

// AttendeeError reports which attendee failed validation.
type AttendeeError struct {
	Index int
	Err   error
}

func (e *AttendeeError) Error() string {
	return fmt.Sprintf("attendees[%d]: %v", e.Index, e.Err)
}

func (e *AttendeeError) Unwrap() error { return e.Err }

// Duration is the validated length of an event.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Person is an organizer or attendee.
type Person struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	RSVP     bool   `json:"rsvp"`
	PartStat string `json:"partstat"`
	Role     string `json:"role"`
}

// Validate requires a well-formed email address.
func (p Person) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

// Event is a validated invite, ready to encode.
type Event struct {
	Start       time.Time
	Duration    Duration
	Title       string
	Description string
	Location    string
	Organizer   *Person
	Attendees   []Person
}

// Build validates spec and encodes it. templateData supplies the tokens used
// for the filename. A nil spec yields a nil invite.
func Build(spec *email.InviteSpec, templateData map[string]string) (*email.Invite, error) {
	if spec == nil {
		return nil, nil
	}

	ev, err := Validate(spec)
	if err != nil {
		return nil, err
	}

	content, err := Encode(ev, time.Now())
	if err != nil {
		return nil, err
	}

	return &email.Invite{
		Filename: Filename(templateData),
		Method:   string(ics.MethodPublish),
		Content:  content,
	}, nil
}

// Validate checks spec in the order startDate, duration, title, organizer,
// attendees and returns the first failure.
func Validate(spec *email.InviteSpec) (*Event, error) {
	start, err := time.Parse(StartDateLayout, spec.StartDate)
	if err != nil {
		return nil, ErrStartDateInvalid
	}

	dur, err := parseDuration(spec.Duration)
	if err != nil {
		return nil, err
	}

	if spec.Title == "" {
		return nil, ErrTitleMissing
	}

	ev := &Event{
		Start:       start,
		Duration:    dur,
		Title:       spec.Title,
		Description: spec.Description,
		Location:    spec.Location,
	}

	if !isAbsent(spec.Organizer) {
		if firstByte(spec.Organizer) != '{' {
			return nil, ErrOrganizerInvalid
		}
		var org Person
		if err := json.Unmarshal(spec.Organizer, &org); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrganizerInvalid, err)
		}
		if err := org.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrganizerInvalid, err)
		}
		ev.Organizer = &org
	}

	if !isAbsent(spec.Attendees) {
		attendees, err := parseAttendees(spec.Attendees)
		if err != nil {
			return nil, err
		}
		ev.Attendees = attendees
	}

	return ev, nil
}

type durationFields struct {
	Hours   *int `json:"hours"`
	Minutes *int `json:"minutes"`
}

func parseDuration(raw json.RawMessage) (Duration, error) {
	var d Duration
	if isAbsent(raw) {
		return d, ErrDurationMissing
	}
	if firstByte(raw) != '{' {
		return d, ErrDurationMalformed
	}

	var fields durationFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return d, fmt.Errorf("%w: %v", ErrDurationMalformed, err)
	}

	err := validation.ValidateStruct(&fields,
		validation.Field(&fields.Hours, validation.NotNil, validation.Min(0)),
		// Zero minutes counts as not set, even for whole-hour events.
		validation.Field(&fields.Minutes, validation.Required, validation.Min(1)),
	)
	var errs validation.Errors
	if errors.As(err, &errs) {
		if e := errs["hours"]; e != nil {
			return d, fmt.Errorf("%w: %v", ErrDurationHoursInvalid, e)
		}
		if e := errs["minutes"]; e != nil {
			return d, fmt.Errorf("%w: %v", ErrDurationMinutesInvalid, e)
		}
	}
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrDurationMalformed, err)
	}

	d.Hours = *fields.Hours
	d.Minutes = *fields.Minutes
	return d, nil
}

// parseAttendees validates every element and reports the first bad index.
func parseAttendees(raw json.RawMessage) ([]Person, error) {
	if firstByte(raw) != '[' {
		return nil, ErrAttendeeInvalid
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttendeeInvalid, err)
	}

	attendees := make([]Person, 0, len(elems))
	for i, elem := range elems {
		if firstByte(elem) != '{' {
			return nil, &AttendeeError{Index: i, Err: ErrAttendeeInvalid}
		}
		var p Person
		if err := json.Unmarshal(elem, &p); err != nil {
			return nil, &AttendeeError{Index: i, Err: fmt.Errorf("%w: %v", ErrAttendeeInvalid, err)}
		}
		if err := p.Validate(); err != nil {
			return nil, &AttendeeError{Index: i, Err: fmt.Errorf("%w: %v", ErrAttendeeInvalid, err)}
		}
		attendees = append(attendees, p)
	}
	return attendees, nil
}

// Encode renders ev as a PUBLISH calendar. now stamps DTSTAMP.
func Encode(ev *Event, now time.Time) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)

	vev := cal.AddEvent(uuid.NewString())
	vev.SetDtStampTime(now)
	end := ev.Start.Add(time.Duration(ev.Duration.Hours)*time.Hour + time.Duration(ev.Duration.Minutes)*time.Minute)
	vev.SetProperty(ics.ComponentPropertyDtStart, ev.Start.Format(floatingLayout))
	vev.SetProperty(ics.ComponentPropertyDtEnd, end.Format(floatingLayout))
	vev.SetSummary(ev.Title)
	if ev.Description != "" {
		vev.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}

	if ev.Organizer != nil {
		if err := ev.Organizer.Validate(); err != nil {
			return nil, fmt.Errorf("%w: organizer: %v", ErrEncoding, err)
		}
		var params []ics.PropertyParameter
		if ev.Organizer.Name != "" {
			params = append(params, ics.WithCN(ev.Organizer.Name))
		}
		vev.SetOrganizer(ev.Organizer.Email, params...)
	}

	for i, a := range ev.Attendees {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("%w: attendees[%d]: %v", ErrEncoding, i, err)
		}
		params := []ics.PropertyParameter{ics.WithRSVP(a.RSVP)}
		if a.Name != "" {
			params = append(params, ics.WithCN(a.Name))
		}
		if a.PartStat != "" {
			params = append(params, ics.ParticipationStatus(strings.ToUpper(a.PartStat)))
		}
		if a.Role != "" {
			params = append(params, ics.ParticipationRole(strings.ToUpper(a.Role)))
		}
		vev.AddAttendee(a.Email, params...)
	}

	// Content lines end in CRLF regardless of the host platform.
	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf, ics.WithNewLineWindows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

var whitespace = regexp.MustCompile(`\s`)

// Filename derives termin-{clinic}-{date}-a-{time}.ics from template data,
// e.g. termin-tierarztpraxis-staging-23-05-2022-a-09-15.ics.
func Filename(data map[string]string) string {
	clinic := data["clinicName"]
	date := data["appointmentStartDate"]
	clock := data["appointmentStartTime"]
	if clinic == "" && date == "" && clock == "" {
		return "invite.ics"
	}

	clinic = whitespace.ReplaceAllString(clinic, "-")
	date = strings.ReplaceAll(date, ".", "-")
	clock = strings.ReplaceAll(clock, ":", "-")
	return strings.ToLower(fmt.Sprintf("termin-%s-%s-a-%s.ics", clinic, date, clock))
}

func isAbsent(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null"
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

package davclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"

	"github.com/openchrono/calbridge/adapter"
	davxml "github.com/openchrono/calbridge/internal/xml"
)

// Scheduling methods accepted by SendSchedulingMessage.
const (
	MethodRequest = "REQUEST"
	MethodReply   = "REPLY"
)

const (
	paramPartStat = "PARTSTAT"
	paramRSVP     = "RSVP"

	freeBusyTimeLayout = "20060102T150405Z"
)

// FreeBusyPeriod is one busy interval of an attendee.
type FreeBusyPeriod struct {
	Start time.Time
	End   time.Time
}

// SendSchedulingMessage posts an iTIP message for the event to the
// account's schedule outbox. Method is REQUEST for invitations and
// updates, REPLY for attendee responses.
func (c *Client) SendSchedulingMessage(ctx context.Context, method string, ev adapter.UIEvent) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	if method != MethodRequest && method != MethodReply {
		return &ValidationError{Message: fmt.Sprintf("unsupported scheduling method %q", method)}
	}
	if c.account.ScheduleOutbox == "" {
		return &ValidationError{Message: "account has no schedule outbox"}
	}

	event, err := c.converter.ToWireEvent(ev)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	cal := adapter.WrapEvent(event)
	cal.Props.SetText(ical.PropMethod, method)

	data, err := encodeCalendar(cal)
	if err != nil {
		return fmt.Errorf("failed to encode scheduling message: %w", err)
	}

	status, _, err := c.transport.DoPOST(ctx, c.account.ScheduleOutbox, "text/calendar; charset=utf-8", string(data))
	if err != nil {
		return fmt.Errorf("failed to post scheduling message: %w", mapStatusError(err, c.account.ScheduleOutbox))
	}
	c.logger.Debug("scheduling message sent", "method", method, "status", status)
	return nil
}

// RespondToInvitation updates the attendee's own participation status on an
// event: the matching ATTENDEE's PARTSTAT is rewritten, its RSVP request
// cleared, and the resource PUT back under If-Match. Other attendees and
// the SEQUENCE are left untouched.
func (c *Client) RespondToInvitation(ctx context.Context, eventURL, email, partstat string) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	switch partstat {
	case adapter.StatusAccepted, adapter.StatusTentative, adapter.StatusDeclined:
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported participation status %q", partstat)}
	}

	obj, ok := c.events[eventURL]
	if !ok {
		body, etag, err := c.transport.DoGET(ctx, eventURL)
		if err != nil {
			return fmt.Errorf("failed to fetch event: %w", mapStatusError(err, eventURL))
		}
		obj, err = c.decodeObject(eventURL, etag, body, "")
		if err != nil {
			return fmt.Errorf("failed to decode event %s: %w", eventURL, err)
		}
		c.events[eventURL] = obj
	}

	matched := false
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		for _, prop := range child.Props[ical.PropAttendee] {
			if !sameAddress(prop.Value, email) {
				continue
			}
			prop.Params.Set(paramPartStat, partstat)
			prop.Params.Del(paramRSVP)
			matched = true
		}
	}
	if !matched {
		return &NotFoundError{Resource: fmt.Sprintf("attendee %s on %s", email, eventURL)}
	}

	data, err := encodeCalendar(obj.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	newEtag, err := c.transport.DoPUT(ctx, eventURL, obj.ETag, data)
	if err != nil {
		return fmt.Errorf("failed to store response: %w", mapStatusError(err, eventURL))
	}
	obj.ETag = newEtag
	return nil
}

// QueryFreeBusy asks the server for the attendees' busy intervals in the
// given range, keyed by attendee email. Attendees the server reports no
// data for are absent from the result.
func (c *Client) QueryFreeBusy(ctx context.Context, start, end time.Time, attendees []string) (map[string][]FreeBusyPeriod, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	if c.account.ScheduleOutbox == "" {
		return nil, &ValidationError{Message: "account has no schedule outbox"}
	}
	if len(attendees) == 0 {
		return nil, &ValidationError{Message: "no attendees given"}
	}

	body := freeBusyRequest(start, end, mailtoHref(c.account.Username), attendees)
	status, respBody, err := c.transport.DoPOST(ctx, c.account.ScheduleOutbox, "text/calendar; charset=utf-8", body)
	if err != nil {
		return nil, fmt.Errorf("failed to post free-busy query: %w", mapStatusError(err, c.account.ScheduleOutbox))
	}
	c.logger.Debug("free-busy query sent", "status", status, "attendees", len(attendees))

	return parseFreeBusyResponse(respBody)
}

// CalendarFreeBusy asks one calendar for its busy intervals in the given
// range via a free-busy-query REPORT. Unlike QueryFreeBusy this covers a
// single collection and needs no scheduling support on the server.
func (c *Client) CalendarFreeBusy(ctx context.Context, calendarURL string, start, end time.Time) ([]FreeBusyPeriod, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	if _, ok := c.calendars[calendarURL]; !ok {
		return nil, &NotFoundError{Resource: calendarURL}
	}

	body := davxml.Serialize(davxml.FreeBusyQuery(start, end))
	data, err := c.transport.DoREPORTRaw(ctx, calendarURL, 0, body)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar free-busy: %w", mapStatusError(err, calendarURL))
	}
	periods, err := parseFreeBusyPeriods(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse free-busy for %s: %w", calendarURL, err)
	}
	return periods, nil
}

// freeBusyRequest builds the iTIP VFREEBUSY request body.
func freeBusyRequest(start, end time.Time, organizer string, attendees []string) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//openchrono/calbridge//NONSGML v1.0//EN")
	line("METHOD:REQUEST")
	line("BEGIN:VFREEBUSY")
	line("DTSTAMP:" + time.Now().UTC().Format(freeBusyTimeLayout))
	line("DTSTART:" + start.UTC().Format(freeBusyTimeLayout))
	line("DTEND:" + end.UTC().Format(freeBusyTimeLayout))
	line("ORGANIZER:" + organizer)
	for _, attendee := range attendees {
		line("ATTENDEE:" + mailtoHref(attendee))
	}
	line("END:VFREEBUSY")
	line("END:VCALENDAR")
	return b.String()
}

// parseFreeBusyResponse decodes a schedule-response document: one
// C:response per recipient, each carrying a VFREEBUSY in calendar-data.
func parseFreeBusyResponse(body string) (map[string][]FreeBusyPeriod, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return nil, fmt.Errorf("failed to parse schedule response: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty schedule response")
	}

	result := make(map[string][]FreeBusyPeriod)
	for _, response := range root.ChildElements() {
		if response.Tag != "response" {
			continue
		}
		recipient := ""
		if rec := findChild(response, "recipient"); rec != nil {
			recipient = childText(rec, "href")
			if recipient == "" {
				recipient = strings.TrimSpace(rec.Text())
			}
		}
		if recipient == "" {
			continue
		}
		data := childText(response, "calendar-data")
		if data == "" {
			continue
		}
		periods, err := parseFreeBusyPeriods(data)
		if err != nil {
			continue
		}
		result[strings.TrimPrefix(strings.ToLower(recipient), "mailto:")] = periods
	}
	return result, nil
}

// parseFreeBusyPeriods extracts the FREEBUSY intervals of a VFREEBUSY
// calendar. Both start/end and start/duration period forms are accepted.
func parseFreeBusyPeriods(data string) ([]FreeBusyPeriod, error) {
	cal, err := ical.NewDecoder(strings.NewReader(normalizeCRLF(data))).Decode()
	if err != nil {
		return nil, err
	}

	var periods []FreeBusyPeriod
	for _, child := range cal.Children {
		if child.Name != ical.CompFreeBusy {
			continue
		}
		for _, prop := range child.Props["FREEBUSY"] {
			for _, value := range strings.Split(prop.Value, ",") {
				period, err := parsePeriod(strings.TrimSpace(value))
				if err != nil {
					continue
				}
				periods = append(periods, period)
			}
		}
	}
	return periods, nil
}

// parsePeriod decodes one RFC 5545 period value.
func parsePeriod(value string) (FreeBusyPeriod, error) {
	parts := strings.SplitN(value, "/", 2)
	if len(parts) != 2 {
		return FreeBusyPeriod{}, fmt.Errorf("malformed period %q", value)
	}
	start, err := time.Parse(freeBusyTimeLayout, parts[0])
	if err != nil {
		return FreeBusyPeriod{}, err
	}
	if strings.HasPrefix(parts[1], "P") || strings.HasPrefix(parts[1], "+P") {
		dur, err := adapter.ParseICSDuration(parts[1])
		if err != nil {
			return FreeBusyPeriod{}, err
		}
		return FreeBusyPeriod{Start: start, End: start.Add(dur)}, nil
	}
	end, err := time.Parse(freeBusyTimeLayout, parts[1])
	if err != nil {
		return FreeBusyPeriod{}, err
	}
	return FreeBusyPeriod{Start: start, End: end}, nil
}

// sameAddress compares two mail addresses ignoring case and the mailto:
// scheme.
func sameAddress(a, b string) bool {
	normalize := func(s string) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "mailto:")
	}
	return normalize(a) == normalize(b)
}

// normalizeCRLF rewrites bare newlines to the CRLF line endings the ICS
// decoder requires. XML transports often strip carriage returns.
func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

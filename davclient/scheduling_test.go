package davclient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchrono/calbridge/adapter"
)

const invitedICS = `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:party-1
DTSTAMP:20260101T000000Z
DTSTART:20260214T180000Z
DTEND:20260214T210000Z
SUMMARY:Launch party
ORGANIZER:mailto:boss@example.com
ATTENDEE;CN=Boss;PARTSTAT=ACCEPTED:mailto:boss@example.com
ATTENDEE;PARTSTAT=NEEDS-ACTION;RSVP=TRUE:mailto:user@example.com
END:VEVENT
END:VCALENDAR
`

func TestSendSchedulingMessage(t *testing.T) {
	transport := &mockTransport{
		postFn: func(url, contentType, body string) (int, string, error) {
			assert.Equal(t, testOutbox, url)
			assert.Contains(t, contentType, "text/calendar")
			return 200, "", nil
		},
	}
	client := newTestClient(transport)

	err := client.SendSchedulingMessage(context.Background(), MethodRequest, adapter.UIEvent{
		Title: "Kickoff",
		Start: "2026-03-02T10:00:00",
		End:   "2026-03-02T11:00:00",
		Ext: adapter.UIExt{
			Organizer: "user@example.com",
			Attendees: []adapter.Attendee{{Email: "guest@example.com", Status: adapter.StatusNeedsAction}},
		},
	})
	require.NoError(t, err)

	require.Len(t, transport.postBodies, 1)
	body := transport.postBodies[0]
	assert.Contains(t, body, "METHOD:REQUEST")
	assert.Contains(t, body, "SUMMARY:Kickoff")
	assert.Contains(t, body, "mailto:guest@example.com")
}

func TestSendSchedulingMessageValidatesMethod(t *testing.T) {
	client := newTestClient(&mockTransport{})
	err := client.SendSchedulingMessage(context.Background(), "CANCEL", adapter.UIEvent{})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRespondToInvitation(t *testing.T) {
	eventURL := testCalURL + "party-1.ics"
	transport := &mockTransport{
		putFn: func(url, etag string, data []byte) (string, error) {
			return `"etag-2"`, nil
		},
	}
	client := newTestClient(transport)
	seedEvent(t, client, eventURL, invitedICS, `"etag-1"`)

	err := client.RespondToInvitation(context.Background(), eventURL, "User@Example.com", adapter.StatusAccepted)
	require.NoError(t, err)

	require.Len(t, transport.putBodies, 1)
	assert.Equal(t, `"etag-1"`, transport.putEtags[0])

	body := transport.putBodies[0]
	// Only the responder's attendee line changes.
	var userLine, bossLine string
	for _, line := range strings.Split(body, "\r\n") {
		if strings.HasPrefix(line, "ATTENDEE") && strings.Contains(line, "user@example.com") {
			userLine = line
		}
		if strings.HasPrefix(line, "ATTENDEE") && strings.Contains(line, "boss@example.com") {
			bossLine = line
		}
	}
	assert.Contains(t, userLine, "PARTSTAT=ACCEPTED")
	assert.NotContains(t, userLine, "RSVP")
	assert.Contains(t, bossLine, "PARTSTAT=ACCEPTED")
	// The sequence is not bumped by a participation reply.
	assert.Contains(t, body, "UID:party-1")
	assert.NotContains(t, body, "SEQUENCE:1")

	assert.Equal(t, `"etag-2"`, client.events[eventURL].ETag)
}

func TestRespondToInvitationUnknownAttendee(t *testing.T) {
	eventURL := testCalURL + "party-1.ics"
	client := newTestClient(&mockTransport{})
	seedEvent(t, client, eventURL, invitedICS, `"etag-1"`)

	err := client.RespondToInvitation(context.Background(), eventURL, "stranger@example.com", adapter.StatusDeclined)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRespondToInvitationValidatesStatus(t *testing.T) {
	client := newTestClient(&mockTransport{})
	err := client.RespondToInvitation(context.Background(), testCalURL+"party-1.ics", "user@example.com", "MAYBE")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestQueryFreeBusy(t *testing.T) {
	scheduleResponse := `<?xml version="1.0" encoding="utf-8"?>
<C:schedule-response xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <C:response>
    <C:recipient><D:href>mailto:guest@example.com</D:href></C:recipient>
    <C:request-status>2.0;Success</C:request-status>
    <C:calendar-data>BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//server//EN
BEGIN:VFREEBUSY
DTSTART:20260301T000000Z
DTEND:20260308T000000Z
FREEBUSY:20260302T090000Z/20260302T100000Z,20260303T140000Z/PT1H
END:VFREEBUSY
END:VCALENDAR</C:calendar-data>
  </C:response>
  <C:response>
    <C:recipient><D:href>mailto:unknown@example.com</D:href></C:recipient>
    <C:request-status>3.7;Invalid calendar user</C:request-status>
  </C:response>
</C:schedule-response>`

	transport := &mockTransport{
		postFn: func(url, contentType, body string) (int, string, error) {
			assert.Equal(t, testOutbox, url)
			assert.Contains(t, body, "BEGIN:VFREEBUSY")
			assert.Contains(t, body, "ATTENDEE:mailto:guest@example.com")
			return 200, scheduleResponse, nil
		},
	}
	client := newTestClient(transport)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	busy, err := client.QueryFreeBusy(context.Background(), start, end, []string{"guest@example.com", "unknown@example.com"})
	require.NoError(t, err)

	periods := busy["guest@example.com"]
	require.Len(t, periods, 2)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), periods[0].Start)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), periods[0].End)
	// The duration form resolves to start+duration.
	assert.Equal(t, time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC), periods[1].End)

	// Recipients without calendar data are absent.
	_, ok := busy["unknown@example.com"]
	assert.False(t, ok)
}

func TestCalendarFreeBusy(t *testing.T) {
	transport := &mockTransport{
		reportRawFn: func(url string, depth int, body string) (string, error) {
			assert.Equal(t, testCalURL, url)
			assert.Contains(t, body, "free-busy-query")
			assert.Contains(t, body, `start="20260301T000000Z"`)
			return ics(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//server//EN
BEGIN:VFREEBUSY
DTSTART:20260301T000000Z
DTEND:20260308T000000Z
FREEBUSY:20260304T120000Z/20260304T130000Z
END:VFREEBUSY
END:VCALENDAR
`), nil
		},
	}
	client := newTestClient(transport)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	periods, err := client.CalendarFreeBusy(context.Background(), testCalURL, start, end)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), periods[0].Start)
	assert.Equal(t, time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC), periods[0].End)
}

func TestQueryFreeBusyRequiresAttendees(t *testing.T) {
	client := newTestClient(&mockTransport{})
	_, err := client.QueryFreeBusy(context.Background(), time.Now(), time.Now().Add(time.Hour), nil)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

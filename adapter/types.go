// Package adapter converts between wire calendar objects and the flat
// event records consumed by the scheduling UI.
//
// The UI widget has no time-zone concept: it treats every timestamp as a
// plain wall-clock value. Timed UIEvent fields therefore carry "fake-UTC"
// strings whose fields equal the zone-local wall clock of the real
// instant. That encoding is a serialization detail of this boundary;
// internally dates are DateValue, a true-UTC instant plus a zone name.
package adapter

import (
	"time"

	"github.com/emersion/go-ical"

	"github.com/openchrono/calbridge/internal/tzutil"
)

// Wire-format layouts for iCalendar date values.
const (
	wireDate         = "20060102"
	wireDateTimeUTC  = "20060102T150405Z"
	wireDateTimeWall = "20060102T150405"

	uiDate     = "2006-01-02"
	uiDateTime = "2006-01-02T15:04:05"
)

// iCalendar parameter names not exported by the codec.
const (
	paramTZID     = "TZID"
	paramCN       = "CN"
	paramPartStat = "PARTSTAT"
	paramRole     = "ROLE"
	paramRSVP     = "RSVP"
)

// DateValue is the internal date representation: a canonical true-UTC
// instant tagged with the zone it should be displayed in. AllDay values
// are date-only; their Time is midnight UTC of that date.
type DateValue struct {
	Time   time.Time
	Zone   string
	AllDay bool
}

// UILocal renders the value the way the UI consumes it: a bare date for
// all-day values, otherwise the fake-UTC wall-clock timestamp.
func (d DateValue) UILocal() string {
	if d.AllDay {
		return d.Time.UTC().Format(uiDate)
	}
	return tzutil.ToFakeUTC(d.Time, d.Zone).Format(uiDateTime)
}

// ParseUIDate decodes a UI date string back into a DateValue. A 10-char
// value is an all-day date; anything longer is a fake-UTC timestamp whose
// wall clock is interpreted in the given zone.
func ParseUIDate(s, zone string) (DateValue, error) {
	if len(s) == len(uiDate) {
		t, err := time.Parse(uiDate, s)
		if err != nil {
			return DateValue{}, err
		}
		return DateValue{Time: t.UTC(), AllDay: true}, nil
	}
	fake, err := time.Parse(uiDateTime, s)
	if err != nil {
		// Tolerate a trailing Z or offset from widgets that emit RFC 3339.
		fake, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return DateValue{}, err
		}
	}
	return DateValue{Time: tzutil.FromFakeUTC(fake, zone).UTC(), Zone: zone}, nil
}

// Attendee is one event participant.
type Attendee struct {
	Email  string
	Name   string
	Status string
	Role   string
}

// Participation statuses in priority order for de-duplication.
const (
	StatusAccepted    = "ACCEPTED"
	StatusTentative   = "TENTATIVE"
	StatusDeclined    = "DECLINED"
	StatusNeedsAction = "NEEDS-ACTION"
)

// UIExt is the opaque extension bag on a UIEvent. It carries everything
// needed to round-trip the event back to the wire without loss.
type UIExt struct {
	UID            string
	CalendarURL    string
	EventURL       string
	ETag           string
	Zone           string
	RecurrenceRule string
	RecurrenceID   *time.Time
	Organizer      string
	Attendees      []Attendee
	Status         string
	Location       string
	Description    string
	Sequence       int
}

// UIEvent is the flat record the scheduling widget renders. Start and End
// are date-only strings for all-day events and fake-UTC timestamps
// otherwise; for all-day events End is the inclusive last day.
type UIEvent struct {
	ID     string
	Title  string
	Start  string
	End    string
	AllDay bool
	Color  string
	Ext    UIExt
}

// Object is a calendar object as fetched from the server.
type Object struct {
	Data        *ical.Calendar
	URL         string
	ETag        string
	CalendarURL string
}

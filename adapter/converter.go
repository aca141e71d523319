package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/openchrono/calbridge/internal/tzutil"
)

const prodID = "-//openchrono/calbridge//NONSGML v1.0//EN"

// Converter translates calendar objects into UI event records and back.
// It is an explicit instance handed to the client; there is no package
// level default.
type Converter struct {
	// DefaultZone is the zone used for floating wire times and for
	// encoding UI timestamps that carry no zone of their own.
	DefaultZone string
	// Now stamps DTSTAMP on built events. Overridable for tests.
	Now func() time.Time
}

// NewConverter creates a Converter for the given default zone.
func NewConverter(defaultZone string) *Converter {
	return &Converter{DefaultZone: defaultZone, Now: time.Now}
}

// UIOptions controls wire-to-UI conversion.
type UIOptions struct {
	// CalendarColors maps calendar URL to display color.
	CalendarColors map[string]string
	// InstancesOnly skips recurring masters, keeping only concrete
	// occurrences (as returned by a server-side expand).
	InstancesOnly bool
}

// ToUIEvents converts fetched calendar objects into UI records. Items that
// fail to convert are skipped; one malformed object never aborts the batch.
func (c *Converter) ToUIEvents(objs []Object, opts UIOptions) []UIEvent {
	var result []UIEvent
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		events := obj.Data.Events()

		// A server-side expand returns concrete instances without the
		// master's RRULE; remember it so instances stay round-trippable.
		masterRule := ""
		for i := range events {
			if events[i].Props.Get(ical.PropRecurrenceID) != nil {
				continue
			}
			if rule := events[i].Props.Get(ical.PropRecurrenceRule); rule != nil {
				masterRule = rule.Value
			}
		}

		color := opts.CalendarColors[obj.CalendarURL]
		for i := range events {
			isMaster := events[i].Props.Get(ical.PropRecurrenceID) == nil
			if opts.InstancesOnly && isMaster && masterRule != "" {
				continue
			}
			uiEvent, err := c.eventToUI(&events[i], obj, masterRule, color)
			if err != nil {
				continue
			}
			result = append(result, uiEvent)
		}
	}
	return result
}

// eventToUI converts a single VEVENT.
func (c *Converter) eventToUI(event *ical.Event, obj Object, masterRule, color string) (UIEvent, error) {
	props := event.Props

	uid := propText(props, ical.PropUID)
	if uid == "" {
		return UIEvent{}, fmt.Errorf("event in %s has no UID", obj.URL)
	}

	start, err := ParseDateProp(props.Get(ical.PropDateTimeStart), c.DefaultZone)
	if err != nil {
		return UIEvent{}, fmt.Errorf("event %s: %w", uid, err)
	}

	end, err := c.eventEnd(props, start)
	if err != nil {
		return UIEvent{}, fmt.Errorf("event %s: %w", uid, err)
	}

	ext := UIExt{
		UID:         uid,
		CalendarURL: obj.CalendarURL,
		EventURL:    obj.URL,
		ETag:        obj.ETag,
		Zone:        start.Zone,
		Organizer:   normalizeEmail(propText(props, ical.PropOrganizer)),
		Attendees:   parseAttendees(props),
		Status:      propText(props, ical.PropStatus),
		Location:    propText(props, ical.PropLocation),
		Description: propText(props, ical.PropDescription),
	}

	if seq := propText(props, ical.PropSequence); seq != "" {
		if n, err := strconv.Atoi(seq); err == nil {
			ext.Sequence = n
		}
	}

	if rule := props.Get(ical.PropRecurrenceRule); rule != nil {
		ext.RecurrenceRule = rule.Value
	} else if masterRule != "" {
		ext.RecurrenceRule = masterRule
	}

	id := uid
	if ridProp := props.Get(ical.PropRecurrenceID); ridProp != nil {
		rid, err := ParseDateProp(ridProp, start.Zone)
		if err == nil {
			t := rid.Time
			ext.RecurrenceID = &t
			id = instanceID(uid, t)
		}
	}

	return UIEvent{
		ID:     id,
		Title:  propText(props, ical.PropSummary),
		Start:  start.UILocal(),
		End:    end.UILocal(),
		AllDay: start.AllDay,
		Color:  color,
		Ext:    ext,
	}, nil
}

// eventEnd resolves DTEND, falling back to DURATION and then to the start
// itself. All-day wire ends are exclusive; the UI end is the inclusive
// last day, so one day is subtracted on decode.
func (c *Converter) eventEnd(props ical.Props, start DateValue) (DateValue, error) {
	if endProp := props.Get(ical.PropDateTimeEnd); endProp != nil {
		end, err := ParseDateProp(endProp, c.DefaultZone)
		if err != nil {
			return DateValue{}, err
		}
		if end.AllDay {
			end.Time = end.Time.AddDate(0, 0, -1)
		}
		return end, nil
	}

	if durProp := props.Get(ical.PropDuration); durProp != nil {
		dur, err := ParseICSDuration(durProp.Value)
		if err != nil {
			return DateValue{}, err
		}
		end := start
		end.Time = start.Time.Add(dur)
		if end.AllDay && dur >= 24*time.Hour {
			end.Time = end.Time.AddDate(0, 0, -1)
		}
		return end, nil
	}

	return start, nil
}

// ToWireEvent builds a VEVENT from a UI record. A UID is generated when
// absent, DTSTAMP is stamped from Now, and SEQUENCE is incremented by one:
// sequence monotonicity for adapter-built modifications lives here.
func (c *Converter) ToWireEvent(ev UIEvent) (*ical.Event, error) {
	zone := ev.Ext.Zone
	if zone == "" {
		zone = c.DefaultZone
	}

	start, err := ParseUIDate(ev.Start, zone)
	if err != nil {
		return nil, fmt.Errorf("invalid start %q: %w", ev.Start, err)
	}
	endStr := ev.End
	if endStr == "" {
		endStr = ev.Start
	}
	end, err := ParseUIDate(endStr, zone)
	if err != nil {
		return nil, fmt.Errorf("invalid end %q: %w", ev.End, err)
	}
	if start.AllDay != end.AllDay {
		return nil, fmt.Errorf("start and end disagree on all-day")
	}
	if !start.AllDay {
		start.Zone, end.Zone = zone, zone
	}

	uid := ev.Ext.UID
	if uid == "" {
		uid = uuid.New().String()
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, c.Now().UTC())
	event.Props.Set(rawProp(ical.PropSequence, strconv.Itoa(ev.Ext.Sequence+1)))
	if ev.Title != "" {
		event.Props.SetText(ical.PropSummary, ev.Title)
	}

	event.Props.Set(DateProp(ical.PropDateTimeStart, start))
	if end.AllDay {
		// UI end is the inclusive last day; the wire end is exclusive.
		end.Time = end.Time.AddDate(0, 0, 1)
	}
	event.Props.Set(DateProp(ical.PropDateTimeEnd, end))

	if ev.Ext.RecurrenceRule != "" {
		event.Props.Set(rawProp(ical.PropRecurrenceRule, ev.Ext.RecurrenceRule))
	}
	if ev.Ext.RecurrenceID != nil {
		rid := DateValue{Time: *ev.Ext.RecurrenceID, Zone: start.Zone, AllDay: start.AllDay}
		event.Props.Set(DateProp(ical.PropRecurrenceID, rid))
	}
	if ev.Ext.Organizer != "" {
		event.Props.Set(rawProp(ical.PropOrganizer, "mailto:"+normalizeEmail(ev.Ext.Organizer)))
	}
	for _, attendee := range DedupAttendees(ev.Ext.Attendees) {
		event.Props.Add(attendeeProp(attendee))
	}
	if ev.Ext.Status != "" {
		event.Props.SetText(ical.PropStatus, strings.ToUpper(ev.Ext.Status))
	}
	if ev.Ext.Location != "" {
		event.Props.SetText(ical.PropLocation, ev.Ext.Location)
	}
	if ev.Ext.Description != "" {
		event.Props.SetText(ical.PropDescription, ev.Ext.Description)
	}

	return event, nil
}

// WrapEvent wraps a single VEVENT in a calendar, injecting a VTIMEZONE for
// every zone the event references and nothing else.
func WrapEvent(event *ical.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, zone := range referencedZones(event) {
		cal.Children = append(cal.Children, timezoneComponent(zone, time.Now()))
	}
	cal.Children = append(cal.Children, event.Component)
	return cal
}

// referencedZones collects the distinct TZID parameters of an event's date
// properties, in first-reference order.
func referencedZones(event *ical.Event) []string {
	var zones []string
	seen := map[string]bool{}
	for _, name := range []string{ical.PropDateTimeStart, ical.PropDateTimeEnd, ical.PropRecurrenceID, ical.PropExceptionDates} {
		for _, prop := range event.Props[name] {
			zone := prop.Params.Get(paramTZID)
			if zone != "" && !seen[zone] {
				seen[zone] = true
				zones = append(zones, zone)
			}
		}
	}
	return zones
}

// timezoneComponent builds a minimal VTIMEZONE for a zone: a single
// STANDARD section pinned to the zone's offset at the reference instant.
// Servers accept this for TZID resolution even without DST transitions.
func timezoneComponent(zone string, ref time.Time) *ical.Component {
	offset := tzutil.OffsetString(ref, zone)

	standard := ical.NewComponent("STANDARD")
	standard.Props.Set(rawProp(ical.PropDateTimeStart, "19700101T000000"))
	standard.Props.Set(rawProp("TZOFFSETFROM", offset))
	standard.Props.Set(rawProp("TZOFFSETTO", offset))

	vtimezone := ical.NewComponent(ical.CompTimezone)
	vtimezone.Props.SetText(ical.PropTimezoneID, zone)
	vtimezone.Children = append(vtimezone.Children, standard)
	return vtimezone
}

// rawProp builds a property whose value is already in wire form. SetText
// would stamp VALUE=TEXT and backslash-escape the value, corrupting RECUR,
// CAL-ADDRESS, INTEGER and UTC-OFFSET properties.
func rawProp(name, value string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = value
	return prop
}

// propText returns a property's text value, or "" when absent.
func propText(props ical.Props, name string) string {
	if prop := props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

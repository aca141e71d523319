package davclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/openchrono/calbridge/adapter"
	davxml "github.com/openchrono/calbridge/internal/xml"
)

// EventOptions filter a GetEvents fetch.
type EventOptions struct {
	// From/To bound the query when non-zero.
	From time.Time
	To   time.Time
	// Expand asks the server to materialize recurring occurrences within
	// the range instead of returning series masters.
	Expand bool
}

// GetEvents fetches the events of a cached calendar as UI records. The
// calendar must have been listed first; an unknown URL is a NotFoundError
// without a server round trip.
func (c *Client) GetEvents(ctx context.Context, calendarURL string, opts EventOptions) ([]adapter.UIEvent, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	cal, ok := c.calendars[calendarURL]
	if !ok {
		return nil, &NotFoundError{Resource: calendarURL}
	}

	query := davxml.CalendarQuery{
		Props:    []string{"getetag"},
		CompName: "VEVENT",
		Expand:   opts.Expand,
	}
	if !opts.From.IsZero() || !opts.To.IsZero() {
		tr := &davxml.TimeRange{}
		if !opts.From.IsZero() {
			from := opts.From
			tr.Start = &from
		}
		if !opts.To.IsZero() {
			to := opts.To
			tr.End = &to
		}
		query.TimeRange = tr
	}

	resp, err := c.transport.DoREPORT(ctx, calendarURL, 1, davxml.Serialize(query.ToXML()))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", mapStatusError(err, calendarURL))
	}

	var objs []adapter.Object
	for _, entry := range resp.Responses {
		if entry.CalendarData == "" {
			continue
		}
		obj, err := c.decodeObject(entry.Href, entry.ETag, entry.CalendarData, calendarURL)
		if err != nil {
			c.logger.Debug("skipping undecodable object", "href", entry.Href, "error", err)
			continue
		}
		c.events[obj.URL] = obj
		objs = append(objs, *obj)
	}

	uiOpts := adapter.UIOptions{
		CalendarColors: map[string]string{calendarURL: cal.Color},
		InstancesOnly:  opts.Expand,
	}
	return c.converter.ToUIEvents(objs, uiOpts), nil
}

// MultigetEvents fetches specific calendar objects by URL in one
// calendar-multiget REPORT, typically the Changed set of a SyncCalendar
// round. Objects the server omits are silently absent from the result.
func (c *Client) MultigetEvents(ctx context.Context, calendarURL string, eventURLs []string) ([]adapter.UIEvent, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	cal, ok := c.calendars[calendarURL]
	if !ok {
		return nil, &NotFoundError{Resource: calendarURL}
	}
	if len(eventURLs) == 0 {
		return nil, nil
	}

	multiget := davxml.CalendarMultiget{Props: []string{"getetag"}, Hrefs: eventURLs}
	resp, err := c.transport.DoREPORT(ctx, calendarURL, 1, davxml.Serialize(multiget.ToXML()))
	if err != nil {
		return nil, fmt.Errorf("failed to multiget events: %w", mapStatusError(err, calendarURL))
	}

	var objs []adapter.Object
	for _, entry := range resp.Responses {
		if entry.CalendarData == "" {
			continue
		}
		obj, err := c.decodeObject(entry.Href, entry.ETag, entry.CalendarData, calendarURL)
		if err != nil {
			c.logger.Debug("skipping undecodable object", "href", entry.Href, "error", err)
			continue
		}
		c.events[obj.URL] = obj
		objs = append(objs, *obj)
	}

	opts := adapter.UIOptions{CalendarColors: map[string]string{calendarURL: cal.Color}}
	return c.converter.ToUIEvents(objs, opts), nil
}

// GetEvent fetches a single calendar object by URL and returns its UI
// records (a recurring object may carry overrides alongside the master).
func (c *Client) GetEvent(ctx context.Context, eventURL string) ([]adapter.UIEvent, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	body, etag, err := c.transport.DoGET(ctx, eventURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event: %w", mapStatusError(err, eventURL))
	}
	obj, err := c.decodeObject(eventURL, etag, body, c.calendarURLFor(eventURL))
	if err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", eventURL, err)
	}
	c.events[obj.URL] = obj

	color := ""
	if cal, ok := c.calendars[obj.CalendarURL]; ok {
		color = cal.Color
	}
	opts := adapter.UIOptions{CalendarColors: map[string]string{obj.CalendarURL: color}}
	return c.converter.ToUIEvents([]adapter.Object{*obj}, opts), nil
}

// CreateEvent builds a wire event from a UI record and PUTs it to a new
// resource under the calendar. The stored event is returned with its URL
// and ETag filled in.
func (c *Client) CreateEvent(ctx context.Context, calendarURL string, ev adapter.UIEvent) (adapter.UIEvent, error) {
	if err := c.checkConnected(); err != nil {
		return adapter.UIEvent{}, err
	}
	if _, ok := c.calendars[calendarURL]; !ok {
		return adapter.UIEvent{}, &NotFoundError{Resource: calendarURL}
	}

	event, err := c.converter.ToWireEvent(ev)
	if err != nil {
		return adapter.UIEvent{}, &ValidationError{Message: err.Error()}
	}
	uid := event.Props.Get(ical.PropUID).Value
	eventURL := resolveHref(calendarURL, uid+".ics")

	cal := adapter.WrapEvent(event)
	data, err := encodeCalendar(cal)
	if err != nil {
		return adapter.UIEvent{}, fmt.Errorf("failed to encode event: %w", err)
	}

	etag, err := c.transport.DoPUT(ctx, eventURL, "", data)
	if err != nil {
		return adapter.UIEvent{}, fmt.Errorf("failed to create event: %w", mapStatusError(err, eventURL))
	}
	if etag == "" {
		// Some servers omit the ETag header on PUT; fetch it separately.
		if _, fetched, err := c.transport.DoGET(ctx, eventURL); err == nil {
			etag = fetched
		}
	}

	obj := &adapter.Object{Data: cal, URL: eventURL, ETag: etag, CalendarURL: calendarURL}
	c.events[eventURL] = obj

	created := c.converter.ToUIEvents([]adapter.Object{*obj}, adapter.UIOptions{})
	if len(created) == 0 {
		return adapter.UIEvent{}, fmt.Errorf("created event %s did not round-trip", eventURL)
	}
	return created[0], nil
}

// UpdateEvent replaces the event's VEVENT in its cached object and PUTs the
// result with an If-Match precondition when the ETag is known. A 412 from
// the server surfaces as a PreconditionError.
func (c *Client) UpdateEvent(ctx context.Context, ev adapter.UIEvent) (adapter.UIEvent, error) {
	if err := c.checkConnected(); err != nil {
		return adapter.UIEvent{}, err
	}
	eventURL := ev.Ext.EventURL
	if eventURL == "" {
		return adapter.UIEvent{}, &ValidationError{Message: "event has no URL"}
	}
	obj, ok := c.events[eventURL]
	if !ok {
		return adapter.UIEvent{}, &NotFoundError{Resource: eventURL}
	}

	event, err := c.converter.ToWireEvent(ev)
	if err != nil {
		return adapter.UIEvent{}, &ValidationError{Message: err.Error()}
	}

	cal := mergeEvent(obj.Data, event, ev.Ext.RecurrenceID)
	data, err := encodeCalendar(cal)
	if err != nil {
		return adapter.UIEvent{}, fmt.Errorf("failed to encode event: %w", err)
	}

	etag := ev.Ext.ETag
	if etag == "" {
		etag = obj.ETag
	}
	newEtag, err := c.transport.DoPUT(ctx, eventURL, etag, data)
	if err != nil {
		return adapter.UIEvent{}, fmt.Errorf("failed to update event: %w", mapStatusError(err, eventURL))
	}

	updated := &adapter.Object{Data: cal, URL: eventURL, ETag: newEtag, CalendarURL: obj.CalendarURL}
	c.events[eventURL] = updated

	results := c.converter.ToUIEvents([]adapter.Object{*updated}, adapter.UIOptions{})
	for _, result := range results {
		if result.ID == ev.ID {
			return result, nil
		}
	}
	if len(results) > 0 {
		return results[0], nil
	}
	return adapter.UIEvent{}, fmt.Errorf("updated event %s did not round-trip", eventURL)
}

// DeleteEvent removes an event resource, passing If-Match when the ETag is
// known, and evicts it from the cache.
func (c *Client) DeleteEvent(ctx context.Context, eventURL string) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	etag := ""
	if obj, ok := c.events[eventURL]; ok {
		etag = obj.ETag
	}
	if err := c.transport.DoDELETE(ctx, eventURL, etag); err != nil {
		return fmt.Errorf("failed to delete event: %w", mapStatusError(err, eventURL))
	}
	delete(c.events, eventURL)
	return nil
}

// decodeObject parses an ICS body into a cached-object record.
func (c *Client) decodeObject(href, etag, data, calendarURL string) (*adapter.Object, error) {
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	if err != nil {
		return nil, err
	}
	if calendarURL == "" {
		calendarURL = c.calendarURLFor(href)
	}
	return &adapter.Object{
		Data:        cal,
		URL:         resolveHref(calendarURL, href),
		ETag:        etag,
		CalendarURL: calendarURL,
	}, nil
}

// calendarURLFor matches an event URL to a cached calendar by prefix.
func (c *Client) calendarURLFor(eventURL string) string {
	for url := range c.calendars {
		if strings.HasPrefix(eventURL, url) {
			return url
		}
	}
	if idx := strings.LastIndex(eventURL, "/"); idx >= 0 {
		return eventURL[:idx+1]
	}
	return ""
}

// mergeEvent replaces the VEVENT matching the new event's UID and
// recurrence ID in a calendar, keeping every other non-timezone component
// (overrides of other occurrences) intact. VTIMEZONE blocks are rebuilt
// afterwards: only zones some remaining component still references are
// kept, and zones the new event needs but the calendar lacks are added.
func mergeEvent(cal *ical.Calendar, event *ical.Event, recurrenceID *time.Time) *ical.Calendar {
	uid := propValue(event.Props.Get(ical.PropUID))

	merged := ical.NewCalendar()
	merged.Props = cal.Props
	var timezones []*ical.Component
	replaced := false
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			timezones = append(timezones, child)
			continue
		}
		if child.Name == ical.CompEvent && propValue(child.Props.Get(ical.PropUID)) == uid &&
			sameOccurrence(child, recurrenceID) {
			merged.Children = append(merged.Children, event.Component)
			replaced = true
			continue
		}
		merged.Children = append(merged.Children, child)
	}
	if !replaced {
		merged.Children = append(merged.Children, event.Component)
	}

	referenced := map[string]bool{}
	for _, child := range merged.Children {
		for _, props := range child.Props {
			for _, prop := range props {
				if zone := prop.Params.Get(paramTZID); zone != "" {
					referenced[zone] = true
				}
			}
		}
	}

	var kept []*ical.Component
	present := map[string]bool{}
	for _, tz := range timezones {
		id := propValue(tz.Props.Get(ical.PropTimezoneID))
		if referenced[id] && !present[id] {
			present[id] = true
			kept = append(kept, tz)
		}
	}
	for _, child := range adapter.WrapEvent(event).Children {
		if child.Name != ical.CompTimezone {
			continue
		}
		if id := propValue(child.Props.Get(ical.PropTimezoneID)); !present[id] {
			present[id] = true
			kept = append(kept, child)
		}
	}

	merged.Children = append(kept, merged.Children...)
	return merged
}

// sameOccurrence reports whether a VEVENT component targets the given
// recurrence instance (nil means the series master).
func sameOccurrence(comp *ical.Component, recurrenceID *time.Time) bool {
	rid := comp.Props.Get(ical.PropRecurrenceID)
	if recurrenceID == nil {
		return rid == nil
	}
	if rid == nil {
		return false
	}
	parsed, err := adapter.ParseDateProp(rid, "")
	if err != nil {
		return false
	}
	return parsed.Time.Equal(*recurrenceID)
}

// encodeCalendar renders a calendar to ICS bytes.
func encodeCalendar(cal *ical.Calendar) ([]byte, error) {
	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// propValue returns a property's value, or "" for nil.
func propValue(prop *ical.Prop) string {
	if prop == nil {
		return ""
	}
	return prop.Value
}

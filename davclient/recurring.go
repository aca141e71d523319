package davclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/openchrono/calbridge/adapter"
	"github.com/openchrono/calbridge/internal/tzutil"
)

// RecurrenceScope selects how much of a recurring series a delete affects.
type RecurrenceScope int

const (
	// ScopeThis excludes a single occurrence via EXDATE.
	ScopeThis RecurrenceScope = iota
	// ScopeFuture truncates the series before the target occurrence.
	ScopeFuture
	// ScopeAll deletes the whole series resource.
	ScopeAll
)

const (
	exdateDate = "20060102"
	exdateWall = "20060102T150405"
	exdateUTC  = "20060102T150405Z"
	paramTZID  = "TZID"
)

// DeleteRecurring scopes a delete on a recurring series. The occurrence
// names the target instance by date; when recurrenceID is non-nil it takes
// precedence as the exact instance identifier.
//
// ScopeThis fetches the resource, appends the occurrence to the master's
// EXDATE in the same value form as DTSTART (same TZID when present,
// otherwise UTC with DTSTART's time of day), and writes it back with an
// If-Match precondition. ScopeFuture rewrites the master's RRULE with an
// UNTIL of the day before the target, dropping any COUNT. ScopeAll deletes
// the resource.
func (c *Client) DeleteRecurring(ctx context.Context, eventURL string, scope RecurrenceScope, occurrence time.Time, recurrenceID *time.Time) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	if scope == ScopeAll {
		return c.DeleteEvent(ctx, eventURL)
	}

	body, etag, err := c.transport.DoGET(ctx, eventURL)
	if err != nil {
		return fmt.Errorf("failed to fetch series: %w", mapStatusError(err, eventURL))
	}
	cal, err := ical.NewDecoder(strings.NewReader(body)).Decode()
	if err != nil {
		return fmt.Errorf("failed to decode series %s: %w", eventURL, err)
	}

	master := seriesMaster(cal)
	if master == nil {
		return &ValidationError{Message: fmt.Sprintf("%s has no recurring master event", eventURL)}
	}
	dtstart, err := adapter.ParseDateProp(master.Props.Get(ical.PropDateTimeStart), c.converter.DefaultZone)
	if err != nil {
		return fmt.Errorf("series %s has an unreadable DTSTART: %w", eventURL, err)
	}

	switch scope {
	case ScopeThis:
		excludeOccurrence(master, dtstart, occurrence, recurrenceID)
	case ScopeFuture:
		if err := truncateSeries(master, dtstart, occurrence, recurrenceID); err != nil {
			return err
		}
	}

	data, err := encodeCalendar(cal)
	if err != nil {
		return fmt.Errorf("failed to encode series: %w", err)
	}
	newEtag, err := c.transport.DoPUT(ctx, eventURL, etag, data)
	if err != nil {
		return fmt.Errorf("failed to store series: %w", mapStatusError(err, eventURL))
	}

	if obj, ok := c.events[eventURL]; ok {
		obj.Data = cal
		obj.ETag = newEtag
	}
	return nil
}

// seriesMaster returns the VEVENT without a RECURRENCE-ID, or nil.
func seriesMaster(cal *ical.Calendar) *ical.Component {
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent && child.Props.Get(ical.PropRecurrenceID) == nil {
			return child
		}
	}
	return nil
}

// excludeOccurrence appends the target instance to the master's EXDATE,
// mirroring DTSTART's value form exactly so servers match the exclusion
// against the generated occurrence.
func excludeOccurrence(master *ical.Component, dtstart adapter.DateValue, occurrence time.Time, recurrenceID *time.Time) {
	zone := dtstartZone(master)
	value, valueType := formatExdate(dtstart, zone, occurrence, recurrenceID)

	if existing := master.Props.Get(ical.PropExceptionDates); existing != nil {
		existing.Value = existing.Value + "," + value
		return
	}

	prop := ical.NewProp(ical.PropExceptionDates)
	prop.Value = value
	if valueType == ical.ValueDate {
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
	}
	if zone != "" {
		prop.Params.Set(paramTZID, zone)
	}
	master.Props.Add(prop)
}

// formatExdate renders the target instance in DTSTART's form. Without a
// recurrence ID the target is the occurrence's calendar day combined with
// DTSTART's time of day.
func formatExdate(dtstart adapter.DateValue, zone string, occurrence time.Time, recurrenceID *time.Time) (string, ical.ValueType) {
	if dtstart.AllDay {
		target := occurrence
		if recurrenceID != nil {
			target = *recurrenceID
		}
		return target.UTC().Format(exdateDate), ical.ValueDate
	}

	if recurrenceID != nil {
		if zone != "" {
			return recurrenceID.In(tzutil.Location(zone)).Format(exdateWall), ical.ValueDateTime
		}
		return recurrenceID.UTC().Format(exdateUTC), ical.ValueDateTime
	}

	// Combine the occurrence's date with DTSTART's wall-clock time of day.
	startWall := dtstart.Time.UTC()
	if zone != "" {
		startWall = dtstart.Time.In(tzutil.Location(zone))
	}
	day := occurrence.UTC()
	wall := time.Date(day.Year(), day.Month(), day.Day(),
		startWall.Hour(), startWall.Minute(), startWall.Second(), 0, time.UTC)
	if zone != "" {
		return wall.Format(exdateWall), ical.ValueDateTime
	}
	return wall.Format(exdateUTC), ical.ValueDateTime
}

// truncateSeries rewrites the master's RRULE so the series ends the day
// before the target occurrence. COUNT is removed; UNTIL and COUNT are
// mutually exclusive.
func truncateSeries(master *ical.Component, dtstart adapter.DateValue, occurrence time.Time, recurrenceID *time.Time) error {
	rule := master.Props.Get(ical.PropRecurrenceRule)
	if rule == nil {
		return &ValidationError{Message: "event has no recurrence rule to truncate"}
	}

	target := occurrence
	if recurrenceID != nil {
		target = *recurrenceID
	}
	lastDay := target.UTC().AddDate(0, 0, -1)

	var until string
	if dtstart.AllDay {
		until = lastDay.Format(exdateDate)
	} else {
		endOfDay := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 0, time.UTC)
		until = endOfDay.Format(exdateWall)
	}

	var parts []string
	for _, part := range strings.Split(rule.Value, ";") {
		if part == "" {
			continue
		}
		key := strings.ToUpper(strings.SplitN(part, "=", 2)[0])
		if key == "COUNT" || key == "UNTIL" {
			continue
		}
		parts = append(parts, part)
	}
	parts = append(parts, "UNTIL="+until)
	rule.Value = strings.Join(parts, ";")
	return nil
}

// dtstartZone returns the TZID parameter on the master's DTSTART, or "".
func dtstartZone(master *ical.Component) string {
	prop := master.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return ""
	}
	return prop.Params.Get(paramTZID)
}

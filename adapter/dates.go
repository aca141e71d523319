package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/openchrono/calbridge/internal/tzutil"
)

// ParseDateProp decodes a DTSTART/DTEND/RECURRENCE-ID/EXDATE value into a
// DateValue. The canonical Time field is always the true-UTC instant; the
// zone annotation never leaks the fake-UTC form.
func ParseDateProp(prop *ical.Prop, defaultZone string) (DateValue, error) {
	if prop == nil {
		return DateValue{}, fmt.Errorf("missing date property")
	}
	value := strings.TrimSpace(prop.Value)

	if prop.Params.Get(ical.ParamValue) == string(ical.ValueDate) || len(value) == len(wireDate) {
		t, err := time.Parse(wireDate, value)
		if err != nil {
			return DateValue{}, fmt.Errorf("invalid DATE value %q: %w", value, err)
		}
		return DateValue{Time: t.UTC(), AllDay: true}, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(wireDateTimeUTC, value)
		if err != nil {
			return DateValue{}, fmt.Errorf("invalid UTC DATE-TIME value %q: %w", value, err)
		}
		return DateValue{Time: t.UTC(), Zone: "UTC"}, nil
	}

	zone := prop.Params.Get(paramTZID)
	if zone == "" {
		// Floating time: interpret in the account's default zone.
		zone = defaultZone
	}
	wall, err := time.ParseInLocation(wireDateTimeWall, value, tzutil.Location(zone))
	if err != nil {
		return DateValue{}, fmt.Errorf("invalid DATE-TIME value %q: %w", value, err)
	}
	return DateValue{Time: wall.UTC(), Zone: zone}, nil
}

// DateProp encodes a DateValue as an iCalendar property. All-day values
// become VALUE=DATE; timed values carry a TZID parameter with the zone's
// wall clock unless the zone is UTC, which uses the Z form.
func DateProp(name string, d DateValue) *ical.Prop {
	prop := ical.NewProp(name)
	switch {
	case d.AllDay:
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		prop.Value = d.Time.UTC().Format(wireDate)
	case d.Zone == "" || d.Zone == "UTC":
		prop.Value = d.Time.UTC().Format(wireDateTimeUTC)
	default:
		prop.Params.Set(paramTZID, d.Zone)
		prop.Value = d.Time.In(tzutil.Location(d.Zone)).Format(wireDateTimeWall)
	}
	return prop
}

// ParseICSDuration parses an iCalendar DURATION value (RFC 5545 §3.3.6).
// Only the forms needed for event spans are supported: weeks, days, hours,
// minutes, seconds, with an optional leading sign.
func ParseICSDuration(value string) (time.Duration, error) {
	s := strings.TrimSpace(value)
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	number := 0
	haveNumber := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			number = number*10 + int(r-'0')
			haveNumber = true
		case r == 'T':
			inTime = true
		default:
			if !haveNumber {
				return 0, fmt.Errorf("invalid duration %q", value)
			}
			switch {
			case r == 'W' && !inTime:
				total += time.Duration(number) * 7 * 24 * time.Hour
			case r == 'D' && !inTime:
				total += time.Duration(number) * 24 * time.Hour
			case r == 'H' && inTime:
				total += time.Duration(number) * time.Hour
			case r == 'M' && inTime:
				total += time.Duration(number) * time.Minute
			case r == 'S' && inTime:
				total += time.Duration(number) * time.Second
			default:
				return 0, fmt.Errorf("invalid duration %q", value)
			}
			number = 0
			haveNumber = false
		}
	}
	if negative {
		total = -total
	}
	return total, nil
}

// Package tzutil converts between true-UTC instants and named-zone
// wall-clock representations.
//
// The scheduling UI this module feeds has no notion of time zones: it
// renders whatever the UTC field accessors of an instant say. To show an
// event at its zone-local wall-clock time we therefore hand the UI a
// "fake-UTC" instant whose UTC fields equal the zone-local components of
// the real instant. That encoding lives here and in the adapter boundary
// only; everything else in this module works with true UTC.
package tzutil

import (
	"fmt"
	"sync"
	"time"
)

// Components holds the wall-clock fields of an instant in some zone.
type Components struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

var (
	locMu    sync.Mutex
	locCache = map[string]*time.Location{}
)

// Location resolves an IANA zone name against the zone database, falling
// back to UTC for unknown or empty names. Lookups are cached.
func Location(zone string) *time.Location {
	if zone == "" || zone == "UTC" || zone == "Z" {
		return time.UTC
	}
	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locCache[zone]; ok {
		return loc
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	locCache[zone] = loc
	return loc
}

// ComponentsIn returns the wall-clock components of t in the named zone.
// Unknown zones degrade to UTC. DST transitions are handled by the zone
// database, including gaps, folds and fractional offsets.
func ComponentsIn(t time.Time, zone string) Components {
	local := t.In(Location(zone))
	return Components{
		Year:   local.Year(),
		Month:  local.Month(),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
	}
}

// OffsetString formats the UTC offset of the named zone at instant t as
// "+HHMM" or "-HHMM". Unknown zones yield "+0000". It never fails.
func OffsetString(t time.Time, zone string) string {
	_, offset := t.In(Location(zone)).Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d%02d", sign, offset/3600, (offset%3600)/60)
}

// ToFakeUTC returns an instant whose UTC field accessors equal
// ComponentsIn(t, zone). The result denotes a different real moment than t
// unless the zone offset is zero; it is a display encoding, not a time.
func ToFakeUTC(t time.Time, zone string) time.Time {
	c := ComponentsIn(t, zone)
	return time.Date(c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second, t.Nanosecond(), time.UTC)
}

// FromFakeUTC interprets the UTC fields of fake as wall-clock values in the
// named zone and returns the true instant. Wall-clock values inside a DST
// gap resolve to whatever instant the zone database maps them to.
func FromFakeUTC(fake time.Time, zone string) time.Time {
	loc := Location(zone)
	return time.Date(fake.Year(), fake.Month(), fake.Day(),
		fake.Hour(), fake.Minute(), fake.Second(), fake.Nanosecond(), loc)
}

package adapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerSeries = 1000

// ExpandRecurring materializes recurring series into concrete UI instances
// within [from, to], for servers that ignore the expand request. It honors
// EXDATE exclusions and RECURRENCE-ID overrides; non-recurring events pass
// through when they overlap the range. Malformed objects are skipped.
func (c *Converter) ExpandRecurring(objs []Object, from, to time.Time, opts UIOptions) []UIEvent {
	var result []UIEvent

	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		color := opts.CalendarColors[obj.CalendarURL]
		events := obj.Data.Events()

		// Overrides keyed by their RECURRENCE-ID instant.
		overrides := map[int64]*ical.Event{}
		var masters []*ical.Event
		for i := range events {
			if ridProp := events[i].Props.Get(ical.PropRecurrenceID); ridProp != nil {
				if rid, err := ParseDateProp(ridProp, c.DefaultZone); err == nil {
					overrides[rid.Time.Unix()] = &events[i]
				}
				continue
			}
			masters = append(masters, &events[i])
		}

		for _, master := range masters {
			result = append(result, c.expandSeries(master, overrides, obj, color, from, to)...)
		}
	}

	return result
}

func (c *Converter) expandSeries(master *ical.Event, overrides map[int64]*ical.Event, obj Object, color string, from, to time.Time) []UIEvent {
	base, err := c.eventToUI(master, obj, "", color)
	if err != nil {
		return nil
	}

	start, err := ParseDateProp(master.Props.Get(ical.PropDateTimeStart), c.DefaultZone)
	if err != nil {
		return nil
	}
	end, err := c.eventEnd(master.Props, start)
	if err != nil {
		end = start
	}
	duration := end.Time.Sub(start.Time)

	ruleText := base.Ext.RecurrenceRule
	if ruleText == "" {
		if start.Time.After(to) || end.Time.Before(from) {
			return nil
		}
		return []UIEvent{base}
	}

	rule, err := rrule.StrToRRule(ruleText)
	if err != nil {
		return nil
	}
	rule.DTStart(start.Time)

	var set rrule.Set
	set.RRule(rule)
	for _, exProp := range master.Props[ical.PropExceptionDates] {
		// An EXDATE property may carry several comma-joined values.
		for _, value := range strings.Split(exProp.Value, ",") {
			single := exProp
			single.Value = strings.TrimSpace(value)
			if ex, err := ParseDateProp(&single, start.Zone); err == nil {
				set.ExDate(ex.Time)
			}
		}
	}

	occurrences := set.Between(from, to, true)
	if len(occurrences) > maxOccurrencesPerSeries {
		occurrences = occurrences[:maxOccurrencesPerSeries]
	}

	var result []UIEvent
	for _, occStart := range occurrences {
		occStart = occStart.UTC()

		if override, ok := overrides[occStart.Unix()]; ok {
			uiEvent, err := c.eventToUI(override, obj, ruleText, color)
			if err == nil {
				result = append(result, uiEvent)
			}
			continue
		}

		instance := base
		rid := occStart
		instance.Ext.RecurrenceID = &rid
		instance.ID = instanceID(base.Ext.UID, occStart)
		startValue := DateValue{Time: occStart, Zone: start.Zone, AllDay: start.AllDay}
		endValue := DateValue{Time: occStart.Add(duration), Zone: end.Zone, AllDay: end.AllDay}
		instance.Start = startValue.UILocal()
		instance.End = endValue.UILocal()
		result = append(result, instance)
	}

	return result
}

// instanceID forms the per-occurrence UI id: uid plus the occurrence's
// epoch milliseconds.
func instanceID(uid string, occurrence time.Time) string {
	return uid + "_" + strconv.FormatInt(occurrence.UnixMilli(), 10)
}

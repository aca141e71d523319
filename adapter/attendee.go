package adapter

import (
	"strings"

	"github.com/emersion/go-ical"
)

// statusPriority orders participation statuses for de-duplication; higher
// wins.
func statusPriority(status string) int {
	switch strings.ToUpper(status) {
	case StatusAccepted:
		return 4
	case StatusTentative:
		return 3
	case StatusDeclined:
		return 2
	case StatusNeedsAction:
		return 1
	default:
		return 0
	}
}

// normalizeEmail strips a mailto: prefix and lowercases for grouping.
func normalizeEmail(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(strings.ToLower(addr), "mailto:")
	return addr
}

// DedupAttendees collapses attendees sharing an email address. The entry
// with the highest-priority participation status survives; on ties the one
// carrying a display name is preferred. Input order of first appearance is
// kept.
func DedupAttendees(attendees []Attendee) []Attendee {
	byEmail := make(map[string]int, len(attendees))
	result := make([]Attendee, 0, len(attendees))

	for _, attendee := range attendees {
		key := normalizeEmail(attendee.Email)
		if key == "" {
			continue
		}
		idx, seen := byEmail[key]
		if !seen {
			byEmail[key] = len(result)
			result = append(result, attendee)
			continue
		}

		kept := result[idx]
		keptPrio, newPrio := statusPriority(kept.Status), statusPriority(attendee.Status)
		if newPrio > keptPrio || (newPrio == keptPrio && kept.Name == "" && attendee.Name != "") {
			result[idx] = attendee
		}
	}

	return result
}

// parseAttendees extracts and de-duplicates the ATTENDEE properties of an
// event component.
func parseAttendees(props ical.Props) []Attendee {
	raw := props[ical.PropAttendee]
	if len(raw) == 0 {
		return nil
	}

	attendees := make([]Attendee, 0, len(raw))
	for _, prop := range raw {
		attendees = append(attendees, Attendee{
			Email:  normalizeEmail(prop.Value),
			Name:   prop.Params.Get(paramCN),
			Status: strings.ToUpper(prop.Params.Get(paramPartStat)),
			Role:   prop.Params.Get(paramRole),
		})
	}
	return DedupAttendees(attendees)
}

// attendeeProp encodes one attendee as an ATTENDEE property.
func attendeeProp(attendee Attendee) *ical.Prop {
	prop := ical.NewProp(ical.PropAttendee)
	prop.Value = "mailto:" + normalizeEmail(attendee.Email)
	if attendee.Name != "" {
		prop.Params.Set(paramCN, attendee.Name)
	}
	if attendee.Status != "" {
		prop.Params.Set(paramPartStat, strings.ToUpper(attendee.Status))
	}
	if attendee.Role != "" {
		prop.Params.Set(paramRole, attendee.Role)
	}
	return prop
}

package xml

import (
	"time"

	"github.com/beevik/etree"
)

const wireTimeLayout = "20060102T150405Z"

// TimeRange represents a time range filter
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

func (tr *TimeRange) toElement(el *etree.Element) {
	if tr.Start != nil {
		el.CreateAttr("start", tr.Start.UTC().Format(wireTimeLayout))
	}
	if tr.End != nil {
		el.CreateAttr("end", tr.End.UTC().Format(wireTimeLayout))
	}
}

// CalendarQuery represents a calendar-query REPORT request
type CalendarQuery struct {
	Props     []string
	CompName  string
	TimeRange *TimeRange
	// Expand asks the server to materialize recurring occurrences within
	// the time range instead of returning the master.
	Expand bool
}

// ToXML converts a CalendarQuery to an XML document
func (q *CalendarQuery) ToXML() *etree.Document {
	doc, root := newDocument("calendar-query", CalDAV, DAV)

	prop := elem(root, DAV, "prop")
	for _, name := range q.Props {
		propElem(prop, name)
	}
	data := elem(prop, CalDAV, "calendar-data")
	if q.Expand && q.TimeRange != nil {
		expand := elem(data, CalDAV, "expand")
		q.TimeRange.toElement(expand)
	}

	filter := elem(root, CalDAV, "filter")
	calFilter := elem(filter, CalDAV, "comp-filter")
	calFilter.CreateAttr("name", "VCALENDAR")

	compName := q.CompName
	if compName == "" {
		compName = "VEVENT"
	}
	compFilter := elem(calFilter, CalDAV, "comp-filter")
	compFilter.CreateAttr("name", compName)
	if q.TimeRange != nil {
		tr := elem(compFilter, CalDAV, "time-range")
		q.TimeRange.toElement(tr)
	}

	return doc
}

// CalendarMultiget represents a calendar-multiget REPORT request
type CalendarMultiget struct {
	Props []string
	Hrefs []string
}

// ToXML converts a CalendarMultiget to an XML document
func (m *CalendarMultiget) ToXML() *etree.Document {
	doc, root := newDocument("calendar-multiget", CalDAV, DAV)

	prop := elem(root, DAV, "prop")
	for _, name := range m.Props {
		propElem(prop, name)
	}
	elem(prop, CalDAV, "calendar-data")

	for _, href := range m.Hrefs {
		elem(root, DAV, "href").SetText(href)
	}

	return doc
}

// SyncLevel controls the scope of a sync-collection REPORT.
type SyncLevel int

const (
	SyncLevelOne SyncLevel = iota
	SyncLevelInfinite
)

// SyncCollection builds a sync-collection REPORT body with the last known
// token. An empty token requests an initial sync.
func SyncCollection(token string, level SyncLevel) *etree.Document {
	doc, root := newDocument("sync-collection", DAV)

	elem(root, DAV, "sync-token").SetText(token)

	levelElem := elem(root, DAV, "sync-level")
	if level == SyncLevelInfinite {
		levelElem.SetText("infinite")
	} else {
		levelElem.SetText("1")
	}

	prop := elem(root, DAV, "prop")
	elem(prop, DAV, "getetag")

	return doc
}

// FreeBusyQuery builds a free-busy-query REPORT body for the given range.
func FreeBusyQuery(start, end time.Time) *etree.Document {
	doc, root := newDocument("free-busy-query", CalDAV, DAV)
	tr := elem(root, CalDAV, "time-range")
	(&TimeRange{Start: &start, End: &end}).toElement(tr)
	return doc
}

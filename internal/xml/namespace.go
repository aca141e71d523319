package xml

import "github.com/beevik/etree"

// Namespace definitions for CalDAV and WebDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
	// CalendarServer is the Calendar Server namespace (sharing, notifications)
	CalendarServer = "http://calendarserver.org/ns/"
	// Apple is the Apple iCal namespace (calendar-color)
	Apple = "http://apple.com/ns/ical/"
)

// Prefixes used on outgoing request bodies.
const (
	prefixDAV            = "D"
	prefixCalDAV         = "C"
	prefixCalendarServer = "CS"
	prefixApple          = "A"
)

// nsPrefix maps a namespace URI to its request-body prefix.
var nsPrefix = map[string]string{
	DAV:            prefixDAV,
	CalDAV:         prefixCalDAV,
	CalendarServer: prefixCalendarServer,
	Apple:          prefixApple,
}

// propNamespace maps well-known property names to their namespace. Properties
// not listed default to DAV:.
var propNamespace = map[string]string{
	"calendar-home-set":                CalDAV,
	"calendar-description":             CalDAV,
	"calendar-timezone":                CalDAV,
	"supported-calendar-component-set": CalDAV,
	"calendar-data":                    CalDAV,
	"schedule-inbox-URL":               CalDAV,
	"schedule-outbox-URL":              CalDAV,
	"calendar-color":                   Apple,
	"getctag":                          CalendarServer,
	"notification-URL":                 CalendarServer,
	"invite":                           CalendarServer,
}

// newDocument creates an XML document with the standard declaration and a
// namespaced root element carrying declarations for the given namespaces.
func newDocument(rootTag string, rootNS string, extraNS ...string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement(nsPrefix[rootNS] + ":" + rootTag)
	root.CreateAttr("xmlns:"+nsPrefix[rootNS], rootNS)
	for _, ns := range extraNS {
		root.CreateAttr("xmlns:"+nsPrefix[ns], ns)
	}
	return doc, root
}

// elem creates a child element in the given namespace.
func elem(parent *etree.Element, ns, tag string) *etree.Element {
	return parent.CreateElement(nsPrefix[ns] + ":" + tag)
}

// propElem creates a child element for a property name, resolving its
// namespace from the well-known table.
func propElem(parent *etree.Element, name string) *etree.Element {
	ns, ok := propNamespace[name]
	if !ok {
		ns = DAV
	}
	return elem(parent, ns, name)
}

// Serialize renders a document to a string. etree's serializer escapes the
// five reserved XML characters in all text and attribute content.
func Serialize(doc *etree.Document) string {
	out, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return out
}

package httpclient

import "encoding/xml"

// Wire-format structs for WebDAV multistatus responses. Shared by the
// PROPFIND and REPORT paths.

type multistatusXML struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	SyncToken string        `xml:"sync-token"`
	Responses []responseXML `xml:"response"`
}

type responseXML struct {
	Href string `xml:"href"`
	// Status at response level appears in sync-collection reports for
	// removed resources (typically 404).
	Status   string        `xml:"status"`
	Propstat []propstatXML `xml:"propstat"`
}

type propstatXML struct {
	Status string  `xml:"status"`
	Prop   propXML `xml:"prop"`
}

type propXML struct {
	ResourceType         resourceTypeXML `xml:"DAV: resourcetype"`
	DisplayName          *string         `xml:"DAV: displayname"`
	PrincipalURL         hrefXML         `xml:"DAV: principal-URL"`
	CurrentUserPrincipal hrefXML         `xml:"DAV: current-user-principal"`
	PrivilegeSet         privSetXML      `xml:"DAV: current-user-privilege-set"`
	ETag                 string          `xml:"DAV: getetag"`
	SyncToken            *string         `xml:"DAV: sync-token"`

	CalendarHomeSet     hrefXML         `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	Description         *string         `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	SupportedComponents componentSetXML `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`
	ScheduleInbox       hrefXML         `xml:"urn:ietf:params:xml:ns:caldav schedule-inbox-URL"`
	ScheduleOutbox      hrefXML         `xml:"urn:ietf:params:xml:ns:caldav schedule-outbox-URL"`
	CalendarData        string          `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`

	Color           *string `xml:"http://apple.com/ns/ical/ calendar-color"`
	CTag            *string `xml:"http://calendarserver.org/ns/ getctag"`
	NotificationURL hrefXML `xml:"http://calendarserver.org/ns/ notification-URL"`
}

type componentSetXML struct {
	Comps []struct {
		Name string `xml:"name,attr"`
	} `xml:"comp"`
}

type hrefXML struct {
	Href string `xml:"href"`
}

type resourceTypeXML struct {
	Calendar   *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
	Collection *struct{} `xml:"DAV: collection"`
}

type privSetXML struct {
	Privileges []privilegeXML `xml:"privilege"`
}

type privilegeXML struct {
	Write *struct{} `xml:"write"`
}

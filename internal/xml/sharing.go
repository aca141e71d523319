package xml

import "github.com/beevik/etree"

// Privilege levels accepted by the sharing builders.
const (
	PrivilegeRead      = "read"
	PrivilegeReadWrite = "read-write"
	PrivilegeAdmin     = "admin"
)

// Sharee describes one principal a calendar is shared with.
type Sharee struct {
	Href        string
	DisplayName string
	Privilege   string
}

// Share builds a calendarserver-sharing share request body adding the given
// sharees and removing the given hrefs.
func Share(set []Sharee, remove []string) *etree.Document {
	doc, root := newDocument("share", CalendarServer, DAV)

	for _, sharee := range set {
		setElem := elem(root, CalendarServer, "set")
		elem(setElem, DAV, "href").SetText(sharee.Href)
		if sharee.DisplayName != "" {
			elem(setElem, CalendarServer, "common-name").SetText(sharee.DisplayName)
		}
		switch sharee.Privilege {
		case PrivilegeReadWrite:
			elem(setElem, CalendarServer, "read-write")
		case PrivilegeAdmin:
			elem(setElem, CalendarServer, "read-write")
			elem(setElem, CalendarServer, "shared-owner")
		default:
			elem(setElem, CalendarServer, "read")
		}
	}

	for _, href := range remove {
		removeElem := elem(root, CalendarServer, "remove")
		elem(removeElem, DAV, "href").SetText(href)
	}

	return doc
}

// InviteReply builds an invite-reply body accepting or declining a shared
// calendar invitation.
func InviteReply(hostURL, inReplyTo string, accept bool) *etree.Document {
	doc, root := newDocument("invite-reply", CalendarServer, DAV)

	hostElem := elem(root, CalendarServer, "hosturl")
	elem(hostElem, DAV, "href").SetText(hostURL)
	if accept {
		elem(root, CalendarServer, "invite-accepted")
	} else {
		elem(root, CalendarServer, "invite-declined")
	}
	if inReplyTo != "" {
		elem(root, CalendarServer, "in-reply-to").SetText(inReplyTo)
	}

	return doc
}

// PrincipalPropertySearch builds a principal-property-search REPORT body
// matching principals whose display name contains the given text.
func PrincipalPropertySearch(displayName string) *etree.Document {
	doc, root := newDocument("principal-property-search", DAV)

	search := elem(root, DAV, "property-search")
	searchProp := elem(search, DAV, "prop")
	elem(searchProp, DAV, "displayname")
	match := elem(search, DAV, "match")
	match.SetText(displayName)

	prop := elem(root, DAV, "prop")
	elem(prop, DAV, "displayname")
	elem(prop, DAV, "principal-URL")

	return doc
}

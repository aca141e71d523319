package xml

import "github.com/beevik/etree"

// Propfind builds a PROPFIND request body asking for the named properties.
// Property namespaces are resolved from the well-known table.
func Propfind(props ...string) *etree.Document {
	doc, root := newDocument("propfind", DAV, CalDAV, CalendarServer, Apple)
	prop := elem(root, DAV, "prop")
	for _, name := range props {
		propElem(prop, name)
	}
	return doc
}

// Proppatch builds a PROPPATCH request body setting and removing calendar
// properties. Keys of set are property names; values are their new text.
func Proppatch(set map[string]string, setOrder []string, remove []string) *etree.Document {
	doc, root := newDocument("propertyupdate", DAV, CalDAV, CalendarServer, Apple)

	if len(set) > 0 {
		setElem := elem(root, DAV, "set")
		prop := elem(setElem, DAV, "prop")
		for _, name := range setOrder {
			value, ok := set[name]
			if !ok {
				continue
			}
			propElem(prop, name).SetText(value)
		}
	}

	if len(remove) > 0 {
		removeElem := elem(root, DAV, "remove")
		prop := elem(removeElem, DAV, "prop")
		for _, name := range remove {
			propElem(prop, name)
		}
	}

	return doc
}

// Mkcalendar builds a MKCALENDAR request body. Empty fields are omitted.
func Mkcalendar(displayName, color, description string) *etree.Document {
	doc, root := newDocument("mkcalendar", CalDAV, DAV, Apple)
	set := elem(root, DAV, "set")
	prop := elem(set, DAV, "prop")

	if displayName != "" {
		elem(prop, DAV, "displayname").SetText(displayName)
	}
	if color != "" {
		elem(prop, Apple, "calendar-color").SetText(color)
	}
	if description != "" {
		elem(prop, CalDAV, "calendar-description").SetText(description)
	}

	comps := elem(prop, CalDAV, "supported-calendar-component-set")
	comp := elem(comps, CalDAV, "comp")
	comp.CreateAttr("name", "VEVENT")

	return doc
}

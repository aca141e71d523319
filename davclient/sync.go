package davclient

import (
	"context"
	"fmt"
	"strings"

	davxml "github.com/openchrono/calbridge/internal/xml"
)

// SyncLevel controls how deep a sync-collection report descends.
type SyncLevel int

const (
	SyncLevelOne SyncLevel = iota
	SyncLevelInfinite
)

// ChangedObject is one created or modified resource in a sync report.
type ChangedObject struct {
	URL  string
	ETag string
}

// SyncResult is the outcome of one sync-collection round: the next token
// plus the resources changed and deleted since the previous one.
type SyncResult struct {
	Token   string
	Changed []ChangedObject
	Deleted []string
}

// SyncCalendar runs a sync-collection REPORT against a calendar. An empty
// token requests an initial sync; the returned token feeds the next call.
// Resources reported with a 404 status are deletions.
func (c *Client) SyncCalendar(ctx context.Context, calendarURL, token string, level SyncLevel) (*SyncResult, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	xmlLevel := davxml.SyncLevelOne
	if level == SyncLevelInfinite {
		xmlLevel = davxml.SyncLevelInfinite
	}
	body := davxml.Serialize(davxml.SyncCollection(token, xmlLevel))

	resp, err := c.transport.DoREPORT(ctx, calendarURL, 1, body)
	if err != nil {
		return nil, fmt.Errorf("failed to sync calendar: %w", mapStatusError(err, calendarURL))
	}

	result := &SyncResult{Token: resp.SyncToken}
	for _, entry := range resp.Responses {
		url := resolveHref(calendarURL, entry.Href)
		if url == calendarURL {
			continue
		}
		if strings.Contains(entry.Status, "404") {
			result.Deleted = append(result.Deleted, url)
			delete(c.events, url)
			continue
		}
		result.Changed = append(result.Changed, ChangedObject{URL: url, ETag: entry.ETag})
	}

	if cal, ok := c.calendars[calendarURL]; ok {
		cal.SyncToken = result.Token
	}
	c.logger.Debug("calendar synced",
		"calendar", calendarURL,
		"changed", len(result.Changed),
		"deleted", len(result.Deleted))
	return result, nil
}

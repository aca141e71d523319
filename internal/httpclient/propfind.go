package httpclient

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/mo"

	davxml "github.com/openchrono/calbridge/internal/xml"
)

// PropfindResponse holds a parsed PROPFIND multistatus keyed by href.
type PropfindResponse struct {
	Resources map[string]ResourceProps
}

// ResourceProps are the decoded properties of one multistatus resource.
// Optional properties are absent when the server did not report them.
type ResourceProps struct {
	IsCalendar           bool
	DisplayName          string
	Etag                 string
	CanWrite             bool
	CurrentUserPrincipal string
	CalendarHomeSet      string
	SupportedComponents  []string
	Color                mo.Option[string]
	Description          mo.Option[string]
	CTag                 mo.Option[string]
	SyncToken            mo.Option[string]
	ScheduleInbox        mo.Option[string]
	ScheduleOutbox       mo.Option[string]
	NotificationURL      mo.Option[string]
}

// DoPROPFIND performs a PROPFIND request for the named properties.
func (c *httpClientWrapper) DoPROPFIND(ctx context.Context, urlStr string, depth int, props ...string) (*PropfindResponse, error) {
	c.logger.Debug("starting PROPFIND request",
		"url", urlStr,
		"depth", depth,
		"properties", props)

	body := davxml.Serialize(davxml.Propfind(props...))

	req, err := c.newRequest(ctx, "PROPFIND", urlStr, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", fmt.Sprintf("%d", depth))
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return nil, fmt.Errorf("failed to send PROPFIND request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusError(resp)
	}

	var multiStatus multistatusXML
	if err := xml.NewDecoder(resp.Body).Decode(&multiStatus); err != nil {
		c.logger.Debug("failed to parse XML response", "error", err)
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	result := PropfindResponse{Resources: make(map[string]ResourceProps)}
	for _, response := range multiStatus.Responses {
		props := decodeResourceProps(response)
		if props != nil {
			result.Resources[response.Href] = *props
		}
	}

	c.logger.Debug("PROPFIND request complete",
		"resource_count", len(result.Resources))
	return &result, nil
}

// decodeResourceProps merges the 200-status propstats of one response into
// a ResourceProps. Responses with no successful propstat are dropped.
func decodeResourceProps(response responseXML) *ResourceProps {
	var result ResourceProps
	found := false

	for _, propstat := range response.Propstat {
		if !strings.Contains(propstat.Status, "200") {
			continue
		}
		found = true
		prop := propstat.Prop

		if prop.ResourceType.Calendar != nil {
			result.IsCalendar = true
		}
		if prop.DisplayName != nil {
			result.DisplayName = *prop.DisplayName
		}
		if prop.ETag != "" {
			result.Etag = prop.ETag
		}
		if prop.CurrentUserPrincipal.Href != "" {
			result.CurrentUserPrincipal = prop.CurrentUserPrincipal.Href
		}
		if prop.CalendarHomeSet.Href != "" {
			result.CalendarHomeSet = prop.CalendarHomeSet.Href
		}
		for _, priv := range prop.PrivilegeSet.Privileges {
			if priv.Write != nil {
				result.CanWrite = true
			}
		}
		for _, comp := range prop.SupportedComponents.Comps {
			result.SupportedComponents = append(result.SupportedComponents, comp.Name)
		}
		if prop.Color != nil {
			result.Color = mo.Some(*prop.Color)
		}
		if prop.Description != nil {
			result.Description = mo.Some(*prop.Description)
		}
		if prop.CTag != nil {
			result.CTag = mo.Some(*prop.CTag)
		}
		if prop.SyncToken != nil {
			result.SyncToken = mo.Some(*prop.SyncToken)
		}
		if prop.ScheduleInbox.Href != "" {
			result.ScheduleInbox = mo.Some(prop.ScheduleInbox.Href)
		}
		if prop.ScheduleOutbox.Href != "" {
			result.ScheduleOutbox = mo.Some(prop.ScheduleOutbox.Href)
		}
		if prop.NotificationURL.Href != "" {
			result.NotificationURL = mo.Some(prop.NotificationURL.Href)
		}
	}

	if !found {
		return nil
	}
	return &result
}

package davclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	davxml "github.com/openchrono/calbridge/internal/xml"
)

// Calendar is one calendar collection under the account's home.
type Calendar struct {
	URL         string
	Name        string
	Color       string
	Description string
	CTag        string
	SyncToken   string
	ReadOnly    bool
	// Components lists the component types the collection accepts, for
	// example VEVENT and VTODO. Empty when the server does not advertise
	// a supported-calendar-component-set.
	Components []string
}

// calendarProps are the properties requested when listing calendars.
var calendarProps = []string{
	"resourcetype",
	"displayname",
	"calendar-color",
	"calendar-description",
	"getctag",
	"sync-token",
	"supported-calendar-component-set",
	"current-user-privilege-set",
}

// ListCalendars fetches the calendar collections under the account home and
// replaces the calendar cache with the result.
func (c *Client) ListCalendars(ctx context.Context) ([]*Calendar, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	resp, err := c.transport.DoPROPFIND(ctx, c.account.HomeURL, 1, calendarProps...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", mapStatusError(err, c.account.HomeURL))
	}

	c.calendars = make(map[string]*Calendar)
	var result []*Calendar
	for href, resource := range resp.Resources {
		if !resource.IsCalendar {
			continue
		}
		cal := &Calendar{
			URL:         resolveHref(c.account.HomeURL, href),
			Name:        resource.DisplayName,
			Color:       resource.Color.OrElse(""),
			Description: resource.Description.OrElse(""),
			CTag:        resource.CTag.OrElse(""),
			SyncToken:   resource.SyncToken.OrElse(""),
			ReadOnly:    !resource.CanWrite,
			Components:  resource.SupportedComponents,
		}
		c.calendars[cal.URL] = cal
		result = append(result, cal)
	}

	c.logger.Debug("calendars listed", "count", len(result))
	return result, nil
}

// CreateCalendar makes a new calendar collection under the account home at
// a generated UUID path, then re-fetches its properties so server-derived
// fields are populated.
func (c *Client) CreateCalendar(ctx context.Context, name, color, description string) (*Calendar, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &ValidationError{Message: "calendar name is required"}
	}

	calendarURL := resolveHref(c.account.HomeURL, uuid.New().String()+"/")
	body := davxml.Serialize(davxml.Mkcalendar(name, color, description))
	if err := c.transport.DoMKCALENDAR(ctx, calendarURL, body); err != nil {
		return nil, fmt.Errorf("failed to create calendar: %w", mapStatusError(err, calendarURL))
	}

	resp, err := c.transport.DoPROPFIND(ctx, calendarURL, 0, calendarProps...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created calendar: %w", mapStatusError(err, calendarURL))
	}

	cal := &Calendar{URL: calendarURL, Name: name, Color: color, Description: description}
	for _, resource := range resp.Resources {
		if resource.DisplayName != "" {
			cal.Name = resource.DisplayName
		}
		cal.Color = resource.Color.OrElse(color)
		cal.Description = resource.Description.OrElse(description)
		cal.CTag = resource.CTag.OrElse("")
		cal.SyncToken = resource.SyncToken.OrElse("")
		cal.ReadOnly = !resource.CanWrite
		cal.Components = resource.SupportedComponents
	}
	c.calendars[cal.URL] = cal
	return cal, nil
}

// CalendarChanges are the patchable calendar properties. Nil fields are
// left untouched; empty strings remove the property.
type CalendarChanges struct {
	Name        *string
	Color       *string
	Description *string
}

// UpdateCalendar patches calendar properties via PROPPATCH. At least one
// field must be set.
func (c *Client) UpdateCalendar(ctx context.Context, calendarURL string, changes CalendarChanges) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	if changes.Name == nil && changes.Color == nil && changes.Description == nil {
		return &ValidationError{Message: "no calendar properties to update"}
	}

	set := map[string]string{}
	var setOrder, remove []string
	patch := func(prop string, value *string) {
		if value == nil {
			return
		}
		if *value == "" {
			remove = append(remove, prop)
			return
		}
		set[prop] = *value
		setOrder = append(setOrder, prop)
	}
	patch("displayname", changes.Name)
	patch("calendar-color", changes.Color)
	patch("calendar-description", changes.Description)

	body := davxml.Serialize(davxml.Proppatch(set, setOrder, remove))
	if err := c.transport.DoPROPPATCH(ctx, calendarURL, body); err != nil {
		return fmt.Errorf("failed to update calendar: %w", mapStatusError(err, calendarURL))
	}

	if cal, ok := c.calendars[calendarURL]; ok {
		if changes.Name != nil {
			cal.Name = *changes.Name
		}
		if changes.Color != nil {
			cal.Color = *changes.Color
		}
		if changes.Description != nil {
			cal.Description = *changes.Description
		}
	}
	return nil
}

// DeleteCalendar removes a calendar collection and evicts it and its
// cached events.
func (c *Client) DeleteCalendar(ctx context.Context, calendarURL string) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	if err := c.transport.DoDELETE(ctx, calendarURL, ""); err != nil {
		return fmt.Errorf("failed to delete calendar: %w", mapStatusError(err, calendarURL))
	}

	delete(c.calendars, calendarURL)
	for url, obj := range c.events {
		if obj.CalendarURL == calendarURL || strings.HasPrefix(url, calendarURL) {
			delete(c.events, url)
		}
	}
	return nil
}

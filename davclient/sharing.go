package davclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	davxml "github.com/openchrono/calbridge/internal/xml"
)

// Privilege levels a calendar can be shared with.
const (
	PrivilegeRead      = davxml.PrivilegeRead
	PrivilegeReadWrite = davxml.PrivilegeReadWrite
	PrivilegeAdmin     = davxml.PrivilegeAdmin
)

// Sharee identifies one person a calendar is shared with.
type Sharee struct {
	// Email is the sharee's address; a mailto: prefix is added on the
	// wire when absent.
	Email       string
	DisplayName string
	Privilege   string
}

// Invitation is a pending shared-calendar invite found in the account's
// notification collection.
type Invitation struct {
	// URL is the notification resource holding the invite.
	URL string
	// UID identifies the invite for replies.
	UID string
	// HostURL is the shared calendar being offered.
	HostURL string
	// Organizer is the sharing principal's href.
	Organizer string
	// Summary is the shared calendar's display name, when given.
	Summary string
	// Access is the offered privilege, read or read-write.
	Access string
}

// Principal is a user found by FindPrincipals, shareable by principal URL.
type Principal struct {
	URL         string
	DisplayName string
}

// FindPrincipals searches the server's principal collection for users whose
// display name matches, for picking sharees interactively.
func (c *Client) FindPrincipals(ctx context.Context, displayName string) ([]Principal, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	if displayName == "" {
		return nil, &ValidationError{Message: "display name is required"}
	}

	collection := resolveHref(c.account.PrincipalURL, "../")
	body := davxml.Serialize(davxml.PrincipalPropertySearch(displayName))
	resp, err := c.transport.DoREPORT(ctx, collection, 0, body)
	if err != nil {
		return nil, fmt.Errorf("failed to search principals: %w", mapStatusError(err, collection))
	}

	var principals []Principal
	for _, entry := range resp.Responses {
		url := entry.PrincipalURL
		if url == "" {
			url = entry.Href
		}
		if url == "" {
			continue
		}
		principals = append(principals, Principal{
			URL:         resolveHref(collection, url),
			DisplayName: entry.DisplayName,
		})
	}
	return principals, nil
}

// ShareCalendar grants the sharees access to a calendar via a
// calendarserver-sharing POST.
func (c *Client) ShareCalendar(ctx context.Context, calendarURL string, sharees []Sharee) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	if len(sharees) == 0 {
		return &ValidationError{Message: "no sharees given"}
	}

	set := make([]davxml.Sharee, 0, len(sharees))
	for _, sharee := range sharees {
		set = append(set, davxml.Sharee{
			Href:        mailtoHref(sharee.Email),
			DisplayName: sharee.DisplayName,
			Privilege:   sharee.Privilege,
		})
	}
	return c.postShare(ctx, calendarURL, davxml.Share(set, nil))
}

// UnshareCalendar revokes previously granted access for the given emails.
func (c *Client) UnshareCalendar(ctx context.Context, calendarURL string, emails []string) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	if len(emails) == 0 {
		return &ValidationError{Message: "no sharees given"}
	}

	remove := make([]string, 0, len(emails))
	for _, email := range emails {
		remove = append(remove, mailtoHref(email))
	}
	return c.postShare(ctx, calendarURL, davxml.Share(nil, remove))
}

func (c *Client) postShare(ctx context.Context, calendarURL string, doc *etree.Document) error {
	status, _, err := c.transport.DoPOST(ctx, calendarURL, "application/xml; charset=utf-8", davxml.Serialize(doc))
	if err != nil {
		return fmt.Errorf("failed to update sharing: %w", mapStatusError(err, calendarURL))
	}
	c.logger.Debug("sharing updated", "calendar", calendarURL, "status", status)
	return nil
}

// ListInvitations fetches pending shared-calendar invites from the
// account's notification collection.
func (c *Client) ListInvitations(ctx context.Context) ([]Invitation, error) {
	if err := c.checkConnected(); err != nil {
		return nil, err
	}
	if c.account.NotificationURL == "" {
		return nil, nil
	}

	resp, err := c.transport.DoPROPFIND(ctx, c.account.NotificationURL, 1, "resourcetype", "getetag")
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", mapStatusError(err, c.account.NotificationURL))
	}

	var invitations []Invitation
	for href := range resp.Resources {
		notificationURL := resolveHref(c.account.NotificationURL, href)
		if notificationURL == c.account.NotificationURL {
			continue
		}
		body, _, err := c.transport.DoGET(ctx, notificationURL)
		if err != nil {
			c.logger.Debug("skipping unreadable notification", "url", notificationURL, "error", err)
			continue
		}
		invitation, ok := parseInviteNotification(body)
		if !ok {
			continue
		}
		invitation.URL = notificationURL
		invitations = append(invitations, invitation)
	}
	return invitations, nil
}

// AcceptInvitation replies to an invite and re-fetches the calendar list so
// the newly shared calendar appears in the cache.
func (c *Client) AcceptInvitation(ctx context.Context, invitation Invitation) error {
	if err := c.replyToInvitation(ctx, invitation, true); err != nil {
		return err
	}
	_, err := c.ListCalendars(ctx)
	return err
}

// DeclineInvitation replies to an invite without touching the calendar
// cache.
func (c *Client) DeclineInvitation(ctx context.Context, invitation Invitation) error {
	return c.replyToInvitation(ctx, invitation, false)
}

func (c *Client) replyToInvitation(ctx context.Context, invitation Invitation, accept bool) error {
	if err := c.checkConnected(); err != nil {
		return err
	}
	if invitation.HostURL == "" {
		return &ValidationError{Message: "invitation has no host URL"}
	}

	body := davxml.Serialize(davxml.InviteReply(invitation.HostURL, invitation.UID, accept))
	status, _, err := c.transport.DoPOST(ctx, c.account.HomeURL, "application/xml; charset=utf-8", body)
	if err != nil {
		return fmt.Errorf("failed to reply to invitation: %w", mapStatusError(err, invitation.HostURL))
	}
	c.logger.Debug("invitation reply sent",
		"host", invitation.HostURL,
		"accepted", accept,
		"status", status)
	return nil
}

// mailtoHref ensures an address carries the mailto: scheme.
func mailtoHref(email string) string {
	if strings.Contains(email, ":") {
		return email
	}
	return "mailto:" + strings.ToLower(email)
}

// parseInviteNotification extracts an invite from a calendarserver
// notification body. Non-invite notifications return ok=false.
func parseInviteNotification(body string) (Invitation, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return Invitation{}, false
	}
	root := doc.Root()
	if root == nil {
		return Invitation{}, false
	}
	invite := findChild(root, "invite-notification")
	if invite == nil {
		return Invitation{}, false
	}

	invitation := Invitation{
		UID:     childText(invite, "uid"),
		Summary: childText(invite, "summary"),
	}
	if host := findChild(invite, "hosturl"); host != nil {
		invitation.HostURL = childText(host, "href")
	}
	if organizer := findChild(invite, "organizer"); organizer != nil {
		invitation.Organizer = childText(organizer, "href")
	}
	if access := findChild(invite, "access"); access != nil {
		if findChild(access, "read-write") != nil {
			invitation.Access = PrivilegeReadWrite
		} else {
			invitation.Access = PrivilegeRead
		}
	}
	return invitation, invitation.HostURL != ""
}

// findChild returns the first descendant element with the given local
// name, ignoring namespace prefixes.
func findChild(parent *etree.Element, name string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == name {
			return child
		}
		if found := findChild(child, name); found != nil {
			return found
		}
	}
	return nil
}

// childText returns the trimmed text of the first matching descendant.
func childText(parent *etree.Element, name string) string {
	if child := findChild(parent, name); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}

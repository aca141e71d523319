// Package davclient is a CalDAV client for a single connected account. It
// discovers calendars, performs event CRUD with ETag preconditions, scopes
// deletes on recurring series, and handles sharing, scheduling and
// collection sync.
package davclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/openchrono/calbridge/adapter"
	"github.com/openchrono/calbridge/internal/httpclient"
)

// Account holds the URLs discovered for the connected principal. It is
// populated by Connect and not modified afterwards.
type Account struct {
	ServerURL       string
	Username        string
	PrincipalURL    string
	HomeURL         string
	ScheduleInbox   string
	ScheduleOutbox  string
	NotificationURL string
}

// ClientOptions configures Connect. Zero values pick sensible defaults.
type ClientOptions struct {
	// HTTPClient is the underlying client; http.DefaultClient when nil.
	// Its transport is wrapped with basic-auth injection.
	HTTPClient *http.Client
	// Logger receives debug traces; a no-op logger when nil.
	Logger *slog.Logger
	// Converter translates between wire objects and UI events. When nil a
	// converter with DefaultZone is built.
	Converter *adapter.Converter
	// DefaultZone is the IANA zone for floating times, used only when
	// Converter is nil.
	DefaultZone string
}

// Client is a CalDAV client bound to one account. Calendars and events are
// cached in URL-keyed maps; the client is intended for use from a single
// goroutine and does not synchronize cache access.
type Client struct {
	transport httpclient.Wrapper
	converter *adapter.Converter
	logger    *slog.Logger
	account   *Account

	calendars map[string]*Calendar
	events    map[string]*adapter.Object
}

// Connect authenticates against a CalDAV server and discovers the
// principal, calendar home and scheduling collections. The server URL may
// point directly at a DAV path; otherwise the well-known location and the
// root are probed.
func Connect(ctx context.Context, serverURL, username, password string, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	baseURL, err := url.Parse(serverURL)
	if err != nil || baseURL.Host == "" || (baseURL.Scheme != "http" && baseURL.Scheme != "https") {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid server URL %q", serverURL)}
	}

	// Shallow-copy the caller's client so installing the auth transport
	// never leaks credentials into their other requests.
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		httpClient = &clone
	}
	inner := httpClient.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}
	httpClient.Transport = httpclient.NewBasicAuthTransport(username, password, inner, logger)

	transport, err := httpclient.NewWrapper(httpClient, *baseURL, logger)
	if err != nil {
		return nil, err
	}

	converter := opts.Converter
	if converter == nil {
		converter = adapter.NewConverter(opts.DefaultZone)
	}

	client := &Client{
		transport: transport,
		converter: converter,
		logger:    logger,
		calendars: make(map[string]*Calendar),
		events:    make(map[string]*adapter.Object),
	}

	account, err := client.discoverAccount(ctx, baseURL, username)
	if err != nil {
		return nil, err
	}
	client.account = account
	return client, nil
}

// NewClient assembles a client from an existing transport without running
// discovery. Intended for tests and for servers whose URLs are known ahead
// of time.
func NewClient(transport httpclient.Wrapper, converter *adapter.Converter, logger *slog.Logger, account *Account) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		transport: transport,
		converter: converter,
		logger:    logger,
		account:   account,
		calendars: make(map[string]*Calendar),
		events:    make(map[string]*adapter.Object),
	}
}

// Account returns the discovered account, or nil when disconnected.
func (c *Client) Account() *Account { return c.account }

// Disconnect clears the account and both caches. The client can not be
// reused afterwards.
func (c *Client) Disconnect() {
	c.account = nil
	c.calendars = make(map[string]*Calendar)
	c.events = make(map[string]*adapter.Object)
}

// checkConnected guards every operation that needs a discovered account.
func (c *Client) checkConnected() error {
	if c.account == nil {
		return &ConnectionError{Message: "not connected"}
	}
	return nil
}

// discoverAccount runs principal and home-set discovery: probe candidate
// locations for current-user-principal, then read the principal's calendar
// home and scheduling collection URLs.
func (c *Client) discoverAccount(ctx context.Context, baseURL *url.URL, username string) (*Account, error) {
	candidates := []string{}
	if baseURL.Path != "" && baseURL.Path != "/" {
		candidates = append(candidates, baseURL.String())
	}
	candidates = append(candidates,
		baseURL.JoinPath(".well-known", "caldav").String(),
		baseURL.JoinPath("/").String(),
	)

	var principalURL string
	var lastErr error
	for _, candidate := range candidates {
		resp, err := c.transport.DoPROPFIND(ctx, candidate, 0, "current-user-principal")
		if err != nil {
			lastErr = err
			continue
		}
		for _, resource := range resp.Resources {
			if resource.CurrentUserPrincipal != "" {
				principalURL = resolveHref(candidate, resource.CurrentUserPrincipal)
				break
			}
		}
		if principalURL != "" {
			break
		}
	}
	if principalURL == "" {
		return nil, &ConnectionError{Message: "could not discover current-user-principal", Err: lastErr}
	}

	resp, err := c.transport.DoPROPFIND(ctx, principalURL, 0,
		"calendar-home-set",
		"schedule-inbox-URL",
		"schedule-outbox-URL",
		"notification-URL")
	if err != nil {
		return nil, &ConnectionError{Message: "principal lookup failed", Err: err}
	}

	account := &Account{
		ServerURL:    baseURL.String(),
		Username:     username,
		PrincipalURL: principalURL,
	}
	for _, resource := range resp.Resources {
		if resource.CalendarHomeSet != "" {
			account.HomeURL = resolveHref(principalURL, resource.CalendarHomeSet)
		}
		if inbox, ok := resource.ScheduleInbox.Get(); ok {
			account.ScheduleInbox = resolveHref(principalURL, inbox)
		}
		if outbox, ok := resource.ScheduleOutbox.Get(); ok {
			account.ScheduleOutbox = resolveHref(principalURL, outbox)
		}
		if notifications, ok := resource.NotificationURL.Get(); ok {
			account.NotificationURL = resolveHref(principalURL, notifications)
		}
	}
	if account.HomeURL == "" {
		return nil, &ConnectionError{Message: "principal has no calendar-home-set"}
	}

	c.logger.Debug("account discovered",
		"principal", account.PrincipalURL,
		"home", account.HomeURL)
	return account, nil
}

// resolveHref resolves a possibly relative href against a base URL string.
func resolveHref(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

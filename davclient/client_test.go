package davclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const principalMultistatus = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/</D:href>
    <D:propstat>
      <D:prop>
        <D:current-user-principal><D:href>/principals/user/</D:href></D:current-user-principal>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const homeSetMultistatus = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">
  <D:response>
    <D:href>/principals/user/</D:href>
    <D:propstat>
      <D:prop>
        <C:calendar-home-set><D:href>/home/user/</D:href></C:calendar-home-set>
        <C:schedule-inbox-URL><D:href>/home/user/inbox/</D:href></C:schedule-inbox-URL>
        <C:schedule-outbox-URL><D:href>/home/user/outbox/</D:href></C:schedule-outbox-URL>
        <CS:notification-URL><D:href>/home/user/notifications/</D:href></CS:notification-URL>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestConnectDiscoversAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "PROPFIND", r.Method)
		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user@example.com", username)
		assert.Equal(t, "secret", password)

		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/", "/.well-known/caldav":
			w.WriteHeader(http.StatusMultiStatus)
			w.Write([]byte(principalMultistatus))
		case "/principals/user/":
			w.WriteHeader(http.StatusMultiStatus)
			w.Write([]byte(homeSetMultistatus))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := Connect(context.Background(), server.URL, "user@example.com", "secret", nil)
	require.NoError(t, err)

	account := client.Account()
	require.NotNil(t, account)
	assert.Equal(t, server.URL+"/principals/user/", account.PrincipalURL)
	assert.Equal(t, server.URL+"/home/user/", account.HomeURL)
	assert.Equal(t, server.URL+"/home/user/inbox/", account.ScheduleInbox)
	assert.Equal(t, server.URL+"/home/user/outbox/", account.ScheduleOutbox)
	assert.Equal(t, server.URL+"/home/user/notifications/", account.NotificationURL)
}

func TestConnectLeavesCallersClientUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/", "/.well-known/caldav":
			w.WriteHeader(http.StatusMultiStatus)
			w.Write([]byte(principalMultistatus))
		case "/principals/user/":
			w.WriteHeader(http.StatusMultiStatus)
			w.Write([]byte(homeSetMultistatus))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	// The supplied client must not gain the credential-injecting transport:
	// the caller may keep using it for unrelated requests.
	supplied := &http.Client{}
	_, err := Connect(context.Background(), server.URL, "u", "p", &ClientOptions{HTTPClient: supplied})
	require.NoError(t, err)
	assert.Nil(t, supplied.Transport)
}

func TestConnectRejectsInvalidURL(t *testing.T) {
	for _, serverURL := range []string{"", "not a url", "ftp://cal.example.com"} {
		_, err := Connect(context.Background(), serverURL, "u", "p", nil)
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr, "url %q", serverURL)
	}
}

func TestConnectFailsWithoutPrincipal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Connect(context.Background(), server.URL, "u", "p", nil)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestDisconnectedClientRefusesOperations(t *testing.T) {
	client := newTestClient(&mockTransport{})
	client.Disconnect()

	var connErr *ConnectionError
	_, err := client.ListCalendars(context.Background())
	assert.ErrorAs(t, err, &connErr)
	_, err = client.GetEvents(context.Background(), testCalURL, EventOptions{})
	assert.ErrorAs(t, err, &connErr)
	err = client.DeleteEvent(context.Background(), testCalURL+"a.ics")
	assert.ErrorAs(t, err, &connErr)

	assert.Nil(t, client.Account())
	assert.Empty(t, client.calendars)
	assert.Empty(t, client.events)
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://cal.example.com/home/user/", "/home/user/work/", "https://cal.example.com/home/user/work/"},
		{"https://cal.example.com/home/user/", "work/", "https://cal.example.com/home/user/work/"},
		{"https://cal.example.com/home/user/", "https://other.example.com/x/", "https://other.example.com/x/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveHref(tt.base, tt.href))
	}
}

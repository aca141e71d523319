package davclient

import (
	"context"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchrono/calbridge/adapter"
	"github.com/openchrono/calbridge/internal/httpclient"
)

func TestListCalendars(t *testing.T) {
	transport := &mockTransport{
		propfindFn: func(url string, depth int, props []string) (*httpclient.PropfindResponse, error) {
			assert.Equal(t, testHome, url)
			assert.Equal(t, 1, depth)
			return &httpclient.PropfindResponse{Resources: map[string]httpclient.ResourceProps{
				"/home/user/": {
					DisplayName: "Home collection",
				},
				"/home/user/work/": {
					IsCalendar:          true,
					DisplayName:         "Work",
					CanWrite:            true,
					Color:               mo.Some("#0055ff"),
					CTag:                mo.Some("ctag-1"),
					SyncToken:           mo.Some("sync-1"),
					SupportedComponents: []string{"VEVENT"},
				},
				"/home/user/family/": {
					IsCalendar:  true,
					DisplayName: "Family",
					Description: mo.Some("Shared with the family"),
				},
			}}, nil
		},
	}
	client := newTestClient(transport)

	calendars, err := client.ListCalendars(context.Background())
	require.NoError(t, err)
	require.Len(t, calendars, 2)

	byName := map[string]*Calendar{}
	for _, cal := range calendars {
		byName[cal.Name] = cal
	}

	work := byName["Work"]
	require.NotNil(t, work)
	assert.Equal(t, "https://cal.example.com/home/user/work/", work.URL)
	assert.Equal(t, "#0055ff", work.Color)
	assert.Equal(t, "ctag-1", work.CTag)
	assert.Equal(t, "sync-1", work.SyncToken)
	assert.False(t, work.ReadOnly)
	assert.Equal(t, []string{"VEVENT"}, work.Components)

	family := byName["Family"]
	require.NotNil(t, family)
	assert.True(t, family.ReadOnly)
	assert.Equal(t, "Shared with the family", family.Description)

	// The non-calendar home collection is not cached.
	assert.Len(t, client.calendars, 2)
}

func TestCreateCalendar(t *testing.T) {
	var createdURL string
	transport := &mockTransport{
		mkcalendarFn: func(url, body string) error {
			createdURL = url
			assert.Contains(t, body, "<D:displayname>Team &amp; Friends</D:displayname>")
			assert.Contains(t, body, "VEVENT")
			return nil
		},
		propfindFn: func(url string, depth int, props []string) (*httpclient.PropfindResponse, error) {
			assert.Equal(t, createdURL, url)
			return &httpclient.PropfindResponse{Resources: map[string]httpclient.ResourceProps{
				url: {
					IsCalendar:  true,
					DisplayName: "Team & Friends",
					CanWrite:    true,
					CTag:        mo.Some("ctag-new"),
				},
			}}, nil
		},
	}
	client := newTestClient(transport)

	cal, err := client.CreateCalendar(context.Background(), "Team & Friends", "#ff0000", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(createdURL, testHome))
	assert.True(t, strings.HasSuffix(createdURL, "/"))
	assert.Equal(t, createdURL, cal.URL)
	assert.Equal(t, "Team & Friends", cal.Name)
	assert.Equal(t, "ctag-new", cal.CTag)
	assert.Contains(t, client.calendars, createdURL)
}

func TestCreateCalendarKeepsNameWhenRefetchOmitsIt(t *testing.T) {
	transport := &mockTransport{
		mkcalendarFn: func(url, body string) error { return nil },
		propfindFn: func(url string, depth int, props []string) (*httpclient.PropfindResponse, error) {
			// Some servers answer the re-fetch without a displayname.
			return &httpclient.PropfindResponse{Resources: map[string]httpclient.ResourceProps{
				url: {IsCalendar: true, CanWrite: true},
			}}, nil
		},
	}
	client := newTestClient(transport)

	cal, err := client.CreateCalendar(context.Background(), "Projects", "#00ff00", "")
	require.NoError(t, err)
	assert.Equal(t, "Projects", cal.Name)
	assert.Equal(t, "#00ff00", cal.Color)
}

func TestCreateCalendarRequiresName(t *testing.T) {
	client := newTestClient(&mockTransport{})
	_, err := client.CreateCalendar(context.Background(), "", "#fff", "")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateCalendar(t *testing.T) {
	var patched string
	transport := &mockTransport{
		proppatchFn: func(url, body string) error {
			assert.Equal(t, testCalURL, url)
			patched = body
			return nil
		},
	}
	client := newTestClient(transport)

	name := "Renamed"
	color := ""
	err := client.UpdateCalendar(context.Background(), testCalURL, CalendarChanges{Name: &name, Color: &color})
	require.NoError(t, err)

	assert.Contains(t, patched, "<D:displayname>Renamed</D:displayname>")
	// Empty values remove the property.
	assert.Contains(t, patched, "<D:remove>")
	assert.Contains(t, patched, "calendar-color")

	assert.Equal(t, "Renamed", client.calendars[testCalURL].Name)
	assert.Equal(t, "", client.calendars[testCalURL].Color)
}

func TestUpdateCalendarRejectsEmptyPatch(t *testing.T) {
	client := newTestClient(&mockTransport{})
	err := client.UpdateCalendar(context.Background(), testCalURL, CalendarChanges{})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteCalendarEvictsEvents(t *testing.T) {
	transport := &mockTransport{
		deleteFn: func(url, etag string) error { return nil },
	}
	client := newTestClient(transport)
	client.events[testCalURL+"a.ics"] = &adapter.Object{URL: testCalURL + "a.ics", CalendarURL: testCalURL}
	client.events["https://cal.example.com/home/user/other/b.ics"] = &adapter.Object{
		URL:         "https://cal.example.com/home/user/other/b.ics",
		CalendarURL: "https://cal.example.com/home/user/other/",
	}

	err := client.DeleteCalendar(context.Background(), testCalURL)
	require.NoError(t, err)

	assert.NotContains(t, client.calendars, testCalURL)
	assert.NotContains(t, client.events, testCalURL+"a.ics")
	assert.Contains(t, client.events, "https://cal.example.com/home/user/other/b.ics")
}

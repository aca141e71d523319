package davclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openchrono/calbridge/adapter"
	"github.com/openchrono/calbridge/internal/httpclient"
)

// mockTransport implements httpclient.Wrapper with canned responses set
// per test. Unset verbs fail; request bodies are recorded for assertions.
type mockTransport struct {
	propfindFn   func(url string, depth int, props []string) (*httpclient.PropfindResponse, error)
	reportFn     func(url string, depth int, body string) (*httpclient.ReportResponse, error)
	reportRawFn  func(url string, depth int, body string) (string, error)
	getFn        func(url string) (string, string, error)
	putFn        func(url, etag string, data []byte) (string, error)
	deleteFn     func(url, etag string) error
	postFn       func(url, contentType, body string) (int, string, error)
	proppatchFn  func(url, body string) error
	mkcalendarFn func(url, body string) error

	propfindCalls []string
	reportBodies  []string
	putURLs       []string
	putEtags      []string
	putBodies     []string
	deleteURLs    []string
	deleteEtags   []string
	postURLs      []string
	postBodies    []string
}

func (m *mockTransport) DoPROPFIND(_ context.Context, url string, depth int, props ...string) (*httpclient.PropfindResponse, error) {
	m.propfindCalls = append(m.propfindCalls, url)
	if m.propfindFn == nil {
		return nil, fmt.Errorf("unexpected PROPFIND %s", url)
	}
	return m.propfindFn(url, depth, props)
}

func (m *mockTransport) DoPROPPATCH(_ context.Context, url string, body string) error {
	if m.proppatchFn == nil {
		return fmt.Errorf("unexpected PROPPATCH %s", url)
	}
	return m.proppatchFn(url, body)
}

func (m *mockTransport) DoMKCALENDAR(_ context.Context, url string, body string) error {
	if m.mkcalendarFn == nil {
		return fmt.Errorf("unexpected MKCALENDAR %s", url)
	}
	return m.mkcalendarFn(url, body)
}

func (m *mockTransport) DoREPORT(_ context.Context, url string, depth int, body string) (*httpclient.ReportResponse, error) {
	m.reportBodies = append(m.reportBodies, body)
	if m.reportFn == nil {
		return nil, fmt.Errorf("unexpected REPORT %s", url)
	}
	return m.reportFn(url, depth, body)
}

func (m *mockTransport) DoREPORTRaw(_ context.Context, url string, depth int, body string) (string, error) {
	m.reportBodies = append(m.reportBodies, body)
	if m.reportRawFn == nil {
		return "", fmt.Errorf("unexpected raw REPORT %s", url)
	}
	return m.reportRawFn(url, depth, body)
}

func (m *mockTransport) DoGET(_ context.Context, url string) (string, string, error) {
	if m.getFn == nil {
		return "", "", fmt.Errorf("unexpected GET %s", url)
	}
	return m.getFn(url)
}

func (m *mockTransport) DoPUT(_ context.Context, url string, etag string, data []byte) (string, error) {
	m.putURLs = append(m.putURLs, url)
	m.putEtags = append(m.putEtags, etag)
	m.putBodies = append(m.putBodies, string(data))
	if m.putFn == nil {
		return "", fmt.Errorf("unexpected PUT %s", url)
	}
	return m.putFn(url, etag, data)
}

func (m *mockTransport) DoDELETE(_ context.Context, url string, etag string) error {
	m.deleteURLs = append(m.deleteURLs, url)
	m.deleteEtags = append(m.deleteEtags, etag)
	if m.deleteFn == nil {
		return fmt.Errorf("unexpected DELETE %s", url)
	}
	return m.deleteFn(url, etag)
}

func (m *mockTransport) DoPOST(_ context.Context, url string, contentType string, body string) (int, string, error) {
	m.postURLs = append(m.postURLs, url)
	m.postBodies = append(m.postBodies, body)
	if m.postFn == nil {
		return 0, "", fmt.Errorf("unexpected POST %s", url)
	}
	return m.postFn(url, contentType, body)
}

const (
	testHome    = "https://cal.example.com/home/user/"
	testOutbox  = "https://cal.example.com/home/user/outbox/"
	testNotify  = "https://cal.example.com/home/user/notifications/"
	testCalURL  = "https://cal.example.com/home/user/work/"
	testZone    = "Europe/Paris"
	testInstant = "2026-01-15T12:00:00Z"
)

// newTestClient wires a client around the mock with one cached calendar.
func newTestClient(transport *mockTransport) *Client {
	converter := adapter.NewConverter(testZone)
	converter.Now = func() time.Time {
		t, _ := time.Parse(time.RFC3339, testInstant)
		return t
	}
	client := NewClient(transport, converter, nil, &Account{
		ServerURL:       "https://cal.example.com/",
		Username:        "user@example.com",
		PrincipalURL:    "https://cal.example.com/principals/user/",
		HomeURL:         testHome,
		ScheduleOutbox:  testOutbox,
		NotificationURL: testNotify,
	})
	client.calendars[testCalURL] = &Calendar{URL: testCalURL, Name: "Work", Color: "#0055ff"}
	return client
}

// ics converts a readable fixture to the CRLF line endings the decoder
// expects.
func ics(s string) string {
	return strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n")
}

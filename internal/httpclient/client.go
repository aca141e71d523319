// Package httpclient wraps net/http with the WebDAV verbs the CalDAV
// client needs. It owns header discipline (Depth, If-Match, content types)
// and multistatus response parsing; request bodies are built elsewhere.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Wrapper is the WebDAV transport surface consumed by the client layer.
type Wrapper interface {
	DoPROPFIND(ctx context.Context, url string, depth int, props ...string) (*PropfindResponse, error)
	DoPROPPATCH(ctx context.Context, url string, body string) error
	DoMKCALENDAR(ctx context.Context, url string, body string) error
	DoREPORT(ctx context.Context, url string, depth int, body string) (*ReportResponse, error)
	// DoREPORTRaw is for reports answered with a plain body instead of a
	// multistatus, such as free-busy-query.
	DoREPORTRaw(ctx context.Context, url string, depth int, body string) (string, error)
	DoGET(ctx context.Context, url string) (body string, etag string, err error)
	DoPUT(ctx context.Context, url string, etag string, data []byte) (newEtag string, err error)
	DoDELETE(ctx context.Context, url string, etag string) error
	DoPOST(ctx context.Context, url string, contentType string, body string) (status int, respBody string, err error)
}

// StatusError reports a non-success HTTP status, with the response body
// where the server supplied one.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger
}

// NewWrapper creates a transport wrapper resolving relative URLs against
// baseURL. The logger is required.
func NewWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (Wrapper, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClientWrapper{client: client, baseURL: baseURL, logger: logger}, nil
}

// resolveURL resolves a URL string against the base URL
func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// newRequest builds a request with the URL resolved against the base.
func (c *httpClientWrapper) newRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Request, error) {
	resolvedURL, err := c.resolveURL(urlStr)
	if err != nil {
		c.logger.Debug("failed to resolve URL", "url", urlStr, "error", err)
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, resolvedURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	return req, nil
}

// statusError drains the response body into a StatusError.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}

package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// DoPUT uploads a calendar object. When etag is non-empty it is sent as an
// If-Match precondition so a concurrent change fails instead of being
// overwritten.
func (c *httpClientWrapper) DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (newEtag string, err error) {
	c.logger.Debug("starting PUT request",
		"url", urlStr,
		"etag", etag,
		"data_length", len(data))

	req, err := c.newRequest(ctx, http.MethodPut, urlStr, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return "", fmt.Errorf("failed to send PUT request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return "", statusError(resp)
	}

	newEtag = resp.Header.Get("ETag")
	c.logger.Debug("PUT request complete",
		"status", resp.Status,
		"new_etag", newEtag)
	return newEtag, nil
}

// DoGET fetches the raw body and ETag of a resource.
func (c *httpClientWrapper) DoGET(ctx context.Context, urlStr string) (body string, etag string, err error) {
	c.logger.Debug("starting GET request", "url", urlStr)

	req, err := c.newRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return "", "", fmt.Errorf("failed to send GET request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusOK {
		return "", "", statusError(resp)
	}

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(resp.Body); err != nil {
		return "", "", fmt.Errorf("failed to read GET response: %w", err)
	}

	etag = resp.Header.Get("ETag")
	c.logger.Debug("GET request complete", "etag", etag, "body_length", data.Len())
	return data.String(), etag, nil
}

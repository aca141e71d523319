package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DoPOST sends a POST with the given content type. Sharing and scheduling
// flows inspect the status and body themselves, so both are returned for
// any 2xx response.
func (c *httpClientWrapper) DoPOST(ctx context.Context, urlStr string, contentType string, body string) (int, string, error) {
	c.logger.Debug("starting POST request",
		"url", urlStr,
		"content_type", contentType,
		"body_length", len(body))

	req, err := c.newRequest(ctx, http.MethodPost, urlStr, strings.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return 0, "", fmt.Errorf("failed to send POST request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, "", statusError(resp)
	}

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read POST response: %w", err)
	}

	c.logger.Debug("POST request complete", "status", resp.Status)
	return resp.StatusCode, data.String(), nil
}

// DoPROPPATCH applies a property update to a collection.
func (c *httpClientWrapper) DoPROPPATCH(ctx context.Context, urlStr string, body string) error {
	c.logger.Debug("starting PROPPATCH request", "url", urlStr)

	req, err := c.newRequest(ctx, "PROPPATCH", urlStr, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return fmt.Errorf("failed to send PROPPATCH request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	c.logger.Debug("PROPPATCH request complete", "status", resp.Status)
	return nil
}

// DoMKCALENDAR creates a calendar collection at the given URL.
func (c *httpClientWrapper) DoMKCALENDAR(ctx context.Context, urlStr string, body string) error {
	c.logger.Debug("starting MKCALENDAR request", "url", urlStr)

	req, err := c.newRequest(ctx, "MKCALENDAR", urlStr, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return fmt.Errorf("failed to send MKCALENDAR request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	c.logger.Debug("MKCALENDAR request complete", "status", resp.Status)
	return nil
}

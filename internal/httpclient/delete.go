package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// DoDELETE sends a DELETE request with If-Match header for optimistic locking
func (c *httpClientWrapper) DoDELETE(ctx context.Context, urlStr string, etag string) error {
	c.logger.Debug("starting DELETE request",
		"url", urlStr,
		"etag", etag)

	req, err := c.newRequest(ctx, http.MethodDelete, urlStr, nil)
	if err != nil {
		return err
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return fmt.Errorf("failed to send DELETE request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	c.logger.Debug("DELETE request complete", "status", resp.Status)
	return nil
}

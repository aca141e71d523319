package httpclient

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ReportResponse represents a parsed REPORT multistatus.
type ReportResponse struct {
	// SyncToken is set on sync-collection reports.
	SyncToken string
	Responses []ReportEntry
}

// ReportEntry is one resource in a REPORT multistatus.
type ReportEntry struct {
	Href         string
	Status       string
	ETag         string
	CalendarData string
	// DisplayName and PrincipalURL are set on principal-property-search
	// reports.
	DisplayName  string
	PrincipalURL string
}

// DoREPORT executes a CalDAV REPORT request with a pre-built XML body.
func (c *httpClientWrapper) DoREPORT(ctx context.Context, urlStr string, depth int, body string) (*ReportResponse, error) {
	c.logger.Debug("starting REPORT request",
		"url", urlStr,
		"depth", depth)

	req, err := c.newRequest(ctx, "REPORT", urlStr, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", fmt.Sprintf("%d", depth))

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return nil, fmt.Errorf("failed to send REPORT request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("received response", "status", resp.Status)

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusError(resp)
	}

	var multiStatus multistatusXML
	if err := xml.NewDecoder(resp.Body).Decode(&multiStatus); err != nil {
		c.logger.Debug("failed to decode response", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := ReportResponse{SyncToken: multiStatus.SyncToken}
	for _, response := range multiStatus.Responses {
		entry := ReportEntry{
			Href:   response.Href,
			Status: response.Status,
		}
		for _, propstat := range response.Propstat {
			if !strings.Contains(propstat.Status, "200") {
				continue
			}
			entry.Status = propstat.Status
			entry.ETag = propstat.Prop.ETag
			entry.CalendarData = propstat.Prop.CalendarData
			if propstat.Prop.DisplayName != nil {
				entry.DisplayName = *propstat.Prop.DisplayName
			}
			entry.PrincipalURL = propstat.Prop.PrincipalURL.Href
		}
		result.Responses = append(result.Responses, entry)
	}

	c.logger.Debug("REPORT request complete",
		"response_count", len(result.Responses))
	return &result, nil
}

// DoREPORTRaw executes a REPORT whose response is a plain entity body
// rather than a multistatus, as with free-busy-query.
func (c *httpClientWrapper) DoREPORTRaw(ctx context.Context, urlStr string, depth int, body string) (string, error) {
	c.logger.Debug("starting raw REPORT request", "url", urlStr, "depth", depth)

	req, err := c.newRequest(ctx, "REPORT", urlStr, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", fmt.Sprintf("%d", depth))

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "error", err)
		return "", fmt.Errorf("failed to send REPORT request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}

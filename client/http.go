package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"hubgraph/types"
)

// doJSONRequest performs a request and decodes a JSON response into result.
// Transport failures and unexpected status codes wrap types.ErrSourceUnavailable;
// undecodable bodies wrap types.ErrSourceProtocol. If result is nil the body is discarded.
func (c *HubClient) doJSONRequest(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, result)
}

// do sends the request with an already-encoded body
func (c *HubClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, result interface{}) error {
	url := fmt.Sprintf("%s%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send request: %v", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: API returned %d: %s", types.ErrSourceUnavailable, resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			// a body cut short by a deadline is a transport problem, not a malformed response
			if ctx.Err() != nil {
				return fmt.Errorf("%w: failed to read response: %v", types.ErrSourceUnavailable, err)
			}
			return fmt.Errorf("%w: failed to decode response: %v", types.ErrSourceProtocol, err)
		}
	}

	return nil
}

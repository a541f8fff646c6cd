package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"hubgraph/types"
)

// APIClient is a thin HTTP client for the hubgraph API
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// deadlines come from each command's context
		client: &http.Client{},
	}
}

// GetJob fetches the current status of a job
func (c *APIClient) GetJob(ctx context.Context, jobID string) (*types.JobStatus, error) {
	var status types.JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, http.StatusOK, &status); err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &status, nil
}

// StartJob starts a job for an existing hub and returns its id
func (c *APIClient) StartJob(ctx context.Context, req types.JobRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, http.StatusAccepted, &resp); err != nil {
		return "", fmt.Errorf("failed to start job: %w", err)
	}
	return resp.JobID, nil
}

// CancelJob signals a job's stop token
func (c *APIClient) CancelJob(ctx context.Context, jobID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(jobID), nil, http.StatusAccepted, nil); err != nil {
		return fmt.Errorf("failed to stop job: %w", err)
	}
	return nil
}

// ExpandNode requests follow-up items for a node
func (c *APIClient) ExpandNode(ctx context.Context, nodeID string) ([]types.Item, error) {
	var items []types.Item
	if err := c.do(ctx, http.MethodPost, "/api/nodes/"+url.PathEscape(nodeID)+"/expand", nil, http.StatusOK, &items); err != nil {
		return nil, fmt.Errorf("failed to expand node: %w", err)
	}
	return items, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, payload interface{}, want int, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"hubgraph/types"
)

// FetchItems returns the full cumulative list of nodes produced so far for a hub.
// GET /hubs/{hubID}/nodes
func (c *HubClient) FetchItems(ctx context.Context, hubID string) ([]types.Item, error) {
	var items []types.Item
	path := fmt.Sprintf("/hubs/%s/nodes", url.PathEscape(hubID))
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// StartSession uploads a dataset and creates a hub, optionally inside an existing session.
// POST /session/start (multipart: file, session_id)
func (c *HubClient) StartSession(ctx context.Context, filename string, file io.Reader, sessionID string) (types.SessionResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return types.SessionResponse{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return types.SessionResponse{}, fmt.Errorf("failed to copy upload: %w", err)
	}
	if sessionID != "" {
		if err := w.WriteField("session_id", sessionID); err != nil {
			return types.SessionResponse{}, fmt.Errorf("failed to write session_id: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return types.SessionResponse{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	var resp types.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/session/start", &buf, w.FormDataContentType(), &resp); err != nil {
		return types.SessionResponse{}, fmt.Errorf("start session: %w", err)
	}
	if resp.Hub == "" {
		return types.SessionResponse{}, fmt.Errorf("%w: session response has no hub id", types.ErrSourceProtocol)
	}
	return resp, nil
}

// ExpandNode asks the back-end to generate level-two children for a node.
// POST /l2nodes?l1_node_id={nodeID}
func (c *HubClient) ExpandNode(ctx context.Context, nodeID string) ([]types.Item, error) {
	var items []types.Item
	path := "/l2nodes?l1_node_id=" + url.QueryEscape(nodeID)
	if err := c.doJSONRequest(ctx, http.MethodPost, path, nil, &items); err != nil {
		return nil, fmt.Errorf("expand node %s: %w", nodeID, err)
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// validateItems rejects items the reconciler cannot key on
func validateItems(items []types.Item) error {
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", types.ErrSourceProtocol, i)
		}
	}
	return nil
}

package client

import (
	"net/http"
	"os"
	"strings"
	"time"
)

// HubClient talks to the hub back-end that produces nodes for an uploaded dataset
type HubClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHubClient creates a new hub back-end client
func NewHubClient(baseURL string) *HubClient {
	if baseURL == "" {
		baseURL = getEnvOrDefault("API_URL", "http://localhost:8001")
	}
	return &HubClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports)
func (c *HubClient) WithHTTPClient(hc *http.Client) *HubClient {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured back-end URL
func (c *HubClient) BaseURL() string {
	return c.baseURL
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

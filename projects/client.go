package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client reads the project list from a relay's GET /api/projects.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the relay at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves the project list once.
func (c *Client) Fetch(ctx context.Context) ([]Project, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/projects", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// resp.Status already reads "500 Internal Server Error".
		return nil, fmt.Errorf("failed to fetch projects: %s", resp.Status)
	}

	var list []Project
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	if list == nil {
		list = []Project{}
	}
	return list, nil
}

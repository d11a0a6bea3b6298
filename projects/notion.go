package projects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fbarrios/folio/logger"
)

var plog = logger.With("component", "projects")

const (
	notionVersion     = "2022-06-28"
	defaultNotionBase = "https://api.notion.com/v1"
	notionPageSize    = 100
	// maxNotionPages bounds pagination against a misbehaving cursor.
	maxNotionPages = 20
	maxNotionBody  = 8 << 20
)

// ErrNotConfigured is returned when the token or database id is missing.
var ErrNotConfigured = errors.New("Notion configuration missing")

// Notion queries one Notion database.
type Notion struct {
	token      string
	databaseID string
	apiBase    string
	httpClient *http.Client
}

// NewNotion builds a Notion client. An empty apiBase uses the public API.
func NewNotion(token, databaseID, apiBase string) *Notion {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = defaultNotionBase
	}
	return &Notion{
		token:      strings.TrimSpace(token),
		databaseID: strings.TrimSpace(databaseID),
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether both credentials are present.
func (n *Notion) Configured() bool {
	return n != nil && n.token != "" && n.databaseID != ""
}

// Projects queries the database, following pagination, and normalizes every
// page.
func (n *Notion) Projects(ctx context.Context) ([]Project, error) {
	if !n.Configured() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	out := []Project{}
	cursor := ""
	for page := 0; page < maxNotionPages; page++ {
		data, err := n.query(ctx, cursor)
		if err != nil {
			return nil, err
		}
		doc := gjson.ParseBytes(data)
		out = append(out, NormalizeAll(doc.Get("results"))...)

		if !doc.Get("has_more").Bool() {
			break
		}
		cursor = doc.Get("next_cursor").String()
		if cursor == "" {
			break
		}
	}

	plog.Info("notion query finished", "projects", len(out), "latencyMs", time.Since(start).Milliseconds())
	return out, nil
}

func (n *Notion) query(ctx context.Context, cursor string) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "page_size", notionPageSize)
	if err != nil {
		return nil, err
	}
	if cursor != "" {
		if body, err = sjson.SetBytes(body, "start_cursor", cursor); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/databases/%s/query", n.apiBase, n.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxNotionBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read notion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Notion API returned %d: %s", resp.StatusCode, string(data))
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("notion returned invalid JSON")
	}
	return data, nil
}

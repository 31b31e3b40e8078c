// Package notion is a minimal client for the parts of the Notion API quill
// uses. Credentials are explicit per-call parameters so one client instance
// can serve every workspace without rebinding shared state.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2025-09-03"

	// PropSourceLink is the page property that ties a document back to the
	// thread it was generated from. The upsert rule keys on it.
	PropSourceLink = "SlackLink"
	PropName       = "Name"
	PropTags       = "Tags"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
}

// SetTestBaseURL points the client at a fake server.
func (c *Client) SetTestBaseURL(url string) {
	c.baseURL = url
}

// Properties is a page property payload keyed by property name.
type Properties map[string]any

func TitleProperty(text string) any {
	return map[string]any{"title": []RichText{{Text: TextContent{Content: text}}}}
}

func MultiSelectProperty(names []string) any {
	opts := make([]map[string]string, 0, len(names))
	for _, n := range names {
		opts = append(opts, map[string]string{"name": n})
	}
	return map[string]any{"multi_select": opts}
}

func URLProperty(url string) any {
	return map[string]any{"url": url}
}

// Page is the subset of a page object quill reads back.
type Page struct {
	ID         string                  `json:"id"`
	URL        string                  `json:"url"`
	Archived   bool                    `json:"archived"`
	Properties map[string]PageProperty `json:"properties"`
}

type PageProperty struct {
	Type        string     `json:"type"`
	URL         string     `json:"url"`
	Title       []RichText `json:"title"`
	MultiSelect []struct {
		Name string `json:"name"`
	} `json:"multi_select"`
}

// SourceLink reads the thread link property, empty when unset.
func (p *Page) SourceLink() string {
	if p == nil {
		return ""
	}
	return p.Properties[PropSourceLink].URL
}

// Database identifies a queryable database surfaced by search.
type Database struct {
	ID          string
	Title       string
	DataSources []string
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, token, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("notion %s %s: %d %s: %s", method, path, resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("notion %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// CreatePage creates a page under databaseID with the given properties and
// body blocks.
func (c *Client) CreatePage(ctx context.Context, token, databaseID string, props Properties, children []Block) (*Page, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": props,
	}
	if len(children) > 0 {
		body["children"] = children
	}

	var page Page
	if err := c.do(ctx, token, http.MethodPost, "/v1/pages", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) RetrievePage(ctx context.Context, token, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, token, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdatePageProperties(ctx context.Context, token, pageID string, props Properties) error {
	return c.do(ctx, token, http.MethodPatch, "/v1/pages/"+pageID, map[string]any{"properties": props}, nil)
}

// ArchivePage soft-deletes a page; it stays restorable from Notion's trash.
func (c *Client) ArchivePage(ctx context.Context, token, pageID string) error {
	return c.do(ctx, token, http.MethodPatch, "/v1/pages/"+pageID, map[string]any{"archived": true}, nil)
}

func (c *Client) ListChildren(ctx context.Context, token, blockID string) ([]Block, error) {
	var out struct {
		Results []Block `json:"results"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/v1/blocks/"+blockID+"/children", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) DeleteBlock(ctx context.Context, token, blockID string) error {
	return c.do(ctx, token, http.MethodDelete, "/v1/blocks/"+blockID, nil, nil)
}

func (c *Client) AppendChildren(ctx context.Context, token, blockID string, children []Block) error {
	return c.do(ctx, token, http.MethodPatch, "/v1/blocks/"+blockID+"/children", map[string]any{"children": children}, nil)
}

// ReplaceChildren swaps the full body of a page: existing blocks are deleted
// one by one, then the new blocks are appended.
func (c *Client) ReplaceChildren(ctx context.Context, token, pageID string, children []Block) error {
	existing, err := c.ListChildren(ctx, token, pageID)
	if err != nil {
		return fmt.Errorf("list existing blocks: %w", err)
	}
	for _, block := range existing {
		if err := c.DeleteBlock(ctx, token, block.ID); err != nil {
			return fmt.Errorf("delete block %s: %w", block.ID, err)
		}
	}
	if err := c.AppendChildren(ctx, token, pageID, children); err != nil {
		return fmt.Errorf("append blocks: %w", err)
	}
	return nil
}

// FindPageBySourceLink returns the id of the page in databaseID whose source
// link property equals link, or "" when none exists.
func (c *Client) FindPageBySourceLink(ctx context.Context, token, databaseID, link string) (string, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": PropSourceLink,
			"url":      map[string]string{"equals": link},
		},
		"page_size": 1,
	}

	var out struct {
		Results []Page `json:"results"`
	}
	if err := c.do(ctx, token, http.MethodPost, "/v1/databases/"+databaseID+"/query", body, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", nil
	}
	return out.Results[0].ID, nil
}

// QueryDataSourceByTag returns the pages in a data source carrying the given
// multi-select tag.
func (c *Client) QueryDataSourceByTag(ctx context.Context, token, dataSourceID, tag string) ([]Page, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property":     PropTags,
			"multi_select": map[string]string{"contains": tag},
		},
	}

	var out struct {
		Results []Page `json:"results"`
	}
	if err := c.do(ctx, token, http.MethodPost, "/v1/data_sources/"+dataSourceID+"/query", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ListDatabases searches for every database the token can reach.
func (c *Client) ListDatabases(ctx context.Context, token string) ([]Database, error) {
	body := map[string]any{
		"filter":    map[string]string{"value": "database", "property": "object"},
		"page_size": 100,
	}

	var out struct {
		Results []struct {
			ID    string     `json:"id"`
			Title []RichText `json:"title"`
		} `json:"results"`
	}
	if err := c.do(ctx, token, http.MethodPost, "/v1/search", body, &out); err != nil {
		return nil, err
	}

	dbs := make([]Database, 0, len(out.Results))
	for _, r := range out.Results {
		title := "Untitled Database"
		if len(r.Title) > 0 {
			title = firstText(r.Title)
		}
		dbs = append(dbs, Database{ID: r.ID, Title: title})
	}
	return dbs, nil
}

// RetrieveDatabase fetches a database, including its data source ids.
func (c *Client) RetrieveDatabase(ctx context.Context, token, databaseID string) (*Database, error) {
	var out struct {
		ID          string     `json:"id"`
		Title       []RichText `json:"title"`
		DataSources []struct {
			ID string `json:"id"`
		} `json:"data_sources"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/v1/databases/"+databaseID, nil, &out); err != nil {
		return nil, err
	}

	db := &Database{ID: out.ID, Title: firstText(out.Title)}
	for _, ds := range out.DataSources {
		db.DataSources = append(db.DataSources, ds.ID)
	}
	return db, nil
}

func firstText(spans []RichText) string {
	if len(spans) == 0 {
		return ""
	}
	if spans[0].PlainText != "" {
		return spans[0].PlainText
	}
	return spans[0].Text.Content
}

// IsJSONCodeBlock reports whether b is a code block holding JSON content, the
// shape the recovery sweep looks for in repaired artifacts.
func IsJSONCodeBlock(b Block) bool {
	return b.Type == "code" && b.Code != nil && strings.EqualFold(b.Code.Language, "json")
}

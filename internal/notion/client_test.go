package notion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(srvURL string) *Client {
	c := NewClient(discardLogger())
	c.SetTestBaseURL(srvURL)
	return c
}

func TestCreatePageSendsAuthAndVersion(t *testing.T) {
	var gotAuth, gotVersion, gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "url": "https://notion.test/p1"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	props := Properties{PropName: TitleProperty("A Decision")}
	page, err := c.CreatePage(context.Background(), "secret-token", "db-1", props, []Block{ParagraphText("body")})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}

	if page.ID != "p1" || page.URL != "https://notion.test/p1" {
		t.Errorf("page = %+v", page)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotVersion != apiVersion {
		t.Errorf("Notion-Version = %q", gotVersion)
	}
	if gotPath != "/v1/pages" {
		t.Errorf("path = %q", gotPath)
	}
	parent, _ := gotBody["parent"].(map[string]any)
	if parent["database_id"] != "db-1" {
		t.Errorf("parent = %v", gotBody["parent"])
	}
	if _, ok := gotBody["children"]; !ok {
		t.Error("expected children in request body")
	}
}

func TestFindPageBySourceLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter struct {
				Property string `json:"property"`
				URL      struct {
					Equals string `json:"equals"`
				} `json:"url"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Filter.Property != PropSourceLink {
			t.Errorf("filter property = %q", body.Filter.Property)
		}

		results := []any{}
		if body.Filter.URL.Equals == "https://slack.com/archives/C1/p1" {
			results = append(results, map[string]any{"id": "p-existing"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	id, err := c.FindPageBySourceLink(context.Background(), "tok", "db-1", "https://slack.com/archives/C1/p1")
	if err != nil {
		t.Fatalf("FindPageBySourceLink() error = %v", err)
	}
	if id != "p-existing" {
		t.Errorf("id = %q", id)
	}

	id, err = c.FindPageBySourceLink(context.Background(), "tok", "db-1", "https://slack.com/archives/C1/p2")
	if err != nil {
		t.Fatalf("FindPageBySourceLink() miss error = %v", err)
	}
	if id != "" {
		t.Errorf("expected empty id on miss, got %q", id)
	}
}

func TestReplaceChildrenDeletesThenAppends(t *testing.T) {
	var deleted []string
	var appended int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/children"):
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]string{
				{"id": "b1"}, {"id": "b2"},
			}})
		case r.Method == http.MethodDelete:
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/v1/blocks/"))
			_ = json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/children"):
			var body struct {
				Children []Block `json:"children"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			appended = len(body.Children)
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.ReplaceChildren(context.Background(), "tok", "page-1", []Block{ParagraphText("new")})
	if err != nil {
		t.Fatalf("ReplaceChildren() error = %v", err)
	}

	if len(deleted) != 2 || deleted[0] != "b1" || deleted[1] != "b2" {
		t.Errorf("deleted = %v", deleted)
	}
	if appended != 1 {
		t.Errorf("appended = %d", appended)
	}
}

func TestListDatabasesDefaultsUntitled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{
			{"id": "db-1", "title": []map[string]any{{"plain_text": "Team ADR Log"}}},
			{"id": "db-2", "title": []any{}},
		}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	dbs, err := c.ListDatabases(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListDatabases() error = %v", err)
	}

	if len(dbs) != 2 {
		t.Fatalf("got %d databases", len(dbs))
	}
	if dbs[0].Title != "Team ADR Log" {
		t.Errorf("title = %q", dbs[0].Title)
	}
	if dbs[1].Title != "Untitled Database" {
		t.Errorf("untitled default = %q", dbs[1].Title)
	}
}

func TestAPIErrorSurfacesCodeAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "object_not_found",
			"message": "Could not find database",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.RetrievePage(context.Background(), "tok", "p-missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "object_not_found") || !strings.Contains(err.Error(), "Could not find database") {
		t.Errorf("error = %v", err)
	}
}

func TestIsJSONCodeBlock(t *testing.T) {
	if !IsJSONCodeBlock(Code("{}", "json")) {
		t.Error("json code block not recognised")
	}
	if !IsJSONCodeBlock(Code("{}", "JSON")) {
		t.Error("language match must be case-insensitive")
	}
	if IsJSONCodeBlock(Code("{}", "markdown")) {
		t.Error("markdown block misrecognised")
	}
	if IsJSONCodeBlock(ParagraphText("{}")) {
		t.Error("paragraph misrecognised")
	}
}

// Package notiontest is an in-memory fake of the Notion API surface quill
// talks to, for use in package tests.
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/quill/internal/notion"
)

// Database is a fake database registered with the server.
type Database struct {
	ID           string
	Title        string
	DataSourceID string
}

// Page is the stored state of a fake page.
type Page struct {
	ID         string
	URL        string
	DatabaseID string
	Archived   bool
	Properties map[string]json.RawMessage
	Children   []notion.Block
}

// Server holds fake state and serves the endpoints the real client calls.
type Server struct {
	mu sync.Mutex

	srv       *httptest.Server
	databases []Database
	pages     map[string]*Page
	pageOrder []string
	nextID    int

	// FailDatabases makes page creation and source-link queries against the
	// listed database ids fail with a 500.
	FailDatabases map[string]bool
	// FailTokens makes every call carrying the listed bearer tokens fail 401.
	FailTokens map[string]bool
	// CreateCalls counts page creations, by database id.
	CreateCalls map[string]int
}

func NewServer(databases ...Database) *Server {
	s := &Server{
		databases:     databases,
		pages:         make(map[string]*Page),
		FailDatabases: make(map[string]bool),
		FailTokens:    make(map[string]bool),
		CreateCalls:   make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) URL() string { return s.srv.URL }
func (s *Server) Close()      { s.srv.Close() }

// AddDatabase registers another database after construction.
func (s *Server) AddDatabase(db Database) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases = append(s.databases, db)
}

// SeedPage inserts a page directly, bypassing the HTTP surface.
func (s *Server) SeedPage(databaseID string, props notion.Properties, children []notion.Block) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newPage(databaseID, toRaw(props), children)
}

// Page returns the stored page by id, or nil.
func (s *Server) Page(id string) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[id]
}

// PagesInDatabase returns non-archived pages for a database, in creation order.
func (s *Server) PagesInDatabase(databaseID string) []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Page
	for _, id := range s.pageOrder {
		p := s.pages[id]
		if p.DatabaseID == databaseID && !p.Archived {
			out = append(out, p)
		}
	}
	return out
}

// PropertyURL extracts a url property value from stored page state.
func (p *Page) PropertyURL(name string) string {
	var v struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(p.Properties[name], &v)
	return v.URL
}

// PropertyTitle extracts the title property text from stored page state.
func (p *Page) PropertyTitle(name string) string {
	var v struct {
		Title []notion.RichText `json:"title"`
	}
	_ = json.Unmarshal(p.Properties[name], &v)
	if len(v.Title) == 0 {
		return ""
	}
	return v.Title[0].Text.Content
}

// PropertyTags extracts multi-select option names from stored page state.
func (p *Page) PropertyTags(name string) []string {
	var v struct {
		MultiSelect []struct {
			Name string `json:"name"`
		} `json:"multi_select"`
	}
	_ = json.Unmarshal(p.Properties[name], &v)
	var out []string
	for _, o := range v.MultiSelect {
		out = append(out, o.Name)
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.FailTokens[token] {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "API token is invalid")
		return
	}

	path := r.URL.Path
	switch {
	case path == "/v1/pages" && r.Method == http.MethodPost:
		s.handleCreatePage(w, r)
	case strings.HasPrefix(path, "/v1/pages/") && r.Method == http.MethodGet:
		s.handleGetPage(w, strings.TrimPrefix(path, "/v1/pages/"))
	case strings.HasPrefix(path, "/v1/pages/") && r.Method == http.MethodPatch:
		s.handlePatchPage(w, r, strings.TrimPrefix(path, "/v1/pages/"))
	case strings.HasPrefix(path, "/v1/databases/") && strings.HasSuffix(path, "/query"):
		dbID := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/databases/"), "/query")
		s.handleQueryDatabase(w, r, dbID)
	case strings.HasPrefix(path, "/v1/databases/") && r.Method == http.MethodGet:
		s.handleGetDatabase(w, strings.TrimPrefix(path, "/v1/databases/"))
	case strings.HasPrefix(path, "/v1/data_sources/") && strings.HasSuffix(path, "/query"):
		dsID := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/data_sources/"), "/query")
		s.handleQueryDataSource(w, r, dsID)
	case path == "/v1/search" && r.Method == http.MethodPost:
		s.handleSearch(w)
	case strings.HasPrefix(path, "/v1/blocks/") && strings.HasSuffix(path, "/children") && r.Method == http.MethodGet:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/blocks/"), "/children")
		s.handleListChildren(w, id)
	case strings.HasPrefix(path, "/v1/blocks/") && strings.HasSuffix(path, "/children") && r.Method == http.MethodPatch:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/blocks/"), "/children")
		s.handleAppendChildren(w, r, id)
	case strings.HasPrefix(path, "/v1/blocks/") && r.Method == http.MethodDelete:
		s.handleDeleteBlock(w, strings.TrimPrefix(path, "/v1/blocks/"))
	default:
		writeErr(w, http.StatusNotFound, "object_not_found", "unknown route "+path)
	}
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parent struct {
			DatabaseID string `json:"database_id"`
		} `json:"parent"`
		Properties map[string]json.RawMessage `json:"properties"`
		Children   []notion.Block             `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	s.CreateCalls[body.Parent.DatabaseID]++

	if s.FailDatabases[body.Parent.DatabaseID] || !s.hasDatabase(body.Parent.DatabaseID) {
		writeErr(w, http.StatusNotFound, "object_not_found", "database not shared with integration")
		return
	}

	page := s.newPage(body.Parent.DatabaseID, body.Properties, body.Children)
	writeJSON(w, s.pageJSON(page))
}

func (s *Server) handleGetPage(w http.ResponseWriter, id string) {
	page, ok := s.pages[id]
	if !ok {
		writeErr(w, http.StatusNotFound, "object_not_found", "no page "+id)
		return
	}
	writeJSON(w, s.pageJSON(page))
}

func (s *Server) handlePatchPage(w http.ResponseWriter, r *http.Request, id string) {
	page, ok := s.pages[id]
	if !ok {
		writeErr(w, http.StatusNotFound, "object_not_found", "no page "+id)
		return
	}

	var body struct {
		Archived   *bool                      `json:"archived"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if body.Archived != nil {
		page.Archived = *body.Archived
	}
	for k, v := range body.Properties {
		page.Properties[k] = v
	}
	writeJSON(w, s.pageJSON(page))
}

func (s *Server) handleQueryDatabase(w http.ResponseWriter, r *http.Request, dbID string) {
	if s.FailDatabases[dbID] || !s.hasDatabase(dbID) {
		writeErr(w, http.StatusNotFound, "object_not_found", "database not shared with integration")
		return
	}

	var body struct {
		Filter struct {
			Property string `json:"property"`
			URL      struct {
				Equals string `json:"equals"`
			} `json:"url"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	results := []any{}
	for _, id := range s.pageOrder {
		p := s.pages[id]
		if p.DatabaseID != dbID || p.Archived {
			continue
		}
		if p.PropertyURL(body.Filter.Property) == body.Filter.URL.Equals {
			results = append(results, s.pageJSON(p))
		}
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleQueryDataSource(w http.ResponseWriter, r *http.Request, dsID string) {
	var dbID string
	for _, db := range s.databases {
		if db.DataSourceID == dsID {
			dbID = db.ID
		}
	}
	if dbID == "" {
		writeErr(w, http.StatusNotFound, "object_not_found", "no data source "+dsID)
		return
	}

	var body struct {
		Filter struct {
			Property    string `json:"property"`
			MultiSelect struct {
				Contains string `json:"contains"`
			} `json:"multi_select"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	results := []any{}
	for _, id := range s.pageOrder {
		p := s.pages[id]
		if p.DatabaseID != dbID || p.Archived {
			continue
		}
		for _, tag := range p.PropertyTags(body.Filter.Property) {
			if tag == body.Filter.MultiSelect.Contains {
				results = append(results, s.pageJSON(p))
				break
			}
		}
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleSearch(w http.ResponseWriter) {
	results := []any{}
	for _, db := range s.databases {
		results = append(results, map[string]any{
			"id":    db.ID,
			"title": []map[string]any{{"plain_text": db.Title, "text": map[string]string{"content": db.Title}}},
		})
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleGetDatabase(w http.ResponseWriter, id string) {
	for _, db := range s.databases {
		if db.ID == id {
			writeJSON(w, map[string]any{
				"id":           db.ID,
				"title":        []map[string]any{{"plain_text": db.Title}},
				"data_sources": []map[string]string{{"id": db.DataSourceID}},
			})
			return
		}
	}
	writeErr(w, http.StatusNotFound, "object_not_found", "no database "+id)
}

func (s *Server) handleListChildren(w http.ResponseWriter, pageID string) {
	page, ok := s.pages[pageID]
	if !ok {
		writeErr(w, http.StatusNotFound, "object_not_found", "no page "+pageID)
		return
	}
	writeJSON(w, map[string]any{"results": page.Children})
}

func (s *Server) handleAppendChildren(w http.ResponseWriter, r *http.Request, pageID string) {
	page, ok := s.pages[pageID]
	if !ok {
		writeErr(w, http.StatusNotFound, "object_not_found", "no page "+pageID)
		return
	}

	var body struct {
		Children []notion.Block `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	for _, b := range body.Children {
		b.ID = s.id("b")
		page.Children = append(page.Children, b)
	}
	writeJSON(w, map[string]any{"results": []any{}})
}

func (s *Server) handleDeleteBlock(w http.ResponseWriter, blockID string) {
	for _, page := range s.pages {
		for i, b := range page.Children {
			if b.ID == blockID {
				page.Children = append(page.Children[:i], page.Children[i+1:]...)
				writeJSON(w, map[string]any{})
				return
			}
		}
	}
	writeErr(w, http.StatusNotFound, "object_not_found", "no block "+blockID)
}

func (s *Server) newPage(databaseID string, props map[string]json.RawMessage, children []notion.Block) *Page {
	id := s.id("p")
	page := &Page{
		ID:         id,
		URL:        "https://notion.test/" + id,
		DatabaseID: databaseID,
		Properties: props,
	}
	if page.Properties == nil {
		page.Properties = make(map[string]json.RawMessage)
	}
	for _, b := range children {
		b.ID = s.id("b")
		page.Children = append(page.Children, b)
	}
	s.pages[id] = page
	s.pageOrder = append(s.pageOrder, id)
	return page
}

func (s *Server) pageJSON(p *Page) map[string]any {
	props := make(map[string]json.RawMessage, len(p.Properties))
	for k, v := range p.Properties {
		props[k] = v
	}
	return map[string]any{
		"id":         p.ID,
		"url":        p.URL,
		"archived":   p.Archived,
		"properties": props,
	}
}

func (s *Server) hasDatabase(id string) bool {
	for _, db := range s.databases {
		if db.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func toRaw(props notion.Properties) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(props))
	for k, v := range props {
		raw, _ := json.Marshal(v)
		out[k] = raw
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

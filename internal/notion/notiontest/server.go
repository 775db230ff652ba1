// Package notiontest provides an in-memory Notion API for tests. It serves
// the endpoints used by package notion over TLS, applies property patches the
// way Notion does (absent keys untouched, null clears) and evaluates the
// filter subset postline sends.
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postline/internal/notion"
)

// Token is the integration secret the fake accepts.
const Token = "secret_test"

// Server is a fake Notion API.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	databases map[string][]string
	pages     map[string]*notion.Page
	users     []notion.User
	extra     map[string][]json.RawMessage
	failures  map[string]failure
	calls     map[string]int
	now       time.Time

	// EmailCaseInsensitive makes email filters ignore case, the way a
	// collating backend might.
	EmailCaseInsensitive bool

	// PageSize caps results per page regardless of the requested page_size.
	PageSize int
}

type failure struct {
	status int
	code   string
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		databases: map[string][]string{},
		pages:     map[string]*notion.Page{},
		extra:     map[string][]json.RawMessage{},
		failures:  map[string]failure{},
		calls:     map[string]int{},
		now:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	router := chi.NewRouter()
	router.Use(s.authenticate)
	router.Post("/v1/databases/{id}/query", s.handleQuery)
	router.Get("/v1/pages/{id}", s.handleRetrieve)
	router.Post("/v1/pages", s.handleCreate)
	router.Patch("/v1/pages/{id}", s.handleUpdate)
	router.Get("/v1/users", s.handleUsers)
	s.Server = httptest.NewTLSServer(router)
	t.Cleanup(s.Close)
	return s
}

// Config returns client configuration pointing at the fake.
func (s *Server) Config() notion.Config {
	return notion.Config{
		Token:      Token,
		BaseURL:    s.URL + "/v1",
		HTTPClient: s.Client(),
	}
}

// AddUser registers a workspace user.
func (s *Server) AddUser(user notion.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Object == "" {
		user.Object = "user"
	}
	if user.Type == "" {
		user.Type = "person"
	}
	s.users = append(s.users, user)
}

// Person is shorthand for a person user with an email.
func Person(id, name, email string) notion.User {
	u := notion.User{Object: "user", ID: id, Type: "person", Name: name}
	if email != "" {
		u.Person = &notion.Person{Email: email}
	}
	return u
}

// AddDatabase registers an empty database so that pages can be created in it.
func (s *Server) AddDatabase(databaseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.databases[databaseID]; !ok {
		s.databases[databaseID] = []string{}
	}
}

// AddPage stores a page in a database. Zero CreatedTime is filled from the
// fake clock, which advances one minute per page.
func (s *Server) AddPage(databaseID string, page notion.Page) notion.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(databaseID, page)
}

func (s *Server) insertLocked(databaseID string, page notion.Page) notion.Page {
	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	page.Object = "page"
	page.Parent = notion.Parent{Type: "database_id", DatabaseID: databaseID}
	if page.CreatedTime == "" {
		s.now = s.now.Add(time.Minute)
		page.CreatedTime = s.now.Format(time.RFC3339Nano)
	}
	if page.LastEditedTime == "" {
		page.LastEditedTime = page.CreatedTime
	}
	if page.Properties == nil {
		page.Properties = map[string]notion.PropertyValue{}
	}
	stored := page
	s.pages[page.ID] = &stored
	s.databases[databaseID] = append(s.databases[databaseID], page.ID)
	return stored
}

// AddRawResult appends a raw object to every query of databaseID, after the
// pages. Used to model non-page entries in query results.
func (s *Server) AddRawResult(databaseID string, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[databaseID] = append(s.extra[databaseID], json.RawMessage(raw))
}

// Page returns the stored page.
func (s *Server) Page(id string) (notion.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return notion.Page{}, false
	}
	return *p, true
}

// Fail makes every request whose "METHOD path" starts with prefix fail with
// the given status until Recover is called.
func (s *Server) Fail(prefix string, status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = failure{status: status, code: code}
}

func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]failure{}
}

// Calls counts requests whose "METHOD path" starts with prefix.
func (s *Server) Calls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, count := range s.calls {
		if strings.HasPrefix(key, prefix) {
			n += count
		}
	}
	return n
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls[key]++
		var injected *failure
		for prefix, f := range s.failures {
			if strings.HasPrefix(key, prefix) {
				f := f
				injected = &f
				break
			}
		}
		s.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation.")
			return
		}
		if injected != nil {
			writeError(w, injected.status, injected.code, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	databaseID := chi.URLParam(r, "id")
	var query notion.DatabaseQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.mu.Lock()
	ids, ok := s.databases[databaseID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "object_not_found", fmt.Sprintf("Could not find database with ID: %s.", databaseID))
		return
	}
	var matched []notion.Page
	for _, id := range ids {
		page := *s.pages[id]
		if query.Filter == nil || s.matchLocked(*query.Filter, page) {
			matched = append(matched, page)
		}
	}
	extra := append([]json.RawMessage(nil), s.extra[databaseID]...)
	pageSize := s.PageSize
	s.mu.Unlock()

	sortPages(matched, query.Sorts)
	results := make([]json.RawMessage, 0, len(matched)+len(extra))
	for _, p := range matched {
		encoded, _ := json.Marshal(p)
		results = append(results, encoded)
	}
	results = append(results, extra...)

	start := 0
	if query.StartCursor != "" {
		n, err := strconv.Atoi(query.StartCursor)
		if err != nil || n < 0 || n > len(results) {
			writeError(w, http.StatusBadRequest, "validation_error", "start_cursor is invalid")
			return
		}
		start = n
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	if pageSize > 0 && pageSize < size {
		size = pageSize
	}
	end := min(start+size, len(results))
	resp := map[string]any{
		"object":   "list",
		"results":  results[start:end],
		"has_more": end < len(results),
	}
	if end < len(results) {
		resp["next_cursor"] = strconv.Itoa(end)
	} else {
		resp["next_cursor"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	page, ok := s.Page(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page.")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Parent     notion.Parent     `json:"parent"`
		Properties notion.Properties `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.mu.Lock()
	if _, ok := s.databases[body.Parent.DatabaseID]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}
	page := notion.Page{Properties: map[string]notion.PropertyValue{}}
	s.applyLocked(&page, body.Properties)
	created := s.insertLocked(body.Parent.DatabaseID, page)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Properties notion.Properties `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	s.mu.Lock()
	page, ok := s.pages[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page.")
		return
	}
	s.applyLocked(page, body.Properties)
	s.now = s.now.Add(time.Second)
	page.LastEditedTime = s.now.Format(time.RFC3339Nano)
	updated := *page
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, updated)
}

// applyLocked merges a patch: listed properties are replaced, others kept.
func (s *Server) applyLocked(page *notion.Page, patch notion.Properties) {
	for name, value := range patch {
		for i := range value.Title {
			value.Title[i].PlainText = value.Title[i].Plain()
		}
		for i := range value.RichText {
			value.RichText[i].PlainText = value.RichText[i].Plain()
		}
		for i, person := range value.People {
			for _, u := range s.users {
				if u.ID == person.ID {
					value.People[i] = u
				}
			}
		}
		if prev, ok := page.Properties[name]; ok {
			value.ID = prev.ID
		}
		page.Properties[name] = value
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := append([]notion.User(nil), s.users...)
	pageSize := s.PageSize
	s.mu.Unlock()

	start := 0
	if c := r.URL.Query().Get("start_cursor"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 || n > len(users) {
			writeError(w, http.StatusBadRequest, "validation_error", "start_cursor is invalid")
			return
		}
		start = n
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size <= 0 || size > 100 {
		size = 100
	}
	if pageSize > 0 && pageSize < size {
		size = pageSize
	}
	end := min(start+size, len(users))
	resp := map[string]any{
		"object":      "list",
		"results":     users[start:end],
		"has_more":    end < len(users),
		"next_cursor": nil,
	}
	if end < len(users) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) matchLocked(f notion.Filter, page notion.Page) bool {
	if len(f.And) > 0 {
		for _, sub := range f.And {
			if !s.matchLocked(sub, page) {
				return false
			}
		}
		return true
	}
	if len(f.Or) > 0 {
		for _, sub := range f.Or {
			if s.matchLocked(sub, page) {
				return true
			}
		}
		return false
	}
	prop := page.Properties[f.Property]
	switch {
	case f.People != nil:
		for _, p := range prop.People {
			if p.ID == f.People.Contains {
				return true
			}
		}
		return false
	case f.Status != nil:
		return prop.Status != nil && prop.Status.Name == f.Status.Equals
	case f.Select != nil:
		return prop.Select != nil && prop.Select.Name == f.Select.Equals
	case f.Email != nil:
		if prop.Email == nil {
			return false
		}
		if s.EmailCaseInsensitive {
			return strings.EqualFold(*prop.Email, f.Email.Equals)
		}
		return *prop.Email == f.Email.Equals
	case f.RichText != nil:
		return notion.JoinPlain(prop.RichText) == f.RichText.Equals
	case f.Checkbox != nil:
		return prop.Checkbox == f.Checkbox.Equals
	case f.MultiSelect != nil:
		for _, o := range prop.MultiSelect {
			if o.Name == f.MultiSelect.Contains {
				return true
			}
		}
		return false
	}
	return true
}

func sortPages(pages []notion.Page, sorts []notion.Sort) {
	for i := len(sorts) - 1; i >= 0; i-- {
		s := sorts[i]
		if s.Timestamp == "" {
			continue
		}
		key := func(p notion.Page) time.Time {
			var ts time.Time
			if s.Timestamp == "last_edited_time" {
				ts, _ = p.LastEdited()
			} else {
				ts, _ = p.Created()
			}
			return ts
		}
		sort.SliceStable(pages, func(a, b int) bool {
			if s.Direction == notion.Descending {
				return key(pages[a]).After(key(pages[b]))
			}
			return key(pages[a]).Before(key(pages[b]))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

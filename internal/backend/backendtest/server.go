// ABOUTME: In-memory fake of the Posible backend for tests
// ABOUTME: Serves the REST contract over httptest with cookie sessions and request recording

package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// SessionCookieName is the cookie the fake backend issues on login.
const SessionCookieName = "posible_session"

// Account is a login the fake accepts. User is returned verbatim as the
// session identity.
type Account struct {
	Password string
	User     map[string]any
}

// Request is a recorded inbound request.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Body        []byte
	Cookie      string
}

// Tenant is the in-memory state of one tenant database.
type Tenant struct {
	Users        []map[string]any
	Schedules    []map[string]any
	History      []map[string]any
	Integrations []map[string]any
	Uploads      []Upload
}

// Upload is a recorded CSV import.
type Upload struct {
	Filename   string
	Content    string
	PrimaryKey string
	HasKey     bool
}

type failure struct {
	status int
	body   string
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	// DefaultTenant serves requests whose tenant segment was omitted.
	DefaultTenant string

	mu         sync.Mutex
	accounts   map[string]Account
	sessions   map[string]string
	tenants    map[string]*Tenant
	requests   []Request
	failures   map[string]failure
	nextID     int64
	nextReq    int64
	nextCookie int
}

// New starts a fake backend that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		accounts: make(map[string]Account),
		sessions: make(map[string]string),
		tenants:  make(map[string]*Tenant),
		failures: make(map[string]failure),
		nextID:   1,
		nextReq:  1,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// AddAccount registers a login. user must contain at least "email".
func (s *Server) AddAccount(email, password string, user map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		user = map[string]any{}
	}
	if _, ok := user["email"]; !ok {
		user["email"] = email
	}
	s.accounts[email] = Account{Password: password, User: user}
}

// Tenant returns the state of dbName, creating it when absent.
func (s *Server) Tenant(dbName string) *Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenantLocked(dbName)
}

func (s *Server) tenantLocked(dbName string) *Tenant {
	t, ok := s.tenants[dbName]
	if !ok {
		t = &Tenant{
			Integrations: []map[string]any{
				{"provider": "square", "name": "Square", "description": "Square POS", "connected": false},
				{"provider": "clover", "name": "Clover", "description": "Clover POS", "connected": false},
				{"provider": "toast", "name": "Toast", "description": "Toast POS", "connected": false},
			},
		}
		s.tenants[dbName] = t
	}
	return t
}

// Fail makes every request matching "METHOD /path" answer with status and a
// JSON error body until cleared with Fail(route, 0, "").
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	body, _ := json.Marshal(map[string]any{"success": false, "error": message})
	s.failures[route] = failure{status: status, body: string(body)}
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests reached the fake.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth/session", s.handleSession)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	mux.HandleFunc("GET /api/users", s.tenantScoped(s.handleListUsers))
	mux.HandleFunc("GET /api/users/{db}", s.tenantScoped(s.handleListUsers))
	mux.HandleFunc("POST /api/users/{db}", s.tenantScoped(s.handleCreateUser))
	mux.HandleFunc("DELETE /api/users/{db}/{phone}", s.tenantScoped(s.handleDeleteUser))

	mux.HandleFunc("GET /api/schedules", s.tenantScoped(s.handleListSchedules))
	mux.HandleFunc("GET /api/schedules/{db}", s.tenantScoped(s.handleListSchedules))
	mux.HandleFunc("GET /api/schedules/{db}/{phone}", s.tenantScoped(s.handleListSchedules))
	mux.HandleFunc("POST /api/schedules/{db}", s.tenantScoped(s.handleCreateSchedule))
	mux.HandleFunc("PUT /api/schedules/{db}/{id}", s.tenantScoped(s.handleEditSchedule))
	mux.HandleFunc("DELETE /api/schedules/{db}/{id}", s.tenantScoped(s.handleDeleteSchedule))

	mux.HandleFunc("POST /api/chat/{db}", s.tenantScoped(s.handleChat))
	mux.HandleFunc("GET /api/conversation-history/{db}/{phone}", s.tenantScoped(s.handleHistory))

	mux.HandleFunc("POST /upload_csv/{db}", s.tenantScoped(s.handleUpload))

	mux.HandleFunc("GET /api/integrations/{db}", s.tenantScoped(s.handleListIntegrations))
	mux.HandleFunc("POST /api/integrations/{db}/{provider}/connect", s.tenantScoped(s.handleConnect))
	mux.HandleFunc("DELETE /api/integrations/{db}/{provider}", s.tenantScoped(s.handleDisconnect))
	mux.HandleFunc("GET /api/integrations/{db}/{provider}/test", s.tenantScoped(s.handleTestIntegration))
	mux.HandleFunc("POST /api/integrations/{db}/toast/api-key", s.tenantScoped(s.handleToastKey))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
			Cookie:      r.Header.Get("Cookie"),
		})
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func ok(extra map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// sessionUser returns the account bound to the request cookie.
func (s *Server) sessionUser(r *http.Request) (map[string]any, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, found := s.sessions[c.Value]
	if !found {
		return nil, false
	}
	return s.accounts[email].User, true
}

type tenantHandler func(w http.ResponseWriter, r *http.Request, t *Tenant)

// tenantScoped authenticates the session and checks that the path tenant
// belongs to it, the way the real backend scopes at the routing layer.
func (s *Server) tenantScoped(next tenantHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, authed := s.sessionUser(r)
		if !authed {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		db := r.PathValue("db")
		if db == "" {
			db = s.DefaultTenant
		} else if own, _ := user["db_name"].(string); own != "" && own != db {
			writeError(w, http.StatusForbidden, "Access denied for this database")
			return
		}
		t := s.Tenant(db)
		s.mu.Lock()
		defer s.mu.Unlock()
		next(w, r, t)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user, authed := s.sessionUser(r)
	if !authed {
		writeJSON(w, http.StatusOK, ok(map[string]any{"authenticated": false}))
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"authenticated": true, "user": user}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acct, found := s.accounts[req.Email]
	if !found || acct.Password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.nextCookie++
	token := fmt.Sprintf("sess-%d", s.nextCookie)
	s.sessions[token] = req.Email
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, ok(map[string]any{"user": acct.User}))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, t *Tenant) {
	users := t.Users
	if users == nil {
		users = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"users": users}))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, t *Tenant) {
	var req struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		IsAdmin     bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Name and phone number are required"})
		return
	}
	for _, u := range t.Users {
		if u["from_number"] == req.PhoneNumber {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "User already exists"})
			return
		}
	}
	t.Users = append(t.Users, map[string]any{"name": req.Name, "from_number": req.PhoneNumber, "is_admin": req.IsAdmin})
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, t *Tenant) {
	phone := r.PathValue("phone")
	for i, u := range t.Users {
		if u["from_number"] == phone {
			t.Users = append(t.Users[:i], t.Users[i+1:]...)
			writeJSON(w, http.StatusOK, ok(nil))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "User not found"})
}

type scheduleBody struct {
	Request      string   `json:"request"`
	ToNumber     string   `json:"to_number"`
	Days         []string `json:"days"`
	Hour         int      `json:"hour"`
	TwilioNumber string   `json:"twilio_number"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request, t *Tenant) {
	phone := r.PathValue("phone")
	out := []map[string]any{}
	for _, sc := range t.Schedules {
		if phone == "" || sc["to_number"] == phone {
			out = append(out, sc)
		}
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"schedules": out}))
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request, t *Tenant) {
	var req scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := s.nextID
	s.nextID++
	t.Schedules = append(t.Schedules, map[string]any{
		"id":            id,
		"query":         req.Request,
		"to_number":     req.ToNumber,
		"day":           strings.Join(req.Days, ","),
		"hour":          req.Hour,
		"twilio_number": req.TwilioNumber,
	})
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) findSchedule(t *Tenant, r *http.Request) int {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return -1
	}
	for i, sc := range t.Schedules {
		if sc["id"] == id {
			return i
		}
	}
	return -1
}

func (s *Server) handleEditSchedule(w http.ResponseWriter, r *http.Request, t *Tenant) {
	i := s.findSchedule(t, r)
	if i < 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Schedule not found"})
		return
	}
	var req scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sc := t.Schedules[i]
	sc["query"] = req.Request
	sc["to_number"] = req.ToNumber
	sc["day"] = strings.Join(req.Days, ",")
	sc["hour"] = req.Hour
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request, t *Tenant) {
	i := s.findSchedule(t, r)
	if i < 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Schedule not found"})
		return
	}
	t.Schedules = append(t.Schedules[:i], t.Schedules[i+1:]...)
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, t *Tenant) {
	var req struct {
		Query      string `json:"query"`
		FromNumber string `json:"from_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Query is required"})
		return
	}
	reply := "echo: " + req.Query
	id := s.nextReq
	s.nextReq++
	t.History = append(t.History,
		map[string]any{"request_id": id, "type": "request", "message": req.Query, "phone": req.FromNumber},
		map[string]any{"request_id": id, "type": "response", "message": reply, "phone": req.FromNumber},
	)
	writeJSON(w, http.StatusOK, ok(map[string]any{"response": reply}))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, t *Tenant) {
	phone := r.PathValue("phone")
	out := []map[string]any{}
	// newest first, like the real backend
	for i := len(t.History) - 1; i >= 0; i-- {
		h := t.History[i]
		if p, _ := h["phone"].(string); p == "" || p == phone {
			out = append(out, map[string]any{"request_id": h["request_id"], "type": h["type"], "message": h["message"]})
		}
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"history": out}))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, t *Tenant) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()
	content, _ := io.ReadAll(f)

	up := Upload{Filename: hdr.Filename, Content: string(content)}
	if vals, found := r.MultipartForm.Value["primary_key"]; found && len(vals) > 0 {
		up.PrimaryKey = vals[0]
		up.HasKey = true
	}
	t.Uploads = append(t.Uploads, up)

	rows := strings.Count(strings.TrimSpace(up.Content), "\n")
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Imported %d rows.", rows)})
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request, t *Tenant) {
	sorted := make([]map[string]any, len(t.Integrations))
	copy(sorted, t.Integrations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fmt.Sprint(sorted[i]["provider"]) < fmt.Sprint(sorted[j]["provider"])
	})
	writeJSON(w, http.StatusOK, ok(map[string]any{"integrations": sorted}))
}

func (s *Server) integration(t *Tenant, provider string) map[string]any {
	for _, in := range t.Integrations {
		if in["provider"] == provider {
			return in
		}
	}
	return nil
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, t *Tenant) {
	provider := r.PathValue("provider")
	in := s.integration(t, provider)
	if in == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Unknown provider"})
		return
	}
	// The OAuth callback is out of band; mark connected right away.
	in["connected"] = true
	in["connected_at"] = "2024-03-05T10:00:00Z"
	in["merchant_id"] = "M-" + provider
	writeJSON(w, http.StatusOK, ok(map[string]any{"auth_url": s.URL + "/oauth/" + provider}))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request, t *Tenant) {
	in := s.integration(t, r.PathValue("provider"))
	if in == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Unknown provider"})
		return
	}
	in["connected"] = false
	delete(in, "connected_at")
	delete(in, "merchant_id")
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request, t *Tenant) {
	in := s.integration(t, r.PathValue("provider"))
	if in == nil || in["connected"] != true {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Integration is not connected"})
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleToastKey(w http.ResponseWriter, r *http.Request, t *Tenant) {
	var req struct {
		APIKey         string  `json:"api_key"`
		RestaurantGUID *string `json:"restaurant_guid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "API key is required"})
		return
	}
	in := s.integration(t, "toast")
	in["connected"] = true
	in["connected_at"] = "2024-03-05T10:00:00Z"
	if req.RestaurantGUID != nil {
		in["merchant_id"] = *req.RestaurantGUID
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

// Package opserver exposes a minimal authenticated HTTP status/control
// surface over a plctag.Registry: list sessions, list/inspect tags, and
// issue a read or write. Grounded on teacher's www/router.go (chi router,
// a protected route group behind an auth middleware, admin-only group
// for mutating routes) and www/auth.go (gorilla/sessions cookie store,
// bcrypt password hashing), narrowed from a full server-rendered SCADA
// web UI (htmx partials, SSE event stream, PLC/MQTT/Valkey/Kafka/rule/
// tagpack CRUD, per-page templates, user management) down to a small
// JSON API: the domain-stack role given to chi+gorilla/sessions here is
// "a status/control API over the registry," not a second core UI.
package opserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"plctag"
	"plctag/session"
)

const (
	sessionName    = "opserver_session"
	sessionUserKey = "username"
)

// User is one operator credential. PasswordHash is a bcrypt hash, never
// a plaintext password.
type User struct {
	Username     string
	PasswordHash string
	Admin        bool
}

// Config is the opserver's user table and cookie-session secret.
type Config struct {
	Users         []User
	SessionSecret string // base64-encoded 32+ byte key; generated if empty
	OpTimeout     time.Duration // default 5s if zero, bounds a triggered read/write
}

func (c Config) opTimeout() time.Duration {
	if c.OpTimeout <= 0 {
		return 5 * time.Second
	}
	return c.OpTimeout
}

func (c Config) findUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

// Server holds the registry and auth state behind the router.
type Server struct {
	reg   *plctag.Registry
	cfg   Config
	store *sessions.CookieStore
}

// NewRouter builds the opserver's chi.Router over reg.
func NewRouter(reg *plctag.Registry, cfg Config) chi.Router {
	s := &Server{reg: reg, cfg: cfg, store: newCookieStore(cfg.SessionSecret)}

	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/sessions", s.handleListSessions)
		r.Get("/api/tags", s.handleListTags)
		r.Get("/api/tags/{id}", s.handleGetTag)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnlyMiddleware)
			r.Post("/api/tags/{id}/read", s.handleReadTag)
			r.Post("/api/tags/{id}/write", s.handleWriteTag)
			r.Post("/api/tags/{id}/abort", s.handleAbortTag)
		})
	})
	return r
}

func newCookieStore(secret string) *sessions.CookieStore {
	var key []byte
	if secret != "" {
		key, _ = base64.StdEncoding.DecodeString(secret)
	}
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) getUser(r *http.Request) (*User, bool) {
	sess, _ := s.store.Get(r, sessionName)
	username, ok := sess.Values[sessionUserKey].(string)
	if !ok || username == "" {
		return nil, false
	}
	u := s.cfg.findUser(username)
	return u, u != nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.getUser(r); !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.getUser(r)
		if !ok || !u.Admin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u := s.cfg.findUser(req.Username)
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[sessionUserKey] = u.Username
	if err := sess.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.store.Get(r, sessionName)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	sess.Save(r, w)
	w.WriteHeader(http.StatusNoContent)
}

type sessionStatus struct {
	Gateway   string `json:"gateway"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	IdleMs    int64  `json:"idle_ms"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.reg.Sessions()
	out := make([]sessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionStatusOf(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func sessionStatusOf(sess *session.Session) sessionStatus {
	return sessionStatus{
		Gateway:   sess.Gateway(),
		State:     sess.State().String(),
		Connected: sess.IsConnected(),
		IdleMs:    sess.IdleFor().Milliseconds(),
	}
}

type tagSummary struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Gateway string `json:"gateway"`
	Status  string `json:"status"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags := s.reg.Tags()
	out := make([]tagSummary, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagSummary{ID: t.ID(), Name: t.Name(), Gateway: t.Gateway(), Status: t.Status().String()})
	}
	writeJSON(w, http.StatusOK, out)
}

type tagDetail struct {
	tagSummary
	ElemSize  int `json:"elem_size"`
	ElemCount int `json:"elem_count"`
	Value     any `json:"value"`
	Type      string `json:"type"`
}

func (s *Server) lookupTag(w http.ResponseWriter, r *http.Request) (*plctag.Tag, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tag id")
		return nil, false
	}
	t, err := s.reg.Lookup(uint32(id))
	if err != nil {
		writeError(w, http.StatusNotFound, "tag not found")
		return nil, false
	}
	return t, true
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTag(w, r)
	if !ok {
		return
	}
	value, typeName := t.ExportValue()
	writeJSON(w, http.StatusOK, tagDetail{
		tagSummary: tagSummary{ID: t.ID(), Name: t.Name(), Gateway: t.Gateway(), Status: t.Status().String()},
		ElemSize:   t.ElemSize(),
		ElemCount:  t.ElemCount(),
		Value:      value,
		Type:       typeName,
	})
}

func (s *Server) handleReadTag(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTag(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r, s.cfg.opTimeout())
	defer cancel()
	if err := t.Read(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleGetTag(w, r)
}

type writeRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleWriteTag(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTag(w, r)
	if !ok {
		return
	}
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := importValue(t, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := contextWithTimeout(r, s.cfg.opTimeout())
	defer cancel()
	if err := t.Write(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleGetTag(w, r)
}

func (s *Server) handleAbortTag(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTag(w, r)
	if !ok {
		return
	}
	if err := t.Abort(); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

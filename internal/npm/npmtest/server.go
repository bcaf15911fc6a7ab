// Package npmtest provides an in-memory control-plane for tests.
package npmtest

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
	"time"

	"github.com/Wikid82/proxybot/internal/npm"
)

const (
	Identity = "admin@example.com"
	Secret   = "changeme"
	Token    = "test-token"
)

// Server is a fake proxy-manager API backed by a map of hosts.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	hosts    map[int]npm.ProxyHost
	calls    map[string]int
	failures map[string]int
	lastBody map[string]json.RawMessage
}

// New starts a fake control-plane. Callers must Close it.
func New() *Server {
	s := &Server{
		nextID:   1,
		hosts:    make(map[int]npm.ProxyHost),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		lastBody: make(map[string]json.RawMessage),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tokens", s.handleTokens)
	mux.HandleFunc("/api/nginx/proxy-hosts", s.handleCollection)
	mux.HandleFunc("/api/nginx/proxy-hosts/", s.handleItem)
	s.Server = httptest.NewServer(mux)
	return s
}

// Seed stores host as if it had been created outside the bot.
func (s *Server) Seed(host npm.ProxyHost) npm.ProxyHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	host.ID = s.nextID
	s.nextID++
	s.hosts[host.ID] = host
	return host
}

// Remove deletes a host behind the bot's back.
func (s *Server) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hosts, id)
}

// Host returns the stored host with id.
func (s *Server) Host(id int) (npm.ProxyHost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	return h, ok
}

// Hosts returns all stored hosts ordered by id.
func (s *Server) Hosts() []npm.ProxyHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]npm.ProxyHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Calls returns how many requests hit method on the proxy-host endpoints,
// or the token endpoint for "TOKEN".
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// FailNext makes the next request with method answer with status.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = status
}

// LastBody returns the raw body of the latest request with method.
func (s *Server) LastBody(method string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody[method]
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls["TOKEN"]++
	status, fail := s.failures["TOKEN"]
	delete(s.failures, "TOKEN")
	s.mu.Unlock()

	if fail {
		writeError(w, status, "forced failure")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Identity string `json:"identity"`
		Secret   string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Identity != Identity || req.Secret != Secret {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":   Token,
		"expires": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
}

// begin records the call and returns a forced failure status, if any.
func (s *Server) begin(r *http.Request) (json.RawMessage, int, bool) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[r.Method]++
	if len(body) > 0 {
		s.lastBody[r.Method] = body
	}
	status, fail := s.failures[r.Method]
	delete(s.failures, r.Method)
	return body, status, fail
}

func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+Token
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	body, status, fail := s.begin(r)
	if fail {
		writeError(w, status, "forced failure")
		return
	}
	if !authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		query := strings.ToLower(r.URL.Query().Get("query"))
		var out []npm.ProxyHost
		for _, h := range s.Hosts() {
			if query == "" || matches(h, query) {
				out = append(out, h)
			}
		}
		if out == nil {
			out = []npm.ProxyHost{}
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req npm.ProxyHostRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		for _, d := range req.DomainNames {
			for _, h := range s.Hosts() {
				if h.HasDomain(d) {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is already in use", d))
					return
				}
			}
		}
		host := s.Seed(fromRequest(0, req))
		writeJSON(w, http.StatusCreated, host)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	body, status, fail := s.begin(r)
	if fail {
		writeError(w, status, "forced failure")
		return
	}
	if !authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/nginx/proxy-hosts/"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, ok := s.Host(id); !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req npm.ProxyHostRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		host := fromRequest(id, req)
		s.mu.Lock()
		s.hosts[id] = host
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, host)
	case http.MethodDelete:
		s.Remove(id)
		writeJSON(w, http.StatusOK, true)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func matches(h npm.ProxyHost, query string) bool {
	for _, d := range h.DomainNames {
		if strings.Contains(strings.ToLower(d), query) {
			return true
		}
	}
	return false
}

func fromRequest(id int, req npm.ProxyHostRequest) npm.ProxyHost {
	return npm.ProxyHost{
		ID:                    id,
		DomainNames:           req.DomainNames,
		ForwardScheme:         req.ForwardScheme,
		ForwardHost:           req.ForwardHost,
		ForwardPort:           req.ForwardPort,
		AccessListID:          req.AccessListID,
		CertificateID:         req.CertificateID,
		Meta:                  req.Meta,
		AdvancedConfig:        req.AdvancedConfig,
		Locations:             req.Locations,
		BlockExploits:         req.BlockExploits,
		CachingEnabled:        req.CachingEnabled,
		AllowWebsocketUpgrade: req.AllowWebsocketUpgrade,
		HTTP2Support:          req.HTTP2Support,
		HSTSEnabled:           req.HSTSEnabled,
		HSTSSubdomains:        req.HSTSSubdomains,
		SSLForced:             req.SSLForced,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": msg},
	})
}

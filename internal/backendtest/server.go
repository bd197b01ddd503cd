// Package backendtest is an in-process stand-in for the taskmate
// backend: the REST endpoints the directory fetcher walks, the join
// endpoint with access-code checking, and a websocket that tests can
// push room events through.
package backendtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

type Server struct {
	httpSrv *httptest.Server

	mu       sync.Mutex
	teams    map[string][]types.Team
	projects map[string][]types.Project
	sessions map[string][]types.Session
	failing  map[string]bool
	joins    []types.JoinRequest
	conns    map[*websocket.Conn]struct{}
}

func NewServer() *Server {
	s := &Server{
		teams:    make(map[string][]types.Team),
		projects: make(map[string][]types.Project),
		sessions: make(map[string][]types.Session),
		failing:  make(map[string]bool),
		conns:    make(map[*websocket.Conn]struct{}),
	}

	r := chi.NewRouter()
	r.Get("/teams/user/{userID}", s.handleTeams)
	r.Get("/projects/team/{teamID}", s.handleProjects)
	r.Get("/poker/sessions/project/{projectID}", s.handleSessions)
	r.Post("/poker/sessions/join", s.handleJoin)
	r.Post("/poker/sessions", s.handleCreate)
	r.Get("/ws", s.handleWS)

	s.httpSrv = httptest.NewServer(r)
	return s
}

func (s *Server) URL() string { return s.httpSrv.URL }

func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws"
}

func (s *Server) Close() {
	s.DropConnections()
	s.httpSrv.Close()
}

// AddTeam registers a team for a user.
func (s *Server) AddTeam(userID string, team types.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[userID] = append(s.teams[userID], team)
}

// AddProject registers a project under a team.
func (s *Server) AddProject(teamID string, project types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[teamID] = append(s.projects[teamID], project)
}

// AddSession registers a session under a project. A non-empty
// SessionCode makes the room code-gated.
func (s *Server) AddSession(projectID string, sess types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[projectID] = append(s.sessions[projectID], sess)
}

// RemoveSession drops a session from its project.
func (s *Server) RemoveSession(projectID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[projectID][:0]
	for _, sess := range s.sessions[projectID] {
		if sess.ID != sessionID {
			kept = append(kept, sess)
		}
	}
	s.sessions[projectID] = kept
}

// FailSessions makes the session listing for one project return 500,
// for partial-failure tests.
func (s *Server) FailSessions(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[projectID] = true
}

// Joins returns every join request received so far.
func (s *Server) Joins() []types.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.JoinRequest(nil), s.joins...)
}

// Broadcast pushes a room event to every connected subscriber.
func (s *Server) Broadcast(ev types.EventMessage) {
	payload, _ := json.Marshal(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		ctx, cancel := timeoutCtx()
		_ = conn.Write(ctx, websocket.MessageText, payload)
		cancel()
	}
}

// DropConnections closes every websocket, simulating a server restart.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close(websocket.StatusGoingAway, "restarting")
		delete(s.conns, conn)
	}
}

// ConnectionCount reports live websocket subscriptions.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	teams := append([]types.Team(nil), s.teams[chi.URLParam(r, "userID")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	projects := append([]types.Project(nil), s.projects[chi.URLParam(r, "teamID")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	s.mu.Lock()
	failing := s.failing[projectID]
	sessions := append([]types.Session(nil), s.sessions[projectID]...)
	s.mu.Unlock()
	if failing {
		writeError(w, http.StatusInternalServerError, "project unavailable")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req types.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	s.joins = append(s.joins, req)
	sess, found := s.findSession(req.SessionID)
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.SessionCode != "" && req.SessionCode != sess.SessionCode {
		writeError(w, http.StatusUnauthorized, "incorrect access code")
		return
	}
	writeJSON(w, http.StatusOK, types.JoinResponse{SessionID: sess.ID, Message: "joined"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	id, err := generateID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	sess := types.Session{
		ID:          id,
		Name:        req.Name,
		Capacity:    req.Capacity,
		Status:      "waiting",
		SessionCode: req.AccessCode,
	}

	s.mu.Lock()
	s.sessions[req.ProjectID] = append(s.sessions[req.ProjectID], sess)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	// First frame is the subscriber's profile handshake.
	ctx, cancel := timeoutCtx()
	_, _, err = conn.Read(ctx)
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "missing handshake")
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	// Subscribers don't send anything after the handshake; read until
	// the connection goes away.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// findSession must be called with s.mu held.
func (s *Server) findSession(id string) (types.Session, bool) {
	for _, sessions := range s.sessions {
		for _, sess := range sessions {
			if sess.ID == id {
				return sess, true
			}
		}
	}
	return types.Session{}, false
}

func generateID() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	id := make([]byte, 8)
	for i := range id {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		id[i] = charset[num.Int64()]
	}
	return string(id), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

func timeoutCtx() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

// Package server exposes navigation sessions over HTTP.
//
// Every session owns one nav.Engine over the shared tree.Model. Requests
// against a session are serialized by the session's own mutex, so sessions
// never block each other. Snapshot changes are pushed to subscribers over
// Server-Sent Events.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/nav"
	"github.com/vanderheijden86/peektree/pkg/tree"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server is the HTTP adapter for navigation sessions.
type Server struct {
	router chi.Router
	log    *slog.Logger
	hub    *Hub

	mu       sync.RWMutex
	tree     *tree.Model
	sessions map[string]*session
}

type session struct {
	id      string
	created time.Time

	mu     sync.Mutex
	engine *nav.Engine
	leaf   *model.LeafSelection // set by the engine's leaf handler
}

// reset points the session at a fresh engine over t. The caller holds
// sess.mu or owns the session exclusively.
func (sess *session) reset(t *tree.Model) {
	sess.engine = nav.New(t,
		nav.WithName(sess.id),
		nav.WithLeafHandler(func(sel model.LeafSelection) {
			sess.leaf = &sel
		}),
	)
}

// New creates a server over t. A nil logger discards request logs.
func New(t *tree.Model, log *slog.Logger) *Server {
	if t == nil {
		panic("server: New called with nil tree")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		log:      log,
		hub:      NewHub(),
		tree:     t,
		sessions: make(map[string]*session),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/levels", s.handleListLevels)
		r.Get("/levels/{index}", s.handleGetLevel)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/sessions/{id}/breadcrumbs", s.handleBreadcrumbs)
		r.Get("/sessions/{id}/events", s.handleEvents)
		r.Post("/sessions/{id}/{op}", s.handleOperation)
	})

	s.router = r
}

// Tree returns the hierarchy currently served.
func (s *Server) Tree() *tree.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// SetTree swaps in a rebuilt hierarchy. Navigation state does not survive a
// reload: every session restarts at the root of the new tree and its
// subscribers receive a reload event.
func (s *Server) SetTree(t *tree.Model) {
	if t == nil {
		return
	}
	s.mu.Lock()
	s.tree = t
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.reset(t)
		snap := sess.engine.Snapshot()
		sess.mu.Unlock()
		s.hub.Publish(sess.id, EventReload, snap)
	}
	s.log.Info("hierarchy reloaded", "sessions", len(sessions), "levels", t.LevelCount())
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close drops every session and disconnects all event subscribers.
func (s *Server) Close() {
	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	s.hub.Stop()
}

func (s *Server) newSession() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	sess := &session{id: id, created: time.Now()}
	sess.reset(s.tree)
	s.sessions[id] = sess
	return sess
}

func (s *Server) session(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) dropSession(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		s.hub.CloseTopic(id)
	}
	return ok
}

package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vanderheijden86/peektree/pkg/model"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// Operation names accepted by POST /api/sessions/{id}/{op}.
const (
	OpDescend    = "descend"
	OpSelectLeaf = "select-leaf"
	OpActivate   = "activate"
	OpAscend     = "ascend"
	OpJump       = "jump"
	OpReset      = "reset"
	OpPreview    = "preview"
	OpEndPreview = "end-preview"
)

// OperationRequest is the body of an operation call. Which field is read
// depends on the operation.
type OperationRequest struct {
	NodeID string `json:"node_id,omitempty"`
	Depth  *int   `json:"depth,omitempty"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID          string         `json:"id"`
	Snapshot    model.Snapshot `json:"snapshot"`
	Breadcrumbs []model.Crumb  `json:"breadcrumbs"`
	ActiveLevel model.Level    `json:"active_level"`
	Path        []string       `json:"path"`
	CreatedAt   time.Time      `json:"created_at"`
}

// OperationResponse is returned by every operation call. Changed is false
// when the operation did not apply to the current state.
type OperationResponse struct {
	Snapshot model.Snapshot       `json:"snapshot"`
	Changed  bool                 `json:"changed"`
	Leaf     *model.LeafSelection `json:"leaf,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	t := s.Tree()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"levels":   t.LevelCount(),
		"nodes":    t.NodeCount(),
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	t := s.Tree()
	writeJSON(w, http.StatusOK, map[string]any{
		"title":      t.Title(),
		"root_label": t.RootLabel(),
		"levels":     t.Levels(),
		"stats":      t.Stats(),
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "level index must be an integer", http.StatusBadRequest)
		return
	}
	lvl, ok := s.Tree().Level(idx)
	if !ok {
		jsonError(w, "level not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.newSession()
	s.log.Info("session created", "session", sess.id)

	sess.mu.Lock()
	resp := describe(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	resp := describe(sess)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.dropSession(id) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	s.log.Info("session deleted", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	crumbs := sess.engine.Breadcrumbs()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"breadcrumbs": crumbs})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	snap := sess.engine.Snapshot()
	sess.mu.Unlock()
	s.hub.Stream(w, r, sess.id, snap)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	op := chi.URLParam(r, "op")

	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	resp, err := apply(sess, op, req)
	sess.mu.Unlock()
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnknownOp) {
			status = http.StatusNotFound
		}
		jsonError(w, err.Error(), status)
		return
	}

	if resp.Changed {
		s.hub.Publish(sess.id, EventSnapshot, resp.Snapshot)
	}
	if resp.Leaf != nil {
		s.hub.Publish(sess.id, EventLeaf, resp.Leaf)
		s.log.Info("leaf selected", "session", sess.id, "node", resp.Leaf.NodeID, "path", resp.Leaf.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

var (
	errUnknownOp    = errors.New("unknown operation")
	errMissingNode  = errors.New("node_id is required")
	errMissingDepth = errors.New("depth is required")
)

// apply runs op against the session engine. The caller holds sess.mu.
func apply(sess *session, op string, req OperationRequest) (OperationResponse, error) {
	switch op {
	case OpDescend, OpSelectLeaf, OpActivate, OpPreview:
		if req.NodeID == "" {
			return OperationResponse{}, errMissingNode
		}
	case OpJump:
		if req.Depth == nil {
			return OperationResponse{}, errMissingDepth
		}
	}

	e := sess.engine
	before := e.Snapshot()
	sess.leaf = nil

	var after model.Snapshot
	switch op {
	case OpDescend:
		after = e.Descend(req.NodeID)
	case OpSelectLeaf:
		after, _ = e.SelectLeaf(req.NodeID)
	case OpActivate:
		after = e.Activate(req.NodeID)
	case OpAscend:
		after = e.Ascend()
	case OpJump:
		if *req.Depth == model.RootCrumbDepth {
			after = e.ResetToRoot()
		} else {
			after = e.JumpToBreadcrumb(*req.Depth)
		}
	case OpReset:
		after = e.ResetToRoot()
	case OpPreview:
		after = e.BeginPreview(req.NodeID)
	case OpEndPreview:
		after = e.EndPreview()
	default:
		return OperationResponse{}, errUnknownOp
	}

	resp := OperationResponse{
		Snapshot: after,
		Changed:  !after.Equal(before),
		Leaf:     sess.leaf,
	}
	sess.leaf = nil
	return resp, nil
}

func describe(sess *session) SessionResponse {
	return SessionResponse{
		ID:          sess.id,
		Snapshot:    sess.engine.Snapshot(),
		Breadcrumbs: sess.engine.Breadcrumbs(),
		ActiveLevel: sess.engine.ActiveLevel(),
		Path:        sess.engine.Path(),
		CreatedAt:   sess.created,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/testutil"
	"github.com/vanderheijden86/peektree/pkg/tree"

	json "github.com/goccy/go-json"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(tree.MustBuild(testutil.Scenario()), nil)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createSession(t *testing.T, s *Server) SessionResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[SessionResponse](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["levels"].(float64) != 3 {
		t.Errorf("levels = %v, want 3", body["levels"])
	}
}

func TestLevels(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/levels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := decode[struct {
		RootLabel string        `json:"root_label"`
		Levels    []model.Level `json:"levels"`
	}](t, rec)
	if list.RootLabel != "Root" || len(list.Levels) != 3 {
		t.Errorf("unexpected listing: %+v", list)
	}

	rec = do(t, s, http.MethodGet, "/api/levels/1", "")
	lvl := decode[model.Level](t, rec)
	if lvl.ParentNodeID != "A" || len(lvl.Nodes) != 1 || lvl.Nodes[0].ID != "C" {
		t.Errorf("level 1 = %+v", lvl)
	}

	if rec := do(t, s, http.MethodGet, "/api/levels/9", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing level: status %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/levels/x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad index: status %d, want 400", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	sess := createSession(t, s)

	if sess.ID == "" {
		t.Fatal("expected session id")
	}
	if sess.Snapshot.CurrentLevelIndex != 0 || len(sess.Snapshot.History) != 0 {
		t.Errorf("new session should start at root: %+v", sess.Snapshot)
	}
	if len(sess.Breadcrumbs) != 1 || sess.Breadcrumbs[0].Depth != model.RootCrumbDepth {
		t.Errorf("expected only the root crumb, got %+v", sess.Breadcrumbs)
	}
	if s.SessionCount() != 1 {
		t.Errorf("SessionCount = %d", s.SessionCount())
	}

	rec := do(t, s, http.MethodGet, "/api/sessions/"+sess.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d", rec.Code)
	}

	if rec := do(t, s, http.MethodDelete, "/api/sessions/"+sess.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete session: status %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/sessions/"+sess.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleted session: status %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/sessions/"+sess.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("double delete: status %d, want 404", rec.Code)
	}
}

func TestOperations_Scenario(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID
	op := func(name, body string) OperationResponse {
		t.Helper()
		rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/"+name, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", name, rec.Code, rec.Body.String())
		}
		return decode[OperationResponse](t, rec)
	}

	r := op(OpDescend, `{"node_id":"A"}`)
	if !r.Changed || r.Snapshot.CurrentLevelIndex != 1 || r.Snapshot.SelectedNodeID != "A" {
		t.Errorf("descend A: %+v", r)
	}

	r = op(OpDescend, `{"node_id":"C"}`)
	if r.Snapshot.CurrentLevelIndex != 2 || len(r.Snapshot.History) != 2 {
		t.Errorf("descend C: %+v", r.Snapshot)
	}

	r = op(OpSelectLeaf, `{"node_id":"D"}`)
	if r.Changed {
		t.Error("selecting a leaf must not change navigation state")
	}
	if r.Leaf == nil || r.Leaf.String() != "A-label → C-label → D-label" {
		t.Errorf("leaf = %+v", r.Leaf)
	}

	r = op(OpJump, `{"depth":0}`)
	if r.Snapshot.CurrentLevelIndex != 1 || len(r.Snapshot.History) != 1 {
		t.Errorf("jump 0: %+v", r.Snapshot)
	}

	r = op(OpAscend, "")
	if r.Snapshot.CurrentLevelIndex != 0 || len(r.Snapshot.History) != 0 {
		t.Errorf("ascend: %+v", r.Snapshot)
	}

	r = op(OpAscend, "")
	if r.Changed {
		t.Error("ascend at root should be a no-op")
	}
}

func TestOperations_PreviewAndActivate(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID
	op := func(name, body string) OperationResponse {
		t.Helper()
		rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/"+name, body)
		return decode[OperationResponse](t, rec)
	}

	r := op(OpPreview, `{"node_id":"A"}`)
	if r.Snapshot.PreviewChildIndex == nil || *r.Snapshot.PreviewChildIndex != 1 {
		t.Errorf("preview A: %+v", r.Snapshot)
	}
	if r.Snapshot.Visible.PeekRight == nil || *r.Snapshot.Visible.PeekRight != 1 {
		t.Errorf("peek-right should show level 1: %+v", r.Snapshot.Visible)
	}

	r = op(OpEndPreview, "")
	if r.Snapshot.PreviewChildIndex != nil {
		t.Error("end-preview should clear the preview")
	}

	r = op(OpActivate, `{"node_id":"B"}`)
	if r.Leaf == nil || r.Leaf.NodeID != "B" {
		t.Errorf("activate leaf B: %+v", r)
	}

	r = op(OpActivate, `{"node_id":"A"}`)
	if r.Snapshot.CurrentLevelIndex != 1 {
		t.Errorf("activate branch A should descend: %+v", r.Snapshot)
	}

	r = op(OpJump, `{"depth":-1}`)
	if r.Snapshot.CurrentLevelIndex != 0 || len(r.Snapshot.History) != 0 {
		t.Errorf("root crumb should reset: %+v", r.Snapshot)
	}
}

func TestOperations_InvalidInputIsNoop(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/descend", `{"node_id":"D"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if r := decode[OperationResponse](t, rec); r.Changed {
		t.Error("descending into a node off the active level should be a no-op")
	}
}

func TestOperations_Errors(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"UnknownSession", "/api/sessions/nope/ascend", "", http.StatusNotFound},
		{"UnknownOp", "/api/sessions/" + id + "/teleport", "", http.StatusNotFound},
		{"MissingNode", "/api/sessions/" + id + "/descend", "{}", http.StatusBadRequest},
		{"MissingDepth", "/api/sessions/" + id + "/jump", "{}", http.StatusBadRequest},
		{"BadJSON", "/api/sessions/" + id + "/descend", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s := newTestServer(t)
	a := createSession(t, s).ID
	b := createSession(t, s).ID

	do(t, s, http.MethodPost, "/api/sessions/"+a+"/descend", `{"node_id":"A"}`)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+b, "")
	if got := decode[SessionResponse](t, rec); got.Snapshot.CurrentLevelIndex != 0 {
		t.Errorf("session b moved with session a: %+v", got.Snapshot)
	}
}

func TestConcurrentOperations(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				do(t, s, http.MethodPost, "/api/sessions/"+id+"/descend", `{"node_id":"A"}`)
			} else {
				do(t, s, http.MethodPost, "/api/sessions/"+id+"/ascend", "")
			}
		}(i)
	}
	wg.Wait()

	got := decode[SessionResponse](t, do(t, s, http.MethodGet, "/api/sessions/"+id, ""))
	if n := len(got.Snapshot.History); n > 1 {
		t.Errorf("history depth %d cannot exceed 1 in this scenario", n)
	}
}

func TestSetTreeResetsSessions(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s).ID
	do(t, s, http.MethodPost, "/api/sessions/"+id+"/descend", `{"node_id":"A"}`)

	s.SetTree(tree.MustBuild(testutil.FeatureTree()))

	got := decode[SessionResponse](t, do(t, s, http.MethodGet, "/api/sessions/"+id, ""))
	if got.Snapshot.CurrentLevelIndex != 0 || len(got.Snapshot.History) != 0 {
		t.Errorf("session should restart at root after reload: %+v", got.Snapshot)
	}
	if got.ActiveLevel.ID != "benefits" {
		t.Errorf("active level = %s, want benefits", got.ActiveLevel.ID)
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	id := createSession(t, s).ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+id+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
		close(events)
	}()

	expect := func(want string) {
		t.Helper()
		select {
		case got := <-events:
			if got != want {
				t.Fatalf("event = %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	expect(EventConnected)
	expect(EventSnapshot)

	post := func(op, body string) {
		t.Helper()
		r, err := http.Post(srv.URL+"/api/sessions/"+id+"/"+op, "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatal(err)
		}
		r.Body.Close()
	}

	post(OpDescend, `{"node_id":"A"}`)
	expect(EventSnapshot)

	post(OpSelectLeaf, `{"node_id":"C"}`)
	post(OpDescend, `{"node_id":"C"}`)
	expect(EventSnapshot)

	post(OpSelectLeaf, `{"node_id":"D"}`)
	expect(EventLeaf)

	s.SetTree(tree.MustBuild(testutil.Scenario()))
	expect(EventReload)

	if rec := do(t, s, http.MethodDelete, "/api/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected stream to end after session delete")
		}
	case <-time.After(2 * time.Second):
		t.Error("stream did not close after session delete")
	}
}

func TestEventsUnknownSession(t *testing.T) {
	s := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/api/sessions/missing/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

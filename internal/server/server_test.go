package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loykin/dataupgrader/internal/article"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

type memStore struct {
	rows      []upgrade.Row
	selectErr error
}

func (m *memStore) Select(_ context.Context, _ string, where map[string]any, limit int) ([]upgrade.Row, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var out []upgrade.Row
	for _, r := range m.rows {
		if status, ok := where["status"]; ok && r.Fields["status"] != status {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, _ string, fields map[string]any) error {
	row := upgrade.Row{ID: fields["id"].(string), Fields: map[string]any{}}
	for k, v := range fields {
		if k != "id" && k != upgrade.AppliedUpgradesField {
			row.Fields[k] = v
		}
	}
	m.rows = append(m.rows, row)
	return nil
}

var (
	t0     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	secret = []byte("test-secret")
)

func newTestServer(t *testing.T, st *memStore, toggle *Toggle) (*Server, *time.Time) {
	t.Helper()
	now := t0
	r := upgrade.NewRunner([]upgrade.Table[article.Services]{article.Table(nil)}, upgrade.WithLogger(common.NopLogger()))
	s := New(Options{
		State:    r.State(),
		Store:    st,
		Toggle:   toggle,
		Metrics:  metrics.New(""),
		Auth:     AuthConfig{Secret: secret},
		Services: article.Services{Logger: common.NopLogger()},
		Logger:   common.NopLogger(),
		Now:      func() time.Time { return now },
	})
	return s, &now
}

func do(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s, now := newTestServer(t, &memStore{}, nil)
	*now = t0.Add(1500 * time.Millisecond)

	w := do(s, http.MethodGet, "/health-check", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Uptime       float64          `json:"uptime"`
		DataUpgrades upgrade.Snapshot `json:"dataUpgrades"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Uptime != 1.5 {
		t.Fatalf("uptime = %v", got.Uptime)
	}
	if r := got.DataUpgrades.RemainingUpgrades["article"]; len(r) != 1 || r[0] != "fix-bad-statuses" {
		t.Fatalf("remaining = %v", got.DataUpgrades.RemainingUpgrades)
	}
	if !strings.Contains(w.Body.String(), `"currentlyRunningUpgrade":{}`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &memStore{}, nil)
	w := do(s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dataupgrader_paused") {
		t.Fatalf("metrics body missing gauge:\n%s", w.Body.String())
	}
}

func TestListArticles_AppliesUpgradesAtReadTime(t *testing.T) {
	st := &memStore{rows: []upgrade.Row{
		{ID: "1", Fields: map[string]any{"slug": "a", "status": "live", "topics": []string{"go"}}},
		{ID: "2", Fields: map[string]any{"slug": "b", "status": "dead"}},
		{ID: "3", Fields: map[string]any{"slug": "c", "status": "live"}},
	}}
	s, _ := newTestServer(t, st, nil)

	w := do(s, http.MethodGet, "/articles", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got []article.DTO
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("articles = %+v", got)
	}
	if strings.Contains(w.Body.String(), "status") {
		t.Fatalf("status leaked into DTO: %s", w.Body.String())
	}

	w = do(s, http.MethodGet, "/articles?limit=1", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || len(got) != 1 {
		t.Fatalf("limited = %+v, %v", got, err)
	}
	if w := do(s, http.MethodGet, "/articles?limit=x", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}
}

func TestListArticles_StoreError(t *testing.T) {
	s, _ := newTestServer(t, &memStore{selectErr: errors.New("down")}, nil)
	if w := do(s, http.MethodGet, "/articles", "", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateArticle(t *testing.T) {
	st := &memStore{}
	s, _ := newTestServer(t, st, nil)

	w := do(s, http.MethodPost, "/articles", `{"slug":"hello","heading":"Hello","topics":["go"]}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || got["id"] == "" {
		t.Fatalf("body = %s", w.Body.String())
	}
	if len(st.rows) != 1 || st.rows[0].Fields["status"] != article.StatusLive || st.rows[0].Fields["kind"] != article.Kind {
		t.Fatalf("stored = %+v", st.rows)
	}

	if w := do(s, http.MethodPost, "/articles", `{"heading":"no slug"}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing slug status = %d", w.Code)
	}
}

func TestAdminToggle(t *testing.T) {
	toggle := NewToggle(true)
	s, _ := newTestServer(t, &memStore{}, toggle)

	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", w.Code)
	}
	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", w.Code)
	}
	wrong, err := IssueToken(AuthConfig{Secret: []byte("other")}, "ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", wrong); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d", w.Code)
	}

	token, err := IssueToken(AuthConfig{Secret: secret}, "ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", token); w.Code != http.StatusOK {
		t.Fatalf("pause status = %d", w.Code)
	}
	if toggle.Enabled() {
		t.Fatal("toggle should be off after pause")
	}
	if w := do(s, http.MethodPost, "/admin/upgrades/resume", "", token); w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	if !toggle.Enabled() {
		t.Fatal("toggle should be on after resume")
	}

	expired, err := IssueToken(AuthConfig{Secret: secret}, "ops", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", expired); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d", w.Code)
	}
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	s := New(Options{Logger: common.NopLogger()})
	if w := do(s, http.MethodPost, "/admin/upgrades/pause", "", "x"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if _, err := IssueToken(AuthConfig{}, "ops", time.Minute); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, &memStore{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

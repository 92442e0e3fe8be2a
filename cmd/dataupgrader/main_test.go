package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/article"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/httpc"
	"github.com/loykin/dataupgrader/internal/server"
	"github.com/loykin/dataupgrader/internal/store"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/spf13/viper"
)

func sqliteDoc(t *testing.T) *config.ConfigDoc {
	t.Helper()
	common.SetDefaultLogger(common.NopLogger())
	doc := &config.ConfigDoc{}
	doc.Store.Type = "sqlite"
	doc.Store.SQLite.Path = filepath.Join(t.TempDir(), "cli.db")
	return doc
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestMigrateSeedRun(t *testing.T) {
	ctx := context.Background()
	doc := sqliteDoc(t)

	var out bytes.Buffer
	if err := migrate(ctx, doc, &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got := out.String(); got != "schema version: 2 (sqlite)\n" {
		t.Fatalf("migrate output = %q", got)
	}

	out.Reset()
	if err := seed(ctx, doc, 12, 42, &out); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "seeded 12 articles") {
		t.Fatalf("seed output = %q", out.String())
	}
	if err := seed(ctx, doc, 0, 1, &out); err == nil {
		t.Fatal("seed should reject zero rows")
	}

	out.Reset()
	if err := runOnce(ctx, doc, &out, upgrade.WithSleep(noSleep)); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if !strings.HasPrefix(out.String(), "phase: done") || !strings.Contains(out.String(), "upgrades completed: [fix-bad-statuses]") {
		t.Fatalf("run output = %q", out.String())
	}

	st, err := store.Open(ctx, doc.StoreConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	bad, err := st.Select(ctx, article.TableName, map[string]any{"status": "incorrect"}, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("%d rows still carry an incorrect status", len(bad))
	}
	fixed, err := st.FetchWithout(ctx, article.TableName, article.FixBadStatuses.Name, 100)
	if err != nil || len(fixed) != 0 {
		t.Fatalf("rows without marker = %d, %v", len(fixed), err)
	}
}

func TestRunOnce_Disabled(t *testing.T) {
	doc := sqliteDoc(t)
	off := false
	doc.Upgrades.Enabled = &off
	// an unreachable store proves nothing was opened
	doc.Store.Type = "postgres"
	var out bytes.Buffer
	if err := runOnce(context.Background(), doc, &out); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestLoadConfig(t *testing.T) {
	prev := common.GetLogger()
	t.Cleanup(func() { common.SetDefaultLogger(prev) })

	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("store:\n  type: sqlite\nupgrades:\n  batch_size: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("config", p)
	v.Set("upgrades.batch_size", 3)
	doc, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if doc.Upgrades.BatchSize != 3 {
		t.Fatalf("batch size = %d, want flag value", doc.Upgrades.BatchSize)
	}

	v = viper.New()
	v.Set("config", p)
	v.Set("store.type", "mongo")
	if _, err := loadConfig(v); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func healthServer(t *testing.T, bodies ...string) *httptest.Server {
	t.Helper()
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health-check" {
			http.NotFound(w, r)
			return
		}
		body := bodies[min(calls, len(bodies)-1)]
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

const (
	runningBody = `{"uptime":3,"dataUpgrades":{"currentlyRunningUpgrade":{"type":"upgrading","tableName":"article","upgradeName":"fix-bad-statuses"},"remainingUpgrades":{"article":["fix-bad-statuses"]},"completedUpgrades":{"article":[]},"remainingCleanups":{"article":[]},"doneCleanups":{"article":[]}}}`
	doneBody    = `{"uptime":9,"dataUpgrades":{"currentlyRunningUpgrade":{"type":"done"},"remainingUpgrades":{"article":[]},"completedUpgrades":{"article":["fix-bad-statuses"]},"remainingCleanups":{"article":[]},"doneCleanups":{"article":[]}}}`
)

func TestShowStatus(t *testing.T) {
	ts := healthServer(t, runningBody)
	client := (&httpc.Httpc{BaseURL: ts.URL}).New()

	var out bytes.Buffer
	if err := showStatus(context.Background(), client, statusOptions{}, &out); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	if out.String() != "phase: upgrading (article/fix-bad-statuses)\nuptime: 3s\n" {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	if err := showStatus(context.Background(), client, statusOptions{tables: true}, &out); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	if !strings.Contains(out.String(), "  upgrades remaining: [fix-bad-statuses]") {
		t.Fatalf("tables output = %q", out.String())
	}
}

func TestShowStatus_Wait(t *testing.T) {
	ts := healthServer(t, runningBody, runningBody, doneBody)
	client := (&httpc.Httpc{BaseURL: ts.URL}).New()

	var out bytes.Buffer
	opts := statusOptions{wait: true, timeout: 5 * time.Second, interval: 10 * time.Millisecond}
	if err := showStatus(context.Background(), client, opts, &out); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	if !strings.HasPrefix(out.String(), "phase: done") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestShowStatus_WaitTimeout(t *testing.T) {
	ts := healthServer(t, runningBody)
	client := (&httpc.Httpc{BaseURL: ts.URL}).New()

	var out bytes.Buffer
	opts := statusOptions{wait: true, timeout: 100 * time.Millisecond, interval: 20 * time.Millisecond}
	err := showStatus(context.Background(), client, opts, &out)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "phase: upgrading") {
		t.Fatalf("last status not printed: %q", out.String())
	}
}

func TestPostAdmin(t *testing.T) {
	common.SetDefaultLogger(common.NopLogger())
	toggle := server.NewToggle(true)
	srv := server.New(server.Options{
		Toggle: toggle,
		Auth:   server.AuthConfig{Secret: []byte("cli-secret")},
		Logger: common.NopLogger(),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	doc := &config.ConfigDoc{}
	doc.Client.URL = ts.URL
	doc.Server.JWTSecret = "cli-secret"

	var out bytes.Buffer
	if err := postAdmin(context.Background(), doc, "pause", "", &out); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if toggle.Enabled() {
		t.Fatal("toggle should be off")
	}
	if !strings.Contains(out.String(), `"enabled":false`) {
		t.Fatalf("output = %q", out.String())
	}
	if err := postAdmin(context.Background(), doc, "resume", "", &out); err != nil || !toggle.Enabled() {
		t.Fatalf("resume: %v, enabled=%v", err, toggle.Enabled())
	}

	if err := postAdmin(context.Background(), doc, "pause", "not-a-jwt", &out); err == nil {
		t.Fatal("expected 401 for a bad token")
	}
	doc.Server.JWTSecret = ""
	if err := postAdmin(context.Background(), doc, "pause", "", &out); err == nil {
		t.Fatal("expected error without a secret or token")
	}
}

func TestReloadToggle(t *testing.T) {
	common.SetDefaultLogger(common.NopLogger())
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("upgrades:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	toggle := server.NewToggle(true)
	reloadToggle(p, toggle)
	if toggle.Enabled() {
		t.Fatal("toggle should follow the file")
	}

	if err := os.WriteFile(p, []byte("upgrades: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	reloadToggle(p, toggle)
	if toggle.Enabled() {
		t.Fatal("unreadable config must not change the toggle")
	}

	if err := os.WriteFile(p, []byte("logging:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	reloadToggle(p, toggle)
	if !toggle.Enabled() {
		t.Fatal("missing key defaults to enabled")
	}
}

type recordingExit struct {
	code int
	err  error
}

func (r *recordingExit) Exit(code int) { r.code = code }

func (r *recordingExit) LogFatalError(err error, _ string, _ ...any) {
	r.err = err
	r.Exit(1)
}

func TestMain_ExitsOnCommandError(t *testing.T) {
	rec := &recordingExit{}
	prev := exitHandler
	exitHandler = rec
	t.Cleanup(func() { exitHandler = prev })

	rootCmd.SetArgs([]string{"no-such-command"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	main()
	if rec.code != 1 || rec.err == nil {
		t.Fatalf("exit = %d, err = %v", rec.code, rec.err)
	}
}

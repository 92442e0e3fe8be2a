package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/loykin/dataupgrader/internal/httpc"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

const body = `{
  "uptime": 42.6,
  "dataUpgrades": {
    "currentlyRunningUpgrade": {"type": "upgrading", "tableName": "article", "upgradeName": "fix-bad-statuses"},
    "remainingUpgrades": {"article": ["fix-bad-statuses"], "author": []},
    "completedUpgrades": {"article": [], "author": ["trim-names"]},
    "remainingCleanups": {"article": ["old"]},
    "doneCleanups": {"article": []}
  }
}`

func TestParse(t *testing.T) {
	info, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Phase != "upgrading" || info.Table != "article" || info.Upgrade != "fix-bad-statuses" {
		t.Fatalf("current = %+v", info)
	}
	if info.Uptime != 42600*time.Millisecond {
		t.Fatalf("uptime = %v", info.Uptime)
	}
	want := []TableInfo{
		{Name: "article", RemainingUpgrades: []string{"fix-bad-statuses"}, CompletedUpgrades: []string{}, RemainingCleanups: []string{"old"}, DoneCleanups: []string{}},
		{Name: "author", RemainingUpgrades: []string{}, CompletedUpgrades: []string{"trim-names"}},
	}
	if !reflect.DeepEqual(info.Tables, want) {
		t.Fatalf("tables = %+v", info.Tables)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "not json", `{"uptime": 1}`} {
		if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidBody) {
			t.Errorf("Parse(%q) error = %v", in, err)
		}
	}
}

func TestFromSnapshot(t *testing.T) {
	s := upgrade.Snapshot{
		CurrentlyRunningUpgrade: upgrade.CurrentUpgrade{Type: upgrade.PhaseDone},
		RemainingUpgrades:       map[string][]string{"article": {}},
		CompletedUpgrades:       map[string][]string{"article": {"fix-bad-statuses"}},
		RemainingCleanups:       map[string][]string{"article": {}},
		DoneCleanups:            map[string][]string{"article": {}},
	}
	info := FromSnapshot(s, 3*time.Second)
	if !info.Done() || len(info.Tables) != 1 || info.Tables[0].CompletedUpgrades[0] != "fix-bad-statuses" {
		t.Fatalf("info = %+v", info)
	}
}

func TestFormatHuman(t *testing.T) {
	info, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := info.FormatHuman(false)
	want := "phase: upgrading (article/fix-bad-statuses)\nuptime: 43s\n"
	if got != want {
		t.Fatalf("FormatHuman(false) mismatch\nwant: %q\n got: %q", want, got)
	}

	got = info.FormatHuman(true)
	want += "article:\n" +
		"  upgrades remaining: [fix-bad-statuses]\n" +
		"  upgrades completed: []\n" +
		"  cleanups remaining: [old]\n" +
		"  cleanups done: []\n" +
		"author:\n" +
		"  upgrades remaining: []\n" +
		"  upgrades completed: [trim-names]\n" +
		"  cleanups remaining: []\n" +
		"  cleanups done: []\n"
	if got != want {
		t.Fatalf("FormatHuman(true) mismatch\nwant: %q\n got: %q", want, got)
	}

	if got := (Info{}).FormatHuman(false); got != "phase: not started\nuptime: 0s\n" {
		t.Fatalf("empty = %q", got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health-check" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	info, err := Fetch(context.Background(), (&httpc.Httpc{BaseURL: srv.URL}).New())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.Phase != "upgrading" {
		t.Fatalf("phase = %q", info.Phase)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	if _, err := Fetch(context.Background(), (&httpc.Httpc{BaseURL: broken.URL}).New()); err == nil {
		t.Fatal("expected error for 500")
	}
}

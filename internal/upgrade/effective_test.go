package upgrade

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestEffective_ApplyUpgrades(t *testing.T) {
	row := dataRow("a", 3)
	e := NewEffective[services](row)

	asyncCalled := false
	withAsync := Upgrade[services]{
		Name: "async-only",
		ApplyAsync: func(context.Context, Row, Querier, services) (Updates, error) {
			asyncCalled = true
			return nil, nil
		},
	}

	if err := e.ApplyUpgrades(services{}, double, withAsync, pointless); err != nil {
		t.Fatalf("ApplyUpgrades: %v", err)
	}

	cur := e.Current()
	if cur.Fields["data"] != 6 {
		t.Fatalf("current data = %v", cur.Fields["data"])
	}
	// upgrades without Apply are left to the background runner
	if !reflect.DeepEqual(cur.AppliedUpgrades, []string{"double"}) {
		t.Fatalf("current markers = %v", cur.AppliedUpgrades)
	}
	if asyncCalled {
		t.Fatal("ApplyAsync must not run at read time")
	}

	orig := e.Original()
	if orig.Fields["data"] != 3 || orig.AppliedUpgrades != nil {
		t.Fatalf("original changed: %+v", orig)
	}
	if row.Fields["data"] != 3 {
		t.Fatalf("input row mutated: %+v", row)
	}
}

func TestEffective_SkipsAppliedUpgrades(t *testing.T) {
	e := NewEffective[services](dataRow("a", 3, "double"))
	if err := e.ApplyUpgrades(services{}, double, double); err != nil {
		t.Fatalf("ApplyUpgrades: %v", err)
	}
	if got := e.Current().Fields["data"]; got != 3 {
		t.Fatalf("data = %v, want unchanged", got)
	}
}

func TestEffective_UpdateAndError(t *testing.T) {
	e := NewEffective[services](dataRow("a", 1))
	e.Update(Updates{"data": 10, "id": "ignored"})
	e.Update(Updates{"extra": "x"})

	cur := e.Current()
	if cur.ID != "a" || cur.Fields["data"] != 10 || cur.Fields["extra"] != "x" {
		t.Fatalf("current = %+v", cur)
	}

	boom := errors.New("boom")
	failing := Upgrade[services]{Name: "failing", Apply: func(Row, services) (Updates, error) { return nil, boom }}
	if err := e.ApplyUpgrades(services{}, failing); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRow_MergeAndGet(t *testing.T) {
	r := Row{ID: "a", Fields: map[string]any{"status": "incorrect"}}
	m := r.Merge(Updates{"status": "dead", AppliedUpgradesField: []any{"x", 1, "y"}})

	if r.Fields["status"] != "incorrect" {
		t.Fatal("Merge mutated the receiver")
	}
	if m.Get("status") != "dead" || m.Get(IDField) != "a" {
		t.Fatalf("merged = %+v", m)
	}
	if !reflect.DeepEqual(m.Get(AppliedUpgradesField), []string{"x", "y"}) {
		t.Fatalf("markers = %v", m.Get(AppliedUpgradesField))
	}
	if (Row{}).Get("missing") != nil {
		t.Fatal("expected nil for missing field")
	}
}

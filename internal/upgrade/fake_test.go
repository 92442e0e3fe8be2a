package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/loykin/dataupgrader/internal/common"
)

type call struct {
	op    string // "without", "with" or "update"
	table string
	name  string
	limit int
}

// memStore is an in-memory Executor with rollback support.
type memStore struct {
	tables map[string][]Row

	calls     []call
	commits   int
	rollbacks int

	fetchErr  map[string]error // keyed by upgrade name
	updateErr func(table, id string, u Updates) error
	// racy makes the next FetchWithout ignore markers once
	racy bool
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]Row{}, fetchErr: map[string]error{}}
}

func (s *memStore) add(table string, rows ...Row) {
	s.tables[table] = append(s.tables[table], rows...)
}

func (s *memStore) row(table, id string) Row {
	for _, r := range s.tables[table] {
		if r.ID == id {
			return r
		}
	}
	return Row{}
}

func (s *memStore) snapshot() map[string][]Row {
	out := make(map[string][]Row, len(s.tables))
	for t, rows := range s.tables {
		cp := make([]Row, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		out[t] = cp
	}
	return out
}

func (s *memStore) fetch(table, name string, limit int, want bool) []Row {
	var out []Row
	for _, r := range s.tables[table] {
		if len(out) == limit {
			break
		}
		if HasApplied(r, name) == want || (!want && s.racy) {
			out = append(out, r.Clone())
		}
	}
	s.racy = false
	return out
}

func (s *memStore) FetchWithout(_ context.Context, table, name string, limit int) ([]Row, error) {
	s.calls = append(s.calls, call{op: "without", table: table, name: name, limit: limit})
	if err := s.fetchErr[name]; err != nil {
		return nil, err
	}
	return s.fetch(table, name, limit, false), nil
}

func (s *memStore) FetchWith(_ context.Context, table, name string, limit int) ([]Row, error) {
	s.calls = append(s.calls, call{op: "with", table: table, name: name, limit: limit})
	if err := s.fetchErr[name]; err != nil {
		return nil, err
	}
	return s.fetch(table, name, limit, true), nil
}

func (s *memStore) Update(_ context.Context, table, id string, u Updates) error {
	s.calls = append(s.calls, call{op: "update", table: table, name: id})
	if s.updateErr != nil {
		if err := s.updateErr(table, id, u); err != nil {
			return err
		}
	}
	rows := s.tables[table]
	for i := range rows {
		if rows[i].ID == id {
			rows[i] = rows[i].Merge(u)
			return nil
		}
	}
	return fmt.Errorf("row %s not found in %s", id, table)
}

func (s *memStore) UnitOfWork(_ context.Context, fn func(tx Querier) error) (err error) {
	backup := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.tables = backup
			s.rollbacks++
			panic(p)
		}
	}()
	if err := fn(s); err != nil {
		s.tables = backup
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *memStore) count(op string) int {
	n := 0
	for _, c := range s.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// sleepRecorder records every sleep without waiting.
type sleepRecorder struct {
	sleeps []time.Duration
	hook   func(n int)
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	if r.hook != nil {
		r.hook(len(r.sleeps))
	}
	return nil
}

// fixedClock makes every batch take zero time.
func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

type services struct {
	factor int
}

func testRunner(tables []Table[services], rec *sleepRecorder, opts ...Option) *Runner[services] {
	base := []Option{WithSleep(rec.sleep), WithClock(fixedClock), WithLogger(common.NopLogger())}
	return NewRunner(tables, append(base, opts...)...)
}

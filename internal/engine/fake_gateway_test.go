package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"shootboard/internal/domain"
)

var errBoom = errors.New("boom")

type call struct {
	Op     string
	Kind   domain.Kind
	ID     string
	Fields domain.Record
}

// fakeGateway is an in-memory store that records calls and can be told to
// fail a given op/kind.
type fakeGateway struct {
	mu    sync.Mutex
	rows  map[domain.Kind][]domain.Record
	calls []call
	fail  map[string]error
	next  int
	// block, when set, holds Update calls until it is closed.
	block chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rows: map[domain.Kind][]domain.Record{}, fail: map[string]error{}}
}

func (g *fakeGateway) seed(k domain.Kind, recs ...domain.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range recs {
		g.rows[k] = append(g.rows[k], r.Clone())
	}
}

func (g *fakeGateway) failOn(op string, k domain.Kind, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op+":"+string(k)] = err
}

func (g *fakeGateway) clearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = map[string]error{}
}

func (g *fakeGateway) record(op string, k domain.Kind, id string, fields domain.Record) error {
	g.calls = append(g.calls, call{Op: op, Kind: k, ID: id, Fields: fields.Clone()})
	return g.fail[op+":"+string(k)]
}

func (g *fakeGateway) callsOf(op string, k domain.Kind) []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []call
	for _, c := range g.calls {
		if c.Op == op && c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGateway) List(_ context.Context, k domain.Kind) ([]domain.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("list", k, "", nil); err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(g.rows[k]))
	for _, r := range g.rows[k] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (g *fakeGateway) Insert(_ context.Context, k domain.Kind, rec domain.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("insert", k, "", rec); err != nil {
		return err
	}
	g.next++
	row := rec.Clone()
	row["id"] = fmt.Sprintf("%s-%d", k, g.next)
	g.rows[k] = append(g.rows[k], row)
	return nil
}

func (g *fakeGateway) Update(_ context.Context, k domain.Kind, id string, fields domain.Record) error {
	g.mu.Lock()
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("update", k, id, fields); err != nil {
		return err
	}
	for _, row := range g.rows[k] {
		if row["id"] == id {
			for col, v := range fields {
				row[col] = v
			}
			return nil
		}
	}
	return errors.New("not found")
}

func (g *fakeGateway) Delete(_ context.Context, k domain.Kind, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("delete", k, id, nil); err != nil {
		return err
	}
	rows := g.rows[k]
	for i, row := range rows {
		if row["id"] == id {
			g.rows[k] = append(rows[:i:i], rows[i+1:]...)
			if k == domain.KindProjects {
				var kept []domain.Record
				for _, t := range g.rows[domain.KindTasks] {
					if t["project_id"] != id {
						kept = append(kept, t)
					}
				}
				g.rows[domain.KindTasks] = kept
			}
			return nil
		}
	}
	return errors.New("not found")
}

// set changes a stored value directly, as another client would.
func (g *fakeGateway) set(k domain.Kind, id, col, v string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, row := range g.rows[k] {
		if row["id"] == id {
			row[col] = v
		}
	}
}

func (g *fakeGateway) get(k domain.Kind, id string) domain.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, row := range g.rows[k] {
		if row["id"] == id {
			return row.Clone()
		}
	}
	return nil
}

func (g *fakeGateway) holdUpdates() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block = make(chan struct{})
	return g.block
}

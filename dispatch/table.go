package dispatch

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Table maps method and path to operations. It is filled at startup and
// read concurrently afterwards.
type Table struct {
	mux   *chi.Mux
	ops   []*Operation
	byKey map[string]*Operation
	byID  map[string]*Operation
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		mux:   chi.NewRouter(),
		byKey: make(map[string]*Operation),
		byID:  make(map[string]*Operation),
	}
}

// Add registers op. Duplicate ids or method/path pairs are rejected.
func (t *Table) Add(op Operation) (err error) {
	if err := op.validate(); err != nil {
		return err
	}
	if _, exists := t.byID[op.ID]; exists {
		return fmt.Errorf("operation id %q already registered", op.ID)
	}
	if existing, exists := t.byKey[op.Key()]; exists {
		return fmt.Errorf("operation %s: %s already served by %s", op.ID, op.Key(), existing.ID)
	}

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("operation %s: %v", op.ID, v)
		}
	}()

	stored := op
	stored.Tags = append([]string(nil), op.Tags...)
	stored.Scopes = append([]string(nil), op.Scopes...)
	t.mux.Method(op.Method, op.Path, op.Handler)

	t.ops = append(t.ops, &stored)
	t.byKey[stored.Key()] = &stored
	t.byID[stored.ID] = &stored
	return nil
}

// Register runs each fn against the table.
func (t *Table) Register(fns ...RegisterFunc) error {
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Operations returns the registered operations in registration order.
func (t *Table) Operations() []Operation {
	out := make([]Operation, len(t.ops))
	for i, op := range t.ops {
		out[i] = *op
	}
	return out
}

// Len reports how many operations are registered.
func (t *Table) Len() int {
	return len(t.ops)
}

// Resolve finds the operation serving method and path.
func (t *Table) Resolve(method, path string) (*Operation, bool) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, method, path) {
		return nil, false
	}
	op, ok := t.byKey[method+" "+rctx.RoutePattern()]
	return op, ok
}

// ServeHTTP routes r to its operation's handler. chi URL parameters are
// available to handlers through chi.URLParam.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.mux.ServeHTTP(w, r)
}

package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-scopecache/codec"
	"github.com/goliatone/go-scopecache/scope"
)

// Calls counts the source calls a MemStore has served.
type Calls struct {
	Get    int
	GetAll int
	// Batches holds the ids of every PerformGetAll call made with ids.
	Batches [][]any
	Count   int
	Exists  int
	Query   int
}

// MemStore is a transactional in-memory table. It acts as the scope
// Transactor and as a policy source: writes made through a scope are staged
// in the scope's transaction and applied on commit, reads see committed
// rows overlaid with the reading scope's own staged writes.
type MemStore[K comparable, E any] struct {
	identity func(E) K
	codec    codec.Codec[E]

	mu      sync.Mutex
	rows    map[K]E
	order   []K
	calls   Calls
	failure error
	onLoad  func()
}

// NewMemStore creates an empty store keyed by identity.
func NewMemStore[K comparable, E any](identity func(E) K) *MemStore[K, E] {
	return &MemStore[K, E]{
		identity: identity,
		codec:    codec.Msgpack[E]{},
		rows:     make(map[K]E),
	}
}

type memTx[K comparable, E any] struct {
	store  *MemStore[K, E]
	writes map[K]*E
	order  []K
	done   bool
}

// BeginTx implements scope.Transactor.
func (s *MemStore[K, E]) BeginTx(context.Context) (scope.Tx, error) {
	return &memTx[K, E]{store: s, writes: make(map[K]*E)}, nil
}

func (t *memTx[K, E]) Commit(context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return errors.New("memstore: transaction already finished")
	}
	t.done = true
	for _, id := range t.order {
		if e := t.writes[id]; e != nil {
			s.putLocked(id, *e)
		} else {
			s.removeLocked(id)
		}
	}
	return nil
}

func (t *memTx[K, E]) Rollback(context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.done = true
	t.writes = nil
	return nil
}

func (s *MemStore[K, E]) putLocked(id K, e E) {
	if _, ok := s.rows[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rows[id] = e
}

func (s *MemStore[K, E]) removeLocked(id K) {
	if _, ok := s.rows[id]; !ok {
		return
	}
	delete(s.rows, id)
	for i, k := range s.order {
		if k == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Seed inserts committed rows directly, as an external writer would.
func (s *MemStore[K, E]) Seed(items ...E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range items {
		s.putLocked(s.identity(e), e)
	}
}

// Remove deletes a committed row directly.
func (s *MemStore[K, E]) Remove(id K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// Fail makes every read fail with err until it is called with nil.
func (s *MemStore[K, E]) Fail(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// OnLoad registers fn to run, outside the lock, at the start of every
// full set load.
func (s *MemStore[K, E]) OnLoad(fn func()) {
	s.mu.Lock()
	s.onLoad = fn
	s.mu.Unlock()
}

// Calls returns a snapshot of the call counters.
func (s *MemStore[K, E]) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.calls
	c.Batches = append([][]any(nil), s.calls.Batches...)
	return c
}

// ResetCalls zeroes the call counters.
func (s *MemStore[K, E]) ResetCalls() {
	s.mu.Lock()
	s.calls = Calls{}
	s.mu.Unlock()
}

// Len returns the number of committed rows.
func (s *MemStore[K, E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// tx returns the scope's staged transaction, or nil outside a transaction.
func (s *MemStore[K, E]) tx(ctx context.Context, sc *scope.Scope) (*memTx[K, E], error) {
	if sc == nil {
		return nil, nil
	}
	tx, err := sc.Tx(ctx)
	if errors.Is(err, scope.ErrNoTransactor) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	mt, ok := tx.(*memTx[K, E])
	if !ok {
		return nil, fmt.Errorf("memstore: unexpected transaction type %T", tx)
	}
	return mt, nil
}

// viewLocked returns the rows visible to tx in insertion order.
func (s *MemStore[K, E]) viewLocked(tx *memTx[K, E]) ([]K, map[K]E) {
	rows := make(map[K]E, len(s.rows))
	order := append([]K(nil), s.order...)
	for k, v := range s.rows {
		rows[k] = v
	}
	if tx == nil || tx.done {
		return order, rows
	}
	for _, id := range tx.order {
		e := tx.writes[id]
		if e == nil {
			delete(rows, id)
			continue
		}
		if _, ok := rows[id]; !ok {
			order = append(order, id)
		}
		rows[id] = *e
	}
	out := order[:0]
	for _, id := range order {
		if _, ok := rows[id]; ok {
			out = append(out, id)
		}
	}
	return out, rows
}

func (s *MemStore[K, E]) read(ctx context.Context, sc *scope.Scope, count func(*Calls)) ([]K, map[K]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	tx, err := s.tx(ctx, sc)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count(&s.calls)
	if s.failure != nil {
		return nil, nil, s.failure
	}
	order, rows := s.viewLocked(tx)
	return order, rows, nil
}

func (s *MemStore[K, E]) clone(e E) (E, error) {
	return codec.Clone(s.codec, e)
}

func (s *MemStore[K, E]) PerformGet(ctx context.Context, sc *scope.Scope, id K) (E, bool, error) {
	var zero E
	_, rows, err := s.read(ctx, sc, func(c *Calls) { c.Get++ })
	if err != nil {
		return zero, false, err
	}
	e, ok := rows[id]
	if !ok {
		return zero, false, nil
	}
	e, err = s.clone(e)
	return e, err == nil, err
}

func (s *MemStore[K, E]) PerformGetAll(ctx context.Context, sc *scope.Scope, ids []K) ([]E, error) {
	if len(ids) == 0 {
		s.mu.Lock()
		hook := s.onLoad
		s.mu.Unlock()
		if hook != nil {
			hook()
		}
	}

	order, rows, err := s.read(ctx, sc, func(c *Calls) {
		if len(ids) == 0 {
			c.GetAll++
			return
		}
		batch := make([]any, len(ids))
		for i, id := range ids {
			batch[i] = id
		}
		c.Batches = append(c.Batches, batch)
	})
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		order = ids
	}
	out := make([]E, 0, len(order))
	for _, id := range order {
		e, ok := rows[id]
		if !ok {
			continue
		}
		if e, err = s.clone(e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemStore[K, E]) PerformCount(ctx context.Context, sc *scope.Scope) (int, error) {
	_, rows, err := s.read(ctx, sc, func(c *Calls) { c.Count++ })
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *MemStore[K, E]) PerformExists(ctx context.Context, sc *scope.Scope, id K) (bool, error) {
	_, rows, err := s.read(ctx, sc, func(c *Calls) { c.Exists++ })
	if err != nil {
		return false, err
	}
	_, ok := rows[id]
	return ok, nil
}

// PerformQuery accepts a func(E) bool predicate.
func (s *MemStore[K, E]) PerformQuery(ctx context.Context, sc *scope.Scope, q any) ([]E, error) {
	pred, ok := q.(func(E) bool)
	if !ok {
		return nil, fmt.Errorf("memstore: unsupported query %T", q)
	}
	order, rows, err := s.read(ctx, sc, func(c *Calls) { c.Query++ })
	if err != nil {
		return nil, err
	}
	var out []E
	for _, id := range order {
		if e := rows[id]; pred(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// PersistNew stages an insert. It fails when the id is already visible.
func (s *MemStore[K, E]) PersistNew(ctx context.Context, sc *scope.Scope, e E) error {
	return s.stage(ctx, sc, s.identity(e), &e, func(exists bool) error {
		if exists {
			return fmt.Errorf("memstore: duplicate id %v", s.identity(e))
		}
		return nil
	})
}

// PersistUpdated stages an update. It fails when the id is not visible.
func (s *MemStore[K, E]) PersistUpdated(ctx context.Context, sc *scope.Scope, e E) error {
	return s.stage(ctx, sc, s.identity(e), &e, func(exists bool) error {
		if !exists {
			return fmt.Errorf("memstore: id %v not found", s.identity(e))
		}
		return nil
	})
}

// PersistDeleted stages a delete. Deleting a missing row is not an error.
func (s *MemStore[K, E]) PersistDeleted(ctx context.Context, sc *scope.Scope, e E) error {
	return s.stage(ctx, sc, s.identity(e), nil, func(bool) error { return nil })
}

func (s *MemStore[K, E]) stage(ctx context.Context, sc *scope.Scope, id K, e *E, check func(exists bool) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.tx(ctx, sc)
	if err != nil {
		return err
	}

	var stored *E
	if e != nil {
		c, err := s.clone(*e)
		if err != nil {
			return err
		}
		stored = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, rows := s.viewLocked(tx)
	_, exists := rows[id]
	if err := check(exists); err != nil {
		return err
	}

	if tx == nil {
		if stored != nil {
			s.putLocked(id, *stored)
		} else {
			s.removeLocked(id)
		}
		return nil
	}
	if tx.done {
		return errors.New("memstore: transaction already finished")
	}
	if _, seen := tx.writes[id]; !seen {
		tx.order = append(tx.order, id)
	}
	tx.writes[id] = stored
	return nil
}
